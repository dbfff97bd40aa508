package app

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig() Config {
	cfg := validConfig()
	cfg.DatabaseURL = ":memory:"
	cfg.BcryptCost = bcrypt.MinCost
	cfg.LogLevel = "error"
	return cfg
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.SecretKey = "too-short"

	_, err := New(t.Context(), cfg)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestNewServesAPI(t *testing.T) {
	application, err := New(t.Context(), testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, application.Shutdown()) })

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(srv.Close)

	body := `{"email":"ada@example.com","username":"ada","password":"correct horse battery"}`
	resp, err := http.Post(srv.URL+"/auth/register", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	tests := []struct {
		path     string
		contains string
	}{
		{"/readyz", `"status":"ok"`},
		{"/livez", `"status":"ok"`},
		{"/metrics", `yieldbook_auth_session_transitions_total{action="register",outcome="success"} 1`},
		{"/metrics", "go_goroutines"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			b, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Contains(t, string(b), tt.contains)
		})
	}
}
