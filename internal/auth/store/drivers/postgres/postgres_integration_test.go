//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/yieldbook/internal/auth/domain"
	"github.com/aussiebroadwan/yieldbook/internal/auth/store"
	"github.com/aussiebroadwan/yieldbook/internal/auth/store/drivers/postgres"
	"github.com/aussiebroadwan/yieldbook/pkg/idx"
)

func setupPostgres() (*postgres.Store, func(), error) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("yieldbook_test"),
		tcpostgres.WithUsername("yieldbook"),
		tcpostgres.WithPassword("yieldbook"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, nil, err
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	s, err := postgres.NewStore(ctx, connStr)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	if err := s.ApplyMigrations(); err != nil {
		s.Close()
		_ = container.Terminate(ctx)
		return nil, nil, err
	}

	cleanup := func() {
		_ = s.Close()
		_ = container.Terminate(ctx)
	}
	return s, cleanup, nil
}

func newUser(email, username string) domain.User {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return domain.User{
		ID:           idx.New().String(),
		Email:        email,
		Username:     username,
		PasswordHash: "$2a$04$placeholder",
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

var _ = Describe("Postgres store", Ordered, func() {
	var (
		s       *postgres.Store
		cleanup func()
		ctx     context.Context
	)

	BeforeAll(func() {
		var err error
		s, cleanup, err = setupPostgres()
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if cleanup != nil {
			cleanup()
		}
	})

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("migrations", func() {
		It("reports the applied version", func() {
			version, dirty, err := s.MigrationVersion()
			Expect(err).NotTo(HaveOccurred())
			Expect(dirty).To(BeFalse())
			Expect(version).To(Equal(uint(1)))
		})

		It("is idempotent", func() {
			Expect(s.ApplyMigrations()).To(Succeed())
		})
	})

	Describe("users", func() {
		It("round-trips a user by username, email and id", func() {
			u := newUser("carol@example.com", "carol")
			Expect(s.Users().CreateUser(ctx, u)).To(Succeed())

			byName, err := s.Users().GetUserByUsername(ctx, "carol")
			Expect(err).NotTo(HaveOccurred())
			Expect(byName.ID).To(Equal(u.ID))

			byEmail, err := s.Users().GetUserByEmail(ctx, "carol@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(byEmail.ID).To(Equal(u.ID))

			byID, err := s.Users().GetUserByID(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(byID.IsActive).To(BeTrue())
			Expect(byID.CreatedAt.Equal(u.CreatedAt)).To(BeTrue())
		})

		It("names the column of a duplicate", func() {
			Expect(s.Users().CreateUser(ctx, newUser("dave@example.com", "dave"))).To(Succeed())

			var ce *store.ConstraintError
			err := s.Users().CreateUser(ctx, newUser("dave@example.com", "dave2"))
			Expect(errors.As(err, &ce)).To(BeTrue())
			Expect(ce.Column).To(Equal("email"))

			err = s.Users().CreateUser(ctx, newUser("dave2@example.com", "dave"))
			Expect(errors.As(err, &ce)).To(BeTrue())
			Expect(ce.Column).To(Equal("username"))
			Expect(errors.Is(err, store.ErrAlreadyExists)).To(BeTrue())
		})

		It("returns ErrNotFound for unknown users", func() {
			_, err := s.Users().GetUserByUsername(ctx, "nobody")
			Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
		})

		It("saves the active flag", func() {
			u := newUser("erin@example.com", "erin")
			Expect(s.Users().CreateUser(ctx, u)).To(Succeed())

			u.IsActive = false
			u.UpdatedAt = time.Now()
			Expect(s.Users().SaveUser(ctx, u)).To(Succeed())

			got, err := s.Users().GetUserByID(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.IsActive).To(BeFalse())
		})

		It("touches only active users", func() {
			u := newUser("gina@example.com", "gina")
			Expect(s.Users().CreateUser(ctx, u)).To(Succeed())

			Expect(s.Users().TouchUser(ctx, u.ID, "$2a$12$upgraded", time.Now())).To(Succeed())
			got, err := s.Users().GetUserByID(ctx, u.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(got.PasswordHash).To(Equal("$2a$12$upgraded"))

			got.IsActive = false
			Expect(s.Users().SaveUser(ctx, got)).To(Succeed())
			err = s.Users().TouchUser(ctx, u.ID, "", time.Now())
			Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
		})
	})

	Describe("refresh token ledger", func() {
		It("consumes a jti exactly once inside a transaction", func() {
			u := newUser("frank@example.com", "frank")
			Expect(s.Users().CreateUser(ctx, u)).To(Succeed())

			now := time.Now()
			Expect(s.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
				JTI: "jti-frank", UserID: u.ID, ExpiresAt: now.Add(time.Hour), CreatedAt: now,
			})).To(Succeed())

			err := s.WithTx(ctx, func(tx store.Tx) error {
				_, err := tx.RefreshTokens().ConsumeRefreshToken(ctx, "jti-frank", now)
				return err
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = s.RefreshTokens().ConsumeRefreshToken(ctx, "jti-frank", now)
			Expect(errors.Is(err, store.ErrNotFound)).To(BeTrue())
		})

		It("deletes expired entries", func() {
			u := newUser("grace@example.com", "grace")
			Expect(s.Users().CreateUser(ctx, u)).To(Succeed())

			now := time.Now()
			Expect(s.RefreshTokens().CreateRefreshToken(ctx, domain.RefreshToken{
				JTI: "jti-grace", UserID: u.ID, ExpiresAt: now.Add(-time.Minute), CreatedAt: now,
			})).To(Succeed())

			n, err := s.RefreshTokens().DeleteExpiredRefreshTokens(ctx, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeNumerically(">=", 1))
		})
	})
})
