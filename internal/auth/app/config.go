package app

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"

	"github.com/aussiebroadwan/yieldbook/pkg/httpx"
	"github.com/aussiebroadwan/yieldbook/pkg/jwtx"
)

// ErrConfiguration is returned for any configuration the service cannot
// start with.
var ErrConfiguration = errors.New("invalid configuration")

// MinSecretKeyLength is the shortest accepted HMAC signing secret.
const MinSecretKeyLength = 32

const defaultSQLiteDSN = "file:auth.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

type Config struct {
	SecretKey         string        // Required: HMAC signing secret, at least 32 bytes
	Algorithm         string        // HS256, HS384 or HS512 (default: HS256)
	AccessTTL         time.Duration // access token lifetime (default: 15m)
	RefreshTTL        time.Duration // refresh token and cookie lifetime (default: 7d)
	MinPasswordLength int           // registration minimum (default: 8)
	BcryptCost        int           // cost for new hashes (default: 12)
	RefreshSingleUse  bool          // refresh tokens redeemable once (default: false)

	CookieSecure      bool     // Secure flag on the refresh cookie (default: true outside dev)
	CookiePath        string   // refresh cookie path (default: /)
	AllowedOrigins    []string // CORS origins allowed to send credentials
	TrustProxyHeaders bool     // key rate limits on X-Forwarded-For (default: false)
	RateLimits        httpx.RateLimits

	DatabaseDriver string // sqlite or postgres (default: sqlite)
	DatabaseURL    string // driver DSN

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

// LoadConfig builds the configuration from the environment, then the
// optional YAML file at path, then any flags explicitly set on flags.
func LoadConfig(path string, flags *pflag.FlagSet) (Config, error) {
	return loadConfig(os.Getenv, path, flags)
}

func loadConfig(getenv func(string) string, path string, flags *pflag.FlagSet) (Config, error) {
	cfg := configFromEnv(getenv)
	_, cookieSecureSet := lookupBool(getenv, "AUTH_COOKIE_SECURE")

	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("%w: read %s: %v", ErrConfiguration, path, err)
		}
	}
	if flags != nil {
		// Only flags the user actually set override the layers below.
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, fmt.Errorf("%w: flags: %v", ErrConfiguration, err)
		}
	}

	overlay(k, &cfg)

	if !cookieSecureSet && !k.Exists("cookie_secure") {
		cfg.CookieSecure = cfg.Env != "dev"
	}

	return cfg, nil
}

func configFromEnv(getenv func(string) string) Config {
	cfg := Config{
		SecretKey:         getenv("AUTH_SECRET_KEY"),
		Algorithm:         getEnvOrDefault(getenv, "AUTH_ALGORITHM", "HS256"),
		AccessTTL:         time.Duration(getEnvIntOrDefault(getenv, "AUTH_ACCESS_TTL_MINUTES", 15)) * time.Minute,
		RefreshTTL:        time.Duration(getEnvIntOrDefault(getenv, "AUTH_REFRESH_TTL_DAYS", 7)) * 24 * time.Hour,
		MinPasswordLength: getEnvIntOrDefault(getenv, "AUTH_MIN_PASSWORD_LENGTH", 8),
		BcryptCost:        getEnvIntOrDefault(getenv, "AUTH_BCRYPT_COST", 12),

		CookiePath:     getEnvOrDefault(getenv, "AUTH_COOKIE_PATH", "/"),
		AllowedOrigins: splitList(getEnvOrDefault(getenv, "ALLOWED_ORIGINS", "http://localhost:5173")),
		RateLimits:     httpx.DefaultRateLimits().WithEnv(getenv),

		DatabaseDriver: getEnvOrDefault(getenv, "DATABASE_DRIVER", "sqlite"),
		DatabaseURL:    getenv("DATABASE_URL"),

		Env:                  getEnvOrDefault(getenv, "ENV", "dev"),
		LogLevel:             getEnvOrDefault(getenv, "LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault(getenv, "LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault(getenv, "PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault(getenv, "SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault(getenv, "HOUSEKEEPING_INTERVAL", time.Hour),
	}

	cfg.RefreshSingleUse, _ = lookupBool(getenv, "AUTH_REFRESH_SINGLE_USE")
	cfg.TrustProxyHeaders, _ = lookupBool(getenv, "TRUST_PROXY_HEADERS")
	cfg.CookieSecure, _ = lookupBool(getenv, "AUTH_COOKIE_SECURE")

	return cfg
}

// overlay copies every key present in k over cfg.
func overlay(k *koanf.Koanf, cfg *Config) {
	setString := func(key string, dst *string) {
		if k.Exists(key) {
			*dst = k.String(key)
		}
	}
	setInt := func(key string, dst *int) {
		if k.Exists(key) {
			*dst = k.Int(key)
		}
	}
	setBool := func(key string, dst *bool) {
		if k.Exists(key) {
			*dst = k.Bool(key)
		}
	}
	setDuration := func(key string, dst *time.Duration) {
		if k.Exists(key) {
			*dst = k.Duration(key)
		}
	}

	setString("secret_key", &cfg.SecretKey)
	setString("algorithm", &cfg.Algorithm)
	if k.Exists("access_ttl_minutes") {
		cfg.AccessTTL = time.Duration(k.Int("access_ttl_minutes")) * time.Minute
	}
	if k.Exists("refresh_ttl_days") {
		cfg.RefreshTTL = time.Duration(k.Int("refresh_ttl_days")) * 24 * time.Hour
	}
	setInt("min_password_length", &cfg.MinPasswordLength)
	setInt("bcrypt_cost", &cfg.BcryptCost)
	setBool("refresh_single_use", &cfg.RefreshSingleUse)

	setBool("cookie_secure", &cfg.CookieSecure)
	setString("cookie_path", &cfg.CookiePath)
	if k.Exists("allowed_origins") {
		var origins []string
		for _, o := range k.Strings("allowed_origins") {
			origins = append(origins, splitList(o)...)
		}
		if len(origins) == 0 {
			origins = splitList(k.String("allowed_origins"))
		}
		cfg.AllowedOrigins = origins
	}
	setBool("trust_proxy_headers", &cfg.TrustProxyHeaders)

	setString("database_driver", &cfg.DatabaseDriver)
	setString("database_url", &cfg.DatabaseURL)

	setString("env", &cfg.Env)
	setString("log_level", &cfg.LogLevel)
	setString("log_format", &cfg.LogFormat)
	setInt("port", &cfg.Port)
	setDuration("shutdown_grace_period", &cfg.ShutdownGracePeriod)
	setDuration("housekeeping_interval", &cfg.HousekeepingInterval)
}

// Validate reports the first setting the service cannot run with. Every
// error wraps ErrConfiguration.
func (c Config) Validate() error {
	fail := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
	}

	switch {
	case c.SecretKey == "":
		return fail("secret_key is required")
	case len(c.SecretKey) < MinSecretKeyLength:
		return fail("secret_key must be at least %d bytes", MinSecretKeyLength)
	case !slices.Contains(jwtx.SupportedAlgorithms(), c.Algorithm):
		return fail("algorithm %q is not one of %v", c.Algorithm, jwtx.SupportedAlgorithms())
	case c.AccessTTL <= 0:
		return fail("access_ttl_minutes must be positive")
	case c.RefreshTTL <= 0:
		return fail("refresh_ttl_days must be positive")
	case c.MinPasswordLength <= 0:
		return fail("min_password_length must be positive")
	case c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost:
		return fail("bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	case c.DatabaseDriver != "sqlite" && c.DatabaseDriver != "postgres":
		return fail("database_driver %q is not sqlite or postgres", c.DatabaseDriver)
	case c.DatabaseDriver == "postgres" && c.DatabaseURL == "":
		return fail("database_url is required for postgres")
	case c.Port <= 0 || c.Port > 65535:
		return fail("port %d is out of range", c.Port)
	}
	return nil
}

// DSN returns the database URL, defaulting to a local sqlite file.
func (c Config) DSN() string {
	if c.DatabaseURL == "" && c.DatabaseDriver == "sqlite" {
		return defaultSQLiteDSN
	}
	return c.DatabaseURL
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func lookupBool(getenv func(string) string, key string) (value, ok bool) {
	b, err := strconv.ParseBool(getenv(key))
	if err != nil {
		return false, false
	}
	return b, true
}

func getEnvOrDefault(getenv func(string) string, key, defaultValue string) string {
	if value := getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(getenv func(string) string, key string, defaultValue int) int {
	value := getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(getenv func(string) string, key string, defaultValue time.Duration) time.Duration {
	value := getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are minutes.
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
