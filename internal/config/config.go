package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const EnvironmentDevelopment = "development"

// Config holds all environment-based configuration for compass-auth.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"production"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	ServerPort         string        `env:"SERVER_PORT" envDefault:"8080"`
	ServerReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	ServerWriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"30s"`
	ServerIdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Signing secrets. The refresh secret falls back to JWTSecret when unset.
	JWTSecret        string `env:"JWT_SECRET"`
	JWTRefreshSecret string `env:"JWT_REFRESH_SECRET"`
	BcryptCost       int    `env:"BCRYPT_COST" envDefault:"10"`

	GoogleClientID            string   `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret        string   `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURI         string   `env:"GOOGLE_REDIRECT_URI"`
	GoogleRedirectURIRegister string   `env:"GOOGLE_REDIRECT_URI_REGISTER"`
	ExpoProxyRedirectURI      string   `env:"EXPO_PROXY_REDIRECT_URI"`
	MobileRedirectURIs        []string `env:"MOBILE_REDIRECT_URIS" envSeparator:","`
	RedirectWebHosts          []string `env:"REDIRECT_WEB_HOSTS" envSeparator:","`

	DatabaseURL string `env:"DATABASE_URL"`
	DBMaxConns  int32  `env:"DB_MAX_CONNS" envDefault:"10"`
	DBMinConns  int32  `env:"DB_MIN_CONNS" envDefault:"0"`
	RedisURL    string `env:"REDIS_URL"`

	ResendAPIKey string `env:"RESEND_API_KEY"`
	MailFrom     string `env:"MAIL_FROM" envDefault:"Compass <no-reply@compass.app>"`

	CORSOrigins  []string `env:"CORS_ORIGINS" envSeparator:","`
	RateLimitRPM int      `env:"RATE_LIMIT_RPM" envDefault:"0"`
	TrustProxy   bool     `env:"TRUST_PROXY_HEADERS" envDefault:"false"`
	AuditBuffer  int      `env:"AUDIT_MEMORY_ENTRIES" envDefault:"200"`
}

// Load reads a .env file if present, then parses the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) normalize() {
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	c.JWTSecret = strings.TrimSpace(c.JWTSecret)
	c.JWTRefreshSecret = strings.TrimSpace(c.JWTRefreshSecret)
	c.MobileRedirectURIs = compact(c.MobileRedirectURIs)
	c.RedirectWebHosts = compact(c.RedirectWebHosts)
	c.CORSOrigins = compact(c.CORSOrigins)
}

func (c *Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.ServerPort == "" {
		errs = append(errs, errors.New("SERVER_PORT cannot be empty"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("REQUEST_TIMEOUT must be positive"))
	}
	if c.RateLimitRPM < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPM cannot be negative"))
	}

	if !c.IsDevelopment() {
		if strings.TrimSpace(c.DatabaseURL) == "" {
			errs = append(errs, errors.New("DATABASE_URL is required outside development"))
		}
		if c.GoogleClientID == "" || c.GoogleClientSecret == "" {
			errs = append(errs, errors.New("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required outside development"))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvironmentDevelopment
}

// RefreshSecretFallback reports whether refresh tokens will be signed with
// the access secret.
func (c *Config) RefreshSecretFallback() bool {
	return c.JWTRefreshSecret == ""
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
