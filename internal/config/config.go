package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/cras-gestao/gestao-suas/pkg/repository"
)

// Environments accepted in APP_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

const minProductionSecretLen = 32

// Config holds application configuration.
type Config struct {
	Env string

	// Server
	ServerAddr      string
	ServerPort      int
	MaxRequestBytes int64
	CORSOrigins     []string

	// Database
	DBHost             string
	DBPort             int
	DBUser             string
	DBPassword         string
	DBName             string
	DBSSLMode          string
	DBMaxOpenConns     int
	DBMaxIdleConns     int
	DBConnMaxLifetime  time.Duration
	DBStatementTimeout time.Duration

	// JWT
	JWTSecret       string
	JWTIssuer       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Credentials
	BcryptCost      int
	HashConcurrency int

	// TOTP
	TOTPIssuer        string
	TOTPEncryptionKey []byte

	// Jobs
	ExpirySweepSchedule string

	Tenant          TenantConfig
	Redis           RedisConfig
	RateLimit       RateLimitConfig
	SecurityHeaders SecurityHeadersConfig
	PasswordPolicy  PasswordPolicyConfig
}

// TenantConfig controls host-based tenant resolution.
type TenantConfig struct {
	BaseDomain   string
	SignupURL    string
	DevSubdomain string
	// CacheTTL bounds how long another replica may serve a tenant after it was
	// suspended or changed; invalidation only reaches the local cache.
	CacheTTL  time.Duration
	CacheSize int
	TrialDays int
}

// RedisConfig configures the optional Redis used by the login limiter and token denylist.
type RedisConfig struct {
	Addr              string
	Password          string
	DB                int
	RevocationEnabled bool
}

// Enabled reports whether a Redis address was configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// RateLimitConfig holds rate limiting settings.
type RateLimitConfig struct {
	Enabled                  bool
	AuthRequestsPerMinute    int
	AuthWindowMinutes        int
	RefreshRequestsPerMinute int
	RefreshWindowMinutes     int
	SignupRequestsPerWindow  int
	SignupWindowMinutes      int
	APIRequestsPerMinute     int
	LoginMaxAttempts         int
	LoginWindow              time.Duration
}

// SecurityHeadersConfig holds response security header values.
type SecurityHeadersConfig struct {
	Enabled            bool
	CSP                string
	HSTSMaxAge         int
	FrameOptions       string
	ContentTypeOptions string
	XSSProtection      string
	ReferrerPolicy     string
	PermissionsPolicy  string
}

// PasswordPolicyConfig holds password complexity requirements.
type PasswordPolicyConfig struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Env: getEnv("APP_ENV", EnvDevelopment),

		// Server defaults
		ServerAddr:      getEnv("SERVER_ADDR", "0.0.0.0"),
		ServerPort:      getEnvInt("SERVER_PORT", 8080),
		MaxRequestBytes: int64(getEnvInt("MAX_REQUEST_BYTES", 1<<20)),
		CORSOrigins:     getEnvList("CORS_ALLOWED_ORIGINS"),

		// Database defaults
		DBHost:             getEnv("DB_HOST", "localhost"),
		DBPort:             getEnvInt("DB_PORT", 5432),
		DBUser:             getEnv("DB_USER", "postgres"),
		DBPassword:         getEnv("DB_PASSWORD", "postgres"),
		DBName:             getEnv("DB_NAME", "gestao_suas"),
		DBSSLMode:          getEnv("DB_SSLMODE", "disable"),
		DBMaxOpenConns:     getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:     getEnvInt("DB_MAX_IDLE_CONNS", 5),
		DBConnMaxLifetime:  getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		DBStatementTimeout: getEnvDuration("DB_STATEMENT_TIMEOUT", 5*time.Second),

		// JWT defaults
		JWTSecret:       getEnv("JWT_SECRET", ""),
		JWTIssuer:       getEnv("JWT_ISSUER", "gestao-suas"),
		AccessTokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL", 8*time.Hour),
		RefreshTokenTTL: getEnvDuration("REFRESH_TOKEN_TTL", 7*24*time.Hour),

		BcryptCost:      getEnvInt("BCRYPT_COST", bcrypt.DefaultCost),
		HashConcurrency: getEnvInt("HASH_CONCURRENCY", runtime.GOMAXPROCS(0)),

		TOTPIssuer: getEnv("TOTP_ISSUER", "Gestao SUAS"),

		ExpirySweepSchedule: getEnv("EXPIRY_SWEEP_SCHEDULE", "@hourly"),

		Tenant: TenantConfig{
			BaseDomain:   strings.ToLower(getEnv("BASE_DOMAIN", "gestaosuas.com.br")),
			SignupURL:    getEnv("SIGNUP_URL", "https://gestaosuas.com.br/cadastro"),
			DevSubdomain: getEnv("DEV_TENANT_SUBDOMAIN", "demo"),
			CacheTTL:     getEnvDuration("TENANT_CACHE_TTL", time.Minute),
			CacheSize:    getEnvInt("TENANT_CACHE_SIZE", 1024),
			TrialDays:    getEnvInt("TRIAL_DAYS", 14),
		},

		Redis: RedisConfig{
			Addr:              getEnv("REDIS_ADDR", ""),
			Password:          getEnv("REDIS_PASSWORD", ""),
			DB:                getEnvInt("REDIS_DB", 0),
			RevocationEnabled: getEnvBool("REVOCATION_ENABLED", false),
		},

		RateLimit: RateLimitConfig{
			Enabled:                  getEnvBool("RATE_LIMIT_ENABLED", true),
			AuthRequestsPerMinute:    getEnvInt("RATE_LIMIT_AUTH_REQUESTS", 10),
			AuthWindowMinutes:        getEnvInt("RATE_LIMIT_AUTH_WINDOW_MINUTES", 1),
			RefreshRequestsPerMinute: getEnvInt("RATE_LIMIT_REFRESH_REQUESTS", 30),
			RefreshWindowMinutes:     getEnvInt("RATE_LIMIT_REFRESH_WINDOW_MINUTES", 1),
			SignupRequestsPerWindow:  getEnvInt("RATE_LIMIT_SIGNUP_REQUESTS", 5),
			SignupWindowMinutes:      getEnvInt("RATE_LIMIT_SIGNUP_WINDOW_MINUTES", 60),
			APIRequestsPerMinute:     getEnvInt("RATE_LIMIT_API_REQUESTS", 300),
			LoginMaxAttempts:         getEnvInt("LOGIN_MAX_ATTEMPTS", 5),
			LoginWindow:              getEnvDuration("LOGIN_WINDOW", 15*time.Minute),
		},

		SecurityHeaders: SecurityHeadersConfig{
			Enabled:            getEnvBool("SECURITY_HEADERS_ENABLED", true),
			CSP:                getEnv("SECURITY_CSP", "default-src 'none'; frame-ancestors 'none'"),
			HSTSMaxAge:         getEnvInt("SECURITY_HSTS_MAX_AGE", 31536000),
			FrameOptions:       getEnv("SECURITY_FRAME_OPTIONS", "DENY"),
			ContentTypeOptions: getEnv("SECURITY_CONTENT_TYPE_OPTIONS", "nosniff"),
			XSSProtection:      getEnv("SECURITY_XSS_PROTECTION", "0"),
			ReferrerPolicy:     getEnv("SECURITY_REFERRER_POLICY", "strict-origin-when-cross-origin"),
			PermissionsPolicy:  getEnv("SECURITY_PERMISSIONS_POLICY", "geolocation=(), camera=(), microphone=()"),
		},

		PasswordPolicy: PasswordPolicyConfig{
			MinLength:        getEnvInt("PASSWORD_MIN_LENGTH", 8),
			RequireUppercase: getEnvBool("PASSWORD_REQUIRE_UPPERCASE", false),
			RequireLowercase: getEnvBool("PASSWORD_REQUIRE_LOWERCASE", false),
			RequireNumber:    getEnvBool("PASSWORD_REQUIRE_NUMBER", false),
			RequireSpecial:   getEnvBool("PASSWORD_REQUIRE_SPECIAL", false),
		},
	}

	if key := getEnv("TOTP_ENCRYPTION_KEY", ""); key != "" {
		decoded, err := hex.DecodeString(key)
		if err != nil || len(decoded) != 32 {
			return nil, fmt.Errorf("TOTP_ENCRYPTION_KEY must be 64 hex characters")
		}
		cfg.TOTPEncryptionKey = decoded
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvDevelopment, EnvProduction, EnvTest:
	default:
		return fmt.Errorf("APP_ENV must be one of development, production, test (got %q)", c.Env)
	}

	// Validate required fields
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() && len(c.JWTSecret) < minProductionSecretLen {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in production", minProductionSecretLen)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.HashConcurrency < 1 {
		return fmt.Errorf("HASH_CONCURRENCY must be positive")
	}
	if c.AccessTokenTTL <= 0 {
		return fmt.Errorf("ACCESS_TOKEN_TTL must be positive")
	}
	if c.Redis.RevocationEnabled && !c.Redis.Enabled() {
		return fmt.Errorf("REVOCATION_ENABLED requires REDIS_ADDR")
	}
	if c.Tenant.BaseDomain == "" {
		return fmt.Errorf("BASE_DOMAIN is required")
	}
	return nil
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// HasTOTP returns true if a TOTP encryption key is configured.
func (c *Config) HasTOTP() bool {
	return len(c.TOTPEncryptionKey) == 32
}

// Database returns the repository connection settings.
func (c *Config) Database() repository.Config {
	return repository.Config{
		Host:             c.DBHost,
		Port:             c.DBPort,
		User:             c.DBUser,
		Password:         c.DBPassword,
		DBName:           c.DBName,
		SSLMode:          c.DBSSLMode,
		MaxOpenConns:     c.DBMaxOpenConns,
		MaxIdleConns:     c.DBMaxIdleConns,
		ConnMaxLifetime:  c.DBConnMaxLifetime,
		StatementTimeout: c.DBStatementTimeout,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
