package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, v := range []string{
		"APP_ENV", "SERVER_ADDR", "SERVER_PORT", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD",
		"DB_NAME", "DB_SSLMODE", "ACCESS_TOKEN_TTL", "REFRESH_TOKEN_TTL", "BCRYPT_COST",
		"REDIS_ADDR", "REVOCATION_ENABLED", "TOTP_ENCRYPTION_KEY", "CORS_ALLOWED_ORIGINS",
		"HASH_CONCURRENCY", "BASE_DOMAIN",
	} {
		t.Setenv(v, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "test-secret-key")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Check defaults
	if cfg.Env != EnvDevelopment {
		t.Errorf("Env = %q, want %q", cfg.Env, EnvDevelopment)
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 8080)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, want %d", cfg.DBPort, 5432)
	}
	if cfg.AccessTokenTTL != 8*time.Hour {
		t.Errorf("AccessTokenTTL = %v, want %v", cfg.AccessTokenTTL, 8*time.Hour)
	}
	if cfg.RefreshTokenTTL != 7*24*time.Hour {
		t.Errorf("RefreshTokenTTL = %v, want %v", cfg.RefreshTokenTTL, 7*24*time.Hour)
	}
	if cfg.BcryptCost != 10 {
		t.Errorf("BcryptCost = %d, want 10", cfg.BcryptCost)
	}
	if cfg.Tenant.DevSubdomain != "demo" {
		t.Errorf("DevSubdomain = %q, want demo", cfg.Tenant.DevSubdomain)
	}
	if cfg.PasswordPolicy.MinLength != 8 {
		t.Errorf("PasswordPolicy.MinLength = %d, want 8", cfg.PasswordPolicy.MinLength)
	}
	if cfg.Redis.Enabled() {
		t.Error("Redis should be disabled without REDIS_ADDR")
	}
	if cfg.HasTOTP() {
		t.Error("TOTP should be disabled without TOTP_ENCRYPTION_KEY")
	}
}

func TestLoad_RequiredJWTSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	if err == nil {
		t.Error("Load should fail when JWT_SECRET is not set")
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "short secret in production",
			env:     map[string]string{"APP_ENV": "production", "JWT_SECRET": "short"},
			wantErr: "at least 32",
		},
		{
			name: "long secret in production",
			env:  map[string]string{"APP_ENV": "production", "JWT_SECRET": strings.Repeat("x", 32)},
		},
		{
			name:    "unknown environment",
			env:     map[string]string{"APP_ENV": "staging", "JWT_SECRET": "secret"},
			wantErr: "APP_ENV",
		},
		{
			name:    "bcrypt cost too low",
			env:     map[string]string{"JWT_SECRET": "secret", "BCRYPT_COST": "2"},
			wantErr: "BCRYPT_COST",
		},
		{
			name:    "revocation without redis",
			env:     map[string]string{"JWT_SECRET": "secret", "REVOCATION_ENABLED": "true"},
			wantErr: "REDIS_ADDR",
		},
		{
			name:    "bad totp key",
			env:     map[string]string{"JWT_SECRET": "secret", "TOTP_ENCRYPTION_KEY": "abcd"},
			wantErr: "TOTP_ENCRYPTION_KEY",
		},
		{
			name: "valid totp key",
			env:  map[string]string{"JWT_SECRET": "secret", "TOTP_ENCRYPTION_KEY": strings.Repeat("ab", 32)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Load failed: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "custom-secret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_HOST", "db.example.com")
	t.Setenv("ACCESS_TOKEN_TTL", "30m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ServerPort != 9090 {
		t.Errorf("ServerPort = %d, want %d", cfg.ServerPort, 9090)
	}
	if cfg.DBHost != "db.example.com" {
		t.Errorf("DBHost = %q, want %q", cfg.DBHost, "db.example.com")
	}
	if cfg.AccessTokenTTL != 30*time.Minute {
		t.Errorf("AccessTokenTTL = %v, want %v", cfg.AccessTokenTTL, 30*time.Minute)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "https://b.example.com" {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if got := cfg.Database().DSN(); !strings.Contains(got, "host=db.example.com") {
		t.Errorf("DSN = %q, want host=db.example.com", got)
	}
}

func TestGetEnvInt_InvalidValue(t *testing.T) {
	os.Setenv("TEST_INT", "not-a-number")
	defer os.Unsetenv("TEST_INT")

	result := getEnvInt("TEST_INT", 42)
	if result != 42 {
		t.Errorf("getEnvInt should return default for invalid value, got %d", result)
	}
}

func TestGetEnvDuration_InvalidValue(t *testing.T) {
	os.Setenv("TEST_DURATION", "invalid")
	defer os.Unsetenv("TEST_DURATION")

	result := getEnvDuration("TEST_DURATION", 5*time.Minute)
	if result != 5*time.Minute {
		t.Errorf("getEnvDuration should return default for invalid value, got %v", result)
	}
}
