package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/cras-gestao/gestao-suas/internal/config"
	httpserver "github.com/cras-gestao/gestao-suas/internal/http"
	"github.com/cras-gestao/gestao-suas/internal/jobs"
	"github.com/cras-gestao/gestao-suas/internal/metrics"
	"github.com/cras-gestao/gestao-suas/pkg/auth"
	"github.com/cras-gestao/gestao-suas/pkg/repository"
)

func main() {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	db, err := repository.NewDB(ctx, cfg.Database())
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := repository.ValidateSchema(ctx, db); err != nil {
		return fmt.Errorf("database schema not ready (run suas-admin migrate): %w", err)
	}
	logger.Info("connected to database")

	m := metrics.New()

	usersRepo := repository.NewUsersRepository(db)
	tenantsRepo := repository.NewTenantsRepository(db)
	permissionsRepo := repository.NewPermissionsRepository(db)

	var (
		revoker auth.Revoker
		limiter auth.LoginLimiter
	)
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unavailable at startup, limiter and denylist fail open", "error", err)
		}
		cancel()

		limiter = auth.NewRedisLoginLimiter(rdb, cfg.RateLimit.LoginMaxAttempts, cfg.RateLimit.LoginWindow)
		if cfg.Redis.RevocationEnabled {
			revoker = auth.NewRedisRevoker(rdb, "gestao-suas:revoked")
			logger.Info("token revocation enabled")
		}
		logger.Info("redis enabled", "addr", cfg.Redis.Addr)
	}

	hasher, err := auth.NewPasswordHasher(cfg.BcryptCost, cfg.HashConcurrency)
	if err != nil {
		return err
	}
	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Secret:     []byte(cfg.JWTSecret),
		Issuer:     cfg.JWTIssuer,
		AccessTTL:  cfg.AccessTokenTTL,
		RefreshTTL: cfg.RefreshTokenTTL,
	})
	if err != nil {
		return err
	}

	var totpService *auth.TOTPService
	if cfg.HasTOTP() {
		totpService, err = auth.NewTOTPService(auth.TOTPConfig{
			Issuer:        cfg.TOTPIssuer,
			EncryptionKey: cfg.TOTPEncryptionKey,
		}, usersRepo)
		if err != nil {
			return err
		}
		logger.Info("TOTP enabled")
	}

	permissions := auth.NewPermissionEvaluator(permissionsRepo)
	resolver := auth.NewTenantResolver(tenantsRepo, auth.TenantResolverConfig{
		BaseDomain:   cfg.Tenant.BaseDomain,
		DevSubdomain: cfg.Tenant.DevSubdomain,
		Production:   cfg.IsProduction(),
		CacheTTL:     cfg.Tenant.CacheTTL,
		CacheSize:    cfg.Tenant.CacheSize,
	})
	sessionService := auth.NewSessionService(auth.SessionDeps{
		Users:       usersRepo,
		Hasher:      hasher,
		Tokens:      tokens,
		Permissions: permissions,
		Policy:      auth.NewPasswordPolicy(cfg.PasswordPolicy),
		Revoker:     revoker,
		Limiter:     limiter,
		TOTP:        totpService,
		Logger:      logger,
	})
	gateway := auth.NewGateway(tokens, usersRepo, revoker, logger)
	userService := auth.NewUserService(db, usersRepo, tenantsRepo, sessionService, logger)
	tenantService := auth.NewTenantService(db, tenantsRepo, usersRepo, sessionService, resolver,
		auth.TenantServiceConfig{TrialDays: cfg.Tenant.TrialDays}, logger)

	scheduler := cron.New()
	sweeper := jobs.NewExpirySweeper(tenantsRepo, m, logger)
	if _, err := sweeper.Schedule(scheduler, cfg.ExpirySweepSchedule); err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		<-scheduler.Stop().Done()
	}()

	router := httpserver.NewRouter(httpserver.RouterConfig{
		Logger:          logger,
		Metrics:         m,
		Resolver:        resolver,
		Gateway:         gateway,
		Permissions:     permissions,
		SessionService:  sessionService,
		UserService:     userService,
		TenantService:   tenantService,
		TOTPService:     totpService,
		BaseDomain:      cfg.Tenant.BaseDomain,
		SignupURL:       cfg.Tenant.SignupURL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		CookieSecure:    cfg.IsProduction(),
		MaxRequestBytes: cfg.MaxRequestBytes,
		CORSOrigins:     cfg.CORSOrigins,
		RateLimitConfig: cfg.RateLimit,
		SecurityHeaders: cfg.SecurityHeaders,
	})

	addr := fmt.Sprintf("%s:%d", cfg.ServerAddr, cfg.ServerPort)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", addr, "env", cfg.Env, "base_domain", cfg.Tenant.BaseDomain)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
	return nil
}
