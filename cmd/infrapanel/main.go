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

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/infrapanel/internal/adapter/driven/metrics"
	"github.com/ericfisherdev/infrapanel/internal/adapter/driven/sqlstore"
	httphandler "github.com/ericfisherdev/infrapanel/internal/adapter/driving/http"
	webhandler "github.com/ericfisherdev/infrapanel/internal/adapter/driving/web"
	"github.com/ericfisherdev/infrapanel/internal/application"
	"github.com/ericfisherdev/infrapanel/internal/config"
	"github.com/ericfisherdev/infrapanel/internal/encryption"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration and set up logging.
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_driver", cfg.DBDriver,
		"db_path", cfg.DBPath,
		"encryption_key_configured", cfg.HasEncryptionKey(),
	)

	// 2. Build the active cipher. A malformed key aborts startup; a missing
	// one leaves credential operations failing with a configuration error.
	var cipher application.SecretCipher
	if cfg.HasEncryptionKey() {
		c, err := encryption.NewCipherFromBase64(cfg.EncryptionKey)
		if err != nil {
			return fmt.Errorf("INFRAPANEL_ENCRYPTION_KEY: %w", err)
		}
		cipher = c
	} else {
		slog.Warn("no encryption key configured, credential access is disabled")
	}

	// 3. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Open database and run migrations on the writer connection.
	db, err := sqlstore.Open(ctx, sqlstore.Dialect(cfg.DBDriver), cfg.DBPath, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "driver", cfg.DBDriver)

	if err := sqlstore.RunMigrations(db); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire adapters and services.
	secretStore := sqlstore.NewSecretRepo(db)
	userStore := sqlstore.NewUserRepo(db)
	recorder := metrics.NewRecorder()

	authSvc := application.NewAuthService(userStore, logger)
	credentialSvc := application.NewCredentialService(secretStore, cipher, recorder, logger)
	rotationSvc := application.NewRotationService(secretStore, cipher, recorder, logger)

	// 6. Seed the bootstrap admin on an empty user table.
	if cfg.HasBootstrapAdmin() {
		if _, err := authSvc.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
			return err
		}
	}

	// 7. Register API and admin routes.
	mux := http.NewServeMux()
	apiHandler := httphandler.NewHandler(credentialSvc, authSvc, recorder.Handler(), logger)
	httphandler.RegisterAPIRoutes(mux, apiHandler)

	requireAuth := httphandler.RequireAuth(authSvc, logger)
	webHandler := webhandler.NewHandler(rotationSvc, cfg.SecureCookies, logger)
	webhandler.RegisterRoutes(mux, webHandler, func(next http.Handler) http.Handler {
		return requireAuth(httphandler.RequireAdmin(next))
	})

	// Apply middleware.
	handler := httphandler.ApplyMiddleware(mux, logger)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Minute, // rotation runs inside the request
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()

	slog.Info("infrapanel started", "listen_addr", cfg.ListenAddr)

	// 8. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 9. Graceful shutdown with 10s timeout to drain in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
