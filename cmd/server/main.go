package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rohits-web03/vidtube/internal/api"
	"github.com/rohits-web03/vidtube/internal/api/handlers"
	"github.com/rohits-web03/vidtube/internal/api/services"
	"github.com/rohits-web03/vidtube/internal/assets"
	"github.com/rohits-web03/vidtube/internal/auth"
	"github.com/rohits-web03/vidtube/internal/config"
	"github.com/rohits-web03/vidtube/internal/logging"
	"github.com/rohits-web03/vidtube/internal/repositories"
	"github.com/rohits-web03/vidtube/internal/session"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"
)

// @title VidTube API
// @version 1.0
// @description User registration, login and session management.
// @BasePath /
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.SlogLevel(), cfg.IsProduction())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error(ctx, "server stopped with error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *logging.SlogLogger) error {
	db, err := repositories.ConnectDatabase(cfg.DB_URL, logger.Slog())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer func() {
		if err := repositories.CloseDatabase(db); err != nil {
			logger.Warn(context.Background(), "closing database", "err", err)
		}
	}()
	logger.Info(ctx, "database connected")

	storage, err := repositories.NewR2Storage(ctx, cfg.R2)
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}

	users := repositories.NewUserRepository(db)
	pipeline := assets.NewPipeline(cfg.Uploads.Dir, storage, logger.With("component", "assets"))
	creds := auth.NewCredentialManager(users, auth.NewTokenIssuer(cfg.Tokens), auth.NewPasswordHasher(bcrypt.DefaultCost), logger.With("component", "auth"))
	sessions := session.NewManager(cfg.SameSite(), cfg.Tokens.AccessTTL, cfg.Tokens.RefreshTTL)
	svc := services.NewUserService(users, pipeline, creds, logger.With("component", "users"))

	handler := api.SetupRouter(api.Deps{
		Users:  handlers.NewUserHandler(svc, pipeline, sessions, logger, cfg.Uploads.MaxSize),
		Tokens: creds.Tokens(),
		Cors:   cfg.CorsConfig(),
		Logger: logger,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: handler,
		// Timeouts prevent resource exhaustion from slow clients
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info(gctx, "starting server", "port", cfg.Port, "env", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on port %s: %w", cfg.Port, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info(context.Background(), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
