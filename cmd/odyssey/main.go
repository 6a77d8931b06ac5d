package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-pm/odyssey-pm/internal/app"
	"github.com/odyssey-pm/odyssey-pm/internal/auth"
	"github.com/odyssey-pm/odyssey-pm/internal/membership"
	"github.com/odyssey-pm/odyssey-pm/internal/projects"
	"github.com/odyssey-pm/odyssey-pm/internal/shared"
	"github.com/odyssey-pm/odyssey-pm/internal/tasks"
	"github.com/odyssey-pm/odyssey-pm/internal/users"
	"github.com/odyssey-pm/odyssey-pm/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	svc, err := app.NewServices(ctx, cfg, logger)
	if err != nil {
		logger.Error("init services", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warn("close services", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(svc.Redis, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	accessMW := svc.AccessMiddleware()

	authHandler := auth.NewHandler(logger, auth.NewService(auth.NewRepository(svc.Pool)), sessionManager, csrfManager)

	inspector := asynq.NewInspector(cfg.AsynqRedis())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		SessionManager:    sessionManager,
		CSRFManager:       csrfManager,
		Access:            accessMW,
		AuthHandler:       authHandler,
		UsersHandler:      users.NewHandler(logger, svc.Users, svc.Resolver, accessMW),
		MembershipHandler: membership.NewHandler(logger, svc.Memberships, accessMW),
		ProjectsHandler:   projects.NewHandler(logger, svc.Projects, accessMW),
		TasksHandler:      tasks.NewHandler(logger, svc.Tasks, accessMW),
		JobHandler:        jobs.NewHandler(inspector, logger),
		Pool:              svc.Pool,
		Metrics:           svc.Metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
