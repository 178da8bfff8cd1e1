package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vidstream/internal/auth"
	"vidstream/internal/config"
	"vidstream/internal/engagement"
	"vidstream/internal/http_server/handlers/changepassword"
	"vidstream/internal/http_server/handlers/forgotpassword"
	"vidstream/internal/http_server/handlers/history"
	"vidstream/internal/http_server/handlers/like"
	"vidstream/internal/http_server/handlers/likedvideos"
	"vidstream/internal/http_server/handlers/login"
	"vidstream/internal/http_server/handlers/logout"
	"vidstream/internal/http_server/handlers/me"
	"vidstream/internal/http_server/handlers/refresh"
	"vidstream/internal/http_server/handlers/register"
	"vidstream/internal/http_server/handlers/resetpassword"
	"vidstream/internal/http_server/handlers/subscribe"
	"vidstream/internal/http_server/handlers/watch"
	"vidstream/internal/metrics"
	"vidstream/internal/middleware/identity"
	rateLimitMw "vidstream/internal/middleware/ratelimit"
	"vidstream/internal/migrate"
	"vidstream/internal/rabbitmq"
	"vidstream/internal/ratelimit"
	"vidstream/internal/reset"
	"vidstream/internal/storage/postgres"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad("./config/config.yaml")

	log := setupLogger(cfg.Env)

	log.Info("starting vidstream", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("shutdown signal received")
		cancel()
	}()

	if err := migrate.Up(ctx, postgres.DSN(cfg)); err != nil {
		log.Error("failed to apply migrations", slog.String("err", err.Error()))
		os.Exit(1)
	}

	storage, err := postgres.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect postgres", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer storage.Close()

	msgBroker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to connect rabbitmq", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer msgBroker.Close()

	authService := auth.New(
		log, storage, storage,
		cfg.Tokens.AccessTokenSecret, cfg.Tokens.RefreshTokenSecret,
		cfg.Tokens.AccessTokenTTL, cfg.Tokens.RefreshTokenTTL,
	)
	resetService := reset.New(log, storage, msgBroker, cfg.Reset.TokenTTL, cfg.Reset.FrontendURL)
	engagementService := engagement.New(log, storage)

	authLimiter := ratelimit.New(cfg.RateLimits.Auth.Window, cfg.RateLimits.Auth.Max)
	apiLimiter := ratelimit.New(cfg.RateLimits.API.Window, cfg.RateLimits.API.Max)
	for _, l := range []*ratelimit.Limiter{authLimiter, apiLimiter} {
		l.Start(cfg.RateLimits.SweepInterval)
		defer l.Stop()
	}

	router := setupRouter(
		cfg, log,
		authService, resetService, engagementService,
		authLimiter, apiLimiter,
	)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", slog.String("err", err.Error()))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown error", slog.String("err", err.Error()))
	} else {
		log.Info("server stopped gracefully")
	}
}

func setupRouter(
	cfg *config.Config,
	log *slog.Logger,
	authService *auth.Auth,
	resetService *reset.Service,
	engagementService *engagement.Engagement,
	authLimiter, apiLimiter *ratelimit.Limiter,
) *chi.Mux {
	validate := validator.New()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Handle("/metrics", metrics.Handler())

	requireAuth := identity.Require(log, authService)
	optionalAuth := identity.Optional(log, authService)

	// Abuse-sensitive endpoints sit behind the tighter limiter.
	r.Group(func(r chi.Router) {
		r.Use(rateLimitMw.ByIP(log, authLimiter))

		r.Post("/auth/register", register.New(log, validate, authService))
		r.Post("/auth/login", login.New(log, validate, authService, cfg.Tokens.AccessTokenTTL, cfg.Tokens.RefreshTokenTTL))
		r.Post("/auth/forgot-password", forgotpassword.New(log, validate, resetService))
		r.Post("/auth/reset-password/{token}", resetpassword.New(log, validate, resetService))
	})

	r.Group(func(r chi.Router) {
		r.Use(rateLimitMw.ByIP(log, apiLimiter))

		r.Post("/auth/refresh", refresh.New(log, authService, cfg.Tokens.AccessTokenTTL, cfg.Tokens.RefreshTokenTTL))

		r.With(optionalAuth).Get("/videos/{videoID}", watch.New(log, engagementService))

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Post("/auth/logout", logout.New(log, authService))
			r.Get("/users/me", me.New())
			r.Post("/users/password", changepassword.New(log, validate, authService))
			r.Get("/users/history", history.New(log, engagementService))

			r.Post("/likes/{kind}/{targetID}", like.New(log, engagementService))
			r.Get("/likes/videos", likedvideos.New(log, engagementService))
			r.Post("/subscriptions/{channelID}", subscribe.New(log, engagementService))
		})
	})

	return r
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}
