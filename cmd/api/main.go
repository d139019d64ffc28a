//	@title			Fiambond Attachments API
//	@version		1.0
//	@description	Stores loan attachments sent as Base64 data URLs in S3-compatible object storage.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Optional JWT Bearer token, required only when AUTH_JWT_SECRET is set. Format: **Bearer {token}**

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/fiambond/attachments/internal/attachment"
	"github.com/fiambond/attachments/internal/config"
	"github.com/fiambond/attachments/internal/logging"
	"github.com/fiambond/attachments/internal/metrics"
	appMiddleware "github.com/fiambond/attachments/internal/middleware"
	"github.com/fiambond/attachments/internal/response"
	"github.com/fiambond/attachments/internal/storage"

	_ "github.com/fiambond/attachments/docs/swagger"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.Log)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if cfg.IsProduction() && cfg.JWTSecret == "" {
		log.Warn().Msg("AUTH_JWT_SECRET is empty: the upload endpoint accepts anonymous calls")
	}

	store, err := storage.New(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Msg("object storage init failed")
	}

	// The bucket is normally provisioned by bucketctl; a failure here is not fatal.
	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Second)
	res, err := store.EnsureBucket(initCtx, cfg.Storage.Bucket, cfg.Storage.Region)
	initCancel()
	if err != nil {
		log.Warn().Err(err).Str("bucket", cfg.Storage.Bucket).Msg("could not ensure bucket")
	} else {
		log.Info().Str("bucket", cfg.Storage.Bucket).Stringer("result", res).Msg("bucket ready")
	}

	// Wire dependencies: gateway → service → handler
	m := metrics.New()
	attachmentSvc := attachment.NewService(store, cfg.Storage.Bucket, log, m)
	attachmentHandler := attachment.NewHandler(attachmentSvc, cfg.MaxRequestBytes)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(appMiddleware.Metrics(m))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "no such route")
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Handle("/metrics", m.Handler())

	// Swagger UI at http://localhost:8080/swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.With(appMiddleware.RequireAuth(cfg.JWTSecret)).Post("/attachments", attachmentHandler.Upload)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().
			Str("port", cfg.Port).
			Str("env", cfg.AppEnv).
			Str("driver", cfg.Storage.Driver).
			Bool("auth", cfg.JWTSecret != "").
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-quit
	log.Info().Msg("shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}

	log.Info().Msg("server stopped")
}
