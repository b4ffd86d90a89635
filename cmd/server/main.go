package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/glucolens/glucolens-server/internal/config"
	"github.com/glucolens/glucolens-server/internal/database"
	"github.com/glucolens/glucolens-server/internal/handler"
	"github.com/glucolens/glucolens-server/internal/inference"
	"github.com/glucolens/glucolens-server/internal/jobs"
	"github.com/glucolens/glucolens-server/internal/middleware"
	"github.com/glucolens/glucolens-server/internal/redis"
	"github.com/glucolens/glucolens-server/internal/repository"
	"github.com/glucolens/glucolens-server/internal/service"
	"github.com/glucolens/glucolens-server/internal/sse"
	"github.com/glucolens/glucolens-server/internal/storage"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	isProduction := os.Getenv("FLY_APP_NAME") != ""
	if err := cfg.Validate(isProduction); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	images, err := storage.NewImageStore(cfg.UploadDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init image store")
	}

	sessionRepo := repository.NewSessionRepository(db.DB)
	userRepo := repository.NewUserRepository(db.DB)
	uploadRepo := repository.NewUploadRepository(db.DB)
	mealRepo := repository.NewMealRepository(db.DB)

	broker := sse.NewBroker()
	defer broker.Close()

	inferenceClient := inference.NewClient(
		cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.InferenceTimeout(),
	)

	sessionService := service.NewSessionService(sessionRepo, cfg.SessionTTL())
	analysisService := service.NewAnalysisService(inferenceClient, inferenceClient, images, uploadRepo, mealRepo)

	authMiddleware := middleware.NewAuthMiddleware(userRepo)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(cfg.MaxUploadBytes)

	sessionHandler := handler.NewSessionHandler(sessionService, uploadRepo)
	eventsHandler := handler.NewEventsHandler(broker, sessionService)
	uploadHandler := handler.NewUploadHandler(sessionService, images, uploadRepo, broker, cfg.MaxUploadBytes)
	mealHandler := handler.NewMealHandler(analysisService, images)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	// Token-capability routes: the pairing token is the only credential.
	r.Get("/v1/events", eventsHandler.ServeHTTP)

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Get("/{token}/status", sessionHandler.Status)
		r.With(authMiddleware.Handler, rateLimitMiddleware.Handler).
			Post("/create", sessionHandler.Create)
	})

	r.Route("/v1/meals", func(r chi.Router) {
		r.Post("/upload", uploadHandler.Upload)
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Handler)
			r.Use(rateLimitMiddleware.Handler)
			r.Post("/analyze", mealHandler.Analyze)
			r.Get("/history", mealHandler.History)
			r.Get("/images/{storageRef}", mealHandler.Image)
		})
	})

	cleanupJob := jobs.NewCleanupJob(sessionRepo, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
