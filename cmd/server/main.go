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

	"github.com/carelink/telehealth-go/internal/calls"
	"github.com/carelink/telehealth-go/internal/config"
	"github.com/carelink/telehealth-go/internal/database"
	"github.com/carelink/telehealth-go/internal/handler"
	"github.com/carelink/telehealth-go/internal/jobs"
	"github.com/carelink/telehealth-go/internal/middleware"
	"github.com/carelink/telehealth-go/internal/notify"
	"github.com/carelink/telehealth-go/internal/redis"
	"github.com/carelink/telehealth-go/internal/repository"
	"github.com/carelink/telehealth-go/internal/service"
	"github.com/carelink/telehealth-go/internal/signaling"
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

	userRepo := repository.NewUserRepository(db.DB)
	apptRepo := repository.NewAppointmentRepository(db.DB)
	noteRepo := repository.NewNoteRepository(db.DB)
	callAttemptRepo := repository.NewCallAttemptRepository(db.DB)

	registry := notify.NewRegistry()
	dispatcher := notify.NewDispatcher(registry, userRepo, cfg.RoomURL)
	tracker := calls.NewTracker(dispatcher, callAttemptRepo)
	hub := signaling.NewHub()

	appointmentService := service.NewAppointmentService(apptRepo, dispatcher)
	noteService := service.NewNoteService(noteRepo, apptRepo, dispatcher)

	authMiddleware := middleware.NewAuthMiddleware(userRepo)
	rateLimitMiddleware := middleware.NewRedisRateLimitMiddleware(redisClient.Client, cfg.RateLimitPerMin)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	wsHandler := handler.NewWSHandler(registry, cfg.AllowedOrigin)
	signalingHandler := handler.NewSignalingHandler(hub, cfg.AllowedOrigin)
	callHandler := handler.NewCallHandler(tracker, apptRepo)
	appointmentHandler := handler.NewAppointmentHandler(appointmentService, noteService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(bodyLimitMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":      "ok",
			"timestamp":   time.Now().UnixMilli(),
			"connections": registry.Status().TotalConnections,
		})
	})

	// WebSocket endpoints carry no request timeout: connections are long-lived.
	r.Route("/ws", func(r chi.Router) {
		r.Use(authMiddleware.Handler)
		r.Get("/notifications", wsHandler.Connect)
		r.Get("/video/{sessionToken}", signalingHandler.Connect)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(authMiddleware.Handler)
		r.Use(rateLimitMiddleware.Handler)

		r.Get("/ws/status", wsHandler.Status)
		r.Post("/ws/test", wsHandler.TestMessage)
		r.Mount("/calls", callHandler.Routes())
		r.Mount("/appointments", appointmentHandler.Routes())
	})

	heartbeatJob := jobs.NewHeartbeatJob(registry, config.HeartbeatInterval)
	heartbeatJob.Start()
	defer heartbeatJob.Stop()

	cleanupJob := jobs.NewCleanupJob(callAttemptRepo, config.CleanupJobInterval)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     r,
		ReadTimeout: config.ServerReadTimeout,
		// WriteTimeout stays zero so WebSocket connections are not cut off.
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
