package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	flow "github.com/Dipanshuofficial/Flow"
	"github.com/Dipanshuofficial/Flow/internal/api/handler/endpoints"
	"github.com/Dipanshuofficial/Flow/internal/api/handler/middleware"
	"github.com/Dipanshuofficial/Flow/internal/api/service"
	"github.com/Dipanshuofficial/Flow/internal/realtime"
	"github.com/Dipanshuofficial/Flow/pkg"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/graceful"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func main() {
	cfg := flow.LoadConfig(".env")
	logger := flow.NewLogger(cfg.Mode)

	gin.SetMode(gin.ReleaseMode)
	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	snapshots, closeStore, err := flow.OpenSnapshotRepository(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("backend", cfg.KVBackend).Msg("Failed to open snapshot store")
	}
	defer closeStore()

	hub := realtime.NewHub(logger)
	go hub.Run(ctx)
	logger.Info().Msg("WebSocket hub started")

	notifiers := service.MultiNotifier{service.NewLogNotifier(logger), hub}
	if cfg.NatsConfig.URL != "" {
		nn, err := realtime.NewNATSNotifier(cfg.NatsConfig.URL, cfg.NatsConfig.TenantID, logger)
		if err != nil {
			logger.Error().Err(err).Msg("NATS unavailable, notifications stay local")
		} else {
			defer nn.Close()
			notifiers = append(notifiers, nn)
			logger.Info().Str("subject", realtime.NotifySubject(cfg.NatsConfig.TenantID)).Msg("NATS notifications enabled")
		}
	}

	session := service.OpenSession(service.SessionConfig{
		ExportBaseURL: cfg.ExportBaseURL,
		ExportDir:     cfg.ExportDir,
		SaveDelay:     cfg.SaveDebounce,
		Observers:     []func(service.GraphState){hub.PublishState},
		OnPhase:       hub.PublishPhase,
	}, snapshots, notifiers, logger)
	defer session.Close()

	router, err := graceful.Default(graceful.WithAddr(cfg.ApiPort))
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create router")
	}
	defer router.Close()

	router.Use(middleware.RequestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: !allowsAnyOrigin(cfg.AllowOrigins),
		MaxAge:           12 * time.Hour,
	}))

	initAPI(router, session, hub, cfg, logger)
	issueDevToken(cfg, logger)

	logger.Debug().Msgf("Starting Flow API on port %s", cfg.ApiPort)
	if err = router.RunWithContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("Server stopped")
	}
}

func initAPI(router *graceful.Graceful, session *service.Session, hub *realtime.Hub, cfg flow.AppConfig, logger zerolog.Logger) {
	endpoints.HealthHandler(router, session)
	endpoints.FlowHandler(router, session, cfg, logger)
	endpoints.WebSocketHandler(router, hub, cfg)
}

// issueDevToken logs a short-lived canvas token when a dev server runs with a secret.
func issueDevToken(cfg flow.AppConfig, logger zerolog.Logger) {
	if !cfg.IsDev() || cfg.JWTConfig.Secret == "" {
		return
	}
	token, err := pkg.GenerateToken("dev", "dev@flow.local", cfg.JWTConfig.Secret, 12*time.Hour)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to issue dev token")
		return
	}
	logger.Debug().Str("token", token).Msg("Dev canvas token")
}

func allowsAnyOrigin(origins []string) bool {
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}
