package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telecall/internal/core/domain"
	"telecall/internal/core/services"
	httphandlers "telecall/internal/handlers/http"
	archive "telecall/internal/infrastructure/backup"
	"telecall/internal/infrastructure/distributed"
	"telecall/internal/infrastructure/middleware"
	"telecall/internal/infrastructure/monitoring"
	"telecall/internal/infrastructure/relay"
	repositories "telecall/internal/infrastructure/repositories"
	"telecall/pkg/backup"
	"telecall/pkg/config"
	"telecall/pkg/logger"
	"telecall/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/telecall/config.yaml",
		"config.yaml",
	}

	var cfg *config.Config
	var err error

	for _, path := range configPaths {
		cfg, err = config.Load(path)
		if err == nil {
			break
		}
	}

	if err != nil {
		// Fallback to defaults if config cannot be loaded
		cfg = config.DefaultConfig()
	}

	// Initialize logger
	zapLogger := logger.New(cfg.Logging.Level)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()

	// Initialize tracing
	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: "telecall-relay",
		JaegerURL:   cfg.Tracing.JaegerURL,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("failed to initialize tracing", "error", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tp.Shutdown(ctx)
	}()

	// Initialize repository factory
	repoFactory, err := repositories.NewRepositoryFactory(cfg, log)
	if err != nil {
		log.Fatalw("failed to create repository factory", "error", err)
	}
	defer repoFactory.Close()

	// Initialize repositories
	chatRepo := repoFactory.CreateChatRepository()
	roomRepo := repoFactory.CreateRoomRepository()
	consultationRepo := repoFactory.CreateConsultationRepository()

	// Initialize services
	authService := services.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)

	// Initialize monitoring
	var metrics relay.Metrics
	var collector *monitoring.PrometheusCollector
	if cfg.Monitoring.PrometheusEnabled {
		collector = monitoring.NewPrometheusCollector()
		metrics = collector
	}

	// Recording flags go through Redis when available so multiple relay
	// instances agree on the single-recording rule.
	recorder := relay.NewMemoryRecordingAuthority()
	if client := repoFactory.RedisClient(); client != nil {
		recorder = relay.NewRedisRecordingAuthority(client)
	}

	// Lifecycle events over Redis pub/sub, when Redis is around.
	var events relay.Events
	if client := repoFactory.RedisClient(); client != nil {
		instanceID := uuid.NewString()
		events = distributed.NewEventBus(client, instanceID, log)
	}

	// Transcript archiving to local snapshots.
	var archiver relay.TranscriptArchiver
	var sweeper *archive.Sweeper
	if cfg.Archive.Enabled {
		storage, err := backup.NewFileStorage(cfg.Archive.Dir)
		if err != nil {
			log.Fatalw("failed to open archive storage", "error", err)
		}
		store := backup.NewSnapshotStore(storage)
		archiver = archive.NewTranscriptArchiver(chatRepo, store, log)

		sweeper = archive.NewSweeper(store, cfg.Archive.SweepInterval, cfg.Archive.Retention, log)
		go sweeper.Start(context.Background())
		defer sweeper.Stop()
	}

	// Initialize the signal relay
	relayServer := relay.NewServer(
		chatRepo,
		roomRepo,
		recorder,
		metrics,
		relay.Config{
			PingInterval: cfg.Relay.PingInterval,
			PongTimeout:  cfg.Relay.PongTimeout,
			WriteTimeout: cfg.Relay.WriteTimeout,
			NewLimiter:   middleware.NewSignalRateLimiter(cfg),
			Events:       events,
			Archiver:     archiver,
		},
		log,
	)

	// ICE servers handed out to clients at call start
	var iceServers []domain.ICEServer
	for _, s := range cfg.WebRTC.ICEServers {
		iceServers = append(iceServers, domain.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	if len(iceServers) == 0 {
		// Fallback STUN server if not configured
		iceServers = []domain.ICEServer{
			{URLs: []string{"stun:stun.l.google.com:19302"}},
		}
	}

	// Initialize HTTP handlers
	authHandler := httphandlers.NewAuthHandler(authService, cfg.Auth.AccessTokenTTL)
	consultationHandler := httphandlers.NewConsultationHandler(consultationRepo, authService, relayServer, iceServers)

	// Configure Gin
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.ErrorHandlerMiddleware(log))
	if cfg.Tracing.Enabled {
		router.Use(middleware.TracingMiddleware())
	}

	// Global HTTP rate limiting (if enabled)
	router.Use(middleware.NewHTTPRateLimitMiddleware(cfg))

	// Setup auth routes (public)
	authHandler.SetupRoutes(router)

	// Setup consultation routes with authentication
	authMW := middleware.AuthMiddleware(authService)
	consultationHandler.SetupRoutes(router, authMW)

	// Signal relay websocket. Only a party of the consultation may attach.
	router.GET("/ws", authMW, func(c *gin.Context) {
		claims, ok := middleware.ClaimsFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing claims"})
			return
		}

		id := domain.ConsultationID(c.Query("consultation_id"))
		consultation, err := consultationRepo.Get(c.Request.Context(), id)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "consultation not found"})
			return
		}
		if err := authService.CheckConsultationAccess(claims, consultation); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not a party of this consultation"})
			return
		}

		relayServer.HandleWebSocket(c.Writer, c.Request)
	})

	// Health checks
	healthChecker := monitoring.NewHealthChecker()
	if client := repoFactory.RedisClient(); client != nil {
		healthChecker.AddRedisCheck(client, 30*time.Second, 2*time.Second)
	}
	healthChecker.AddChatRepositoryCheck(chatRepo, 30*time.Second, 2*time.Second)
	healthChecker.AddConsultationServiceCheck(func(ctx context.Context) error {
		_, err := consultationRepo.Get(ctx, "healthcheck")
		if errors.Is(err, domain.ErrConsultationNotFound) {
			return nil
		}
		return err
	}, 30*time.Second, 2*time.Second)

	router.GET("/health", func(c *gin.Context) {
		status := healthChecker.CheckAll(c.Request.Context())
		code := http.StatusOK
		if status.Status != "healthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status.Status,
			"timestamp": status.Timestamp,
			"checks":    status.Checks,
			"uptime":    time.Since(startTime).String(),
		})
	})

	// Readiness endpoint
	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := repoFactory.HealthCheck(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":       "not_ready",
				"timestamp":    time.Now(),
				"dependencies": "unhealthy",
				"error":        err.Error(),
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":       "ready",
			"timestamp":    time.Now(),
			"dependencies": "ok",
		})
	})

	// Prometheus metrics endpoint
	if cfg.Monitoring.PrometheusEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
		log.Info("Prometheus metrics enabled")
	}

	srv := &http.Server{
		Addr:         cfg.Relay.Address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Relay.WriteTimeout,
	}

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		log.Infof("Starting Telecall relay on %s", cfg.Relay.Address)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signals or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down Telecall relay...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Relay.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Server shutdown error", "error", err)
	}

	log.Info("Telecall relay stopped")
}
