package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopguard/sentinel/pkg/cache"
	"github.com/shopguard/sentinel/pkg/common"
	"github.com/shopguard/sentinel/pkg/config"
	"github.com/shopguard/sentinel/pkg/detection"
	handlers "github.com/shopguard/sentinel/pkg/handlers/http"
	"github.com/shopguard/sentinel/pkg/infra/database"
	"github.com/shopguard/sentinel/pkg/infra/fingerprint"
	"github.com/shopguard/sentinel/pkg/infra/jwt"
	infraLogger "github.com/shopguard/sentinel/pkg/infra/logger"
	"github.com/shopguard/sentinel/pkg/infra/repository"
	infraTelemetry "github.com/shopguard/sentinel/pkg/infra/telemetry"
	"github.com/shopguard/sentinel/pkg/middleware"
	"github.com/shopguard/sentinel/pkg/ratelimit"
	"github.com/shopguard/sentinel/pkg/scoring"
	"github.com/shopguard/sentinel/pkg/scoring/behavior"
	"github.com/shopguard/sentinel/pkg/scoring/frequency"
	"github.com/shopguard/sentinel/pkg/scoring/honeypot"
	"github.com/shopguard/sentinel/pkg/scoring/proxy"
	"github.com/shopguard/sentinel/pkg/scoring/useragent"
	"github.com/shopguard/sentinel/pkg/server"
)

const trackingBreakerMaxFailures = 5

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	logger := infraLogger.NewLogger()

	if err := config.Load("./config"); err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	cfg := config.GetConfig()

	db, err := database.NewDB(logger, &database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		DBName:   cfg.Database.DBName,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	defer db.Close()

	cacheInstance, err := cache.NewCache(common.CacheConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Fatalf("failed to initialize cache: %v", err)
	}

	// repositories
	trackingRepo := repository.NewBreakerTrackingRepository(
		repository.NewTrackingRepository(db.DB),
		trackingBreakerMaxFailures,
	)
	actorStore := repository.NewKnownActorRepository(db.DB)

	// scorers
	behaviorWindows := make([]behavior.Window, 0, len(cfg.Detection.FrequencyWindows))
	for _, w := range cfg.Detection.FrequencyWindows {
		behaviorWindows = append(behaviorWindows, behavior.Window{
			Duration:  time.Duration(w.Minutes) * time.Minute,
			Threshold: w.Threshold,
		})
	}
	scorers := []scoring.Scorer{
		useragent.New(),
		proxy.New(actorStore, trackingRepo, logger, cfg.Detection.DatacenterPrefixes, nil),
		behavior.New(trackingRepo, logger, behavior.WithWindows(behaviorWindows)),
		honeypot.New(),
		frequency.New(trackingRepo, nil),
	}
	weights := scoring.Weights{
		useragent.SignalName: cfg.Detection.Weights.UserAgent,
		proxy.SignalName:     cfg.Detection.Weights.Proxy,
		behavior.SignalName:  cfg.Detection.Weights.Behavior,
		honeypot.SignalName:  cfg.Detection.Weights.Honeypot,
		frequency.SignalName: cfg.Detection.Weights.Frequency,
	}
	engine, err := scoring.NewEngine(
		scorers,
		weights,
		cfg.Detection.BlockThreshold,
		cfg.Detection.SuspiciousThreshold,
		actorStore,
		logger,
	)
	if err != nil {
		logger.Fatalf("failed to build scoring engine: %v", err)
	}

	tracker := fingerprint.NewTracker(trackingRepo, logger)
	limiter := ratelimit.NewLimiter(trackingRepo, cacheInstance, logger, cfg.RateLimit)
	go limiter.RunSweeper(ctx, time.Hour)

	emitter, err := infraTelemetry.NewEmitter(cfg.Telemetry, logger)
	if err != nil {
		logger.Fatalf("failed to build telemetry emitter: %v", err)
	}
	defer emitter.Close()

	detector := detection.NewDetector(
		engine,
		tracker,
		limiter,
		trackingRepo,
		actorStore,
		cacheInstance,
		emitter,
		logger,
	)

	jwtManager := jwt.NewJwtManager(&cfg.Server)

	srv := server.NewSentinelServer(server.SentinelServerDI{
		MiddlewareTransport: middleware.Transport{
			DetectionMiddleware: middleware.NewDetectionMiddleware(logger, detector),
			AdminAuthMiddleware: middleware.NewAdminAuthMiddleware(logger, jwtManager),
		},
		HandlerTransport: handlers.HandlerTransport{
			CheckRequestHandler: handlers.NewCheckRequestHandler(logger, detector),
			GetIPReportHandler:  handlers.NewGetIPReportHandler(logger, trackingRepo, actorStore),
			BlockIPHandler:      handlers.NewBlockIPHandler(logger, actorStore, cacheInstance),
			UnblockIPHandler:    handlers.NewUnblockIPHandler(logger, actorStore, cacheInstance),
			GetStatsHandler:     handlers.NewGetStatsHandler(logger, limiter),
			HealthHandler:       handlers.NewHealthHandler(logger, db, cacheInstance),
		},
		Config: cfg,
		Logger: logger,
	})

	go func() {
		if err := srv.Run(); err != nil {
			logger.WithError(err).Fatal("server stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	cancel()
	if err := srv.Shutdown(); err != nil {
		logger.WithError(err).Error("server shutdown failed")
	}
}
