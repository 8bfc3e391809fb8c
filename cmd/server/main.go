package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/listkeeper/internal/api"
	"github.com/ignite/listkeeper/internal/archive"
	"github.com/ignite/listkeeper/internal/cache"
	"github.com/ignite/listkeeper/internal/config"
	"github.com/ignite/listkeeper/internal/maintenance"
	"github.com/ignite/listkeeper/internal/notify"
	"github.com/ignite/listkeeper/internal/pkg/distlock"
	"github.com/ignite/listkeeper/internal/pkg/logger"
	"github.com/ignite/listkeeper/internal/provider"
	"github.com/ignite/listkeeper/internal/recommend"
	"github.com/ignite/listkeeper/internal/repository/postgres"
	"github.com/ignite/listkeeper/internal/service/contact"
	"github.com/ignite/listkeeper/internal/service/list"
	"github.com/ignite/listkeeper/internal/service/suppression"
)

func main() {
	ctx := context.Background()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		logger.Error("config load failed", "path", configPath, "error", err.Error())
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		logger.Error("database open failed", "error", err.Error())
		os.Exit(1)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	if err := db.PingContext(ctx); err != nil {
		logger.Error("database unreachable", "error", err.Error())
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, running without cache", "error", err.Error())
			redisClient = nil
		}
		defer func() {
			if redisClient != nil {
				redisClient.Close()
			}
		}()
	}
	statusCache := cache.New(redisClient)

	// Repositories and services.
	contactRepo := postgres.NewContactRepo(db)
	listRepo := postgres.NewListRepo(db)
	suppressionRepo := postgres.NewSuppressionRepo(db)
	maintenanceRepo := postgres.NewMaintenanceLogRepo(db)

	contactSvc := contact.NewService(contactRepo)
	listSvc := list.NewService(listRepo, contactSvc, statusCache)
	suppressionEngine := suppression.NewEngine(suppressionRepo, contactRepo, listSvc, statusCache,
		suppression.Config{
			SoftBounceThreshold: cfg.Suppression.SoftBounceThreshold,
			SuppressionListID:   cfg.Suppression.MirrorListID,
		})

	// Bounce source: REST feed when configured, SES otherwise.
	var source maintenance.BounceSource
	switch {
	case cfg.BounceFeed.BaseURL != "":
		source = provider.NewHTTPSource(provider.HTTPConfig{
			BaseURL:  cfg.BounceFeed.BaseURL,
			APIKey:   cfg.BounceFeed.APIKey,
			PageSize: cfg.BounceFeed.PageSize,
		})
		logger.Info("bounce source: http feed", "base_url", cfg.BounceFeed.BaseURL)
	case cfg.SES.Enabled:
		sesSource, err := provider.NewSESSource(ctx, provider.SESConfig{
			AccessKey: cfg.SES.AccessKey,
			SecretKey: cfg.SES.SecretKey,
			Region:    cfg.SES.Region,
		})
		if err != nil {
			logger.Error("ses source init failed", "error", err.Error())
			os.Exit(1)
		}
		source = sesSource
		logger.Info("bounce source: ses suppression list", "region", cfg.SES.Region)
	default:
		logger.Error("no bounce source configured: set bounce_feed.base_url or ses.enabled")
		os.Exit(1)
	}

	// Planner: model-backed with rule fallback, or rules alone.
	var planner recommend.Planner = &recommend.RulePlanner{}
	if cfg.Bedrock.Enabled {
		bedrock, err := recommend.NewBedrockPlanner(ctx, cfg.Bedrock.Region, cfg.Bedrock.ModelID, &recommend.RulePlanner{})
		if err != nil {
			logger.Warn("bedrock planner init failed, using rules", "error", err.Error())
		} else {
			planner = bedrock
			logger.Info("planner: bedrock", "model", cfg.Bedrock.ModelID)
		}
	}

	var planArchive maintenance.Archiver
	if cfg.Archive.Enabled && cfg.Archive.Bucket != "" {
		a, err := archive.New(ctx, cfg.Archive.Bucket, cfg.Archive.Region)
		if err != nil {
			logger.Warn("plan archive init failed, archiving disabled", "error", err.Error())
		} else {
			planArchive = a
		}
	}

	lockTTL := time.Duration(cfg.Maintenance.LockTTLMinutes) * time.Minute
	orchestrator := maintenance.New(
		contactSvc, listSvc, suppressionEngine, source, planner,
		maintenanceRepo, planArchive, notify.New(notify.Config{WebhookURL: cfg.Notify.WebhookURL}),
		func(key string) distlock.DistLock {
			return distlock.NewLock(redisClient, db, key, lockTTL)
		},
		maintenance.Config{
			Workers:      cfg.Maintenance.Workers,
			StageTimeout: time.Duration(cfg.Maintenance.StageTimeoutSeconds) * time.Second,
			LockTTL:      lockTTL,
		})

	server := api.NewServer(orchestrator, maintenanceRepo, listSvc, suppressionEngine, db, redisClient)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err.Error())
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err.Error())
	}
}
