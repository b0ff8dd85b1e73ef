package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/archmap/internal/adapters/http"
	natsadapter "github.com/samirrijal/archmap/internal/adapters/nats"
	"github.com/samirrijal/archmap/internal/adapters/postgres"
	"github.com/samirrijal/archmap/internal/adapters/valkey"
	"github.com/samirrijal/archmap/internal/core/mapview"
	"github.com/samirrijal/archmap/internal/core/ports"
	"github.com/samirrijal/archmap/internal/core/usecases"
	"github.com/samirrijal/archmap/internal/pkg/config"
	"github.com/samirrijal/archmap/internal/pkg/logging"
	"github.com/samirrijal/archmap/internal/pkg/metrics"
	"github.com/samirrijal/archmap/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("archmap-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	go reportPoolStats(ctx, db)

	// Cache
	cache, err := valkey.New(cfg.Valkey.Addr, "archmap")
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
	}

	// NATS: publisher for map events, raw connection for session followers
	var events ports.EventPublisher
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		events = pub
		defer pub.Close()
	}

	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats follow conn unavailable", "error", err)
	}
	var subscriber *natsadapter.Subscriber
	if natsConn != nil {
		subscriber = natsadapter.NewSubscriber(natsConn)
		defer subscriber.Close()
	}

	// Use cases. A nil *valkey.Cache must not leak into the interface.
	var cacheSvc ports.CacheService
	if cache != nil {
		cacheSvc = cache
	}
	buildingSvc := usecases.NewBuildingService(postgres.NewBuildingRepo(db), cacheSvc)
	routeSvc := usecases.NewRouteService(postgres.NewRouteRepo(db), cacheSvc)

	deps := &http.Dependencies{
		Buildings:  buildingSvc,
		Routes:     routeSvc,
		Events:     events,
		Subscriber: subscriber,
		NATS:       natsConn,
		DB:         db,
		Cache:      cache,
		Map:        mapConfig(cfg.Map),
		MaxZoom:    cfg.Map.MaxZoom,
		Logger:     logger,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024,
		AppName:      "archmap API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, If-None-Match",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// mapConfig converts the file/env settings into controller settings.
func mapConfig(m config.MapConfig) mapview.Config {
	c := mapview.DefaultConfig()
	c.NarrowBreakpoint = float64(m.NarrowBreakpoint)
	c.BottomPanelFraction = m.BottomPanelFraction
	c.HeaderHeight = float64(m.HeaderHeight)
	c.PointZoom = m.PointZoom
	c.ZoomGapThreshold = m.ZoomGapThreshold
	c.FitPadding = float64(m.FitPadding)
	c.PopupSequencing = mapview.Sequencing(m.PopupSequencing)
	if m.FlyDurationMS > 0 {
		c.FlyDuration = time.Duration(m.FlyDurationMS) * time.Millisecond
	}
	if m.TouchPopupDelayMS > 0 {
		c.TouchPopupDelay = time.Duration(m.TouchPopupDelayMS) * time.Millisecond
	}
	return c
}

func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Pool.Stat())
		}
	}
}
