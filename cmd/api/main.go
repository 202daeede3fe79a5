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
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/murmur/internal/adapters/http"
	natsadapter "github.com/samirrijal/murmur/internal/adapters/nats"
	"github.com/samirrijal/murmur/internal/adapters/postgres"
	"github.com/samirrijal/murmur/internal/adapters/valkey"
	"github.com/samirrijal/murmur/internal/core/domain"
	"github.com/samirrijal/murmur/internal/core/ports"
	"github.com/samirrijal/murmur/internal/core/usecases"
	"github.com/samirrijal/murmur/internal/pkg/config"
	"github.com/samirrijal/murmur/internal/pkg/logging"
	"github.com/samirrijal/murmur/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("murmur-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

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
	go db.ReportPoolStats(ctx, 15*time.Second)

	// Cache
	var cache ports.CacheService
	valkeyCache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer valkeyCache.Close()
		cache = valkeyCache
	}

	// NATS
	var publisher ports.EventPublisher
	var natsConn *nats.Conn
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
		natsConn = pub.Conn()
	}

	// Use cases
	densitySvc := usecases.NewDensityService(postgres.NewLocationRepo(db), cache, publisher,
		usecases.WithWindow(cfg.Density.Window),
		usecases.WithPrecision(cfg.Density.Precision),
		usecases.WithCacheTTL(cfg.Density.CacheTTL),
	)
	pathSvc := usecases.NewPathService(postgres.NewLocationRepo(db), cfg.Density.Window)

	// Pings recorded by other instances invalidate our cached counts.
	if publisher != nil && cache != nil {
		natsSub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats subscriber unavailable", "error", err)
		} else {
			defer natsSub.Close()
			var sub ports.EventSubscriber = natsSub
			if err := subscribeInvalidations(ctx, sub, densitySvc); err != nil {
				slog.Warn("subscribe pings failed", "error", err)
			}
		}
	}

	deps := &http.Dependencies{
		Density: densitySvc,
		Paths:   pathSvc,
		NATS:    natsConn,
		DB:      db,
	}
	if valkeyCache != nil {
		deps.Cache = valkeyCache
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024, // pings are tiny
		AppName:      "Murmur API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173, https://*.murmur.app",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, " + http.HeaderUser + ", " + http.HeaderNickname,
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
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

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

type cellInvalidator interface {
	InvalidateCell(ctx context.Context, cell string) error
}

// subscribeInvalidations drops the cached count of every cell a ping event
// reports.
func subscribeInvalidations(ctx context.Context, sub ports.EventSubscriber, density cellInvalidator) error {
	return sub.SubscribePings(ctx, func(ctx context.Context, ping *domain.LocationPing) error {
		return density.InvalidateCell(ctx, ping.Cell)
	})
}
