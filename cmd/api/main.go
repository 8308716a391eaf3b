// cmd/api/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/domain/catalog"
	"github.com/your-org/storefront/internal/domain/checkout"
	"github.com/your-org/storefront/internal/domain/order"
	"github.com/your-org/storefront/internal/domain/owner"
	"github.com/your-org/storefront/internal/domain/payment"
	"github.com/your-org/storefront/internal/domain/session"
	"github.com/your-org/storefront/internal/infrastructure/database/postgres"
	"github.com/your-org/storefront/internal/infrastructure/database/redis"
	"github.com/your-org/storefront/internal/infrastructure/square"
	"github.com/your-org/storefront/internal/interfaces/http"
	"github.com/your-org/storefront/internal/interfaces/http/handlers"
	"github.com/your-org/storefront/internal/interfaces/http/routes"
	"github.com/your-org/storefront/internal/pkg/auth"
	"github.com/your-org/storefront/internal/pkg/logger"
	"github.com/your-org/storefront/internal/pkg/metrics"
	"go.uber.org/multierr"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.Logging)
	appLogger.WithFields(logrus.Fields{
		"app":         cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	}).Info("Starting")

	// Connect to database
	db, err := postgres.NewConnection(cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to connect to database")
	}

	// Connect to Redis
	redisClient, err := redis.NewConnection(cfg, appLogger)
	if err != nil {
		_ = db.Close()
		appLogger.WithError(err).Fatal("Failed to connect to Redis")
	}

	// Run database migrations
	migration := postgres.NewMigration(db.GetDB(), appLogger)
	if err := migration.RunAutoMigrations(); err != nil {
		appLogger.WithError(err).Fatal("Database migration failed")
	}
	if err := migration.CreateIndexes(); err != nil {
		appLogger.WithError(err).Warn("Index creation failed")
	}

	// Seed the demo catalog in development
	if cfg.IsDevelopment() {
		if err := migration.SeedInitialData(); err != nil {
			appLogger.WithError(err).Warn("Data seeding failed")
		}
	}

	gateway, err := newGateway(cfg.Payment, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to configure payment gateway")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Domain services
	catalogService := catalog.NewService(db.GetDB())
	cartService := cart.NewService(db.GetDB(), catalogService)
	orderService := order.NewService(db.GetDB())
	resolver := owner.NewResolver(db.GetDB(), cartService, appLogger)
	pipeline := payment.NewPipeline(
		db.GetDB(),
		cartService,
		orderService,
		gateway,
		redis.NewLocker(redisClient.GetClient()),
		metrics.NewCheckout(registry),
		appLogger.WithField("component", "payment"),
		payment.Options{
			Currency:      cfg.Payment.Currency,
			ChargeTimeout: cfg.Payment.ChargeTimeout,
			LockTTL:       cfg.Payment.CheckoutLockTTL,
		},
	)

	server := http.NewServer(cfg, appLogger, http.Dependencies{
		Handlers: routes.Handlers{
			Catalog:        handlers.NewCatalogHandler(catalogService, appLogger),
			Cart:           handlers.NewCartHandler(cartService, resolver, appLogger),
			Checkout:       handlers.NewCheckoutHandler(resolver, cartService, checkout.NewService(cartService), pipeline, cfg.Payment.Currency, appLogger),
			Orders:         handlers.NewOrderHandler(orderService, appLogger),
			Reconciliation: handlers.NewReconciliationHandler(orderService, pipeline, appLogger),
		},
		JWT:         auth.NewJWTManager(cfg.JWT),
		Sessions:    session.NewStore(redisClient.GetClient(), cfg.Session.TTL, appLogger),
		RateLimiter: redisClient.GetClient(),
		Registry:    registry,
		Checks: []http.HealthCheck{
			{Name: "database", Check: db.Health},
			{Name: "redis", Check: redisClient.Health},
		},
	})

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			appLogger.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	appLogger.Info("All systems operational")

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	err = multierr.Combine(
		server.Stop(ctx),
		redisClient.Close(),
		db.Close(),
	)
	if err != nil {
		appLogger.WithError(err).Error("Shutdown completed with errors")
		os.Exit(1)
	}

	appLogger.Info("Server shutdown completed")
}

func newGateway(cfg config.PaymentConfig, appLogger *logrus.Logger) (payment.Gateway, error) {
	if cfg.Provider == "square" {
		client, err := square.NewClient(cfg, appLogger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	appLogger.Warn("Using the stub payment gateway; every charge is approved")
	return payment.StubGateway{}, nil
}
