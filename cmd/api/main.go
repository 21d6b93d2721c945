package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-fulfillment/api/controllers"
	"github.com/angelmondragon/storefront-fulfillment/api/routes"
	"github.com/angelmondragon/storefront-fulfillment/internal/inventory"
	"github.com/angelmondragon/storefront-fulfillment/internal/lineitems"
	"github.com/angelmondragon/storefront-fulfillment/internal/orders"
	product "github.com/angelmondragon/storefront-fulfillment/internal/products"
	"github.com/angelmondragon/storefront-fulfillment/internal/reservations"
	stripewebhook "github.com/angelmondragon/storefront-fulfillment/internal/webhooks/stripe"
	"github.com/angelmondragon/storefront-fulfillment/pkg/config"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db"
	"github.com/angelmondragon/storefront-fulfillment/pkg/instance"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/metrics"
	"github.com/angelmondragon/storefront-fulfillment/pkg/migrate"
	"github.com/angelmondragon/storefront-fulfillment/pkg/redis"
	"github.com/angelmondragon/storefront-fulfillment/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       cfg.App.LogLevel,
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	health := map[string]controllers.Pinger{"db": dbClient}

	var redisClient *redis.Client
	if cfg.Redis.Configured() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		health["redis"] = redisClient
	}

	dedup, err := newDeduplicator(cfg, redisClient)
	if err != nil {
		return err
	}

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	webhookMetrics := metrics.NewWebhookMetrics(registry)

	loc, err := cfg.Pipeline.Location()
	if err != nil {
		return err
	}

	productRepo := product.NewRepository(dbClient.DB())
	orderRepo := orders.NewRepository(dbClient.DB())

	resolver := lineitems.NewResolver(logg,
		lineitems.NewMetadataStrategy(logg),
		lineitems.NewProviderStrategy(stripeClient, productRepo, cfg.Pipeline.ProviderTimeout, logg),
	)
	reconciler := inventory.NewReconciler(productRepo, webhookMetrics, logg, inventory.Config{
		MaxAttempts:  cfg.Pipeline.InventoryMaxAttempt,
		StoreTimeout: cfg.Pipeline.StoreTimeout,
	})
	notifier := reservations.NewNotifier(
		cfg.Reservations.ReleaseURL,
		cfg.Reservations.Timeout,
		logg,
		reservations.WithRecorder(webhookMetrics),
	)
	coordinator, err := orders.NewCoordinator(orders.CoordinatorParams{
		Store:        orderRepo,
		Metrics:      webhookMetrics,
		Logger:       logg,
		Location:     loc,
		StoreTimeout: cfg.Pipeline.StoreTimeout,
	})
	if err != nil {
		return err
	}
	service, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Resolver:     resolver,
		Reconciler:   reconciler,
		Reservations: notifier,
		Orders:       coordinator,
		Logger:       logg,
	})
	if err != nil {
		return err
	}

	addr := ":" + portFromEnv(cfg)
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"instance":     instance.GetID(),
		"dedup":        cfg.Dedup.Backend,
		"stripe_env":   stripeClient.Environment(),
		"release_hook": notifier.Enabled(),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:        cfg,
			Logger:        logg,
			Health:        health,
			Gatherer:      registry,
			Metrics:       webhookMetrics,
			StripeClient:  stripeClient,
			StripeService: service,
			Dedup:         dedup,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logg.Info(logCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newDeduplicator(cfg *config.Config, redisClient *redis.Client) (stripewebhook.Deduplicator, error) {
	if cfg.Dedup.UsesRedis() {
		return stripewebhook.NewRedisDeduplicator(redisClient, cfg.Dedup.TTL, cfg.Dedup.Scope)
	}
	return stripewebhook.NewMemoryDeduplicator(cfg.Dedup.Capacity), nil
}

func portFromEnv(cfg *config.Config) string {
	if port := os.Getenv("PORT"); port != "" {
		return port
	}
	return cfg.App.Port
}
