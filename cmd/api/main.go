package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"petshop-kart/internal/broker"
	"petshop-kart/internal/cache"
	"petshop-kart/internal/catalog"
	"petshop-kart/internal/config"
	"petshop-kart/internal/database"
	"petshop-kart/internal/events"
	"petshop-kart/internal/handler"
	"petshop-kart/internal/metrics"
	"petshop-kart/internal/notify"
	"petshop-kart/internal/reconcile"
	"petshop-kart/internal/repository"
	"petshop-kart/internal/router"
	"petshop-kart/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting petshop-kart API server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Database.Migrate {
		if err := database.Migrate(cfg.Database.ConnectionString(), logger); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)
	httpMetrics := metrics.NewHTTPMetrics(registry)

	// Repositories
	productRepo := repository.NewProductRepository(pool, logger)
	cartRepo := repository.NewCartRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)
	adjustmentRepo := repository.NewAdjustmentRepository(pool, logger)

	if err := seedCatalog(ctx, cfg, productRepo, logger); err != nil {
		return fmt.Errorf("failed to seed catalogue: %w", err)
	}

	cartCache, closeCache := newCartCache(ctx, cfg.Redis, logger)
	defer closeCache()

	// Kafka is optional; without brokers events are dropped and notifications only logged.
	var (
		publisher events.Publisher = events.Nop{}
		sink      notify.Sink      = notify.NewLogSink(logger)
	)
	if kafka := broker.NewClient(cfg.Kafka.Brokers); kafka.Enabled() {
		eventPublisher := events.NewKafkaPublisher(kafka.NewWriter(cfg.Kafka.OrdersTopic), logger)
		defer eventPublisher.Close()
		kafkaSink := notify.NewKafkaSink(kafka.NewAsyncWriter(cfg.Kafka.NotificationsTopic, logger), logger)
		defer kafkaSink.Close()

		publisher = eventPublisher
		sink = notify.Multi{sink, kafkaSink}
		logger.Info().Strs("brokers", kafka.Brokers).Msg("kafka publishing enabled")
	}

	var alerter notify.Alerter = notify.NewLogAlerter(logger)
	if cfg.Alerts.SESEnabled {
		sesAlerter, err := notify.NewSESAlerter(ctx, cfg.Alerts.Region, cfg.Alerts.Sender, cfg.Alerts.Recipients, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to initialise SES alerter, alerts will only be logged")
		} else {
			alerter = sesAlerter
		}
	}

	// Services
	settler := service.NewStockSettler(adjustmentRepo, productRepo, logger)
	productService := service.NewProductService(productRepo, logger)
	cartLedger := service.NewCartLedger(cartRepo, productRepo, cartCache, logger)
	checkoutService := service.NewCheckoutService(service.CheckoutDeps{
		Ledger:      cartLedger,
		Products:    productRepo,
		Orders:      orderRepo,
		Adjustments: adjustmentRepo,
		Settler:     settler,
		Sink:        sink,
		Publisher:   publisher,
		Alerter:     alerter,
		Metrics:     checkoutMetrics,

		PublishTimeout: cfg.Kafka.PublishTimeout,
	}, logger)
	orderService := service.NewOrderService(orderRepo, logger)

	var workers sync.WaitGroup
	if cfg.Reconcile.Enabled {
		worker := reconcile.NewWorker(adjustmentRepo, settler, logger,
			reconcile.WithInterval(cfg.Reconcile.Interval),
			reconcile.WithBatchSize(cfg.Reconcile.BatchSize),
			reconcile.WithMaxAttempts(cfg.Reconcile.MaxAttempts),
			reconcile.WithPublisher(publisher),
			reconcile.WithAlerter(alerter),
			reconcile.WithMetrics(checkoutMetrics),
		)
		workers.Add(1)
		go func() {
			defer workers.Done()
			worker.Run(ctx)
		}()
	}

	cartHandler := handler.NewCartHandler(cartLedger, logger)
	mux := router.New(router.Handlers{
		Products: handler.NewProductHandler(productService, logger),
		Cart:     cartHandler,
		Checkout: handler.NewCheckoutHandler(checkoutService, logger),
		Orders:   handler.NewOrderHandler(orderService, logger),
	}, router.Options{
		APIKey:      cfg.Auth.APIKey,
		HTTPMetrics: httpMetrics,
		Gatherer:    registry,
	}, logger)

	// WriteTimeout stays zero so cart event streams are not cut off; handlers
	// bound their own work through the request context.
	server := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	server.RegisterOnShutdown(cartHandler.CloseStreams)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		cancel()
		workers.Wait()
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		cancel()
		workers.Wait()

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}

// seedCatalog upserts the configured catalogue files, reading from S3 when
// enabled and from the local file system otherwise.
func seedCatalog(ctx context.Context, cfg *config.Config, products repository.ProductRepository, logger zerolog.Logger) error {
	if len(cfg.Catalog.Files) == 0 {
		logger.Info().Msg("no catalogue files configured, skipping seed")
		return nil
	}

	var s3Loader catalog.Loader
	if cfg.S3.Enabled {
		loader, err := catalog.NewS3Loader(ctx, cfg.S3.Bucket, cfg.S3.Region, logger)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to initialise S3 loader, falling back to local file system only")
		} else {
			s3Loader = loader
		}
	}

	loader := catalog.NewFallbackLoader(s3Loader, catalog.NewFileLoader(logger), cfg.S3.Prefix, logger)
	n, err := catalog.NewSeeder(loader, products, logger).Seed(ctx, cfg.Catalog.Files)
	if err != nil {
		return err
	}

	logger.Info().Int("products", n).Strs("files", cfg.Catalog.Files).Msg("catalogue seeded")
	return nil
}

// newCartCache connects to Redis when enabled. An unreachable Redis at
// startup degrades to no caching rather than failing the server.
func newCartCache(ctx context.Context, cfg config.RedisConfig, logger zerolog.Logger) (cache.CartCache, func()) {
	if !cfg.Enabled {
		return cache.NopCache{}, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Addr).Msg("redis unreachable, cart cache disabled")
		client.Close()
		return cache.NopCache{}, func() {}
	}

	logger.Info().Str("addr", cfg.Addr).Dur("ttl", cfg.TTL).Msg("cart cache enabled")
	return cache.NewRedisCache(client, cfg.TTL), func() {
		if err := client.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			logger.Warn().Err(err).Msg("failed to close redis client")
		}
	}
}
