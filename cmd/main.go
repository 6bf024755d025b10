package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"webshop-service/internal/api"
	"webshop-service/internal/cache"
	"webshop-service/internal/config"
	"webshop-service/internal/events"
	"webshop-service/internal/metrics"
	"webshop-service/internal/repository"
	"webshop-service/internal/repository/memory"
	"webshop-service/internal/service"
	"webshop-service/migrations"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

func connectDB(cfg config.Config) (*sql.DB, error) {
	var db *sql.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = sql.Open("mysql", cfg.DSN())
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err = db.PingContext(ctx)
			cancel()
			if err == nil {
				db.SetMaxOpenConns(cfg.DBMaxOpenConns)
				db.SetMaxIdleConns(cfg.DBMaxOpenConns)
				db.SetConnMaxLifetime(5 * time.Minute)
				logger.Info().Msgf("Connected to DB %s", cfg.DBName)
				return db, nil
			}
			db.Close()
		}
		logger.Warn().Err(err).Msgf("Retry %d: failed to connect to DB %s (%s:%s)", i+1, cfg.DBName, cfg.DBHost, cfg.DBPort)
		time.Sleep(3 * time.Second)
	}
	return nil, fmt.Errorf("failed to connect to DB %s at %s:%s after retries: %w", cfg.DBName, cfg.DBHost, cfg.DBPort, err)
}

func openStore(cfg config.Config) (repository.Store, func(), error) {
	if cfg.StoreBackend == config.BackendMemory {
		logger.Info().Msg("Using in-memory store")
		return memory.NewStore(), func() {}, nil
	}

	db, err := connectDB(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := migrations.AutoMigrate(context.Background(), db, cfg.MigrationRetries, time.Second); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to migrate: %w", err)
	}
	return repository.NewSQLStore(db), func() { db.Close() }, nil
}

func main() {
	cfg := config.Load()

	store, closeStore, err := openStore(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to open store")
	}
	defer closeStore()

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer rdb.Close()

	kafkaWriter := config.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
	defer kafkaWriter.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	productCache := cache.NewProductCache(rdb)
	productService := service.NewProductService(store, productCache)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := productService.WarmCache(ctx); err != nil {
			logger.Warn().Err(err).Msg("Product cache warm-up failed")
		}
	}()
	cartService := service.NewCartService(store)
	orderService := service.NewOrderService(store, events.NewPublisher(kafkaWriter), cache.NewIdempotencyGuard(rdb),
		productCache, m, cfg.EnforceStatusTransitions)

	e := echo.New()

	limiterConfig := middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.RateLimit),
				Burst:     cfg.RateBurst,
				ExpiresIn: 3 * time.Minute,
			}),
		IdentifierExtractor: func(context echo.Context) (string, error) {
			return context.RealIP(), nil
		},
		ErrorHandler: func(context echo.Context, err error) error {
			return context.JSON(429, map[string]string{"error": "rate limit exceeded"})
		},
		DenyHandler: func(context echo.Context, identifier string, err error) error {
			return context.JSON(429, map[string]string{"error": "rate limit exceeded"})
		},
	}

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(m.Middleware())
	e.Use(middleware.RateLimiterWithConfig(limiterConfig))

	api.Register(e,
		api.NewProductHandler(productService),
		api.NewCartHandler(cartService),
		api.NewOrderHandler(orderService),
		api.AdminGuard(cfg.JWTSecret),
	)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]interface{}{
			"status":  "ok",
			"service": "webshop-service",
			"time":    time.Now().Format(time.RFC3339),
		})
	})
	e.GET("/metrics", echo.WrapHandler(metrics.Handler(registry)))

	e.Logger.Fatal(e.Start(cfg.HTTPAddr))
}
