/**
 * @description
 * This is the main entry point for the payment-service. It initializes all
 * components: configuration, the database pool, the RabbitMQ producer, the
 * optional Redis rate limiter, the auth components, the HTTP router, the
 * scheduled jobs, and the background reconciliation loop — then runs until a
 * termination signal triggers a graceful shutdown.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5 (via internal/api): HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/robfig/cron/v3: Scheduled maintenance jobs.
 * - internal/api, internal/app, internal/auth, internal/config, internal/store.
 * - pkg/rabbitmq, pkg/suiclient.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/suipay/payment-service/internal/api"
	"github.com/suipay/payment-service/internal/app"
	"github.com/suipay/payment-service/internal/auth"
	"github.com/suipay/payment-service/internal/config"
	"github.com/suipay/payment-service/internal/store"
	"github.com/suipay/payment-service/pkg/rabbitmq"
	"github.com/suipay/payment-service/pkg/suiclient"
)

func main() {
	// Load .env file for local development. In production, env vars are set directly.
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=bootstrap msg=\"no .env file found; using environment variables\"")
	}

	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"signing secret must be configured\" env=JWT_SECRET")
	}

	log.Printf("level=info component=bootstrap msg=\"starting payment-service\" port=%s indexing_enabled=%t", cfg.ServerPort, cfg.IndexingEnabled())

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// Initialize the data access layer and ensure the schema exists (idempotent).
	repository := store.NewPostgresRepository(dbpool)
	if err := repository.EnsureSchema(context.Background()); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"schema bootstrap failed\" err=%v", err)
	}

	// Initialize the RabbitMQ producer for order-paid events. The broker is
	// optional: reconciliation must not depend on it.
	var producer rabbitmq.Publisher
	if strings.TrimSpace(cfg.RabbitMQURL) == "" {
		log.Println("level=warn component=bootstrap msg=\"rabbitmq url missing; order paid events will not be published\" env=RABBITMQ_URL")
	} else if p, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &rabbitmq.EventProducerFallback{}
	} else {
		producer = p
		defer p.Close()
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Optional Redis-backed login rate limiting.
	var limiter *app.RedisLoginRateLimiter
	if cfg.LoginRateLimitPerMinute > 0 {
		if cfg.RedisURL == "" {
			log.Println("level=warn component=bootstrap msg=\"redis url missing; login rate limiting disabled\" env=REDIS_URL")
		} else if redisOptions, parseErr := redis.ParseURL(cfg.RedisURL); parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; login rate limiting disabled\" err=%v", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			pingErr := redisClient.Ping(pingCtx).Err()
			cancelPing()
			if pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; login rate limiting disabled\" err=%v", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				limiter = app.NewRedisLoginRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// Auth components: the signing secret and TTL are injected once here and
	// never read from the environment again.
	tokens := auth.NewTokenService(cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour)
	deriver := auth.NewZkIdentityDeriver(repository)

	// Core application service and API handlers.
	service := app.NewService(repository, tokens, deriver)
	handlers := api.NewHandlers(service, limiter, cfg.LoginRateLimitPerMinute)
	router := api.Routes(handlers, tokens)

	// Background reconciliation loop. It does not start at all without a
	// configured package id: indexing is disabled, not degraded.
	rootCtx, cancel := context.WithCancel(context.Background())
	var background sync.WaitGroup
	if cfg.IndexingEnabled() {
		reconciler := app.NewReconciler(
			suiclient.NewClient(cfg.SuiRPCURL),
			repository,
			producer,
			app.ReconcilerConfig{
				PackageID:    cfg.SuiPackageID,
				Module:       cfg.SuiEventModule,
				PageSize:     cfg.IndexerPageSize,
				PollInterval: time.Duration(cfg.IndexerPollIntervalSeconds) * time.Second,
				Exchange:     cfg.OrderPaidExchange,
				RoutingKey:   cfg.OrderPaidRoutingKey,
			},
		)
		background.Add(1)
		go func() {
			defer background.Done()
			reconciler.Run(rootCtx)
		}()
	} else {
		log.Println("level=warn component=bootstrap msg=\"no package id configured; indexing disabled\" env=SUIPAY_PACKAGE_ID")
	}

	// Scheduled maintenance jobs.
	jobs := app.NewJobs(repository, time.Duration(cfg.PendingOrderStaleMinutes)*time.Minute)
	cronRunner := cron.New()
	if _, err := cronRunner.AddFunc(cfg.PendingOrderReportSchedule, jobs.ReportStalePendingOrders); err != nil {
		log.Printf("level=warn component=bootstrap msg=\"stale pending report job not scheduled\" schedule=%q err=%v", cfg.PendingOrderReportSchedule, err)
	}
	cronRunner.Start()

	// Start the HTTP server.
	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=bootstrap msg=\"shutdown started\"")

	// Stop the reconciler first so no page is left half-applied, then the
	// cron runner, then drain the HTTP server.
	cancel()
	background.Wait()
	<-cronRunner.Stop().Done()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("level=warn component=http msg=\"server shutdown error\" err=%v", err)
	}
	log.Println("level=info component=bootstrap msg=\"shutdown complete\"")
}
