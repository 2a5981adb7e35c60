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

	"ms-ordering/internal/admin"
	admin_api "ms-ordering/internal/admin/api"
	"ms-ordering/internal/audit"
	"ms-ordering/internal/auth"
	"ms-ordering/internal/catalog"
	"ms-ordering/internal/config"
	"ms-ordering/internal/database/migrations"
	"ms-ordering/internal/logger"
	"ms-ordering/internal/order"
	"ms-ordering/internal/order/db"
	"ms-ordering/internal/order/gateway"
	"ms-ordering/internal/order/kafka"
	"ms-ordering/internal/order/order_api"
	rediswrap "ms-ordering/internal/order/redis"
	"ms-ordering/internal/sse"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

func connectPostgres(cfg config.DatabaseConfig, log *logger.Logger) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN())))
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	var err error
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		err = sqldb.Ping()
		if err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	log.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Addr))
	return client
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Order Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	bunDB := connectPostgres(cfg.Database, log)
	defer bunDB.Close()

	if cfg.Migrations.AutoMigrate {
		runner := migrations.NewRunner(bunDB, migrations.MigrateOptions{
			MigrationsDir: cfg.Migrations.Dir,
			AutoMigrate:   cfg.Migrations.AutoMigrate,
		}, log)
		if err := runner.RunMigrations(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
		}
		defer runner.Close()
	}

	// The audit trail lives on its own connection so override history stays
	// writable even when the ledger pool is saturated.
	auditDB, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open audit connection: %v", err))
	}
	auditStore, err := audit.NewStore(auditDB, log)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to initialize audit store: %v", err))
	}
	defer auditStore.Close()

	redisClient := connectRedis(ctx, cfg.Redis, log)
	defer redisClient.Close()

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.OrderEvents, log)
		defer producer.Close()
		log.Info("KAFKA", fmt.Sprintf("Kafka producer initialized for topic %s", cfg.Kafka.OrderEvents))
	} else {
		log.Warn("KAFKA", "Kafka publishing disabled")
	}

	razorpay := gateway.NewRazorpay(cfg.Gateway, log)
	catalogClient := catalog.NewClient(cfg.Catalog.BaseURL, &http.Client{Timeout: cfg.Catalog.Timeout}, log)
	emitter := sse.NewLiveOrderEmitter()

	orderDB := &db.DB{Bun: bunDB}

	var publisher order.KafkaPublisher
	if producer != nil {
		publisher = producer
	}

	orderService := order.NewOrderService(
		orderDB,
		razorpay,
		catalogClient,
		rediswrap.NewRedis(redisClient, log),
		publisher,
		emitter,
		log,
	)
	adminService := admin.NewService(orderDB, auditStore, log)

	orderHandler := order_api.NewHandler(orderService, log)
	sseHandler := order_api.NewSSEHandler(emitter, log)
	adminHandler := admin_api.NewHandler(adminService, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := chi.NewRouter()

	// --- Public Routes ---
	// The webhook authenticates itself with the HMAC over the raw body.
	r.Post("/api/v1/orders/webhook", orderHandler.Webhook)
	log.Info("ROUTER", "Gateway webhook endpoint registered at /api/v1/orders/webhook")

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware())
		log.Info("AUTH", "JWT middleware applied to protected API routes")

		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/orders", func(r chi.Router) {
				r.Post("/", orderHandler.CreateOrder)
				r.Post("/verify-payment", orderHandler.VerifyPayment)
				r.Get("/", orderHandler.ListOrders)
				r.Get("/{orderId}", orderHandler.GetOrder)
				r.Post("/{orderId}/cancel", orderHandler.CancelOrder)

				r.With(auth.RequireRole(auth.RoleCanteenStaff, auth.RoleAdmin)).
					Patch("/{orderId}/status", orderHandler.UpdateStatus)
			})
			log.Info("ROUTER", "Order routes registered under /api/v1/orders")

			r.With(auth.RequireRole(auth.RoleCanteenStaff, auth.RoleAdmin)).
				Get("/canteens/{canteenId}/orders/stream", sseHandler.StreamCanteenOrders)
			log.Info("ROUTER", "Live order stream registered under /api/v1/canteens/{canteenId}/orders/stream")

			r.Route("/admin/orders/{orderId}", func(r chi.Router) {
				r.Use(auth.RequireRole(auth.RoleAdmin))
				r.Post("/override", adminHandler.OverrideOrder)
				r.Get("/audit", adminHandler.ListAudit)
			})
			log.Info("ROUTER", "Admin routes registered under /api/v1/admin")
		})
	})

	// No WriteTimeout: the SSE stream holds its response open indefinitely.
	server := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     r,
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Order Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Order Service shutdown complete")
	}
}
