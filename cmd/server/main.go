package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/aimennsou/testecom/internal/cache"
	h "github.com/aimennsou/testecom/internal/http"
	"github.com/aimennsou/testecom/internal/publisher"
	"github.com/aimennsou/testecom/internal/repository"
	"github.com/aimennsou/testecom/internal/service"
	"github.com/aimennsou/testecom/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

type Config struct {
	HTTPPort        string
	DBDriver        string // "sqlite" or "postgres"
	SQLitePath      string
	PGHost          string
	PGPort          int
	PGUser          string
	PGPassword      string
	PGDBName        string
	MigrationsPath  string
	RedisAddr       string
	RedisPassword   string
	KafkaBrokers    []string
	LogLevel        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		DBDriver:        getEnv("DB_DRIVER", "sqlite"),
		SQLitePath:      getEnv("SQLITE_PATH", "testecom.db"),
		PGHost:          getEnv("PG_HOST", "localhost"),
		PGPort:          getEnvInt("PG_PORT", 5432),
		PGUser:          getEnv("PG_USER", "postgres"),
		PGPassword:      getEnv("PG_PASSWORD", "postgres"),
		PGDBName:        getEnv("PG_DBNAME", "testecom"),
		MigrationsPath:  getEnv("MIGRATIONS_PATH", ""),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		KafkaBrokers:    strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func main() {
	cfg := loadConfig()
	slogger := logger.New(logger.Options{Service: "testecom", Level: cfg.LogLevel})

	// Storage
	var repo *repository.Repository
	var err error
	switch cfg.DBDriver {
	case "postgres":
		repo, err = repository.NewPostgresRepository(&repository.Credentials{
			Host:     cfg.PGHost,
			Port:     cfg.PGPort,
			User:     cfg.PGUser,
			Password: cfg.PGPassword,
			DBName:   cfg.PGDBName,
		})
	case "sqlite":
		repo, err = repository.NewSQLiteRepository(cfg.SQLitePath)
	default:
		log.Fatalf("unknown DB_DRIVER %q", cfg.DBDriver)
	}
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer repo.Close()

	migrationsPath := cfg.MigrationsPath
	if migrationsPath == "" {
		migrationsPath = "migrations/" + cfg.DBDriver
	}
	if err := repo.RunMigrations(migrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slogger.Info("database ready", "driver", cfg.DBDriver)

	// Cache
	ctx := context.Background()
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("Redis connection failed:", err)
	}
	cartCache := cache.NewRedisCache(redisClient)

	// Services
	cartService := service.NewCartService(repo, cartCache, slogger)
	catalogService := service.NewCatalogService(repo)
	categoryService := service.NewCategoryService(repo)
	adminService := service.NewAdminService(repo, slogger)

	// Outbox poller
	pollerCtx, stopPoller := context.WithCancel(ctx)
	defer stopPoller()
	poller := publisher.NewOutboxPoller(repo, slogger, cfg.KafkaBrokers...)
	go poller.Run(pollerCtx)

	// Handlers
	cartHandler := h.NewCartHandler(cartService)
	productHandler := h.NewProductHandler(catalogService)
	categoryHandler := h.NewCategoryHandler(categoryService)
	adminHandler := h.NewAdminHandler(adminService)

	// Router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Post("/items", cartHandler.AddItem)
			r.Delete("/items/{itemID}", cartHandler.RemoveItem)
		})
		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Post("/", productHandler.Create)
			r.Get("/{id}", productHandler.Get)
			r.Put("/{id}", productHandler.Update)
			r.Delete("/{id}", productHandler.Delete)
		})
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", categoryHandler.List)
			r.Post("/", categoryHandler.Create)
			r.Put("/{id}", categoryHandler.Update)
			r.Delete("/{id}", categoryHandler.Delete)
		})
		r.Delete("/admin/reset", adminHandler.Reset)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slogger.Info("server starting", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slogger.Info("shutting down server")
	stopPoller()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	slogger.Info("server exited")
}
