package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Facubm01/ocaso/internal/cache"
	"github.com/Facubm01/ocaso/internal/catalog"
	"github.com/Facubm01/ocaso/internal/checkout"
	"github.com/Facubm01/ocaso/internal/domain"
	h "github.com/Facubm01/ocaso/internal/http"
	"github.com/Facubm01/ocaso/internal/store"
)

type Config struct {
	HTTPPort        string
	DatabaseURL     string
	RedisAddr       string
	MigrationsDir   string
	LockWait        time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		MigrationsDir:   getEnv("MIGRATIONS_DIR", "migrations"),
		LockWait:        getEnvDuration("LOCK_TIMEOUT_MS", store.DefaultLockWait),
		RequestTimeout:  getEnvDuration("REQUEST_TIMEOUT_MS", 30*time.Second),
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms <= 0 {
		return defaultValue
	}
	return time.Duration(ms) * time.Millisecond
}

func main() {
	cfg := loadConfig()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx := context.Background()

	var (
		productStore   store.ProductCatalog
		inventoryStore store.InventoryStore
	)
	if cfg.DatabaseURL != "" {
		if err := store.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.LockWait)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pg.Close()
		productStore, inventoryStore = pg, pg
		logger.Info("using postgres store")
	} else {
		mem := store.NewMemoryStore(cfg.LockWait)
		seedDemoData(mem)
		productStore, inventoryStore = mem, mem
		logger.Info("DATABASE_URL not set, using in-memory store with demo data")
	}

	var productCache cache.ProductCache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		productCache = cache.NewRedisCache(client)
		logger.Info("catalog cache enabled", zap.String("addr", cfg.RedisAddr))
	}

	catalogSvc := catalog.NewService(productStore, productCache, logger)
	checkoutSvc := checkout.NewService(productStore, inventoryStore, logger,
		checkout.NewMetrics(prometheus.DefaultRegisterer))

	checkoutHandler := h.NewCheckoutHandler(checkoutSvc, cfg.RequestTimeout, logger)
	productHandler := h.NewProductHandler(catalogSvc, cfg.RequestTimeout)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(h.RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Method("GET", "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/checkout", checkoutHandler.Checkout)
		r.Get("/products", productHandler.ListProducts)
		r.Get("/products/{id}", productHandler.GetProduct)
		r.Get("/categories", productHandler.ListCategories)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exited")
}

// seedDemoData loads a small catalog so the server is usable without a
// database.
func seedDemoData(mem *store.MemoryStore) {
	mem.SetCategory(domain.Category{ID: 1, Name: "Remeras"})
	mem.SetCategory(domain.Category{ID: 2, Name: "Pantalones"})
	mem.SetCategory(domain.Category{ID: 3, Name: "Camperas"})

	mem.SetProduct(domain.Product{
		ID:          1,
		Name:        "Remera basica",
		Description: "Algodon peinado, cuello redondo",
		Price:       decimal.RequireFromString("19.99"),
		DiscountPct: 10,
		CategoryID:  1,
	})
	mem.SetProduct(domain.Product{
		ID:          2,
		Name:        "Jean recto",
		Description: "Denim rigido azul",
		Price:       decimal.RequireFromString("49.90"),
		CategoryID:  2,
	})
	mem.SetProduct(domain.Product{
		ID:          3,
		Name:        "Campera de abrigo",
		Description: "Rompevientos con capucha",
		Price:       decimal.RequireFromString("89.00"),
		DiscountPct: 25,
		CategoryID:  3,
	})

	for _, size := range domain.AllSizes {
		mem.SetStock(domain.VariantKey{ProductID: 1, Size: size}, 20)
	}
	mem.SetStock(domain.VariantKey{ProductID: 2, Size: domain.SizeS}, 5)
	mem.SetStock(domain.VariantKey{ProductID: 2, Size: domain.SizeM}, 8)
	mem.SetStock(domain.VariantKey{ProductID: 2, Size: domain.SizeL}, 3)
	mem.SetStock(domain.VariantKey{ProductID: 3, Size: domain.SizeM}, 4)
	mem.SetStock(domain.VariantKey{ProductID: 3, Size: domain.SizeXL}, 2)
}
