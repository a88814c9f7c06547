// Package main is the entry point for the Vinoteka catalog admin server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vinoteka/internal/domain/audit"
	"vinoteka/internal/domain/auth"
	"vinoteka/internal/domain/catalog"
	"vinoteka/internal/domain/reference"
	"vinoteka/internal/domain/session"
	"vinoteka/internal/infrastructure/cache"
	"vinoteka/internal/infrastructure/catalogapi"
	v1 "vinoteka/internal/infrastructure/http/v1"
	"vinoteka/internal/infrastructure/http/v1/handlers"
	"vinoteka/internal/infrastructure/storage/postgres"
	"vinoteka/internal/metadata"
	"vinoteka/pkg/logger"
)

func main() {
	// Initialize logger
	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	log.Infow("starting vinoteka admin", "version", handlers.Version)

	// --- Catalog API ---
	client, err := catalogapi.New(catalogapi.Config{
		BaseURL: mustEnv("CATALOG_API_URL"),
		Timeout: getEnvDuration("CATALOG_API_TIMEOUT", 15*time.Second),
	}, log)
	if err != nil {
		log.Fatalw("invalid catalog API configuration", "error", err)
	}

	// --- Metadata Registry ---
	schemaDir := getEnv("SCHEMA_DIR", "schemas")
	registry, err := catalog.LoadRegistry(schemaDir)
	if err != nil {
		log.Fatalw("failed to load entity schemas", "dir", schemaDir, "error", err)
	}
	log.Infow("metadata registry initialized", "entities", len(registry.List()))

	// --- Sessions and audit ---
	var (
		sessions session.Store
		journal  audit.Journal
		pool     *postgres.Pool
	)
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		pool, err = postgres.NewPool(ctx, postgres.DefaultPoolConfig(dsn))
		if err != nil {
			log.Fatalw("failed to connect to database", "error", err)
		}
		defer pool.Close()
		if err := pool.Migrate(ctx); err != nil {
			log.Fatalw("failed to migrate database", "error", err)
		}

		txm := postgres.NewTxManager(pool)
		sessions = postgres.NewSessionRepo(txm)
		auditRepo, err := postgres.NewAuditRepo(txm, getEnvInt("AUDIT_COMPRESS_THRESHOLD", 0))
		if err != nil {
			log.Fatalw("failed to create audit journal", "error", err)
		}
		defer auditRepo.Close()
		journal = auditRepo
		log.Info("database connection established")
	} else {
		sessions = session.NewMemoryStore()
		journal = audit.NewLogJournal(log)
		log.Warn("DATABASE_URL not set, sessions are kept in memory")
	}

	// --- View state ---
	resolver := reference.NewResolver(client, getEnvDuration("OPTIONS_TTL", time.Minute), log)
	views := cache.New(cache.Config{
		IdleTTL:    getEnvDuration("VIEW_IDLE_TTL", 30*time.Minute),
		Sessions:   sessions,
		SessionTTL: getEnvDuration("SESSION_TTL", 24*time.Hour),
	}, log)
	views.Start(ctx)
	defer views.Stop()

	// --- Schema hot reload ---
	if getEnv("SCHEMA_WATCH", "false") == "true" {
		watcher, err := metadata.NewWatcher(schemaDir, registry, log, getEnvDuration("SCHEMA_WATCH_QUIET", 0))
		if err != nil {
			log.Warnw("schema watching disabled", "dir", schemaDir, "error", err)
		} else {
			watcher.OnReload = func(defs []metadata.EntityDef, err error) {
				if err != nil {
					return
				}
				for _, def := range defs {
					views.DropEntity(def.Name)
					resolver.InvalidateCollection(def.Collection)
				}
			}
			go func() {
				if err := watcher.Run(ctx); err != nil {
					log.Warnw("schema watcher stopped", "error", err)
				}
			}()
		}
	}

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:   log,
		Registry: registry,
		Client:   client,
		Resolver: resolver,
		Auth:     auth.NewService(client, sessions, log),
		Sessions: sessions,
		Views:    views,
		Journal:  journal,
		Pool:     pool,
		Browse: handlers.BrowseConfig{
			DrinksPageSize: getEnvInt("PAGE_SIZE_DRINKS", handlers.DefaultDrinksPageSize),
			ItemsPageSize:  getEnvInt("PAGE_SIZE_ITEMS", handlers.DefaultItemsPageSize),
		},
		SecureCookies: getEnv("APP_ENV", "development") == "production",
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Infow("server starting", "port", port, "catalog_api", client.BaseURL())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	cancel()

	// Give outstanding requests 30 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
