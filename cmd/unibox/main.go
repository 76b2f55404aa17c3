package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"unibox/platform/config"
	"unibox/platform/container"
	"unibox/platform/database"
	"unibox/platform/logger"
)

const (
	appName    = "unibox"
	appVersion = "1.0.0"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Load()

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: cfg.LogOutput,
	})
	log.InfoWithFields("Starting unibox", map[string]interface{}{
		"version":     appVersion,
		"environment": cfg.NodeEnv,
		"port":        cfg.Port,
	})

	db, err := database.New(database.Config{URL: cfg.DatabaseURL}, log)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if cfg.AutoMigrate {
		log.Info("Running database migrations...")
		if err := database.NewMigrator(db, log).RunMigrations(); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	diContainer, err := container.New(ctx, &container.Config{
		AppConfig: cfg,
		Logger:    log,
		Database:  db,
	})
	if err != nil {
		log.Fatalf("Failed to initialize DI container: %v", err)
	}

	if err := diContainer.Start(ctx); err != nil {
		log.Fatalf("Failed to start container components: %v", err)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      diContainer.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.InfoWithFields("HTTP server listening", map[string]interface{}{
			"addr": server.Addr,
		})
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP server shutdown error: %v", err)
	}

	diContainer.Stop()
	log.Info("Shutdown complete")
}
