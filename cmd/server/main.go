package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ct-protocol-manual/internal/api"
	"github.com/ct-protocol-manual/internal/config"
	"github.com/ct-protocol-manual/internal/database"
	"github.com/ct-protocol-manual/internal/navigation"
	"github.com/ct-protocol-manual/internal/repository"
	"github.com/ct-protocol-manual/internal/service"
	"github.com/ct-protocol-manual/pkg/logger"
	"github.com/gin-gonic/gin"
)

func main() {
	// Initialize logger
	log := logger.New()
	log.Info().Msg("Starting CT protocol manual server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// The config file may set the log level and format
	development := cfg.Server.Development()
	log = logger.NewWithWriter(os.Stdout, cfg.Log.Level, development || cfg.Log.Format == "pretty")

	if !development {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Run migrations; an empty path uses the embedded set
	if err := db.RunMigrations(os.Getenv("MIGRATIONS_PATH")); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	// Initialize repositories
	repos := repository.New(db)

	if cfg.Server.SeedSampleData {
		if err := service.Seed(context.Background(), repos, log); err != nil {
			log.Fatal().Err(err).Msg("Failed to seed sample data")
		}
	}

	// Initialize services
	services := service.NewServices(repos, cfg, log)
	controller := navigation.NewController(services.Sessions, services.Deleter, cfg.Session.RestoreWindow, log)

	// Initialize router
	router := api.NewRouter(services, controller, cfg, log)
	defer router.Close()

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.ReadTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("port", cfg.Server.Port).Str("db_driver", db.Driver()).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited gracefully")
}
