// Package main is the entry point for the WaterME irrigation server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/goatboynz/ha-WaterME/internal/api"
	"github.com/goatboynz/ha-WaterME/internal/clock"
	"github.com/goatboynz/ha-WaterME/internal/config"
	"github.com/goatboynz/ha-WaterME/internal/database"
	"github.com/goatboynz/ha-WaterME/internal/database/models"
	"github.com/goatboynz/ha-WaterME/internal/database/repositories"
	"github.com/goatboynz/ha-WaterME/internal/ha"
	"github.com/goatboynz/ha-WaterME/internal/services/pubsub"
	"github.com/goatboynz/ha-WaterME/internal/services/scheduler"
	"github.com/goatboynz/ha-WaterME/internal/services/telemetry"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := config.Load()

	// Print startup banner
	printBanner(cfg)

	// Connect to database
	db, err := database.Connect(database.Config{
		URL:         cfg.DatabaseURL,
		MaxIdleConn: 5,
		MaxOpenConn: 10,
		Debug:       cfg.IsDevelopment(),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() { _ = database.Close() }()

	// Auto-migrate database schema
	log.Println("Running database migrations...")
	if err := db.AutoMigrate(
		&models.Room{},
		&models.Zone{},
		&models.ShotEvent{},
		&models.SensorPoint{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migrations complete")

	// Repositories
	roomRepo := repositories.NewRoomRepository(db)
	historyRepo := repositories.NewHistoryRepository(db, cfg.HistoryCap)
	sensorRepo := repositories.NewSensorRepository(db, cfg.SensorRetention)

	// Home Assistant client
	haClient := ha.NewHTTPClient(ha.Config{
		BaseURL: cfg.HABaseURL,
		Token:   cfg.HAToken,
	})

	// Event bus
	bus := pubsub.New()

	// Scheduler
	sched := scheduler.New(scheduler.Config{
		TickInterval: cfg.TickInterval,
		PollInterval: cfg.PollInterval,
	}, haClient, clock.NewSystem(), roomRepo, historyRepo, sensorRepo, bus)
	sched.Start()

	// Optional MQTT telemetry bridge
	var bridge *telemetry.Bridge
	if cfg.MQTTBrokerURL != "" {
		publisher, err := telemetry.NewPahoPublisher(cfg.MQTTBrokerURL, cfg.MQTTClientID)
		if err != nil {
			log.Printf("Warning: MQTT telemetry disabled: %v", err)
		} else {
			bridge = telemetry.NewBridge(bus, publisher)
			bridge.Start()
			log.Printf("MQTT telemetry connected: %s", cfg.MQTTBrokerURL)
		}
	}

	// Create router
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin, "http://localhost:3000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		Debug:            cfg.IsDevelopment(),
	})
	router.Use(corsMiddleware.Handler)

	// Routes
	router.Get("/health", healthCheckHandler)
	apiServer := api.NewServer(sched, roomRepo, historyRepo, sensorRepo, haClient)
	apiServer.Routes(router)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on http://localhost:%s\n", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Cleanup services in reverse order
	if bridge != nil {
		bridge.Stop()
	}
	sched.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// healthCheckHandler returns the server health status.
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := fmt.Sprintf(`{
  "status": "ok",
  "timestamp": "%s",
  "version": "%s"
}`, time.Now().UTC().Format(time.RFC3339), Version)

	_, _ = w.Write([]byte(response))
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println("============================================")
	fmt.Println("  WaterME Irrigation Server")
	fmt.Printf("  Version: %s\n", Version)
	fmt.Printf("  Build:   %s\n", BuildTime)
	fmt.Printf("  Commit:  %s\n", GitCommit)
	fmt.Println("============================================")
	fmt.Printf("  Environment: %s\n", cfg.Env)
	fmt.Printf("  Port:        %s\n", cfg.Port)
	fmt.Printf("  Database:    %s\n", cfg.DatabaseURL)
	fmt.Printf("  HA API:      %s\n", cfg.HABaseURL)
	fmt.Printf("  Tick:        %s\n", cfg.TickInterval)
	fmt.Println("============================================")
}
