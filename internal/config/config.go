// Package config provides configuration management for the WaterME server.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values for the server.
type Config struct {
	// Server configuration
	Port string
	Env  string

	// Database configuration
	DatabaseURL string

	// Home Assistant configuration
	HABaseURL string // Supervisor proxy or direct core API base
	HAToken   string

	// Scheduler configuration
	TickInterval    time.Duration // phase evaluation interval
	PollInterval    time.Duration // sensor history polling interval
	HistoryCap      int           // max retained shot events
	SensorRetention time.Duration // rolling window for sensor points

	// Telemetry (MQTT) configuration
	MQTTBrokerURL string // empty disables the bridge
	MQTTClientID  string

	// CORS configuration
	CORSOrigin string
}

// Load loads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		// Server
		Port: getEnv("PORT", "8099"),
		Env:  getEnv("ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "file:./data/waterme.db"),

		// Home Assistant
		HABaseURL: getEnv("HA_BASE_URL", "http://supervisor/core/api"),
		HAToken:   getEnv("SUPERVISOR_TOKEN", ""),

		// Scheduler
		TickInterval:    time.Duration(getEnvInt("TICK_INTERVAL_SEC", 30)) * time.Second,
		PollInterval:    time.Duration(getEnvInt("POLL_INTERVAL_SEC", 300)) * time.Second,
		HistoryCap:      getEnvInt("HISTORY_CAP", 500),
		SensorRetention: time.Duration(getEnvInt("SENSOR_RETENTION_HOURS", 24)) * time.Hour,

		// Telemetry
		MQTTBrokerURL: getEnv("MQTT_BROKER_URL", ""),
		MQTTClientID:  getEnv("MQTT_CLIENT_ID", "waterme-server"),

		// CORS
		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:3000"),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default value.
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
