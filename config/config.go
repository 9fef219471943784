/*
Package config loads runtime settings from a .env file and the process
environment. Flags in cmd/server override the values loaded here.

VARIABLES:
  REGISTRO_PORT     HTTP port (default 8080)
  REGISTRO_DB       SQLite database path (default registro.db)
  REGISTRO_PIN      Shared-secret PIN; empty disables auth (dev only)
  REGISTRO_ORIGINS  Comma-separated CORS origins
  LOG_LEVEL         logrus level name (default info)
  LOG_FORMAT        "json" for JSONFormatter, anything else for text
*/
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Port           int
	DBPath         string
	PIN            string
	AllowedOrigins []string
	LogLevel       string
	LogFormat      string
}

// Load reads .env when present, then the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, using environment variables")
	}

	port, _ := strconv.Atoi(getEnv("REGISTRO_PORT", "8080"))

	cfg := Config{
		Port:      port,
		DBPath:    getEnv("REGISTRO_DB", "registro.db"),
		PIN:       getEnv("REGISTRO_PIN", ""),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
	if origins := getEnv("REGISTRO_ORIGINS", ""); origins != "" {
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}
	return cfg
}

// NewLogger builds the process-wide logger from the loaded settings.
func NewLogger(cfg Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
