package config

import (
	"os"
	"strings"
)

// Config holds environment-driven configuration.
type Config struct {
	Addr         string
	DatabaseURL  string
	RedisAddr    string
	KafkaBrokers []string
	JWTSecret    string
	LogFile      string
}

// Load reads configuration from environment variables.
func Load() Config {
	addr := os.Getenv("BARFFOODS_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	logFile := os.Getenv("BARFFOODS_LOG_FILE")
	if logFile == "" {
		logFile = "./logs/app.log"
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return Config{
		Addr:         addr,
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: brokers,
		JWTSecret:    os.Getenv("JWT_SECRET"),
		LogFile:      logFile,
	}
}
