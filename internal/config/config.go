package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port            string
	DatabaseURL     string
	OpenAIKey       string
	OpenAIModel     string
	MaxOutputTokens int
	GenerateTimeout time.Duration
	DownloadTimeout time.Duration
	DBTimeout       time.Duration
	LogLevel        string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		OpenAIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		MaxOutputTokens: getEnvInt("MAX_OUTPUT_TOKENS", 2048),
		GenerateTimeout: time.Duration(getEnvInt("GENERATION_TIMEOUT_SECONDS", 60)) * time.Second,
		DownloadTimeout: time.Duration(getEnvInt("DOWNLOAD_TIMEOUT_SECONDS", 30)) * time.Second,
		DBTimeout:       time.Duration(getEnvInt("DB_TIMEOUT_SECONDS", 10)) * time.Second,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}

	// Validate required environment variables
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required. Please set it as environment variable:\n  Linux/Mac: export OPENAI_API_KEY=\"your_key\"")
	}

	// DATABASE_URL is optional: without it the service falls back to the
	// in-memory repository (local development and tests).

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
