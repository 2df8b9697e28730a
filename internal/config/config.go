package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  string
	RedisAddr   string
	RedisPass   string
	RedisDB     int
	WorkerCount int

	DatabasePath string
	CMSBaseURL   string

	AIBaseURL string
	AIAPIKey  string
	AIModel   string

	ChunkSize    int
	ChunkOverlap int

	ExtractStealth     bool
	ExtractProxy       string
	ExtractBrowserPath string
}

func Load() *Config {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	return &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:     getEnvInt("REDIS_DB", 0),
		WorkerCount: getEnvInt("WORKER_COUNT", 3),

		DatabasePath: getEnv("DATABASE_PATH", "data/rewritepipe.db"),
		CMSBaseURL:   getEnv("CMS_BASE_URL", "http://localhost:8080"),

		AIBaseURL: getEnv("AI_BASE_URL", "https://api.openai.com/v1"),
		AIAPIKey:  getEnv("AI_API_KEY", ""),
		AIModel:   getEnv("AI_MODEL", "gpt-4o-mini"),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 12000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),

		ExtractStealth:     getEnvBool("EXTRACT_STEALTH", true),
		ExtractProxy:       getEnv("EXTRACT_PROXY", ""),
		ExtractBrowserPath: getEnv("EXTRACT_BROWSER_PATH", ""),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
