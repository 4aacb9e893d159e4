package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds every environment variable the server reads.
type Config struct {
	// Redis
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Supabase
	SupabaseURL            string
	SupabaseServiceKey     string
	SupabaseStorageBaseURL string

	// Gemini API (comma-separated keys rotate on 429)
	GeminiAPIKeys []string
	GeminiModel   string

	// Video generation API (submit/poll)
	VideoAPIKey      string
	VideoAPIEndpoint string

	// TTS API
	TTSAPIKey      string
	TTSAPIEndpoint string

	// Server
	Port string

	// Pipeline tuning
	VideoPollIntervalSec int
	VideoPollCeilingSec  int

	// Fields allowed in a multi-target update_shot batch.
	// Default is prompt only; the boundary is a product decision kept
	// configurable rather than hardcoded.
	BulkPatchFields []string
}

var globalConfig *Config

// LoadConfig - load .env (if present) and environment variables
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env file not found, using environment variables")
	}

	useTLS := true
	if tlsStr := os.Getenv("REDIS_USE_TLS"); tlsStr != "" {
		if parsed, err := strconv.ParseBool(tlsStr); err == nil {
			useTLS = parsed
		}
	}

	globalConfig = &Config{
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   useTLS,

		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:     getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBaseURL: getEnv("SUPABASE_STORAGE_BASE_URL", ""),

		GeminiAPIKeys: splitList(getEnv("GEMINI_API_KEY", "")),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),

		VideoAPIKey:      getEnv("VIDEO_API_KEY", ""),
		VideoAPIEndpoint: getEnv("VIDEO_API_ENDPOINT", "https://api.veo3.ai/v1"),

		TTSAPIKey:      getEnv("TTS_API_KEY", ""),
		TTSAPIEndpoint: getEnv("TTS_API_ENDPOINT", ""),

		Port: getEnv("PORT", "8080"),

		VideoPollIntervalSec: getEnvInt("VIDEO_POLL_INTERVAL_SEC", 5),
		VideoPollCeilingSec:  getEnvInt("VIDEO_POLL_CEILING_SEC", 300),

		BulkPatchFields: splitList(getEnv("BULK_PATCH_FIELDS", "prompt")),
	}

	if err := globalConfig.validate(); err != nil {
		return nil, err
	}

	log.Println("✅ Configuration loaded successfully")
	log.Printf("   Redis: %s:%s (TLS: %v)", globalConfig.RedisHost, globalConfig.RedisPort, globalConfig.RedisUseTLS)
	log.Printf("   Supabase: %s", globalConfig.SupabaseURL)
	log.Printf("   Gemini: %s (%d keys)", globalConfig.GeminiModel, len(globalConfig.GeminiAPIKeys))
	log.Printf("   Video API: %s", globalConfig.VideoAPIEndpoint)
	log.Printf("   Video polling: every %ds, ceiling %ds",
		globalConfig.VideoPollIntervalSec, globalConfig.VideoPollCeilingSec)

	return globalConfig, nil
}

// GetConfig - fetch the loaded config
func GetConfig() *Config {
	if globalConfig == nil {
		log.Fatal("❌ Config not loaded. Call LoadConfig() first.")
	}
	return globalConfig
}

func (c *Config) validate() error {
	if c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseServiceKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_KEY is required")
	}
	if len(c.GeminiAPIKeys) == 0 {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// GetRedisAddr - redis connection string
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}
