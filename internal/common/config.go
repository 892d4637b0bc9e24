package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	LLM    LLMConfig
	Store  StoreConfig
	Server ServerConfig
	Ingest IngestConfig
}

// LLMConfig holds completion-service configuration
type LLMConfig struct {
	APIKey        string
	BaseURL       string
	ClassifyModel string
	ExtractModel  string
	OCRModel      string
	Temperature   float32
	Timeout       time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration
}

// StoreConfig holds persistence paths
type StoreConfig struct {
	RunsDir        string
	PrebuiltSchema string
	CustomSchema   string
	FeedbackDB     string
}

// ServerConfig holds the review API configuration
type ServerConfig struct {
	HTTPAddr string
}

// IngestConfig holds document parsing configuration
type IngestConfig struct {
	Pdftoppm string
	DPI      int
	MaxPages int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			APIKey:        getEnv("OPENAI_API_KEY", ""),
			BaseURL:       getEnv("OPENAI_BASE_URL", ""),
			ClassifyModel: getEnv("EXTRACTLY_CLASSIFY_MODEL", "gpt-4o-mini"),
			ExtractModel:  getEnv("EXTRACTLY_EXTRACT_MODEL", "gpt-4o-mini"),
			OCRModel:      getEnv("EXTRACTLY_OCR_MODEL", "gpt-4o-mini"),
			Temperature:   getEnvAsFloat32("EXTRACTLY_TEMPERATURE", 0.0),
			Timeout:       getEnvAsDuration("EXTRACTLY_TIMEOUT", 40*time.Second),
			MaxRetries:    getEnvAsInt("EXTRACTLY_MAX_RETRIES", 2),
			RetryBackoff:  getEnvAsDuration("EXTRACTLY_RETRY_BACKOFF", 1500*time.Millisecond),
		},
		Store: StoreConfig{
			RunsDir:        getEnv("EXTRACTLY_RUNS_DIR", "./runs"),
			PrebuiltSchema: getEnv("EXTRACTLY_PREBUILT_SCHEMAS", "./schemas/prebuilt.json"),
			CustomSchema:   getEnv("EXTRACTLY_CUSTOM_SCHEMAS", "./schemas/custom.json"),
			FeedbackDB:     getEnv("EXTRACTLY_FEEDBACK_DB", "./data/feedback.db"),
		},
		Server: ServerConfig{
			HTTPAddr: getEnv("EXTRACTLY_HTTP_ADDR", ":8080"),
		},
		Ingest: IngestConfig{
			Pdftoppm: getEnv("EXTRACTLY_PDFTOPPM", "pdftoppm"),
			DPI:      getEnvAsInt("EXTRACTLY_PDF_DPI", 300),
			MaxPages: getEnvAsInt("EXTRACTLY_MAX_PAGES", 0),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Store.RunsDir == "" {
		return NewAppError("CONFIG_ERROR", "EXTRACTLY_RUNS_DIR is required", ErrInvalidInput)
	}
	return nil
}
