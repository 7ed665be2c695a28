// Package config loads server configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Web Server
	Bind string

	// Extraction model
	OpenAIModel   string
	OpenAIAPIKey  string
	OpenAIBaseURL string

	// Prompt resources
	ExtractionPromptPath string
	EnrichmentPromptPath string
	ResolutionPromptPath string

	// Pipeline tuning
	ChunkSize      int
	ChunkThreshold int

	// UseLegacyResolver selects the model-driven third pass instead of the
	// deterministic hint-phrase parser.
	UseLegacyResolver bool
}

func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Bind:                 getEnvDefault("BIND", "0.0.0.0:8080"),
		OpenAIModel:          getEnvDefault("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:        os.Getenv("OPENAI_BASE_URL"),
		ExtractionPromptPath: getEnvDefault("EXTRACTION_PROMPT", "resources/input_prompt.yaml"),
		EnrichmentPromptPath: getEnvDefault("ENRICHMENT_PROMPT", "resources/secondary_prompt.yaml"),
		ResolutionPromptPath: getEnvDefault("RESOLUTION_PROMPT", "resources/final_prompt.yaml"),
		ChunkSize:            getEnvInt("CHUNK_SIZE", 0),
		ChunkThreshold:       getEnvInt("CHUNK_THRESHOLD", 0),
		UseLegacyResolver:    os.Getenv("USE_LEGACY_RESOLVER") == "true",
	}

	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	return cfg, nil
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
