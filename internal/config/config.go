package config

import (
	"fmt"
	"os"
	"strconv"
)

// Scan threshold and concurrency bounds. The similarity threshold is tunable
// because tighter values reduce false positives at the cost of missed
// near-duplicates; values outside [0.3, 0.8] are rejected rather than clamped
// so a typo in the environment fails loudly.
const (
	DefaultSimilarityThreshold = 0.5
	MinSimilarityThreshold     = 0.3
	MaxSimilarityThreshold     = 0.8

	DefaultMaxConcurrentExtractions = 5
	MinConcurrentExtractions        = 4
	MaxConcurrentExtractions        = 8
)

type Config struct {
	PhotoPrism PhotoPrismConfig
	Embedding  EmbeddingConfig
	Scan       ScanConfig
	Database   DatabaseConfig
	OpenAI     OpenAIConfig
	Gemini     GeminiConfig
}

type PhotoPrismConfig struct {
	URL         string
	Username    string
	Password    string
	DatabaseURL string // MariaDB DSN for direct database access (e.g., photoprism:photoprism@tcp(mariadb:3306)/photoprism)
}

type EmbeddingConfig struct {
	URL string // defaults to http://localhost:8000
	Dim int    // defaults to 768
}

type ScanConfig struct {
	SimilarityThreshold      float64 // max cosine distance for a duplicate pair
	MaxConcurrentExtractions int     // extraction worker pool size
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type OpenAIConfig struct {
	Token string
}

type GeminiConfig struct {
	APIKey string
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

func Load() *Config {
	return &Config{
		PhotoPrism: PhotoPrismConfig{
			URL:         os.Getenv("PHOTOPRISM_URL"),
			Username:    os.Getenv("PHOTOPRISM_USERNAME"),
			Password:    os.Getenv("PHOTOPRISM_PASSWORD"),
			DatabaseURL: os.Getenv("PHOTOPRISM_DATABASE_URL"),
		},
		Embedding: EmbeddingConfig{
			URL: os.Getenv("EMBEDDING_URL"),
			Dim: envInt("EMBEDDING_DIM", 768),
		},
		Scan: ScanConfig{
			SimilarityThreshold:      envFloat("SIMILARITY_THRESHOLD", DefaultSimilarityThreshold),
			MaxConcurrentExtractions: envInt("MAX_CONCURRENT_EXTRACTIONS", DefaultMaxConcurrentExtractions),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		OpenAI: OpenAIConfig{
			Token: os.Getenv("OPENAI_TOKEN"),
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
		},
	}
}

// Validate checks the scan configuration against the supported ranges.
func (c *ScanConfig) Validate() error {
	if c.SimilarityThreshold < MinSimilarityThreshold || c.SimilarityThreshold > MaxSimilarityThreshold {
		return fmt.Errorf("similarity threshold %.2f out of range [%.1f, %.1f]",
			c.SimilarityThreshold, MinSimilarityThreshold, MaxSimilarityThreshold)
	}
	if c.MaxConcurrentExtractions < MinConcurrentExtractions || c.MaxConcurrentExtractions > MaxConcurrentExtractions {
		return fmt.Errorf("max concurrent extractions %d out of range [%d, %d]",
			c.MaxConcurrentExtractions, MinConcurrentExtractions, MaxConcurrentExtractions)
	}
	return nil
}
