package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SIMILARITY_THRESHOLD", "")
	t.Setenv("MAX_CONCURRENT_EXTRACTIONS", "")
	t.Setenv("EMBEDDING_DIM", "")

	cfg := Load()

	if cfg.Scan.SimilarityThreshold != DefaultSimilarityThreshold {
		t.Errorf("expected default threshold %.2f, got %.2f", DefaultSimilarityThreshold, cfg.Scan.SimilarityThreshold)
	}
	if cfg.Scan.MaxConcurrentExtractions != DefaultMaxConcurrentExtractions {
		t.Errorf("expected default workers %d, got %d", DefaultMaxConcurrentExtractions, cfg.Scan.MaxConcurrentExtractions)
	}
	if cfg.Embedding.Dim != 768 {
		t.Errorf("expected default embedding dim 768, got %d", cfg.Embedding.Dim)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SIMILARITY_THRESHOLD", "0.35")
	t.Setenv("MAX_CONCURRENT_EXTRACTIONS", "8")
	t.Setenv("EMBEDDING_URL", "http://embedder:9000")

	cfg := Load()

	if cfg.Scan.SimilarityThreshold != 0.35 {
		t.Errorf("expected threshold 0.35, got %.2f", cfg.Scan.SimilarityThreshold)
	}
	if cfg.Scan.MaxConcurrentExtractions != 8 {
		t.Errorf("expected workers 8, got %d", cfg.Scan.MaxConcurrentExtractions)
	}
	if cfg.Embedding.URL != "http://embedder:9000" {
		t.Errorf("expected embedding URL override, got %q", cfg.Embedding.URL)
	}
}

func TestLoad_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_EXTRACTIONS", "not-a-number")
	t.Setenv("SIMILARITY_THRESHOLD", "banana")

	cfg := Load()

	if cfg.Scan.MaxConcurrentExtractions != DefaultMaxConcurrentExtractions {
		t.Errorf("expected fallback to default workers, got %d", cfg.Scan.MaxConcurrentExtractions)
	}
	if cfg.Scan.SimilarityThreshold != DefaultSimilarityThreshold {
		t.Errorf("expected fallback to default threshold, got %.2f", cfg.Scan.SimilarityThreshold)
	}
}

func TestScanConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		workers   int
		wantErr   bool
	}{
		{"defaults", DefaultSimilarityThreshold, DefaultMaxConcurrentExtractions, false},
		{"lower bound", 0.3, 4, false},
		{"upper bound", 0.8, 8, false},
		{"threshold too low", 0.29, 5, true},
		{"threshold too high", 0.81, 5, true},
		{"too few workers", 0.5, 3, true},
		{"too many workers", 0.5, 9, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ScanConfig{SimilarityThreshold: tt.threshold, MaxConcurrentExtractions: tt.workers}
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
