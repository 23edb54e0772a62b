package correlator

import (
	"fmt"
	"strings"
)

// Config holds the thresholds and limits of the correlation strategies
type Config struct {
	// DirectLogThreshold is the minimum similarity score accepted as a
	// direct-similarity match.
	// Default: 0.90
	DirectLogThreshold float64 `yaml:"direct_log_threshold"`

	// PartialLogThreshold is the lower tier for truncated or differently
	// interpolated messages. It only applies together with SimilarityThreshold.
	// Default: 0.70
	PartialLogThreshold float64 `yaml:"partial_log_threshold"`

	// SimilarityThreshold is the caller-supplied floor for the partial tier.
	// The stricter of PartialLogThreshold and SimilarityThreshold wins.
	// Default: 0.75
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// MaxKeywords bounds the ANDed terms of the keyword fallback query
	// Default: 5
	MaxKeywords int `yaml:"max_keywords"`

	// MinKeywords is the fewest significant terms worth a keyword query.
	// A single generic term matches too much of the corpus.
	// Default: 2
	MinKeywords int `yaml:"min_keywords"`

	// OpenStatuses restricts the keyword fallback to tickets still being worked on
	// Default: open, in_progress
	OpenStatuses []string `yaml:"open_statuses"`
}

// DefaultConfig returns the default correlator configuration
func DefaultConfig() Config {
	return Config{
		DirectLogThreshold:  0.90,
		PartialLogThreshold: 0.70,
		SimilarityThreshold: 0.75,
		MaxKeywords:         5,
		MinKeywords:         2,
		OpenStatuses:        []string{"open", "in_progress"},
	}
}

// EffectivePartialThreshold is the partial tier's acceptance score.
func (c Config) EffectivePartialThreshold() float64 {
	return max(c.PartialLogThreshold, c.SimilarityThreshold)
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	for name, v := range map[string]float64{
		"direct_log_threshold":  c.DirectLogThreshold,
		"partial_log_threshold": c.PartialLogThreshold,
		"similarity_threshold":  c.SimilarityThreshold,
	} {
		if v < 0.0 || v > 1.0 {
			return fmt.Errorf("%s must be between 0.0 and 1.0 (got %.2f)", name, v)
		}
	}
	if c.DirectLogThreshold < c.PartialLogThreshold {
		return fmt.Errorf("direct_log_threshold (%.2f) must be >= partial_log_threshold (%.2f)",
			c.DirectLogThreshold, c.PartialLogThreshold)
	}
	if c.MaxKeywords <= 0 {
		return fmt.Errorf("max_keywords must be positive (got %d)", c.MaxKeywords)
	}
	if c.MaxKeywords > 20 {
		return fmt.Errorf("max_keywords too large (got %d, max 20)", c.MaxKeywords)
	}
	if c.MinKeywords < 1 || c.MinKeywords > c.MaxKeywords {
		return fmt.Errorf("min_keywords must be between 1 and max_keywords (got %d)", c.MinKeywords)
	}
	if len(c.OpenStatuses) == 0 {
		return fmt.Errorf("open_statuses cannot be empty")
	}
	for _, s := range c.OpenStatuses {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("open_statuses contains an empty status")
		}
	}
	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{Direct: %.2f, Partial: %.2f, Similarity: %.2f, MaxKeywords: %d, MinKeywords: %d, OpenStatuses: %v}",
		c.DirectLogThreshold, c.PartialLogThreshold, c.SimilarityThreshold,
		c.MaxKeywords, c.MinKeywords, c.OpenStatuses,
	)
}
