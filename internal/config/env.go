package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// applyEnv overrides cfg with TRIAGE_* environment variables
func applyEnv(cfg *Config) error {
	steps := []func() error{
		func() error { return parseEnvInt("TRIAGE_MAX_TICKETS_PER_RUN", &cfg.Run.MaxTicketsPerRun) },
		func() error { return parseEnvInt("TRIAGE_COMMENT_COOLDOWN_MINUTES", &cfg.Run.CommentCooldownMinutes) },
		func() error { return parseEnvInt("TRIAGE_WINDOW_HOURS", &cfg.Run.WindowHours) },
		func() error { return parseEnvBool("TRIAGE_DRY_RUN", &cfg.Run.DryRun) },

		func() error { return parseEnvFloat("TRIAGE_DIRECT_LOG_THRESHOLD", &cfg.Correlator.DirectLogThreshold) },
		func() error { return parseEnvFloat("TRIAGE_PARTIAL_LOG_THRESHOLD", &cfg.Correlator.PartialLogThreshold) },
		func() error { return parseEnvFloat("TRIAGE_SIMILARITY_THRESHOLD", &cfg.Correlator.SimilarityThreshold) },
		func() error { return parseEnvInt("TRIAGE_MAX_KEYWORDS", &cfg.Correlator.MaxKeywords) },
		func() error { return parseEnvList("TRIAGE_OPEN_STATUSES", &cfg.Correlator.OpenStatuses) },

		func() error { return parseEnvString("TRIAGE_CLASSIFIER", &cfg.Classifier.Kind) },
		func() error { return parseEnvString("TRIAGE_MODEL", &cfg.Classifier.Model) },
		func() error { return parseEnvString("ANTHROPIC_API_KEY", &cfg.Classifier.APIKey) },

		func() error { return parseEnvString("TRIAGE_CORPUS_PATH", &cfg.Corpus.Path) },
		func() error { return parseEnvString("TRIAGE_PROJECT", &cfg.Corpus.Project) },
		func() error { return parseEnvFloat("TRIAGE_CORPUS_RATE", &cfg.Corpus.RequestsPerSecond) },

		func() error { return parseEnvString("TRIAGE_LOGS_PATH", &cfg.Logs.Path) },
		func() error { return parseEnvString("TRIAGE_AUDIT_PATH", &cfg.Audit.Path) },
		func() error { return parseEnvString("TRIAGE_LOG_LEVEL", &cfg.Logging.Level) },
		func() error { return parseEnvString("TRIAGE_LOG_FORMAT", &cfg.Logging.Format) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// parseEnvFloat parses a float64 from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString reads a string from an environment variable
func parseEnvString(key string, dest *string) error {
	if value := os.Getenv(key); value != "" {
		*dest = value
	}
	return nil
}

// parseEnvList reads a comma-separated list from an environment variable
func parseEnvList(key string, dest *[]string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fmt.Errorf("invalid value for %s: empty list", key)
	}
	*dest = out
	return nil
}
