// Package config loads run configuration from YAML and TRIAGE_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/steveyegge/triage/internal/ai"
	"github.com/steveyegge/triage/internal/correlator"
)

// Classifier kinds
const (
	ClassifierRules     = "rules"
	ClassifierAnthropic = "anthropic"
)

// Config is the complete run configuration
type Config struct {
	Run        RunConfig         `yaml:"run"`
	Correlator correlator.Config `yaml:"correlator"`
	Classifier ClassifierConfig  `yaml:"classifier"`
	Corpus     CorpusConfig      `yaml:"corpus"`
	Logs       LogsConfig        `yaml:"logs"`
	Audit      AuditConfig       `yaml:"audit"`
	Logging    LoggingConfig     `yaml:"logging"`
}

// RunConfig holds the traversal controller knobs
type RunConfig struct {
	// MaxTicketsPerRun caps ticket creation. 0 disables creation entirely.
	// Default: 5
	MaxTicketsPerRun int `yaml:"max_tickets_per_run"`

	// CommentCooldownMinutes is the minimum gap between comments on the same
	// existing ticket. 0 disables the cooldown.
	// Default: 60
	CommentCooldownMinutes int `yaml:"comment_cooldown_minutes"`

	// WindowHours is the look-back window for fetching logs and for the
	// occurrence label passed to the classifier.
	// Default: 24
	WindowHours int `yaml:"window_hours"`

	// DryRun records "simulated" instead of creating tickets and suppresses comments
	DryRun bool `yaml:"dry_run"`
}

// ClassifierConfig selects and tunes the classifier
type ClassifierConfig struct {
	Kind               string        `yaml:"kind"` // "rules" or "anthropic"
	Model              string        `yaml:"model"`
	APIKey             string        `yaml:"api_key"`
	MaxTokens          int           `yaml:"max_tokens"`
	MaxRetries         int           `yaml:"max_retries"`
	TimeoutSeconds     int           `yaml:"timeout_seconds"`
	MaxConcurrentCalls int           `yaml:"max_concurrent_calls"`
	Rules              ai.RuleConfig `yaml:"rules"`
}

// CorpusConfig locates the ticket tracker
type CorpusConfig struct {
	Path              string  `yaml:"path"`
	Project           string  `yaml:"project"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// LogsConfig locates and filters the error logs
type LogsConfig struct {
	Path   string   `yaml:"path"` // NDJSON file, "-" for stdin
	Logger string   `yaml:"logger"`
	Terms  []string `yaml:"terms"`
}

// AuditConfig locates the audit trail
type AuditConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures slog
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns the default configuration
func Default() Config {
	retry := ai.DefaultRetryConfig()
	return Config{
		Run: RunConfig{
			MaxTicketsPerRun:       5,
			CommentCooldownMinutes: 60,
			WindowHours:            24,
		},
		Correlator: correlator.DefaultConfig(),
		Classifier: ClassifierConfig{
			Kind:               ClassifierRules,
			MaxTokens:          1024,
			MaxRetries:         retry.MaxRetries,
			TimeoutSeconds:     int(retry.Timeout / time.Second),
			MaxConcurrentCalls: retry.MaxConcurrentCalls,
			Rules:              ai.DefaultRuleConfig(),
		},
		Corpus: CorpusConfig{
			Path:    ".triage/tracker.db",
			Project: "OPS",
		},
		Logs: LogsConfig{
			Path: "-",
		},
		Audit: AuditConfig{
			Path: ".triage/audit.jsonl",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path (if
// path is non-empty), then TRIAGE_* environment overrides. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing YAML: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	var errs []error
	if c.Run.MaxTicketsPerRun < 0 {
		errs = append(errs, fmt.Errorf("max_tickets_per_run must be >= 0 (got %d)", c.Run.MaxTicketsPerRun))
	}
	if c.Run.CommentCooldownMinutes < 0 {
		errs = append(errs, fmt.Errorf("comment_cooldown_minutes must be >= 0 (got %d)", c.Run.CommentCooldownMinutes))
	}
	if c.Run.WindowHours <= 0 {
		errs = append(errs, fmt.Errorf("window_hours must be positive (got %d)", c.Run.WindowHours))
	}
	if err := c.Correlator.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("correlator: %w", err))
	}

	switch c.Classifier.Kind {
	case ClassifierRules:
		if err := c.Classifier.Rules.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("classifier rules: %w", err))
		}
	case ClassifierAnthropic:
		if c.Classifier.MaxRetries < 0 {
			errs = append(errs, fmt.Errorf("classifier max_retries must be >= 0 (got %d)", c.Classifier.MaxRetries))
		}
		if c.Classifier.TimeoutSeconds <= 0 {
			errs = append(errs, fmt.Errorf("classifier timeout_seconds must be positive (got %d)", c.Classifier.TimeoutSeconds))
		}
	default:
		errs = append(errs, fmt.Errorf("classifier kind must be %q or %q (got %q)",
			ClassifierRules, ClassifierAnthropic, c.Classifier.Kind))
	}

	if strings.TrimSpace(c.Corpus.Path) == "" {
		errs = append(errs, errors.New("corpus path is required"))
	}
	if c.Corpus.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("corpus requests_per_second must be >= 0 (got %.2f)", c.Corpus.RequestsPerSecond))
	}
	return errors.Join(errs...)
}

// CommentCooldown returns the cooldown as a duration
func (c Config) CommentCooldown() time.Duration {
	return time.Duration(c.Run.CommentCooldownMinutes) * time.Minute
}

// Window returns the look-back window as a duration
func (c Config) Window() time.Duration {
	return time.Duration(c.Run.WindowHours) * time.Hour
}

// SupervisorConfig converts the classifier settings for ai.NewSupervisor
func (c Config) SupervisorConfig() *ai.Config {
	retry := ai.DefaultRetryConfig()
	retry.MaxRetries = c.Classifier.MaxRetries
	retry.Timeout = time.Duration(c.Classifier.TimeoutSeconds) * time.Second
	retry.MaxConcurrentCalls = c.Classifier.MaxConcurrentCalls
	return &ai.Config{
		APIKey:    c.Classifier.APIKey,
		Model:     c.Classifier.Model,
		MaxTokens: c.Classifier.MaxTokens,
		Retry:     retry,
	}
}

// String returns a human-readable summary without secrets
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{Cap: %d, Cooldown: %dm, Window: %dh, DryRun: %v, Classifier: %s, Corpus: %s (%s), %s}",
		c.Run.MaxTicketsPerRun, c.Run.CommentCooldownMinutes, c.Run.WindowHours, c.Run.DryRun,
		c.Classifier.Kind, c.Corpus.Path, c.Corpus.Project, c.Correlator,
	)
}
