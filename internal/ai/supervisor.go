package ai

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"golang.org/x/sync/semaphore"
)

// Model defaults. TRIAGE_MODEL overrides the default at construction time.
const (
	// ModelSonnet is the high-end model, used when the classification needs judgement
	ModelSonnet = "claude-sonnet-4-5-20250929"

	// ModelHaiku is the cost-efficient model and the default for classification
	ModelHaiku = "claude-3-5-haiku-20241022"

	defaultMaxTokens = 1024
)

// GetDefaultModel returns the default model, checking TRIAGE_MODEL env var first
func GetDefaultModel() string {
	if model := os.Getenv("TRIAGE_MODEL"); model != "" {
		return model
	}
	return ModelHaiku
}

// completeFunc sends one prompt and returns the concatenated text blocks.
type completeFunc func(ctx context.Context, model string, maxTokens int, prompt string) (string, error)

// Supervisor classifies incidents with the Anthropic API.
//
// The Supervisor's responsibilities are spread over several files:
//   - supervisor.go: struct, constructor and the raw API call
//   - retry.go: backoff and retry loop
//   - breaker.go: circuit breaker
//   - classify.go: the classification prompt and response handling
//   - json_parser.go: tolerant JSON extraction from model output
type Supervisor struct {
	client         *anthropic.Client
	model          string
	maxTokens      int
	retry          RetryConfig
	breaker        *Breaker
	concurrencySem *semaphore.Weighted
	logger         *slog.Logger

	complete completeFunc
}

// Config holds supervisor configuration
type Config struct {
	APIKey    string      // Anthropic API key (if empty, reads from ANTHROPIC_API_KEY env var)
	Model     string      // Model to use (default: GetDefaultModel())
	MaxTokens int         // Response budget per call (default: 1024)
	Retry     RetryConfig // Retry configuration (uses defaults if not specified)
	Logger    *slog.Logger
}

// NewSupervisor creates a new AI supervisor
func NewSupervisor(cfg *Config) (*Supervisor, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
		}
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	s := newSupervisor(cfg)
	s.client = &client
	s.complete = s.callMessages
	return s, nil
}

// newSupervisor wires everything except the API client.
func newSupervisor(cfg *Config) *Supervisor {
	model := cfg.Model
	if model == "" {
		model = GetDefaultModel()
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	// Use default retry config if not specified
	retry := cfg.Retry
	if retry.MaxRetries == 0 && retry.Timeout == 0 {
		retry = DefaultRetryConfig()
	}
	if retry.Timeout <= 0 {
		retry.Timeout = DefaultRetryConfig().Timeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "supervisor")

	var breaker *Breaker
	if retry.Breaker.Enabled() {
		breaker = NewBreaker(retry.Breaker, logger)
		logger.Debug("circuit breaker initialized",
			"trip", retry.Breaker.Trip, "recover", retry.Breaker.Recover, "cooldown", retry.Breaker.Cooldown)
	}

	var concurrencySem *semaphore.Weighted
	if retry.MaxConcurrentCalls > 0 {
		concurrencySem = semaphore.NewWeighted(int64(retry.MaxConcurrentCalls))
	}

	return &Supervisor{
		model:          model,
		maxTokens:      maxTokens,
		retry:          retry,
		breaker:        breaker,
		concurrencySem: concurrencySem,
		logger:         logger,
	}
}

// Model returns the model used for classification
func (s *Supervisor) Model() string {
	return s.model
}

// BreakerState exposes the breaker state for status output. Closed when disabled.
func (s *Supervisor) BreakerState() BreakerState {
	if s.breaker == nil {
		return BreakerClosed
	}
	return s.breaker.State()
}

// CallAI makes a single AI call with retry logic and returns the response text.
// An empty model or zero maxTokens falls back to the supervisor's defaults.
func (s *Supervisor) CallAI(ctx context.Context, prompt string, operation string, model string, maxTokens int) (string, error) {
	if model == "" {
		model = s.model
	}
	if maxTokens == 0 {
		maxTokens = s.maxTokens
	}

	start := time.Now()
	var responseText string
	err := s.withRetry(ctx, operation, func(attemptCtx context.Context) error {
		text, callErr := s.complete(attemptCtx, model, maxTokens, prompt)
		if callErr != nil {
			return callErr
		}
		responseText = text
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call failed: %w", err)
	}

	s.logger.Debug("AI call complete", "operation", operation, "model", model, "duration", time.Since(start))
	return responseText, nil
}

func (s *Supervisor) callMessages(ctx context.Context, model string, maxTokens int, prompt string) (string, error) {
	response, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}

	var text string
	for _, block := range response.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	s.logger.Debug("AI usage",
		"input_tokens", response.Usage.InputTokens,
		"output_tokens", response.Usage.OutputTokens)
	return text, nil
}
