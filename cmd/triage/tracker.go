package main

import (
	"fmt"

	"github.com/steveyegge/triage/internal/ai"
	"github.com/steveyegge/triage/internal/config"
	"github.com/steveyegge/triage/internal/corpus"
	"github.com/steveyegge/triage/internal/corpus/sqlite"
)

// openTracker opens the SQLite tracker and wraps it in the configured rate
// limit. The caller closes the store.
func openTracker(c config.Config) (*sqlite.Store, corpus.Corpus, error) {
	store, err := sqlite.New(c.Corpus.Path, c.Corpus.Project)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open tracker: %w", err)
	}
	return store, corpus.NewThrottled(store, c.Corpus.RequestsPerSecond), nil
}

// buildClassifier returns the classifier selected by c.Classifier.Kind
func buildClassifier(c config.Config) (ai.Classifier, error) {
	switch c.Classifier.Kind {
	case config.ClassifierRules:
		rules, err := ai.NewRuleClassifier(c.Classifier.Rules)
		if err != nil {
			return nil, err
		}
		return rules, nil
	case config.ClassifierAnthropic:
		supervisor, err := ai.NewSupervisor(c.SupervisorConfig())
		if err != nil {
			return nil, err
		}
		return supervisor, nil
	default:
		return nil, fmt.Errorf("unknown classifier kind %q", c.Classifier.Kind)
	}
}
