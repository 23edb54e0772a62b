package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/triage/internal/ai"
	"github.com/steveyegge/triage/internal/config"
	"github.com/steveyegge/triage/internal/controller"
	"github.com/steveyegge/triage/internal/corpus"
	"github.com/steveyegge/triage/internal/correlator"
	"github.com/steveyegge/triage/internal/types"
)

func TestBuildClassifier(t *testing.T) {
	c := config.Default()
	cls, err := buildClassifier(c)
	require.NoError(t, err)
	assert.IsType(t, &ai.RuleClassifier{}, cls)

	c.Classifier.Kind = "oracle"
	_, err = buildClassifier(c)
	assert.Error(t, err)
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "head", firstLine("head\ntail", 80))
	assert.Equal(t, "abcd...", firstLine("abcdefghij", 7))
	assert.Equal(t, "short", firstLine("short", 80))
}

func TestGroupByFingerprint(t *testing.T) {
	events := []types.LogEvent{
		{Logger: "a", Message: "once"},
		{Logger: "b", Message: "retry 1 failed"},
		{Logger: "b", Message: "retry 2 failed"},
	}
	groups := groupByFingerprint(events)
	require.Len(t, groups, 2)
	assert.Equal(t, 2, groups[0].count)
	assert.Equal(t, "retry 1 failed", groups[0].example.Message)
	assert.Equal(t, 1, groups[1].count)
}

func TestPrintRun(t *testing.T) {
	color.NoColor = true

	rules, err := ai.NewRuleClassifier(ai.DefaultRuleConfig())
	require.NoError(t, err)
	tracker := corpus.NewMemory("OPS")
	corr, err := correlator.New(tracker, correlator.DefaultConfig())
	require.NoError(t, err)
	ctrl, err := controller.New(rules, corr, tracker, nil, controller.Config{
		MaxTicketsPerRun: 1, WindowHours: 24,
	})
	require.NoError(t, err)

	rs, err := ctrl.RunLogs(context.Background(), []types.LogEvent{
		{Logger: "billing", Message: "charge failed: card declined"},
		{Logger: "billing", Message: "charge failed: card declined"},
		{Logger: "web", Message: "request served"},
	})
	require.NoError(t, err)

	var out bytes.Buffer
	printRun(&out, rs)
	text := out.String()
	assert.Contains(t, text, "✓ OPS-1 [billing] charge failed: card declined")
	assert.Contains(t, text, "skipped [web] request served")
	assert.Contains(t, text, "Logs: 3 (2 distinct)")
	assert.Contains(t, text, "1 created")
}
