package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/triage/internal/audit"
	"github.com/steveyegge/triage/internal/types"
)

var (
	auditRunID    string
	auditDecision string
	auditSince    time.Duration
	auditLimit    int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recorded decisions",
	Long:  `Read the audit log and list decisions, optionally filtered by run, decision, or age.`,
	Example: `  triage audit --since 24h
  triage audit --run 3f0c... --decision duplicate`,
	Run: func(cmd *cobra.Command, args []string) {
		filter := audit.Filter{RunID: auditRunID, Decision: types.Decision(auditDecision)}
		if auditDecision != "" && !filter.Decision.IsValid() {
			fmt.Fprintf(os.Stderr, "Error: unknown decision %q\n", auditDecision)
			os.Exit(1)
		}
		if auditSince > 0 {
			filter.Since = time.Now().Add(-auditSince)
		}

		records, skipped, err := audit.ReadFile(cfg.Audit.Path, filter)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()

		shown := records
		if auditLimit > 0 && len(shown) > auditLimit {
			shown = shown[len(shown)-auditLimit:]
		}
		for _, r := range shown {
			key := r.TicketKey
			if key == "" {
				key = "-"
			}
			fmt.Printf("%s  %-17s %-10s %s %s\n",
				r.Timestamp.Local().Format("2006-01-02 15:04:05"),
				decisionColor(r.Decision)(string(r.Decision)),
				key,
				gray(shortRunID(r.RunID)),
				gray(r.Reason))
		}

		fmt.Printf("\n%d record(s)", len(records))
		if skipped > 0 {
			fmt.Printf(", %s", yellow(fmt.Sprintf("%d malformed line(s) skipped", skipped)))
		}
		fmt.Println()

		tally := audit.Tally(records)
		decisions := make([]string, 0, len(tally))
		for d := range tally {
			decisions = append(decisions, string(d))
		}
		sort.Strings(decisions)
		for _, d := range decisions {
			fmt.Printf("  %-17s %d\n", d, tally[types.Decision(d)])
		}
	},
}

func init() {
	auditCmd.Flags().StringVar(&auditRunID, "run", "", "Only show decisions of this run")
	auditCmd.Flags().StringVar(&auditDecision, "decision", "", "Only show this decision (created, duplicate, skipped, ...)")
	auditCmd.Flags().DurationVar(&auditSince, "since", 0, "Only show decisions newer than this (e.g. 24h)")
	auditCmd.Flags().IntVar(&auditLimit, "limit", 50, "Show at most this many of the newest records (0 for all)")
	rootCmd.AddCommand(auditCmd)
}

func decisionColor(d types.Decision) func(a ...interface{}) string {
	switch d {
	case types.DecisionCreated:
		return color.New(color.FgGreen).SprintFunc()
	case types.DecisionDuplicate:
		return color.New(color.FgYellow).SprintFunc()
	case types.DecisionCapReached:
		return color.New(color.FgRed).SprintFunc()
	case types.DecisionSimulated:
		return color.New(color.FgCyan).SprintFunc()
	default:
		return color.New(color.FgHiBlack).SprintFunc()
	}
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
