package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/triage/internal/audit"
	"github.com/steveyegge/triage/internal/controller"
	"github.com/steveyegge/triage/internal/correlator"
	"github.com/steveyegge/triage/internal/logsource"
	"github.com/steveyegge/triage/internal/types"
)

var (
	runDryRun     bool
	runMaxTickets int
	runLogsPath   string
	runLogger     string
	runTerms      []string
	runJSON       bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process the current window of error logs",
	Long: `Fetch error logs from the configured source, deduplicate them, and
create or annotate tickets in the tracker. Every decision is appended to the
audit log.`,
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("dry-run") {
			cfg.Run.DryRun = runDryRun
		}
		if cmd.Flags().Changed("max-tickets") {
			cfg.Run.MaxTicketsPerRun = runMaxTickets
		}
		if cmd.Flags().Changed("logs") {
			cfg.Logs.Path = runLogsPath
		}
		if cmd.Flags().Changed("logger") {
			cfg.Logs.Logger = runLogger
		}
		if cmd.Flags().Changed("terms") {
			cfg.Logs.Terms = runTerms
		}

		rs, err := runTriage(cmd.Context())
		if rs != nil {
			if runJSON {
				printRunJSON(os.Stdout, rs)
			} else {
				printRun(os.Stdout, rs)
			}
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Record decisions without creating or commenting on tickets")
	runCmd.Flags().IntVar(&runMaxTickets, "max-tickets", 0, "Maximum tickets to create this run (0 disables creation)")
	runCmd.Flags().StringVar(&runLogsPath, "logs", "", "NDJSON log file to read (- for stdin)")
	runCmd.Flags().StringVar(&runLogger, "logger", "", "Only process logs whose logger contains this string")
	runCmd.Flags().StringSliceVar(&runTerms, "terms", nil, "Only process logs containing all of these terms")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print the run summary as JSON")
	rootCmd.AddCommand(runCmd)
}

func runTriage(ctx context.Context) (*controller.RunState, error) {
	classifier, err := buildClassifier(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier: %w", err)
	}

	store, tracker, err := openTracker(cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = store.CloseDB() }()

	corr, err := correlator.New(tracker, cfg.Correlator)
	if err != nil {
		return nil, fmt.Errorf("failed to create correlator: %w", err)
	}

	sink, err := audit.OpenFile(cfg.Audit.Path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sink.Close() }()

	ctrl, err := controller.New(classifier, corr, tracker, sink, controller.Config{
		MaxTicketsPerRun: cfg.Run.MaxTicketsPerRun,
		CommentCooldown:  cfg.CommentCooldown(),
		WindowHours:      cfg.Run.WindowHours,
		DryRun:           cfg.Run.DryRun,
	})
	if err != nil {
		return nil, err
	}

	filter := logsource.Filter{
		Since:  time.Now().Add(-cfg.Window()),
		Logger: cfg.Logs.Logger,
		Terms:  cfg.Logs.Terms,
	}
	return ctrl.Run(ctx, logsource.NewFile(cfg.Logs.Path), filter)
}

func printRun(w io.Writer, rs *controller.RunState) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	logs := rs.Logs()
	for _, o := range rs.Outcomes() {
		var event types.LogEvent
		if o.Index < len(logs) {
			event = logs[o.Index].Sanitized()
		}
		line := fmt.Sprintf("[%s] %s", event.Logger, firstLine(event.Message, 80))

		switch o.Decision {
		case types.DecisionCreated:
			fmt.Fprintf(w, "%s %s %s\n", green("✓"), green(o.TicketKey), line)
		case types.DecisionSimulated:
			fmt.Fprintf(w, "%s %s %s\n", cyan("○"), cyan("would create"), line)
		case types.DecisionDuplicate:
			fmt.Fprintf(w, "%s %s %s %s\n", yellow("⚠"), yellow(o.TicketKey), line,
				gray(fmt.Sprintf("(%s %.2f, %s)", o.Match.Kind, o.Match.Score, o.Reason)))
		case types.DecisionCapReached:
			fmt.Fprintf(w, "%s %s %s\n", red("✗"), red("cap reached"), line)
		case types.DecisionSkipped:
			fmt.Fprintf(w, "%s %s %s\n", gray("-"), gray("skipped"), gray(line+" ("+o.Reason+")"))
		}
	}

	s := rs.Summary()
	fmt.Fprintln(w)
	if s.DryRun {
		fmt.Fprintf(w, "%s\n", cyan("Dry run: no tickets were created or commented on"))
	}
	fmt.Fprintf(w, "Logs: %d (%d distinct)\n", s.Total, s.Distinct)
	fmt.Fprintf(w, "  %s created, %s duplicate, %s repeated, %s skipped, %s cap reached",
		green(s.Counts[types.DecisionCreated]),
		yellow(s.Counts[types.DecisionDuplicate]),
		gray(s.Counts[types.DecisionSkippedDuplicate]),
		gray(s.Counts[types.DecisionSkipped]),
		red(s.Counts[types.DecisionCapReached]))
	if s.DryRun {
		fmt.Fprintf(w, ", %s simulated", cyan(s.Counts[types.DecisionSimulated]))
	}
	fmt.Fprintln(w)
	if !s.Finished {
		fmt.Fprintf(w, "%s run stopped early at log %d\n", red("✗"), rs.Cursor())
	}
}

type runReport struct {
	controller.Summary
	Outcomes []types.Outcome `json:"outcomes"`
}

func printRunJSON(w io.Writer, rs *controller.RunState) {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(runReport{Summary: rs.Summary(), Outcomes: rs.Outcomes()}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to encode summary: %v\n", err)
	}
}

// firstLine returns the first line of s, shortened to max runes
func firstLine(s string, max int) string {
	for i, r := range s {
		if r == '\n' {
			s = s[:i]
			break
		}
	}
	runes := []rune(s)
	if len(runes) > max {
		return string(runes[:max-3]) + "..."
	}
	return s
}
