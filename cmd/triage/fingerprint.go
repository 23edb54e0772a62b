package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/triage/internal/fingerprint"
	"github.com/steveyegge/triage/internal/logsource"
	"github.com/steveyegge/triage/internal/normalize"
	"github.com/steveyegge/triage/internal/types"
)

var (
	fpLogger string
	fpLogs   string
	fpTop    int
)

var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint [MESSAGE]",
	Short: "Show how messages normalize and group",
	Long: `With a message argument, print its normalized form, fingerprint and
ticket label. With --logs, group the events of an NDJSON file by fingerprint
and list the most frequent groups.`,
	Example: `  triage fingerprint --logger billing "Timeout after 3000 ms for order 81723"
  triage fingerprint --logs errors.ndjson --top 20`,
	Run: func(cmd *cobra.Command, args []string) {
		cyan := color.New(color.FgCyan).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		if fpLogs != "" {
			events, err := logsource.NewFile(fpLogs).Fetch(cmd.Context(), logsource.Filter{Logger: fpLogger})
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			groups := groupByFingerprint(events)
			fmt.Printf("%d events, %d distinct fingerprints\n\n", len(events), len(groups))
			for i, g := range groups {
				if fpTop > 0 && i >= fpTop {
					break
				}
				fmt.Printf("%5d  %s  %s\n", g.count, cyan(fingerprint.Short(g.fp)), g.fp)
				fmt.Printf("       %s\n", gray(firstLine(g.example.Message, 100)))
			}
			return
		}

		if len(args) == 0 {
			fmt.Fprintf(os.Stderr, "Error: give a message or --logs\n")
			os.Exit(1)
		}
		event := types.LogEvent{Logger: fpLogger, Message: strings.Join(args, " ")}
		fp := fingerprint.Of(event)
		fmt.Printf("Normalized:  %s\n", normalize.Normalize(event.Sanitized().Message))
		fmt.Printf("Fingerprint: %s\n", fp)
		fmt.Printf("Short:       %s\n", cyan(fingerprint.Short(fp)))
		fmt.Printf("Label:       %s\n", fingerprint.Label(fp))
	},
}

func init() {
	fingerprintCmd.Flags().StringVar(&fpLogger, "logger", "", "Logger name of the message (or logger filter with --logs)")
	fingerprintCmd.Flags().StringVar(&fpLogs, "logs", "", "NDJSON log file to group (- for stdin)")
	fingerprintCmd.Flags().IntVar(&fpTop, "top", 10, "Number of groups to show with --logs (0 for all)")
	rootCmd.AddCommand(fingerprintCmd)
}

type fingerprintGroup struct {
	fp      types.Fingerprint
	count   int
	example types.LogEvent
}

// groupByFingerprint returns one group per fingerprint, most frequent first
func groupByFingerprint(events []types.LogEvent) []fingerprintGroup {
	counts := fingerprint.BuildCounts(events)
	seen := make(fingerprint.Set, len(counts))
	groups := make([]fingerprintGroup, 0, len(counts))
	for _, e := range events {
		fp := fingerprint.Of(e)
		if !fingerprint.MarkSeen(fp, seen) {
			continue
		}
		groups = append(groups, fingerprintGroup{fp: fp, count: counts[fp], example: e.Sanitized()})
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].count > groups[j].count })
	return groups
}
