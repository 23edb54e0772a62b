package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/steveyegge/triage/internal/consolidate"
	"github.com/steveyegge/triage/internal/types"
)

var (
	consolidateTerms  []string
	consolidateDryRun bool
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate [KEY...]",
	Short: "Merge tickets describing one incident into the oldest of them",
	Long: `Pick the ticket with the lowest key number as primary, close the others
as its duplicates, and link them to it. Tickets are given as keys or selected
with --terms from the open tickets matching every term.`,
	Example: `  triage consolidate OPS-12 OPS-7 OPS-30
  triage consolidate --terms timeout,billing --dry-run`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		if len(args) == 0 && len(consolidateTerms) == 0 {
			fmt.Fprintf(os.Stderr, "Error: give ticket keys or --terms\n")
			os.Exit(1)
		}

		store, tracker, err := openTracker(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = store.CloseDB() }()

		var tickets []types.ExternalTicket
		if len(consolidateTerms) > 0 {
			tickets, err = tracker.SearchByKeywords(ctx, consolidateTerms, cfg.Correlator.OpenStatuses)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: keyword search failed: %v\n", err)
				os.Exit(1)
			}
		}
		for _, key := range args {
			t, err := tracker.Get(ctx, strings.TrimSpace(key))
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			tickets = append(tickets, *t)
		}

		yellow := color.New(color.FgYellow).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()

		partition, err := consolidate.Consolidate(tickets)
		if errors.Is(err, consolidate.ErrNotEnoughTickets) {
			fmt.Printf("%s Nothing to consolidate: %v\n", yellow("⚠"), err)
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Primary:    %s %s\n", green(partition.Primary.Key), partition.Primary.Summary)
		for _, d := range partition.Duplicates {
			fmt.Printf("Duplicate:  %s %s\n", yellow(d.Key), d.Summary)
		}
		if consolidateDryRun {
			fmt.Printf("\nDry run: no tickets were changed\n")
			return
		}

		if err := consolidate.Apply(ctx, tracker, partition); err != nil {
			fmt.Fprintf(os.Stderr, "%s Consolidation incomplete: %v\n", red("✗"), err)
			os.Exit(1)
		}
		fmt.Printf("\n%s Closed %d duplicate(s) of %s\n", green("✓"), len(partition.Duplicates), partition.Primary.Key)
	},
}

func init() {
	consolidateCmd.Flags().StringSliceVar(&consolidateTerms, "terms", nil, "Select open tickets containing all of these terms")
	consolidateCmd.Flags().BoolVar(&consolidateDryRun, "dry-run", false, "Show the partition without changing tickets")
	rootCmd.AddCommand(consolidateCmd)
}
