package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/steveyegge/triage/internal/config"
	"github.com/steveyegge/triage/internal/logging"
)

var (
	configPath string
	logLevel   string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Deduplicate error logs and file them as tickets",
	Long: `triage walks a window of error logs, collapses repeats by fingerprint,
asks a classifier which incidents deserve a ticket, and either files a new
ticket or comments on an existing one it correlates with.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		level := loaded.Logging.Level
		if logLevel != "" {
			level = logLevel
		}
		logging.Init(logging.IsJSONFormat(loaded.Logging.Format), logging.ParseLevel(level))
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("TRIAGE_CONFIG"), "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
