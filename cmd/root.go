package cmd

import (
	"fmt"
	"os"

	"leadsync/core/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "leadsync",
	Short: "Lead Sync Service",
	Long: `Lead Sync keeps the local lead database, the remote table service, and
the job board reconciled: it pulls and pushes records, enriches postings,
ingests change webhooks, and discovers new postings from feeds.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		// Default to console format so CLI errors stay readable, and the
		// debug level configuration for ISO8601 timestamps
		cfg := &logger.Config{
			Level:  "debug",
			Format: "console",
		}

		l, logErr := logger.New(cfg)
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			// Absolute fallback if logger creation fails (rare)
			fmt.Println(err)
		}
		os.Exit(1)
	}
}
