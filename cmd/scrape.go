package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run one feed discovery pass",
	Long:  `Fetches every configured keyword feed once, saves unseen postings, and exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		saved, err := a.feeds.Run(ctx)
		if err != nil {
			return err
		}
		a.sink.Flush(ctx)
		a.log.Info("discovery pass finished", zap.Int("saved", saved))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(scrapeCmd)
}
