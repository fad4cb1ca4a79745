package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// webhooksCmd represents the webhooks command
var webhooksCmd = &cobra.Command{
	Use:   "webhooks",
	Short: "Register change webhooks",
	Long: `Refreshes the remote schema snapshots and registers a change webhook
for every synchronized table that does not have one yet.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.webhooks.EnsureWebhooks(ctx, a.cfg.Server.PublicURL); err != nil {
			return err
		}
		a.log.Info("webhooks registered",
			zap.String("public_url", a.cfg.Server.PublicURL))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(webhooksCmd)
}
