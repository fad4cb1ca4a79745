package cmd

import (
	"context"
	"fmt"

	"leadsync/core/database"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync [table]",
	Short: "Run one reconciliation cycle",
	Long: `Runs a single pull/classify/enrich/write/push cycle for the named
table, or for every table when none is given, then exits.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := buildApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		if len(args) == 0 {
			a.orch.CycleAll(ctx)
			return nil
		}

		table, ok := a.orch.Table(args[0])
		if !ok {
			return fmt.Errorf("unknown table %q", args[0])
		}

		// Sanity check before touching anything.
		exists, err := database.HasTable(a.db, table.LocalTable)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("local table %s does not exist", table.LocalTable)
		}

		report, err := a.orch.Cycle(ctx, table)
		if err != nil {
			return err
		}
		a.sink.Flush(ctx)
		a.log.Info("cycle report",
			zap.String("table", report.Table),
			zap.Int("pulled", report.Pulled),
			zap.Int("created", report.Created),
			zap.Int("updated", report.Updated),
			zap.Int("pushed", report.Pushed),
			zap.Int("conflicts", report.Conflicts))
		return nil
	},
}

func init() {
	RootCmd.AddCommand(syncCmd)
}
