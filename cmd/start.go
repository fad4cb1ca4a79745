package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadsync/core/logger"
	"leadsync/core/middleware/auth"
	"leadsync/core/middleware/rayid"
	"leadsync/feature/feeds"
	"leadsync/feature/leads"
	"leadsync/feature/webhooks"

	"leadsync/core/loader"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the lead sync server",
	Long:  `Starts the HTTP server, the cycle scheduler, and all enabled features.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		a, err := buildApp(ctx)
		if err != nil {
			log.Fatalf("Failed to start: %v", err)
		}
		defer a.close()
		logg := a.log

		// Register change webhooks up front; a failure here is survivable
		// because the periodic cycles still reconcile everything.
		if err := a.webhooks.EnsureWebhooks(ctx, a.cfg.Server.PublicURL); err != nil {
			logg.Warn("webhook registration failed, relying on cycles only", zap.Error(err))
		}

		app := fiber.New(fiber.Config{
			DisableStartupMessage: true, // We will log our own startup message
		})

		// Feature registration
		mgr := loader.NewManager()
		mgr.Register(leads.NewFeature(logg, a.store, a.orch))
		mgr.Register(webhooks.NewFeature(a.webhooks))
		mgr.Register(feeds.NewFeature(a.feeds, a.cfg.Feeds.Enabled))

		// Middleware Registration
		// 1. RayID (Must be first to trace everything)
		app.Use(rayid.New())

		// 2. Logging Middleware (Custom to use Zap + RayID)
		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		// 3. Auth: webhook pings authenticate by signature, everything
		// else by API key.
		app.Use(auth.New(auth.Config{
			ApiKey:      a.cfg.Server.ApiKey,
			ExemptPaths: []string{"/webhooks/notify"},
		}))

		// 4. Load Features
		if err := mgr.LoadAll(app); err != nil {
			logg.Fatal("Failed to load features", zap.Error(err))
		}

		// 5. Schedulers
		go runCycleScheduler(ctx, a)
		if a.cfg.Feeds.Enabled {
			go runDiscoveryScheduler(ctx, a)
		}

		// 6. Start Server
		go func() {
			logg.Info("Starting server", zap.String("port", a.cfg.Server.Port))
			if err := app.Listen(":" + a.cfg.Server.Port); err != nil {
				logg.Fatal("Server failed to start", zap.Error(err))
			}
		}()

		// 7. Graceful Shutdown
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logg.Info("Shutting down server...")
		cancel()
		_ = app.Shutdown()
	},
}

// runCycleScheduler runs full reconciliation cycles on a fixed interval,
// with a stale-record refresh after each round.
func runCycleScheduler(ctx context.Context, a *app) {
	interval := time.Duration(a.cfg.Sync.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		a.orch.CycleAll(ctx)
		for _, table := range a.orch.Tables() {
			if _, err := a.orch.RefreshStale(ctx, table); err != nil {
				a.log.Error("stale refresh failed",
					zap.String("table", table.Name), zap.Error(err))
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runDiscoveryScheduler runs feed discovery passes on their own interval.
func runDiscoveryScheduler(ctx context.Context, a *app) {
	interval := time.Duration(a.cfg.Feeds.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := a.feeds.Run(ctx); err != nil {
			a.log.Error("feed discovery failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func init() {
	RootCmd.AddCommand(startCmd)
}
