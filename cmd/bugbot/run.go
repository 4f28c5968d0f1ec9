package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Jack-Gledhill/bugbot/internal/bot"
	"github.com/Jack-Gledhill/bugbot/internal/config"
	"github.com/Jack-Gledhill/bugbot/internal/dashboard"
	"github.com/Jack-Gledhill/bugbot/internal/db"
	"github.com/Jack-Gledhill/bugbot/internal/notify"
	"github.com/Jack-Gledhill/bugbot/internal/report"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func newRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to Discord and serve the report queue",
		Long:  "Migrates the database, connects the bot to the Discord gateway, and serves the dashboard when enabled. Runs until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to bugbot config file")
	return cmd
}

func runBot(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	coord, err := newCoordinator(cfg, gormDB)
	if err != nil {
		return err
	}
	notifier, err := newNotifier(cfg)
	if err != nil {
		return err
	}
	b, err := bot.New(bot.Opts{
		Config:      cfg,
		Coordinator: coord,
		Notifier:    notifier,
		Out:         out,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.Run(ctx) })
	if cfg.Dashboard.Enabled {
		g.Go(func() error {
			return dashboard.Start(ctx, dashboard.StartOpts{
				DB:   gormDB,
				Port: cfg.Dashboard.Port,
				Out:  out,
			})
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Fprintln(out, "bugbot stopped.")
	return nil
}

func newCoordinator(cfg *config.Config, gormDB *gorm.DB) (*report.Coordinator, error) {
	store, err := report.NewGormStore(gormDB)
	if err != nil {
		return nil, err
	}
	return report.NewCoordinator(report.CoordinatorOpts{
		Store:  store,
		Policy: report.Policy{StancesNeeded: cfg.StancesNeeded, MaxNotes: cfg.MaxNotes},
	})
}

// newNotifier returns the Slack notifier when a webhook is configured.
func newNotifier(cfg *config.Config) (notify.Notifier, error) {
	if cfg.Slack.WebhookURL == "" {
		return notify.Nop{}, nil
	}
	return notify.NewSlack(notify.SlackOpts{
		WebhookURL: cfg.Slack.WebhookURL,
		Channel:    cfg.Slack.Channel,
	})
}
