package main

import (
	"fmt"
	"os"

	"github.com/Jack-Gledhill/bugbot/internal/config"
	"github.com/Jack-Gledhill/bugbot/internal/db"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const defaultConfigPath = "bugbot.yaml"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bugbot",
		Short: "bugbot: Discord bug report queue",
		Long:  "bugbot collects bug reports in Discord, runs them through a reviewer approval queue, and files approved reports as GitHub issues.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newReportCmd())
	cmd.AddCommand(newDashboardCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bugbot %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

// connectFromConfig loads the config and opens the configured database.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s database: %w", cfg.Database.Driver, err)
	}
	return cfg, gormDB, nil
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
