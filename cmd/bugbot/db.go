package main

import (
	"fmt"

	"github.com/Jack-Gledhill/bugbot/internal/config"
	"github.com/Jack-Gledhill/bugbot/internal/db"
	"github.com/spf13/cobra"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBMigrateCmd())
	return cmd
}

func newDBMigrateCmd() *cobra.Command {
	var (
		configPath string
		create     bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the bug_reports table",
		Long:  "Migrates the report table in the configured database. With --create, the MySQL database is created first if it does not exist.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBMigrate(cmd, configPath, create)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to bugbot config file")
	cmd.Flags().BoolVar(&create, "create", false, "create the MySQL database if missing")
	return cmd
}

func runDBMigrate(cmd *cobra.Command, configPath string, create bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if create {
		if cfg.Database.Driver != "mysql" {
			return fmt.Errorf("--create only applies to the mysql driver, config uses %s", cfg.Database.Driver)
		}
		adminDB, err := db.ConnectAdmin(cfg.Database)
		if err != nil {
			return fmt.Errorf("connect to MySQL at %s:%d: %w", cfg.Database.Host, cfg.Database.Port, err)
		}
		err = db.CreateDatabase(adminDB, cfg.Database.Name)
		db.Close(adminDB)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Database %s ready\n", cfg.Database.Name)
	}

	gormDB, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open %s database: %w", cfg.Database.Driver, err)
	}
	defer db.Close(gormDB)

	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d table(s) in %s database\n", len(db.AllModels()), cfg.Database.Driver)
	return nil
}
