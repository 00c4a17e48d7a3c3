package cmd

import (
	"fmt"

	"github.com/sevenday/challenge/server/config"
	dbadapter "github.com/sevenday/challenge/server/db"
	"github.com/sevenday/challenge/server/model"
	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath(cmd))
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			db, err := dbadapter.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("db: %w", err)
			}
			if sqlDB, err := db.DB(); err == nil {
				defer sqlDB.Close()
			}
			if err := model.AutoMigrate(db); err != nil {
				return fmt.Errorf("db migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", cfg.Database.Mode)
			return nil
		},
	}
}
