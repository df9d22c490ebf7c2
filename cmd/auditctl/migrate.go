package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rpattn/catalogaudit/internal/db"
)

var flagRollbackSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the embedded schema migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagRollbackSteps > 0 {
			if err := db.RollbackMigrations(cfg.Database, flagRollbackSteps, logger); err != nil {
				return err
			}
			fmt.Printf("rolled back %d migration(s)\n", flagRollbackSteps)
			return nil
		}
		if err := db.RunMigrations(cfg.Database, logger); err != nil {
			return err
		}
		fmt.Println("migrations applied")
		return nil
	},
}

func init() {
	migrateCmd.Flags().IntVar(&flagRollbackSteps, "down", 0, "roll back this many migrations instead")
}
