package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memorix-dev/memorix-core/internal/engine"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "flatten any legacy per-project subdirectories into the flat data root",
	Long:  `Runs the one-shot migration that merges legacy per-project subdirectory layouts (spec §4.B) into the current flat, alias-partitioned layout. Safe to run repeatedly; a subdirectory already migrated is skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		e, err := engine.New(cfg, nil)
		if err != nil {
			return err
		}
		defer e.Close()

		result, err := e.Migrate()
		if err != nil {
			return err
		}
		if result == nil || len(result.SubdirsMigrated) == 0 {
			fmt.Println("nothing to migrate")
			return nil
		}
		fmt.Printf("migrated %d subdirectories (%s): %d observations, %d entities, %d relations, %d sessions\n",
			len(result.SubdirsMigrated), result.SubdirsMigrated,
			result.ObservationCount, result.EntityCount, result.RelationCount, result.SessionCount)
		return nil
	},
}
