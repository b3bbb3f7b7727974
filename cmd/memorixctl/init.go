package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/memorix-dev/memorix-core/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "initialize a data root",
	Long:  `Creates the data root directory if it does not already exist. No durable files are created; each one is written on first use.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		st, err := store.New(cfg.DataRoot)
		if err != nil {
			return err
		}
		fmt.Printf("initialized data root at %s\n", st.BaseDir())
		return nil
	},
}
