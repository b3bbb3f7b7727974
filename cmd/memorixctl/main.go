// Command memorixctl is the administrative CLI for the memory core (spec
// §6.E): init, migrate, doctor, and stats. It never starts the MCP
// transport; that adapter is out of scope for this module.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/memorix-dev/memorix-core/internal/config"
)

var (
	configPath string
	dataRoot   string
	jsonOutput bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "memorixctl",
	Short: "memorixctl - administers a memory core data root",
	Long:  `Administrative commands for a memory core data root: initialize one, run the one-shot layout migration, check its health, and report retention stats.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("memorixctl: load config: %w", err)
	}
	if dataRoot != "" {
		cfg.DataRoot = dataRoot
	}
	if cfg.DataRoot == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return config.Config{}, fmt.Errorf("memorixctl: resolve default data root: %w", err)
		}
		cfg.DataRoot = home + "/.memorix/data"
	}
	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML or YAML config file")
	rootCmd.PersistentFlags().StringVar(&dataRoot, "data-root", "", "data root directory (default: ~/.memorix/data)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "accepted but ignored: every command prints plain text")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose/debug output")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
