package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/memorix-dev/memorix-core/internal/engine"
)

var statsProject string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "report observation counts by retention class for a project",
	Long:  `Expands the project's alias set and prints how many observations fall into each retention classification (active, stale, archive-candidate).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if statsProject == "" {
			return fmt.Errorf("memorixctl: stats requires --project")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		e, err := engine.New(cfg, nil)
		if err != nil {
			return err
		}
		defer e.Close()

		s, err := e.StatsByID(statsProject)
		if err != nil {
			return err
		}
		total := s.Active + s.Stale + s.ArchiveCandidate
		fmt.Printf("%s observations across %s\n", humanize.Comma(int64(total)), statsProject)
		fmt.Printf("  active:            %s\n", humanize.Comma(int64(s.Active)))
		fmt.Printf("  stale:             %s\n", humanize.Comma(int64(s.Stale)))
		fmt.Printf("  archive-candidate: %s\n", humanize.Comma(int64(s.ArchiveCandidate)))
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVar(&statsProject, "project", "", "project identifier to report stats for (e.g. owner/repo)")
}
