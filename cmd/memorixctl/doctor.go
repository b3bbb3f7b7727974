package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/memorix-dev/memorix-core/internal/embedding"
	"github.com/memorix-dev/memorix-core/internal/engine"
	"github.com/memorix-dev/memorix-core/internal/retention"
	"github.com/memorix-dev/memorix-core/internal/store"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "report lock health, embedding provider selection, and retention counts",
	Long:  `Reports lock file health, which embedding provider was selected, how long an index rebuild took, and counts of active/stale/archive-candidate observations across every known project.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		start := time.Now()
		e, err := engine.New(cfg, nil)
		if err != nil {
			return err
		}
		defer e.Close()
		rebuildDuration := time.Since(start)

		st, err := store.New(cfg.DataRoot)
		if err != nil {
			return err
		}
		lockAge, lockHeld := lockFileAge(st.LockPath())

		all, err := st.ReadObservations()
		if err != nil {
			return err
		}
		stats := retention.ClassifyAll(all, time.Now())

		provider := embedding.Select()
		providerName := provider.Name()
		if embedding.IsNull(provider) {
			providerName = "null (no embedding provider registered)"
		}

		fmt.Printf("data root:         %s\n", st.BaseDir())
		fmt.Printf("embedding provider: %s\n", providerName)
		fmt.Printf("index rebuild:      %s (%d observations)\n", humanize.RelTime(time.Now().Add(-rebuildDuration), time.Now(), "", ""), len(all))
		if lockHeld {
			fmt.Printf("lock file:          held, age %s\n", humanize.RelTime(time.Now().Add(-lockAge), time.Now(), "ago", "from now"))
		} else {
			fmt.Printf("lock file:          not held\n")
		}
		fmt.Printf("observations:       %s active, %s stale, %s archive-candidate\n",
			humanize.Comma(int64(stats.Active)), humanize.Comma(int64(stats.Stale)), humanize.Comma(int64(stats.ArchiveCandidate)))
		return nil
	},
}

// lockFileAge reports how long the lock file at path has existed, if it
// exists. A missing lock file means nothing currently holds it.
func lockFileAge(path string) (time.Duration, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, false
	}
	return time.Since(info.ModTime()), true
}
