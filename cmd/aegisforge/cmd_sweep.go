package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/aegisforge/internal/janitor"
)

func init() {
	rootCmd.AddCommand(sweepCmd)
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Prune stale session artifacts now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		pruned, err := janitor.New(cfg.DataDir, cfg.Janitor.MaxAgeDays).Sweep()
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Pruned %d session(s)\n", pruned)
		return nil
	},
}
