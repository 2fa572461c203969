package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/aegisforge/internal/audit"
	"github.com/user/aegisforge/internal/report"
	"github.com/user/aegisforge/internal/types"
)

var reportSave bool

func init() {
	reportCmd.Flags().BoolVar(&reportSave, "save", false, "rewrite the report artifacts on disk")
	rootCmd.AddCommand(reportCmd)
}

var reportCmd = &cobra.Command{
	Use:   "report <session-id>",
	Short: "Re-aggregate and render a finished session's report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		sessionID := types.SessionID(args[0])
		store := report.NewStore(cfg.DataDir)

		evals, err := store.LoadEvaluations(sessionID)
		if err != nil {
			return fmt.Errorf("session %s: %w", sessionID, err)
		}
		events, err := audit.ReadJSONL(cfg.DataDir, sessionID)
		if err != nil {
			return fmt.Errorf("session %s: %w", sessionID, err)
		}

		candidateID := "unknown_candidate"
		for _, event := range events {
			if event.Kind == types.KindSessionStart {
				if id, ok := event.Metadata["candidate_id"].(string); ok && id != "" {
					candidateID = id
				}
			}
		}

		composite := report.Aggregate(sessionID, candidateID, evals, events)
		rendered, err := report.TextRenderer{}.Render(context.Background(), composite)
		if err != nil {
			return fmt.Errorf("render report: %w", err)
		}
		os.Stdout.Write(rendered)

		if reportSave {
			fsir := report.BuildFSIR(composite, evals, events, cfg.Session.Role)
			if err := store.SaveFSIR(fsir, sessionID); err != nil {
				return err
			}
			if err := store.SaveRendered(sessionID, rendered, ".txt"); err != nil {
				return err
			}
			fmt.Fprintf(os.Stderr, "Artifacts rewritten for %s\n", sessionID)
		}
		return nil
	},
}
