package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/aegisforge/internal/scenario"
)

func init() {
	rootCmd.AddCommand(scenarioCmd)
	scenarioCmd.AddCommand(scenarioListCmd)
}

var scenarioCmd = &cobra.Command{
	Use:   "scenario",
	Short: "Inspect the interview scenario bank",
}

var scenarioListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available scenarios",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		loader, err := scenario.NewLoader()
		if err != nil {
			return err
		}
		for _, s := range loader.List() {
			marker := " "
			if s.ID == scenario.DefaultScenarioID {
				marker = "*"
			}
			fmt.Fprintf(os.Stdout, "%s %-24s %-12s %s\n", marker, s.ID, s.Domain, s.Title)
		}
		return nil
	},
}
