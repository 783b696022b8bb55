package commands

import (
	"fmt"

	"github.com/benvon/smart-schedule/internal/config"
	"github.com/benvon/smart-schedule/internal/planner"
	"github.com/spf13/cobra"
)

func newPolicyCmd(_ *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect the confirmation policy",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective policy as YAML",
		Long:  "Print PLANNER_POLICY_FILE merged over the built-in defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			policy, err := config.LoadPolicy(cfg.PolicyFile)
			if err != nil {
				return err
			}
			data, err := policy.Merge(planner.DefaultPolicy()).YAML()
			if err != nil {
				return fmt.Errorf("failed to render policy: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	return cmd
}
