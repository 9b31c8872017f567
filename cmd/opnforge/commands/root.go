package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	stateDir string
	jsonOut  bool
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "opnforge",
		Short: "opnforge - declarative network appliance orchestration",
		Long: `opnforge reconciles a declarative desired-state manifest (VLANs,
interfaces, firewall rules/aliases/NAT, DHCP ranges/static mappings, DNS
host overrides, HAProxy backends/servers/frontends) against a remote
network appliance via a dependency-ordered, checkpoint-backed plan.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", envOrDefault("STATE_DIR", "./state"), "directory for deployment state and checkpoints (env: STATE_DIR)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print raw envelope JSON instead of a summary")

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newPlanCommand())
	rootCmd.AddCommand(newApplyCommand())
	rootCmd.AddCommand(newDestroyCommand())
	rootCmd.AddCommand(newStateCommand())
	rootCmd.AddCommand(newCheckpointCommand())
	rootCmd.AddCommand(newRollbackCommand())
	rootCmd.AddCommand(newTypesCommand())

	return rootCmd
}
