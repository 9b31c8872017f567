package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/opnforge/opnforge/pkg/toolsurface"
)

func newDestroyCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "destroy <deployment-id>",
		Short: "Delete every resource tracked in a deployment",
		Long: `Build a delete-only plan covering every resource currently tracked for
the deployment and execute it, in reverse dependency order, against the
appliance driver.`,
		Example: `  opnforge destroy branch-office-1`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deploymentID := args[0]

			surface, err := newSurface(ctx, stateDir, log.Logger)
			if err != nil {
				return err
			}

			env := surface.Destroy(ctx, deploymentID, toolsurface.ApplyOptions{DryRun: dryRun})
			if jsonOut {
				return printJSON(env)
			}
			if !env.OK {
				return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
			}

			result, ok := env.Data.(toolsurface.ExecutionResult)
			if !ok {
				return fmt.Errorf("unexpected destroy response type %T", env.Data)
			}
			if result.Success {
				fmt.Printf("destroyed %d resource(s) in deployment %s\n", len(result.Applied), deploymentID)
			} else {
				fmt.Printf("destroy failed on %s: %s (rolledBack=%v)\n",
					result.Failed.ResourceID, result.Error, result.RolledBack)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "exercise the destroy plan without calling the appliance driver")

	return cmd
}
