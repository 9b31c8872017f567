package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newRollbackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollback <deployment-id> <checkpoint-id>",
		Short: "Restore a deployment's tracked resource set to a prior checkpoint",
		Long: `Restore the deployment's resource records to exactly what they were when
the checkpoint was taken and bump the deployment's state version. This
only rewrites the tracked state - it does not itself call the appliance
driver; follow with 'apply' against a manifest matching the restored
state to reconcile the appliance.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deploymentID, checkpointID := args[0], args[1]

			surface, err := newSurface(ctx, stateDir, log.Logger)
			if err != nil {
				return err
			}

			env := surface.Rollback(ctx, deploymentID, checkpointID)
			if jsonOut {
				return printJSON(env)
			}
			if !env.OK {
				return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
			}
			fmt.Printf("deployment %s restored to checkpoint %s\n", deploymentID, checkpointID)
			return nil
		},
	}

	return cmd
}
