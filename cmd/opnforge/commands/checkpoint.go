package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/opnforge/opnforge/pkg/engine"
)

func newCheckpointCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint <deployment-id> <description>",
		Short: "Snapshot a deployment's current resource set",
		Long: `Record an immutable snapshot of the deployment's current resource set,
identified by a generated checkpoint ID. At most the ten most recent
checkpoints are kept per deployment; older ones are dropped.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deploymentID, description := args[0], args[1]

			surface, err := newSurface(ctx, stateDir, log.Logger)
			if err != nil {
				return err
			}

			env := surface.CreateCheckpoint(ctx, deploymentID, description)
			if jsonOut {
				return printJSON(env)
			}
			if !env.OK {
				return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
			}

			cp, ok := env.Data.(engine.Checkpoint)
			if !ok {
				return fmt.Errorf("unexpected checkpoint response type %T", env.Data)
			}
			fmt.Printf("checkpoint %s created at %s\n", cp.ID, cp.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))
			return nil
		},
	}

	return cmd
}
