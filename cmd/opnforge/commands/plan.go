package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/opnforge/opnforge/pkg/engine"
	"github.com/opnforge/opnforge/pkg/toolsurface"
)

func newPlanCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "plan <manifest>",
		Short: "Compute a dependency-ordered plan against current deployment state",
		Long: `Load the deployment's current state, diff it against the manifest's
desired resources, and build a dependency-ordered plan of creates,
updates, and deletes. The plan is printed for review; it is not applied.

Because the staged plan lives only for the life of this process, a
separate 'apply' invocation cannot resume it by ID - use 'apply' directly
to plan and apply in one step.`,
		Example: `  opnforge plan ./branch1.cue`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			deploymentID, inputs, err := loadManifest(ctx, path)
			if err != nil {
				return err
			}

			surface, err := newSurface(ctx, stateDir, log.Logger)
			if err != nil {
				return err
			}

			env := surface.Plan(ctx, deploymentID, inputs, toolsurface.PlanOptions{DryRun: dryRun})
			if jsonOut {
				return printJSON(env)
			}
			if !env.OK {
				return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
			}

			plan, ok := env.Data.(*engine.Plan)
			if !ok {
				return fmt.Errorf("unexpected plan response type %T", env.Data)
			}
			printPlanSummary(plan)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "mark the plan as dry-run (no driver calls when applied)")

	return cmd
}

func printPlanSummary(plan *engine.Plan) {
	fmt.Printf("plan %s for deployment %s (state version %d)\n", plan.ID, plan.DeploymentID, plan.StateVersion)
	fmt.Printf("  create=%d update=%d delete=%d replace=%d noop=%d\n",
		plan.Summary.Create, plan.Summary.Update, plan.Summary.Delete, plan.Summary.Replace, plan.Summary.NoOp)
	for _, wave := range plan.ExecutionWaves {
		fmt.Printf("  wave %d:\n", wave.WaveNumber)
		for _, change := range wave.Changes {
			fmt.Printf("    %-8s %-24s %s\n", change.Kind, change.TypeID, change.ResourceID)
		}
	}
}
