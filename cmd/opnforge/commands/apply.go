package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/opnforge/opnforge/pkg/engine"
	"github.com/opnforge/opnforge/pkg/toolsurface"
)

func newApplyCommand() *cobra.Command {
	var (
		dryRun      bool
		maxParallel int
	)

	cmd := &cobra.Command{
		Use:   "apply <manifest>",
		Short: "Plan and apply a manifest in one step",
		Long: `Compute a plan from the manifest against the deployment's current state,
then execute it immediately: waves run sequentially, changes within a
wave run up to --max-parallel concurrently, and a failed wave triggers
reverse-order rollback of everything already applied.`,
		Example: `  opnforge apply ./branch1.cue
  opnforge apply --dry-run ./branch1.cue
  opnforge apply --max-parallel 4 ./branch1.cue`,
		Args: cobra.ExactArgs(1),
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

			planEnv := surface.Plan(ctx, deploymentID, inputs, toolsurface.PlanOptions{DryRun: dryRun})
			if !planEnv.OK {
				if jsonOut {
					return printJSON(planEnv)
				}
				return fmt.Errorf("plan failed: %s: %s", planEnv.Error.Code, planEnv.Error.Message)
			}
			plan, ok := planEnv.Data.(*engine.Plan)
			if !ok {
				return fmt.Errorf("unexpected plan response type %T", planEnv.Data)
			}
			if !jsonOut {
				printPlanSummary(plan)
			}

			applyEnv := surface.Apply(ctx, plan.ID, toolsurface.ApplyOptions{
				DryRun:         dryRun,
				MaxConcurrency: maxParallel,
			})
			if jsonOut {
				return printJSON(applyEnv)
			}
			if !applyEnv.OK {
				return fmt.Errorf("apply failed: %s: %s", applyEnv.Error.Code, applyEnv.Error.Message)
			}

			result, ok := applyEnv.Data.(toolsurface.ExecutionResult)
			if !ok {
				return fmt.Errorf("unexpected apply response type %T", applyEnv.Data)
			}
			if result.Success {
				fmt.Printf("applied %d change(s) to deployment %s\n", len(result.Applied), deploymentID)
			} else {
				fmt.Printf("apply failed on %s: %s (rolledBack=%v)\n",
					result.Failed.ResourceID, result.Error, result.RolledBack)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "exercise the plan without calling the appliance driver")
	cmd.Flags().IntVar(&maxParallel, "max-parallel", 0, "max concurrent changes per wave (0 = MAX_CONCURRENCY, default 1)")

	return cmd
}
