package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/opnforge/opnforge/pkg/engine"
)

func newStateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect and manage deployment state documents",
	}

	cmd.AddCommand(newStateShowCommand())
	cmd.AddCommand(newStateListCommand())
	cmd.AddCommand(newStateDeleteCommand())
	return cmd
}

func newStateShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <deployment-id>",
		Short: "Print a deployment's current resource state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deploymentID := args[0]

			surface, err := newSurface(ctx, stateDir, log.Logger)
			if err != nil {
				return err
			}

			env := surface.GetDeploymentState(ctx, deploymentID)
			if jsonOut {
				return printJSON(env)
			}
			if !env.OK {
				return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
			}

			dep, ok := env.Data.(*engine.Deployment)
			if !ok {
				return fmt.Errorf("unexpected state response type %T", env.Data)
			}
			fmt.Printf("deployment %s, version %d, status %s\n", dep.ID, dep.Version, dep.Status)
			for id, rec := range dep.Resources {
				fmt.Printf("  %-24s %-12s %s\n", id, rec.TypeID, rec.Lifecycle)
			}
			return nil
		},
	}
}

func newStateListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every deployment with a tracked state document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			surface, err := newSurface(ctx, stateDir, log.Logger)
			if err != nil {
				return err
			}

			env := surface.ListDeployments(ctx)
			if jsonOut {
				return printJSON(env)
			}
			if !env.OK {
				return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
			}
			ids, ok := env.Data.([]string)
			if !ok {
				return fmt.Errorf("unexpected list response type %T", env.Data)
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}

func newStateDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <deployment-id>",
		Short: "Remove a deployment's state document and lock sidecar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deploymentID := args[0]

			surface, err := newSurface(ctx, stateDir, log.Logger)
			if err != nil {
				return err
			}

			env := surface.DeleteDeployment(ctx, deploymentID)
			if jsonOut {
				return printJSON(env)
			}
			if !env.OK {
				return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
			}
			fmt.Printf("deleted deployment %s\n", deploymentID)
			return nil
		},
	}
}
