package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/opnforge/opnforge/pkg/registry"
)

func newTypesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "types",
		Short: "Inspect registered resource kinds",
	}

	cmd.AddCommand(newTypesListCommand())
	cmd.AddCommand(newTypesDescribeCommand())
	return cmd
}

func newTypesListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every registered resource type ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			surface, err := newSurface(ctx, stateDir, log.Logger)
			if err != nil {
				return err
			}

			env := surface.ListResourceTypes(ctx)
			if jsonOut {
				return printJSON(env)
			}
			if !env.OK {
				return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
			}
			types, _ := env.Data.([]string)
			for _, t := range types {
				fmt.Println(t)
			}
			return nil
		},
	}
}

func newTypesDescribeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "describe <type-id>",
		Short: "Print a resource type's CUE schema and required permissions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			typeID := args[0]

			surface, err := newSurface(ctx, stateDir, log.Logger)
			if err != nil {
				return err
			}

			env := surface.DescribeResourceType(ctx, typeID)
			if jsonOut {
				return printJSON(env)
			}
			if !env.OK {
				return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
			}
			schema, ok := env.Data.(registry.Schema)
			if !ok {
				return fmt.Errorf("unexpected describe response type %T", env.Data)
			}
			fmt.Printf("type:        %s\n", typeID)
			fmt.Printf("permissions: %v\n", schema.RequiredPermissions)
			fmt.Printf("schema:\n%s\n", schema.Source)
			return nil
		},
	}
}
