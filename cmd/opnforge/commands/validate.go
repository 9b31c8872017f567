package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <manifest>",
		Short: "Validate a desired-state manifest",
		Long: `Validate a CUE manifest: construct every declared resource against its
kind schema, then evaluate the built-in policy set against the resulting
changes. Reports per-resource validation errors plus any policy
violations without touching the appliance driver.`,
		Example: `  opnforge validate ./branch1.cue`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path := args[0]

			_, inputs, err := loadManifest(ctx, path)
			if err != nil {
				return err
			}

			surface, err := newSurface(ctx, stateDir, log.Logger)
			if err != nil {
				return err
			}

			env := surface.Validate(ctx, inputs)
			if jsonOut {
				return printJSON(env)
			}
			if !env.OK {
				return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
			}
			fmt.Printf("%s: %d resource(s) valid\n", path, len(inputs))
			return nil
		},
	}

	return cmd
}
