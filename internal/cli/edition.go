package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEditionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edition",
		Short: "Toggle inline translation editing",
	}

	set := func(enabled bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			ctx, desk, err := requireDesk(cmd)
			if err != nil {
				return err
			}
			desk.Edition().SetEnabled(ctx, enabled)
			return printEdition(cmd)
		}
	}

	cmd.AddCommand(
		&cobra.Command{Use: "on", Short: "Enable edition mode", RunE: set(true)},
		&cobra.Command{Use: "off", Short: "Disable edition mode", RunE: set(false)},
		&cobra.Command{
			Use:   "status",
			Short: "Show whether edition mode is on and usable",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return printEdition(cmd)
			},
		},
	)
	return cmd
}

func printEdition(cmd *cobra.Command) error {
	ctx, desk, err := requireDesk(cmd)
	if err != nil {
		return err
	}

	state := "off"
	if desk.Edition().Enabled(ctx) {
		state = "on"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "edition mode %s, editing allowed: %t\n", state, desk.Edition().ShowAffordances(ctx))
	return nil
}
