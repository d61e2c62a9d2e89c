package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newBusinessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "business",
		Short: "List and select the business you work on",
	}
	cmd.AddCommand(newBusinessListCmd(), newBusinessSelectCmd(), newBusinessClearCmd())
	return cmd
}

func newBusinessListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the businesses you can access",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, desk, err := requireUser(cmd)
			if err != nil {
				return err
			}

			selected, hasSelected := desk.Businesses().Selected()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "\tID\tNAME\tLANGUAGE")
			for _, b := range desk.Businesses().Businesses() {
				marker := ""
				if hasSelected && b.ID == selected {
					marker = "*"
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", marker, b.ID, b.Name, b.Language)
			}
			return w.Flush()
		},
	}
}

func newBusinessSelectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select <id>",
		Short: "Make a business the working business",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, desk, err := requireUser(cmd)
			if err != nil {
				return err
			}

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid business id %q: %w", args[0], err)
			}
			if err = desk.Businesses().Select(ctx, id); err != nil {
				return err
			}

			b, _ := desk.Businesses().SelectedBusiness()
			fmt.Fprintf(cmd.OutOrStdout(), "Working on %s (%d)\n", b.Name, b.ID)
			return nil
		},
	}
}

func newBusinessClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Forget the working business",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, desk, err := requireUser(cmd)
			if err != nil {
				return err
			}
			if err = desk.Businesses().Clear(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "No business selected")
			return nil
		},
	}
}
