package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pitabwire/barberdesk/resource"
)

func newResourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "resource",
		Aliases: []string{"res"},
		Short:   "Read and delete records of the working business",
	}
	cmd.AddCommand(newResourceKindsCmd(), newResourceListCmd(), newResourceGetCmd(), newResourceDeleteCmd())
	return cmd
}

func newResourceKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the resource kinds",
		Annotations: map[string]string{
			"offline": "true",
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, k := range resource.Kinds() {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}

func newResourceListCmd() *cobra.Command {
	var filters []string

	cmd := &cobra.Command{
		Use:   "list <kind>",
		Short: "List records of a kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, desk, err := requireUser(cmd)
			if err != nil {
				return err
			}
			kind, err := resource.ParseKind(args[0])
			if err != nil {
				return err
			}

			query := url.Values{}
			for _, f := range filters {
				key, value, ok := strings.Cut(f, "=")
				if !ok {
					return fmt.Errorf("filter %q is not key=value", f)
				}
				query.Add(key, value)
			}

			records, err := desk.Resources().Raw(kind).List(ctx, query)
			if err != nil {
				return err
			}
			return printJSON(cmd, records)
		},
	}
	cmd.Flags().StringArrayVar(&filters, "filter", nil, "query filter as key=value, repeatable")
	return cmd
}

func newResourceGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <kind> <id>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, desk, err := requireUser(cmd)
			if err != nil {
				return err
			}
			kind, err := resource.ParseKind(args[0])
			if err != nil {
				return err
			}

			record, err := desk.Resources().Raw(kind).Get(ctx, args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd, record)
		},
	}
}

func newResourceDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <kind> <id>",
		Short: "Delete one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, desk, err := requireUser(cmd)
			if err != nil {
				return err
			}
			kind, err := resource.ParseKind(args[0])
			if err != nil {
				return err
			}

			if err = desk.Resources().Raw(kind).Delete(ctx, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %s\n", kind, args[1])
			return nil
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
