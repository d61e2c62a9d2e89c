package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pitabwire/barberdesk/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Annotations: map[string]string{
			"offline": "true",
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
