package cli

import (
	"fmt"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pitabwire/barberdesk/edition"
)

func newTranslateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "translate",
		Aliases: []string{"tr"},
		Short:   "Read and edit interface translations",
	}
	cmd.AddCommand(
		newTranslateGetCmd(),
		newTranslateSetCmd(),
		newTranslateLoadCmd(),
		newTranslateListCmd(),
		newTranslateLangCmd(),
	)
	return cmd
}

func newTranslateGetCmd() *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "get <source>",
		Short: "Render a source string in the active or given language",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, desk, err := requireDesk(cmd)
			if err != nil {
				return err
			}

			if lang == "" {
				fmt.Fprintln(cmd.OutOrStdout(), desk.T(ctx, args[0]))
				return nil
			}
			if lErr := desk.Translations().Load(ctx, lang); lErr != nil {
				desk.Log(ctx).WithError(lErr).WithField("language", lang).Warn("showing source string")
			}
			fmt.Fprintln(cmd.OutOrStdout(), desk.Translations().Get(args[0], lang))
			return nil
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "language code, defaults to the active language")
	return cmd
}

func newTranslateSetCmd() *cobra.Command {
	var lang string

	cmd := &cobra.Command{
		Use:   "set <source> <translation>",
		Short: "Store a translation override, edition mode and the super administrator role are required",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, desk, err := requireUser(cmd)
			if err != nil {
				return err
			}
			if !desk.Edition().ShowAffordances(ctx) {
				return edition.ErrEditingNotAllowed
			}
			if lang == "" {
				lang = desk.Preferences().Active(ctx)
			}

			if err = desk.Editor().Save(ctx, args[0], lang, args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s [%s] = %s\n", args[0], lang, desk.Translations().Get(args[0], lang))
			return nil
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "language code, defaults to the active language")
	return cmd
}

func newTranslateLoadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <lang>",
		Short: "Fetch the catalog of a language again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, desk, err := requireUser(cmd)
			if err != nil {
				return err
			}
			if err = desk.Translations().Reload(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d entries for %s\n", len(desk.Translations().Entries(args[0])), args[0])
			return nil
		},
	}
}

func newTranslateListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <lang>",
		Short: "Print every entry of a language catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, desk, err := requireDesk(cmd)
			if err != nil {
				return err
			}
			if lErr := desk.Translations().Load(ctx, args[0]); lErr != nil {
				desk.Log(ctx).WithError(lErr).Debug("listing seeded entries only")
			}

			entries := desk.Translations().Entries(args[0])
			sources := make([]string, 0, len(entries))
			for source := range entries {
				sources = append(sources, source)
			}
			slices.Sort(sources)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, source := range sources {
				fmt.Fprintf(w, "%s\t%s\n", source, entries[source])
			}
			return w.Flush()
		},
	}
}

func newTranslateLangCmd() *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "lang [code]",
		Short: "Show or choose the language of the interface",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, desk, err := requireDesk(cmd)
			if err != nil {
				return err
			}

			switch {
			case reset:
				desk.Preferences().SetActive(ctx, "")
			case len(args) == 1:
				desk.Preferences().SetActive(ctx, args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), desk.Preferences().Active(ctx))
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "follow the business language again")
	return cmd
}
