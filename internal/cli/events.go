package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pitabwire/barberdesk/events"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Watch session and business notifications",
	}
	cmd.AddCommand(newEventsListenCmd())
	return cmd
}

func newEventsListenCmd() *cobra.Command {
	var (
		subscription string
		count        int
	)

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Print events as they are published until interrupted",
		Long: "listen subscribes to the events topic and prints one line per event. " +
			"Brokers other than mem:// usually need --subscription to name the subscription.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, desk, err := requireDesk(cmd)
			if err != nil {
				return err
			}
			if subscription == "" {
				subscription = desk.Events().URL()
			}

			sub := events.NewSubscriber(subscription)
			if err = sub.Init(ctx); err != nil {
				return fmt.Errorf("subscribing to %s: %w", subscription, err)
			}
			defer func() { _ = sub.Stop(context.WithoutCancel(ctx)) }()

			lctx, cancel := context.WithCancel(ctx)
			defer cancel()

			seen := 0
			return sub.Listen(lctx, func(_ context.Context, e *events.Event) error {
				printEvent(cmd, e)
				seen++
				if count > 0 && seen >= count {
					cancel()
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&subscription, "subscription", "", "subscription URL, defaults to the events topic URL")
	cmd.Flags().IntVar(&count, "count", 0, "stop after this many events, 0 listens until interrupted")
	return cmd
}

func printEvent(cmd *cobra.Command, e *events.Event) {
	line := fmt.Sprintf("%s %s", e.At.Format("15:04:05"), e.Kind)
	if e.Email != "" {
		line += " email=" + e.Email
	}
	if e.BusinessID != 0 {
		line += fmt.Sprintf(" business=%d", e.BusinessID)
	}
	if e.Language != "" {
		line += " language=" + e.Language
	}
	fmt.Fprintln(cmd.OutOrStdout(), line)
}
