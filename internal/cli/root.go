// Package cli implements the barberdesk command line.
package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/lmittmann/tint"
	"github.com/pitabwire/util"
	"github.com/spf13/cobra"

	"github.com/pitabwire/barberdesk"
	"github.com/pitabwire/barberdesk/config"
)

const stateFileName = "state.json"

type rootFlags struct {
	configPath string
	logLevel   string
}

// app owns the desk opened for one invocation.
type app struct {
	flags rootFlags
	desk  *barberdesk.Desk
}

// Execute runs the command tree with args. The desk opened for the command
// is closed afterwards, whether the command failed or not.
func Execute(ctx context.Context, args []string, in io.Reader, out io.Writer, errOut io.Writer) error {
	a := &app{}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.ExecuteContext(ctx)
	if a.desk != nil {
		err = errors.Join(err, a.desk.Close(context.WithoutCancel(ctx)))
	}
	return err
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "barberdesk",
		Short:         "Barbershop dashboard client",
		Long:          "barberdesk signs in to the barbershop backend, picks the working business and manages translations and resources.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations["offline"] == "true" {
				return nil
			}
			return a.openDesk(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.flags.configPath, "config", "", "YAML configuration file, values override the environment")
	root.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newWhoAmICmd(),
		newBusinessCmd(),
		newTranslateCmd(),
		newEditionCmd(),
		newResourceCmd(),
		newEventsCmd(),
		newVersionCmd(),
	)
	return root
}

func loadConfig(flags *rootFlags) (*config.ConfigurationDefault, error) {
	cfg, err := config.FromFile[config.ConfigurationDefault](flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.logLevel != "" {
		cfg.LogLevel = flags.logLevel
	}
	if cfg.StorageDurableURI == "" {
		path, pErr := defaultStatePath()
		if pErr != nil {
			return nil, pErr
		}
		cfg.StorageDurableURI = "file://" + path
	}
	return &cfg, nil
}

// defaultStatePath keeps the durable store in the user config directory.
func defaultStatePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir = filepath.Join(dir, "barberdesk")
	if err = os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, stateFileName), nil
}

func (a *app) openDesk(cmd *cobra.Command) error {
	cfg, err := loadConfig(&a.flags)
	if err != nil {
		return err
	}

	var level slog.Level
	if err = level.UnmarshalText([]byte(cfg.LoggingLevel())); err != nil {
		return err
	}
	handler := tint.NewHandler(cmd.ErrOrStderr(), &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		NoColor:    !cfg.LoggingColored(),
	})

	ctx, desk, err := barberdesk.New(cmd.Context(),
		barberdesk.WithConfig(cfg),
		barberdesk.WithLogger(util.WithLogHandler(handler)),
	)
	if err != nil {
		return err
	}
	a.desk = desk
	desk.Start(ctx)

	cmd.SetContext(desk.Preferences().Context(ctx))
	return nil
}

func deskFrom(cmd *cobra.Command) *barberdesk.Desk {
	if cmd.Context() == nil {
		return nil
	}
	return barberdesk.FromContext(cmd.Context())
}

var errNotSignedIn = errors.New("not signed in, run barberdesk login")

func requireDesk(cmd *cobra.Command) (context.Context, *barberdesk.Desk, error) {
	desk := deskFrom(cmd)
	if desk == nil {
		return nil, nil, errors.New("desk is not running")
	}
	return cmd.Context(), desk, nil
}

func requireUser(cmd *cobra.Command) (context.Context, *barberdesk.Desk, error) {
	ctx, desk, err := requireDesk(cmd)
	if err != nil {
		return nil, nil, err
	}
	if desk.Session().User() == nil {
		return nil, nil, errNotSignedIn
	}
	return ctx, desk, nil
}
