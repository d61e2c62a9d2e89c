package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, desk, err := requireDesk(cmd)
			if err != nil {
				return err
			}

			if password == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
				line, rErr := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if rErr != nil && line == "" {
					return fmt.Errorf("read password: %w", rErr)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if strings.TrimSpace(email) == "" || password == "" {
				return errors.New("email and password are required")
			}

			user, err := desk.Session().Login(ctx, email, password)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", user.Email)
			if b, ok := desk.Businesses().SelectedBusiness(); ok {
				fmt.Fprintf(cmd.OutOrStdout(), "Working on %s (%d)\n", b.Name, b.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted if omitted)")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the session and every stored business selection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, desk, err := requireDesk(cmd)
			if err != nil {
				return err
			}
			desk.Session().Logout(ctx)
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoAmICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, desk, err := requireUser(cmd)
			if err != nil {
				return err
			}

			user := desk.Session().User()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (id %d, role %d)\n", user.Email, user.ID, user.RoleID)
			if exp, ok := desk.Session().ExpiresAt(); ok {
				fmt.Fprintf(out, "Token expires %s\n", exp.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}
