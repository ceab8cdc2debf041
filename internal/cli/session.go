package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-console/internal/api"
	"github.com/odyssey-erp/odyssey-console/internal/app"
	"github.com/odyssey-erp/odyssey-console/internal/bootstrap"
	"github.com/odyssey-erp/odyssey-console/internal/session"
)

func newLoginCommand(e *env) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the access token",
		Long: `Sign in with email and password. Without --password the password is
read from the first line of standard input.

Examples:
  erpctl login --email ops@example.com --password secret
  echo secret | erpctl login --email ops@example.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return errors.New("--password is required")
				}
				password = strings.TrimRight(line, "\r\n")
			}
			svc, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			user, err := svc.Client.SignIn(cmd.Context(), api.Credentials{Email: strings.TrimSpace(email), Password: password})
			if err != nil {
				var fields api.FieldErrors
				if errors.As(err, &fields) {
					return fmt.Errorf("invalid input: %w", fields)
				}
				return fmt.Errorf("login failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s).\n", displayName(user), user.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			token, err := svc.Session.Hydrate(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.Client.SignOut(cmd.Context()); err != nil {
				return fmt.Errorf("logout: %w", err)
			}
			if token == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newWhoamiCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Validate the stored session and show its user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			user, err := restore(cmd, svc)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "id\t%d\n", user.ID)
			fmt.Fprintf(tw, "name\t%s\n", user.Name)
			fmt.Fprintf(tw, "email\t%s\n", user.Email)
			fmt.Fprintf(tw, "role\t%s\n", user.Role)
			fmt.Fprintf(tw, "token\t%s\n", describeToken(svc.Session.AuthToken(), e.opts.Now()))
			return tw.Flush()
		},
	}
}

// restore runs the bootstrap sequence and returns the validated user.
func restore(cmd *cobra.Command, svc *app.Services) (session.User, error) {
	if svc.Bootstrap.Run(cmd.Context()) != bootstrap.Present {
		if err := svc.Bootstrap.Err(); err != nil && !errors.Is(err, api.ErrUnauthorized) {
			return session.User{}, fmt.Errorf("restore session: %w", err)
		}
		return session.User{}, ErrNotSignedIn
	}
	user, ok := svc.Session.CurrentUser()
	if !ok {
		return session.User{}, ErrNotSignedIn
	}
	return user, nil
}

func describeToken(token string, now time.Time) string {
	claims, err := session.ParseTokenClaims(token)
	if err != nil {
		return "opaque"
	}
	switch {
	case claims.ExpiresAt.IsZero():
		return "no expiry"
	case claims.Expired(now):
		return "expired " + claims.ExpiresAt.UTC().Format(time.RFC3339)
	}
	left := claims.ExpiresAt.Sub(now).Truncate(time.Second)
	return fmt.Sprintf("expires %s (in %s)", claims.ExpiresAt.UTC().Format(time.RFC3339), left)
}

func displayName(u session.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
