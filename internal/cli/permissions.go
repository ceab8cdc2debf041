package cli

import (
	"errors"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-console/internal/bootstrap"
	"github.com/odyssey-erp/odyssey-console/internal/rbac"
)

// ErrDenied is returned by `can` when the permission is not held, so scripts
// can test the exit status.
var ErrDenied = errors.New("permission denied")

func newRightsCommand(e *env) *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "rights",
		Short: "Show the signed-in user's per-module rights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			if _, err := restore(cmd, svc); err != nil {
				return err
			}
			if refresh {
				err = svc.Resolver.Refetch(cmd.Context())
			} else {
				err = svc.Resolver.Mount(cmd.Context())
			}
			if err != nil {
				return err
			}

			perms := svc.Resolver.Permissions()
			modules := make([]string, 0, len(perms))
			for module := range perms {
				modules = append(modules, module)
			}
			sort.Strings(modules)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "MODULE\tVIEW\tCREATE\tUPDATE\tDELETE")
			for _, module := range modules {
				p := perms[module]
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", module, mark(p.CanView), mark(p.CanCreate), mark(p.CanUpdate), mark(p.CanDelete))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass cached rights")
	return cmd
}

func newCanCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "can <module> [action]",
		Short: "Check one permission",
		Long: `Check whether the signed-in user may perform action (view, create, update
or delete; default view) on module. Without a session the answer follows
PERMISSIONS_UNWIRED. Exits non-zero when denied.

Examples:
  erpctl can clients
  erpctl can products delete`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			module := args[0]
			action := rbac.ActionView
			if len(args) == 2 {
				a, ok := rbac.ParseAction(args[1])
				if !ok {
					return fmt.Errorf("unknown action %q: want view, create, update or delete", args[1])
				}
				action = a
			}

			svc, err := e.open(cmd.Context())
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx := cmd.Context()
			source := "unwired policy " + svc.Gate.Unwired.String()
			if svc.Bootstrap.Run(ctx) == bootstrap.Present {
				if err := svc.Resolver.Mount(ctx); err != nil {
					return err
				}
				ctx = rbac.WithResolver(ctx, svc.Resolver)
				source = "resolved rights"
			}

			allowed := svc.Gate.Can(ctx, module, action)
			verdict := "denied"
			if allowed {
				verdict = "allowed"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s (%s)\n", module, action, verdict, source)
			if !allowed {
				return ErrDenied
			}
			return nil
		},
	}
}

func mark(ok bool) string {
	if ok {
		return "yes"
	}
	return "-"
}
