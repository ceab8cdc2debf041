// Package cli implements erpctl, the command line over the same client,
// session store and permission resolver the console uses.
package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-console/internal/app"
)

// ErrNotSignedIn is returned by commands that need a session when none is
// stored or the stored one was rejected.
var ErrNotSignedIn = errors.New("not signed in; run 'erpctl login'")

// ServicesFactory builds the shared object graph for one command run.
type ServicesFactory func(ctx context.Context, opts GlobalOptions) (*app.Services, error)

// GlobalOptions are the persistent flags.
type GlobalOptions struct {
	APIBaseURL string
	Verbose    bool
}

// Options configures the root command.
type Options struct {
	Services ServicesFactory
	Now      func() time.Time
}

type env struct {
	opts    Options
	globals GlobalOptions
}

func (e *env) open(ctx context.Context) (*app.Services, error) {
	return e.opts.Services(ctx, e.globals)
}

// NewRootCommand builds erpctl with all subcommands.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Services == nil {
		opts.Services = DefaultServices
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	e := &env{opts: opts}

	root := &cobra.Command{
		Use:   "erpctl",
		Short: "Command line client for the Odyssey ERP backend",
		Long: `erpctl signs in to the Odyssey ERP backend and inspects the session,
the resolved permissions and pricing quotes.

The session token is stored where TOKEN_STORE points (a 0600 file by
default), so the console and erpctl share a login.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&e.globals.APIBaseURL, "api-url", "", "backend base url (overrides API_BASE_URL)")
	root.PersistentFlags().BoolVarP(&e.globals.Verbose, "verbose", "v", false, "log requests to stderr")

	root.AddCommand(
		newLoginCommand(e),
		newLogoutCommand(e),
		newWhoamiCommand(e),
		newRightsCommand(e),
		newCanCommand(e),
		newQuoteCommand(e),
		newCacheCommand(),
	)
	return root
}

// ExecuteContext runs erpctl with the process arguments.
func ExecuteContext(ctx context.Context) error {
	return NewRootCommand(Options{}).ExecuteContext(ctx)
}

// DefaultServices loads configuration from the environment and wires the
// services without metrics.
func DefaultServices(ctx context.Context, opts GlobalOptions) (*app.Services, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	if opts.APIBaseURL != "" {
		cfg.APIBaseURL = opts.APIBaseURL
	}
	var out io.Writer = io.Discard
	if opts.Verbose {
		out = os.Stderr
	}
	return app.Wire(ctx, cfg, app.NewLogger(cfg, out), nil)
}
