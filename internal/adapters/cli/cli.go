package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"order-ledger/internal/adapters/repl"
	"order-ledger/internal/app"
)

// Provider opens the application service on first use so that help and
// token commands never touch storage.
type Provider func(ctx context.Context) (app.ApplicationService, error)

// Options configures NewCommand.
type Options struct {
	Out       io.Writer
	In        io.Reader
	JWTSecret string
	Now       func() time.Time
}

type runner struct {
	provide Provider
	svc     app.ApplicationService
	out     io.Writer
	in      io.Reader
	secret  string
	now     func() time.Time
	asJSON  bool
}

// NewCommand builds the full command tree.
func NewCommand(provide Provider, opts Options) *cobra.Command {
	r := &runner{provide: provide, out: opts.Out, in: opts.In, secret: opts.JWTSecret, now: opts.Now}
	if r.out == nil {
		r.out = os.Stdout
	}
	if r.in == nil {
		r.in = os.Stdin
	}
	if r.now == nil {
		r.now = time.Now
	}

	root := &cobra.Command{
		Use:           "ledger",
		Short:         "Order ledger for a footwear merchant",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, _ []string) error {
			repl.Run(ctx, svc, r.in, r.out)
			return nil
		}),
	}
	root.SetOut(r.out)
	root.PersistentFlags().BoolVar(&r.asJSON, "json", false, "print JSON instead of tables")

	root.AddCommand(
		r.ordersCmd(),
		r.trashCmd(),
		r.totalsCmd(),
		r.importCmd(),
		r.exportCmd(),
		r.reportCmd(),
		r.factoryCmd(),
		r.analyticsCmd(),
		r.backupCmd(),
		r.restoreBackupCmd(),
		r.seedCmd(),
		r.schemaCmd(),
		r.settingsCmd(),
		r.tokenCmd(),
		r.shellCmd(),
	)
	return root
}

func (r *runner) shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Start the interactive shell (the default with no command)",
		RunE: r.withService(func(ctx context.Context, svc app.ApplicationService, _ []string) error {
			repl.Run(ctx, svc, r.in, r.out)
			return nil
		}),
	}
}

func (r *runner) service(ctx context.Context) (app.ApplicationService, error) {
	if r.svc != nil {
		return r.svc, nil
	}
	svc, err := r.provide(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	r.svc = svc
	return svc, nil
}

// withService adapts a service-bound handler to cobra's RunE.
func (r *runner) withService(fn func(ctx context.Context, svc app.ApplicationService, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		svc, err := r.service(ctx)
		if err != nil {
			return err
		}
		return fn(ctx, svc, args)
	}
}

func (r *runner) printJSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *runner) printf(format string, args ...any) {
	fmt.Fprintf(r.out, format, args...)
}

func (r *runner) rule(ch string) {
	fmt.Fprintln(r.out, strings.Repeat(ch, 72))
}

// readInput reads a named file, or stdin for "-".
func (r *runner) readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(r.in)
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return data, nil
}
