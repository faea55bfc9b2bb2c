// Package cli implements the cmdb command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/cmdb/internal/engine"
	"github.com/mesh-intelligence/cmdb/internal/logging"
	"github.com/mesh-intelligence/cmdb/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir       string
	dataDir         string
	jsonMode        bool
	logLevel        string
	actor           string
	trace           bool
	metricsTextfile string
}

// NewRootCmd creates the top-level "cmdb" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	root, _ := newRoot()
	return root
}

func newRoot() (*cobra.Command, *app) {
	a := &app{log: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "cmdb",
		Short: "A configuration management database with runtime-defined types",
		Long: "cmdb stores configuration items as typed entities in a graph.\n" +
			"Types come from feature packs or ad-hoc registration.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	pf.StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: $(CWD)/.cmdb-db)")
	pf.BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "log level: debug, info, warn, error, disabled")
	pf.StringVar(&a.flags.actor, "actor", "", "actor recorded in audit events (default: System)")
	pf.BoolVar(&a.flags.trace, "trace", false, "export spans to stderr")
	pf.StringVar(&a.flags.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file on exit")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newTypeCmd(a),
		newEntityCmd(a),
		newLinkCmd(a),
		newPackCmd(a),
		newCatalogCmd(a),
		newDashboardCmd(a),
	)
	return root, a
}

// Run executes the command line args and releases the system even when
// the command fails.
func Run(ctx context.Context, args []string, out, errOut io.Writer) error {
	root, a := newRoot()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	err := root.ExecuteContext(ctx)
	if terr := a.teardown(ctx); terr != nil && err == nil {
		err = terr
	}
	return err
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	if err := Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
	os.Exit(exitSuccess)
}

// exitCode maps err to exitUserError for problems the caller can fix and
// exitSysError for everything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitSuccess
	case errors.Is(err, types.ErrStoreUnavailable):
		return exitSysError
	case errors.Is(err, types.ErrNotFound),
		errors.Is(err, types.ErrValidationFailed),
		errors.Is(err, types.ErrDependencyUnsatisfied),
		errors.Is(err, types.ErrDependentsBlocking),
		errors.Is(err, types.ErrDependencyCycle),
		errors.Is(err, types.ErrInvalidConfig),
		errors.Is(err, errUsage):
		return exitUserError
	default:
		return exitSysError
	}
}

var errUsage = errors.New("usage")

// usageErrorf reports a malformed command line.
func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

// setup loads config.yaml and builds the logger. It runs before every
// command; the system itself is opened lazily.
func (a *app) setup(cmd *cobra.Command) error {
	a.out = cmd.OutOrStdout()
	a.errOut = cmd.ErrOrStderr()
	a.log = logging.New(logging.ProfileRuntime, a.errOut)
	if a.flags.logLevel != "" {
		level, ok := logging.ParseLevel(a.flags.logLevel)
		if !ok {
			return usageErrorf("unknown log level %q", a.flags.logLevel)
		}
		a.log = a.log.Level(level)
	}
	if cmd.Name() == "version" {
		return nil
	}
	return a.loadConfig()
}

// ctx returns the command context carrying the --actor value.
func (a *app) ctx(cmd *cobra.Command) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if a.flags.actor != "" {
		ctx = engine.WithActor(ctx, a.flags.actor)
	}
	return ctx
}

// stdout is the command output stream.
func (a *app) stdout() io.Writer {
	if a.out == nil {
		return os.Stdout
	}
	return a.out
}
