// Package cli implements the intake command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mesh-intelligence/intake/internal/intake"
	"github.com/mesh-intelligence/intake/internal/metrics"
	"github.com/mesh-intelligence/intake/internal/planner"
	"github.com/mesh-intelligence/intake/internal/retry"
	"github.com/mesh-intelligence/intake/internal/store"
	"github.com/mesh-intelligence/intake/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// systemError marks failures of the environment rather than of the input.
type systemError struct{ err error }

func (e *systemError) Error() string { return e.err.Error() }
func (e *systemError) Unwrap() error { return e.err }

func sysErr(format string, args ...any) error {
	return &systemError{err: fmt.Errorf(format, args...)}
}

// app holds global flags and the collaborators built from them for one
// invocation.
type app struct {
	configDir   string
	dataDir     string
	jsonMode    bool
	verbose     bool
	metricsFile string

	cfg      types.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Recorder
	store    *store.Store

	// newCompleter builds the AI completer. Tests replace it.
	newCompleter func(ctx context.Context, ai types.AIConfig) (planner.Completer, error)
}

func newApp() *app {
	return &app{
		logger: zap.NewNop(),
		newCompleter: func(ctx context.Context, ai types.AIConfig) (planner.Completer, error) {
			return planner.NewGeminiCompleter(ctx, ai.APIKey, ai.Model)
		},
	}
}

// NewRootCmd creates the top-level "intake" command with global flags and
// all subcommands registered.
func NewRootCmd() *cobra.Command {
	return newApp().rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "intake",
		Short: "Store and repair debt-counselling intake records",
		Long: `Intake keeps one questionnaire record per client (CID) in SQLite or
Postgres. Records are sanitized on every save and can be repaired when an
older writer left them as invalid JSON.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configDir, "config-dir", "", "configuration directory (default: platform config dir)")
	pf.StringVar(&a.dataDir, "data-dir", "", "SQLite data directory (default: platform data dir)")
	pf.BoolVar(&a.jsonMode, "json", false, "output as JSON")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&a.metricsFile, "metrics-textfile", "", "write Prometheus metrics to this file on exit")

	root.AddCommand(
		a.versionCmd(),
		a.initCmd(),
		a.saveCmd(),
		a.loadCmd(),
		a.repairCmd(),
		a.listCmd(),
		a.rowCmd(),
		a.planCmd(),
		a.backupCmd(),
		a.restoreCmd(),
	)
	return root
}

// setup builds the logger and configuration before any command runs.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	logCfg := zap.NewProductionConfig()
	if a.verbose {
		logCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := logCfg.Build()
	if err != nil {
		return sysErr("initialize logger: %w", err)
	}
	a.logger = logger

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(a.registry)
	a.logger.Debug("configuration loaded",
		zap.String("driver", cfg.Driver),
		zap.String("table", cfg.Table),
		zap.String("data_dir", cfg.DataDir))
	return nil
}

// openStore returns the store, creating and initializing it on first use.
func (a *app) openStore(ctx context.Context) (*store.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	st, err := store.New(a.cfg)
	if err != nil {
		return nil, err
	}
	if err := st.Init(ctx); err != nil {
		st.Close()
		return nil, err
	}
	a.store = st
	return st, nil
}

// service returns an upsert service over the opened store.
func (a *app) service(ctx context.Context) (*intake.Service, error) {
	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	return intake.New(st,
		intake.WithLogger(a.logger),
		intake.WithPolicy(a.policy()),
		intake.WithMetrics(a.metrics),
	), nil
}

// policy returns the configured retry policy.
func (a *app) policy() retry.Policy {
	p := retry.Default()
	p.MaxAttempts = a.cfg.Retry.MaxAttempts
	p.Delay = a.cfg.Retry.Delay
	return p
}

// close releases the store, flushes metrics, and syncs the logger.
func (a *app) close() error {
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, err)
		}
		a.store = nil
	}
	if a.metricsFile != "" && a.registry != nil {
		if err := metrics.WriteTextfile(a.metricsFile, a.registry); err != nil {
			errs = append(errs, sysErr("write metrics: %w", err))
		}
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

// run executes the CLI with args and returns the process exit code.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := newApp()
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if cerr := a.close(); err == nil {
		err = cerr
	}
	if err == nil {
		return exitSuccess
	}
	fmt.Fprintln(stderr, "Error:", err)
	return exitCode(err)
}

func exitCode(err error) int {
	for _, user := range []error{types.ErrInvalidKey, types.ErrNotFound, types.ErrDecode} {
		if errors.Is(err, user) {
			return exitUserError
		}
	}
	var se *systemError
	var st *types.StoreError
	if errors.As(err, &se) || errors.As(err, &st) {
		return exitSysError
	}
	return exitUserError
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
