// Package cli implements the sqlitebook command line.
//
// Every command runs against the configured snapshot store: the app's
// Before hook loads configuration, builds the logger, metrics registry, kv
// backend, snapshot store and workspace, and parks them in App.Metadata.
// After closes the backend.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/viant/sqlitebook/internal/config"
	"github.com/viant/sqlitebook/internal/logger"
	"github.com/viant/sqlitebook/internal/metrics"
	"github.com/viant/sqlitebook/kv"
	"github.com/viant/sqlitebook/snapshot"
	"github.com/viant/sqlitebook/workspace"
)

// Build information, set via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
)

const runtimeKey = "runtime"

// Runtime holds the components shared by commands.
type Runtime struct {
	Config    *config.Config
	Logger    *slog.Logger
	LogLevel  *slog.LevelVar
	Registry  *prometheus.Registry
	Metrics   *metrics.Metrics
	Backend   kv.Store
	Store     *snapshot.Store
	Workspace *workspace.Workspace
	Printer   *Printer
	In        io.Reader
	Out       io.Writer
}

// Close releases the backing store.
func (r *Runtime) Close() error {
	if r.Backend == nil {
		return nil
	}
	return r.Backend.Close()
}

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:     "sqlitebook",
		Usage:    "Keep named SQLite databases in a local snapshot store and edit them with SQL",
		Version:  fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Flags:    globalFlags(),
		Metadata: map[string]any{},
		Commands: []*cli.Command{
			listCommand(),
			createCommand(),
			execCommand(),
			tablesCommand(),
			columnsCommand(),
			importCommand(),
			exportCommand(),
			deleteCommand(),
			clearCommand(),
			shellCommand(),
			metricsCommand(),
		},
		Before: func(c *cli.Context) error {
			rt, err := NewRuntime(c)
			if err != nil {
				return err
			}
			c.App.Metadata[runtimeKey] = rt
			return nil
		},
		After: func(c *cli.Context) error {
			if rt, ok := c.App.Metadata[runtimeKey].(*Runtime); ok {
				return rt.Close()
			}
			return nil
		},
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML configuration file",
			EnvVars: []string{"SQLITEBOOK_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "store-dir",
			Usage: "Snapshot store directory",
		},
		&cli.StringFlag{
			Name:  "backend",
			Usage: "Snapshot store backend: badger, memory",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
	}
}

// overrides maps explicitly set global flags to configuration keys.
func overrides(c *cli.Context) map[string]any {
	out := map[string]any{}
	for flag, key := range map[string]string{
		"store-dir": "store.dir",
		"backend":   "store.backend",
		"output":    "output.format",
		"log-level": "log.level",
	} {
		if c.IsSet(flag) {
			out[key] = c.String(flag)
		}
	}
	return out
}

// NewRuntime builds the command runtime from the global flags.
func NewRuntime(c *cli.Context) (*Runtime, error) {
	cfg, err := config.Load(c.String("config"), overrides(c))
	if err != nil {
		return nil, err
	}
	logCfg := logger.DefaultConfig()
	logCfg.Level, logCfg.Format = cfg.Log.Level, cfg.Log.Format
	if c.App.ErrWriter != nil {
		logCfg.Output = c.App.ErrWriter
	}
	log, level := logger.New(logCfg)

	registry := prometheus.NewRegistry()
	m, err := metrics.New(registry)
	if err != nil {
		return nil, err
	}

	var backend kv.Store
	switch cfg.Store.Backend {
	case config.BackendMemory:
		backend = kv.NewMemory()
	default:
		badgerCfg := kv.DefaultBadgerConfig(cfg.Store.Dir)
		badgerCfg.SyncWrites = cfg.Store.SyncWrites
		badgerCfg.GCInterval = cfg.Store.GCInterval
		store, err := kv.NewBadger(badgerCfg, log)
		if err != nil {
			return nil, err
		}
		if err := store.RegisterMetrics(registry); err != nil {
			_ = store.Close()
			return nil, err
		}
		backend = store
	}

	store := snapshot.New(backend, snapshot.WithLogger(log), snapshot.WithMetrics(m))
	out := c.App.Writer
	if out == nil {
		out = os.Stdout
	}
	in := c.App.Reader
	if in == nil {
		in = os.Stdin
	}
	return &Runtime{
		Config:    cfg,
		Logger:    log,
		LogLevel:  level,
		Registry:  registry,
		Metrics:   m,
		Backend:   backend,
		Store:     store,
		Workspace: workspace.New(store, workspace.WithLogger(log), workspace.WithMetrics(m)),
		Printer:   NewPrinter(out, cfg.Output.Format),
		In:        in,
		Out:       out,
	}, nil
}

// runtimeOf returns the runtime created by the Before hook.
func runtimeOf(c *cli.Context) (*Runtime, error) {
	if rt, ok := c.App.Metadata[runtimeKey].(*Runtime); ok {
		return rt, nil
	}
	return nil, fmt.Errorf("cli: runtime not initialized")
}
