// Package cli holds the plumbing shared by ssc, ssrun and ssperf: config
// loading, logging and telemetry setup, store access and file transfer.
package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/viant/afs"

	"github.com/sbl8/ssccs/config"
	"github.com/sbl8/ssccs/internal/telemetry"
	"github.com/sbl8/ssccs/scheme"
	"github.com/sbl8/ssccs/ssfile"
	"github.com/sbl8/ssccs/store"
)

// Version is reported by every tool.
var Version = "0.1.0"

// App is the state shared by the subcommands of one tool.
type App struct {
	Name   string
	Config config.Config
	Logger *slog.Logger
	FS     afs.Service

	configPath string
	logLevel   string
	metrics    bool
	trace      string

	telemetry   *telemetry.Telemetry
	stopMetrics context.CancelFunc
	metricsDone chan error
}

// NewApp returns an app for the tool called name.
func NewApp(name string) *App {
	return &App{Name: name, FS: afs.New(), Logger: slog.Default()}
}

// Bind registers the persistent flags on root and installs hooks that load
// the config before any subcommand runs and flush telemetry after it.
func (a *App) Bind(root *cobra.Command) {
	root.Version = Version
	root.SilenceUsage = true
	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", os.Getenv(config.EnvPath), "config file (YAML); defaults are used when empty")
	flags.StringVar(&a.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	flags.BoolVar(&a.metrics, "metrics", false, "serve Prometheus metrics while the command runs")
	flags.StringVar(&a.trace, "trace", "none", "trace exporter: none or stdout")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		return a.setup(cmd.Context(), cmd.ErrOrStderr())
	}
	root.PersistentPostRunE = func(cmd *cobra.Command, _ []string) error {
		return a.Close(cmd.Context())
	}
}

func (a *App) setup(ctx context.Context, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.metrics {
		cfg.Metrics.Enabled = true
	}
	a.Config = cfg

	logger, err := telemetry.NewLogger(stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.Logger = logger.With(slog.String("tool", a.Name))
	slog.SetDefault(a.Logger)

	a.telemetry, err = telemetry.Init(ctx, telemetry.Config{
		ServiceName:    a.Name,
		ServiceVersion: Version,
		Metrics:        cfg.Metrics.Enabled,
		TraceExporter:  a.trace,
		TraceWriter:    stderr,
	})
	if err != nil {
		return err
	}
	if cfg.Metrics.Enabled {
		serveCtx, cancel := context.WithCancel(context.Background())
		a.stopMetrics = cancel
		a.metricsDone = make(chan error, 1)
		go func() {
			a.metricsDone <- telemetry.Serve(serveCtx, cfg.Metrics.Addr, cfg.Metrics.Path, a.telemetry.Handler(), a.Logger)
		}()
	}
	a.Logger.Debug("configuration loaded", slog.String("config", a.configPath))
	return nil
}

// Close stops the metrics endpoint and flushes telemetry. It is safe to
// call more than once.
func (a *App) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if a.stopMetrics != nil {
		a.stopMetrics()
		if err := <-a.metricsDone; err != nil {
			a.Logger.Warn("metrics endpoint", slog.String("error", err.Error()))
		}
		a.stopMetrics = nil
	}
	if a.telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		err := a.telemetry.Shutdown(shutdownCtx)
		a.telemetry = nil
		return err
	}
	return nil
}

// OpenStore opens the configured scheme store.
func (a *App) OpenStore() (*store.Store, error) {
	opts := a.Config.Store.Options()
	opts.Logger = a.Logger.With(slog.String("component", "badger"))
	return store.Open(opts)
}

// Download reads a local path or any URL the file service understands.
func (a *App) Download(ctx context.Context, location string) ([]byte, error) {
	data, err := a.FS.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	return data, nil
}

// Upload writes data to a local path or URL.
func (a *App) Upload(ctx context.Context, location string, data []byte) error {
	if err := a.FS.Upload(ctx, location, 0o644, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", location, err)
	}
	return nil
}

// LoadScheme reads an encoded .ss container.
func (a *App) LoadScheme(ctx context.Context, location string) (*scheme.Basic, error) {
	data, err := a.Download(ctx, location)
	if err != nil {
		return nil, err
	}
	s, err := ssfile.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", location, err)
	}
	return s, nil
}

// OutputPath derives "<dir>/<base>.ss" from a blueprint location.
func OutputPath(dir, location string) string {
	base := strings.TrimSuffix(path.Base(location), path.Ext(location))
	if dir == "" {
		dir = path.Dir(location)
	}
	return path.Join(dir, base+".ss")
}
