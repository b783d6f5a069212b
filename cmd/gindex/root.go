package main

import (
	"io"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/WoelkiM/antidote/internal/config"
	"github.com/WoelkiM/antidote/internal/gindex"
	"github.com/WoelkiM/antidote/internal/logging"
	"github.com/WoelkiM/antidote/internal/metrics"
	"github.com/WoelkiM/antidote/internal/storage"
)

// app is the state shared by every subcommand.
type app struct {
	configPath string
	statePath  string
	logLevel   string

	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	store    *storage.FileStore
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "gindex",
		Short:         "Inspect and update a grow-only index file",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.finish(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVarP(&a.statePath, "file", "f", "gindex.bin", "index state file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override the configured log level")

	root.AddCommand(
		newApplyCmd(a),
		newInspectCmd(a),
		newGetCmd(a),
		newLookupCmd(a),
		newRangeCmd(a),
		newDiffCmd(a),
	)
	return root
}

func (a *app) init() error {
	a.cfg = config.Default()
	if a.configPath != "" {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if a.logLevel != "" {
		a.cfg.LogLevel = a.logLevel
	}

	logger, err := logging.New(a.cfg.LogLevel)
	if err != nil {
		return err
	}
	a.logger = logger.With(zap.String("replica", a.cfg.ReplicaID))

	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(a.registry)
	a.store = storage.NewFileStore("")
	return nil
}

// finish prints the counters when enabled and flushes the logger.
func (a *app) finish(w io.Writer) error {
	if a.cfg.Metrics.Dump {
		families, err := a.registry.Gather()
		if err != nil {
			return errors.Wrap(err, "gather metrics")
		}
		for _, mf := range families {
			if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
				return errors.Wrap(err, "write metrics")
			}
		}
	}
	_ = a.logger.Sync()
	return nil
}

func (a *app) options() []gindex.Option {
	return []gindex.Option{
		gindex.WithRegistry(a.cfg.Registry()),
		gindex.WithLogger(a.logger),
		gindex.WithMetrics(a.metrics),
	}
}

// load reads the state file. A missing file yields an empty index bound to
// the configured type.
func (a *app) load() (*gindex.GIndex, error) {
	g, err := a.store.Get(a.statePath, a.options()...)
	if errors.Is(err, storage.ErrNotFound) {
		a.logger.Debug("state file not found, starting empty", zap.String("path", a.statePath))
		if a.cfg.BoundType != "" {
			return gindex.NewBound(a.cfg.BoundType, a.options()...), nil
		}
		return gindex.New(a.options()...), nil
	}
	return g, err
}

func (a *app) save(g *gindex.GIndex) error {
	if err := a.store.Put(a.statePath, g); err != nil {
		return err
	}
	a.logger.Debug("state written",
		zap.String("path", a.statePath),
		zap.Int("keys", g.Len()))
	return nil
}
