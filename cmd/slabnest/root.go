package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/piwi3910/SlabNest/internal/config"
	"github.com/piwi3910/SlabNest/internal/engine"
	"github.com/piwi3910/SlabNest/internal/logging"
	"github.com/piwi3910/SlabNest/internal/metrics"
	"github.com/piwi3910/SlabNest/internal/model"
)

// app carries what every command needs once flags and config are resolved.
type app struct {
	v          *viper.Viper
	configPath string

	cfg      config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	recorder *metrics.Recorder
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	root := &cobra.Command{
		Use:           "slabnest",
		Short:         "Nest part outlines onto stock sheets",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default $HOME/.slabnest/config.yaml)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.Bool("dev", false, "human-readable development logging")
	pf.String("mode", string(model.ModeHull), "collision mode (hull or bbox)")
	pf.Float64("spacing", 5, "minimum gap between parts in mm")
	pf.Int("rotations", 1, "number of evenly spaced rotation angles")
	pf.Bool("multi-sheet", false, "open new sheets from stock on overflow")

	root.AddCommand(
		newNestCmd(a),
		newAnalyzeCmd(a),
		newCompareCmd(a),
		newParseCmd(),
		newImportCmd(a),
		newServeCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	if err := config.BindFlags(a.v, cmd.Flags()); err != nil {
		return err
	}
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	a.logger = logger

	a.registry = prometheus.NewRegistry()
	a.recorder, err = metrics.NewRecorder(a.registry)
	return err
}

func (a *app) nester() *engine.Nester {
	return engine.New(
		engine.WithLogger(a.logger.Named("engine")),
		engine.WithObserver(a.recorder),
	)
}

// applyDefaults completes a job from the configuration. Nesting flags given
// explicitly on the command line override the job's own settings.
func (a *app) applyDefaults(cmd *cobra.Command, job *model.NestJob) {
	defaults := a.cfg.AppDefaults()
	defaults.ApplyToJob(job)

	flags := cmd.Flags()
	if flags.Changed("mode") {
		job.Config.Mode = defaults.Nesting.Mode
	}
	if flags.Changed("spacing") {
		job.Config.Spacing = defaults.Nesting.Spacing
	}
	if flags.Changed("rotations") {
		job.Config.Rotations = defaults.Nesting.Rotations
	}
	if flags.Changed("multi-sheet") {
		job.Config.MultiSheet = defaults.Nesting.MultiSheet
	}
}
