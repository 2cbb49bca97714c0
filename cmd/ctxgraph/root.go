package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dshills/ctxgraph/internal/config"
	"github.com/dshills/ctxgraph/internal/engine"
	"github.com/dshills/ctxgraph/internal/logging"
	"github.com/dshills/ctxgraph/internal/telemetry"
)

// app carries state shared by every subcommand
type app struct {
	v       *viper.Viper
	cfgFile string
	envFile string

	cfg      *config.Config
	logger   *slog.Logger
	shutdown func(context.Context) error
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	rootCmd := &cobra.Command{
		Use:   "ctxgraph",
		Short: "Code knowledge graph with multi-strategy search and context assembly",
		Long: `ctxgraph indexes a Go project and its markdown docs into a knowledge graph,
searches it with keyword, semantic, graph and structural strategies fused by
reciprocal rank, and assembles token-budgeted context for LLM prompts.`,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default .ctxgraph.yaml in the working or home directory)")
	flags.StringVar(&a.envFile, "env-file", "", "load environment variables from this file (default .env when present)")
	flags.String("root", "", "project root (default the working directory)")
	flags.String("db", "", "database path (default <root>/.ctxgraph/index.db)")
	flags.String("log-level", "", "log level: debug, info, warn, error (default info)")
	flags.String("log-format", "", "log format: pretty, text, json (default pretty)")

	_ = a.v.BindPFlag("root", flags.Lookup("root"))
	_ = a.v.BindPFlag("db_path", flags.Lookup("db"))
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", flags.Lookup("log-format"))

	rootCmd.AddCommand(
		newServeCmd(a),
		newIndexCmd(a),
		newSearchCmd(a),
		newContextCmd(a),
		newGraphCmd(a),
		newStatusCmd(a),
		newEmbedCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// setup loads the environment and configuration, then installs logging and telemetry
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	if err := loadEnv(a.envFile); err != nil {
		return err
	}

	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	cfg.Telemetry.ServiceVersion = version
	if cfg.Telemetry.MetricsAddr != "" {
		cfg.Telemetry.MetricExporter = telemetry.ExporterPrometheus
	}
	a.cfg = cfg

	logger, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return err
	}
	slog.SetDefault(logger)
	a.logger = logger

	shutdown, err := telemetry.Init(cmd.Context(), cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.shutdown = shutdown
	return nil
}

// teardown flushes telemetry exporters
func (a *app) teardown(_ *cobra.Command, _ []string) error {
	if a.shutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.shutdown(ctx)
}

// overrideRoot reloads the configuration with a different project root
func (a *app) overrideRoot(path string) error {
	a.v.Set("root", path)
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	cfg.Telemetry = a.cfg.Telemetry
	a.cfg = cfg
	return nil
}

// openEngine opens the engine for the configured root; callers must Close it
func (a *app) openEngine() (*engine.Engine, error) {
	return engine.New(a.cfg, a.logger)
}

// loadEnv loads path, or .env when path is empty and the file exists
func loadEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}
