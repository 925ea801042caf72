package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/David-Botos/credit-cleaning/pkg/config"
	"github.com/David-Botos/credit-cleaning/pkg/connector"
	"github.com/David-Botos/credit-cleaning/pkg/parser"
	"github.com/David-Botos/credit-cleaning/pkg/pipeline"
)

func newRootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "creditclean <input> <output>",
		Short: "Clean a raw credit-record feed",
		Long: "Parse, impute and outlier-correct a monthly credit-record feed, " +
			"print the remaining missing values per column and write the cleaned dataset.",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClean(cmd, envFile, args[0], args[1])
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", "", "path to a .env file (default: ./.env when present)")
	return cmd
}

func runClean(cmd *cobra.Command, envFile, input, output string) error {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	factory, err := connector.NewConnectorFactory(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := factory.Close(); err != nil {
			logger.Warn("Failed to close connections", zap.Error(err))
		}
	}()

	source, err := factory.Source(ctx, input)
	if err != nil {
		return fmt.Errorf("invalid input %s: %w", input, err)
	}
	sink, err := factory.Sink(ctx, output)
	if err != nil {
		return fmt.Errorf("invalid output %s: %w", output, err)
	}

	opts, err := pipelineOptions(ctx, cfg, factory)
	if err != nil {
		return err
	}
	p, err := pipeline.New(logger, opts)
	if err != nil {
		return err
	}

	raw, err := source.Load(ctx)
	if err != nil {
		logger.Error("Failed to load dataset", zap.String("input", input), zap.Error(err))
		return err
	}

	cleaned, report, err := p.Run(ctx, raw)
	if err != nil {
		logger.Error("Cleaning run failed", zap.Error(err))
		return err
	}

	if err := report.WriteDiagnostics(cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("failed to print diagnostics: %w", err)
	}

	if cfg.MetricsTextfile != "" {
		if err := report.Metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			logger.Warn("Failed to export metrics", zap.String("path", cfg.MetricsTextfile), zap.Error(err))
		}
	}

	if err := sink.Write(ctx, cleaned); err != nil {
		logger.Error("Failed to write dataset", zap.String("output", output), zap.Error(err))
		return err
	}
	return nil
}

func pipelineOptions(ctx context.Context, cfg *config.Config, factory *connector.ConnectorFactory) (pipeline.Options, error) {
	opts := pipeline.DefaultOptions()
	opts.Workers = cfg.WorkerPoolSize
	opts.LowerQuantile = cfg.LowerQuantile
	opts.UpperQuantile = cfg.UpperQuantile
	if cfg.StrictSSN {
		opts.SSNPolicy = parser.SSNStrict
	}

	if cfg.AuditEnabled {
		recorder, err := factory.AuditRecorder(ctx)
		if err != nil {
			return opts, fmt.Errorf("failed to create audit recorder: %w", err)
		}
		opts.Recorder = recorder
	}
	return opts, nil
}

// newLogger builds the process logger; logs go to stderr so stdout carries
// only the diagnostics table
func newLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	var zcfg zap.Config
	if format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.ErrorOutputPaths = []string{"stderr"}

	return zcfg.Build()
}
