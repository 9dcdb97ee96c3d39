package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rangeHedger/internal/scenario"
	"rangeHedger/internal/storage"
)

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate <scenario.yaml>",
		Short: "Run a scripted hedging scenario against simulated pools",
		Args:  cobra.ExactArgs(1),
		RunE:  runSimulate,
	}

	cmd.Flags().String("journal", "", "optional JSONL path for order events")
	cmd.Flags().String("log-level", "warn", "log level (debug, info, warn, error)")

	return cmd
}

func runSimulate(cmd *cobra.Command, args []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := newLogger(level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	f, err := scenario.Load(args[0])
	if err != nil {
		return err
	}
	envCfg, err := f.EnvConfig()
	if err != nil {
		return err
	}

	opts := scenario.Options{Logger: logger}
	if path, _ := cmd.Flags().GetString("journal"); path != "" {
		opts.Journal = storage.NewJsonlStorage(path)
	}

	ctx := cmd.Context()
	env, err := scenario.NewEnvironment(ctx, envCfg, opts)
	if err != nil {
		return fmt.Errorf("build environment: %w", err)
	}

	report, runErr := scenario.Run(ctx, env, f, logger)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return err
	}
	if runErr != nil {
		logger.Error("scenario failed", zap.String("name", f.Name), zap.Error(runErr))
		return runErr
	}
	logger.Info("scenario passed", zap.String("name", f.Name), zap.Int("steps", len(report.Steps)))
	return nil
}
