// Command tsadjust estimates a RegARIMA model on every column of a CSV file,
// decomposes the series into trend, seasonal and irregular, and writes the
// results and the forecasts to a CSV file.
//
// Usage:
//
//	tsadjust [-config tsadjust.yaml] [-output out.csv] input.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"tsadjust/config"
	"tsadjust/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	output := flag.String("output", "", "output CSV file, - for stdout (overrides output.path)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if flag.NArg() > 0 {
		cfg.Batch.Input = flag.Arg(0)
	}
	if *output != "" {
		cfg.Output.Path = *output
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger, os.Stdout, os.Stderr); err != nil {
		logger.Error("tsadjust failed", zap.Error(err))
		cancel()
		os.Exit(1)
	}
}
