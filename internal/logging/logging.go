// Package logging builds the zap loggers of the command line tools.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func build(cfg zap.Config) (*zap.Logger, error) {
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableCaller = true
	return cfg.Build()
}

// NewDevelopment returns a console logger at debug level.
func NewDevelopment() (*zap.Logger, error) {
	return build(zap.NewDevelopmentConfig())
}

// NewProduction returns a JSON logger at info level.
func NewProduction() (*zap.Logger, error) {
	return build(zap.NewProductionConfig())
}

// New returns a logger at the given level ("debug", "info", "warn",
// "error") writing "console" or "json" records to stderr.
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	var cfg zap.Config
	switch strings.ToLower(format) {
	case "json":
		cfg = zap.NewProductionConfig()
	case "console", "":
		cfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	return build(cfg)
}
