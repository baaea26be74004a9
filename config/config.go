// Package config loads the settings of the tsadjust command from a YAML
// file and TSADJUST_* environment variables.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"tsadjust/arima"
	"tsadjust/regarima"
)

// Config is the full configuration.
type Config struct {
	Model      ModelConfig      `mapstructure:"model"`
	Estimation EstimationConfig `mapstructure:"estimation"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Output     OutputConfig     `mapstructure:"output"`
}

// ModelConfig is the ARIMA structure applied to every series.
type ModelConfig struct {
	Regular  arima.Order `mapstructure:"regular"`
	Seasonal arima.Order `mapstructure:"seasonal"`
	Period   int         `mapstructure:"period"`
	Mean     bool        `mapstructure:"mean"`
	// Log models the logarithm of the series.
	Log bool `mapstructure:"log"`
}

// EstimationConfig mirrors regarima.Options.
type EstimationConfig struct {
	Minimizer             string  `mapstructure:"minimizer"`
	FunctionPrecision     float64 `mapstructure:"function_precision"`
	ParameterPrecision    float64 `mapstructure:"parameter_precision"`
	MaxIterations         int     `mapstructure:"max_iterations"`
	ExactFinalDerivatives bool    `mapstructure:"exact_final_derivatives"`
	FailIfUnstable        bool    `mapstructure:"fail_if_unstable"`
	FallbackToDefault     bool    `mapstructure:"fallback_to_default"`
	CorrectMissing        bool    `mapstructure:"correct_missing"`
	Rescale               bool    `mapstructure:"rescale"`
	StationaryMapping     bool    `mapstructure:"stationary_mapping"`
}

// BatchConfig selects the input and the concurrency.
type BatchConfig struct {
	Input string `mapstructure:"input"`
	// Columns to process; empty means every column but the time column.
	Columns []string `mapstructure:"columns"`
	// Workers bounds the concurrent estimations; 0 means no bound.
	Workers int `mapstructure:"workers"`
}

// LoggingConfig selects the logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OutputConfig selects what is written.
type OutputConfig struct {
	Path            string `mapstructure:"path"`
	Decompose       bool   `mapstructure:"decompose"`
	ForecastHorizon int    `mapstructure:"forecast_horizon"`
}

// DefaultConfig returns the airline model on monthly data, estimated with
// the default options.
func DefaultConfig() *Config {
	opts := regarima.DefaultOptions()
	spec := arima.Airline(12)
	return &Config{
		Model: ModelConfig{
			Regular:  spec.Regular,
			Seasonal: spec.Seasonal,
			Period:   spec.Period,
			Log:      true,
		},
		Estimation: EstimationConfig{
			Minimizer:          string(opts.Minimizer),
			FunctionPrecision:  opts.FunctionPrecision,
			ParameterPrecision: opts.ParameterPrecision,
			MaxIterations:      opts.MaxIterations,
			CorrectMissing:     opts.CorrectMissing,
			Rescale:            opts.Rescale,
		},
		Batch:   BatchConfig{Workers: 4},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Output:  OutputConfig{Path: "-", Decompose: true, ForecastHorizon: 12},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("model.regular.p", d.Model.Regular.P)
	v.SetDefault("model.regular.d", d.Model.Regular.D)
	v.SetDefault("model.regular.q", d.Model.Regular.Q)
	v.SetDefault("model.seasonal.p", d.Model.Seasonal.P)
	v.SetDefault("model.seasonal.d", d.Model.Seasonal.D)
	v.SetDefault("model.seasonal.q", d.Model.Seasonal.Q)
	v.SetDefault("model.period", d.Model.Period)
	v.SetDefault("model.mean", d.Model.Mean)
	v.SetDefault("model.log", d.Model.Log)

	v.SetDefault("estimation.minimizer", d.Estimation.Minimizer)
	v.SetDefault("estimation.function_precision", d.Estimation.FunctionPrecision)
	v.SetDefault("estimation.parameter_precision", d.Estimation.ParameterPrecision)
	v.SetDefault("estimation.max_iterations", d.Estimation.MaxIterations)
	v.SetDefault("estimation.exact_final_derivatives", d.Estimation.ExactFinalDerivatives)
	v.SetDefault("estimation.fail_if_unstable", d.Estimation.FailIfUnstable)
	v.SetDefault("estimation.fallback_to_default", d.Estimation.FallbackToDefault)
	v.SetDefault("estimation.correct_missing", d.Estimation.CorrectMissing)
	v.SetDefault("estimation.rescale", d.Estimation.Rescale)
	v.SetDefault("estimation.stationary_mapping", d.Estimation.StationaryMapping)

	v.SetDefault("batch.input", d.Batch.Input)
	v.SetDefault("batch.columns", d.Batch.Columns)
	v.SetDefault("batch.workers", d.Batch.Workers)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)

	v.SetDefault("output.path", d.Output.Path)
	v.SetDefault("output.decompose", d.Output.Decompose)
	v.SetDefault("output.forecast_horizon", d.Output.ForecastHorizon)
}

// Load reads the configuration from path, which may be empty, on top of the
// defaults. TSADJUST_* variables override both, with "_" for "." in the
// keys: TSADJUST_MODEL_PERIOD sets model.period.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TSADJUST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section and reports all the problems at once.
func (c *Config) Validate() error {
	var errs []string
	if err := c.Spec().Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.EstimationOptions(nil).Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Batch.Workers < 0 {
		errs = append(errs, fmt.Sprintf("batch.workers must be >= 0, got %d", c.Batch.Workers))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Sprintf("unknown logging.format %q", c.Logging.Format))
	}
	if c.Output.ForecastHorizon < 0 {
		errs = append(errs, fmt.Sprintf("output.forecast_horizon must be >= 0, got %d", c.Output.ForecastHorizon))
	}
	if c.Output.Path == "" {
		errs = append(errs, "output.path is required")
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Spec returns the ARIMA structure.
func (c *Config) Spec() arima.Spec {
	return arima.Spec{
		Regular:  c.Model.Regular,
		Seasonal: c.Model.Seasonal,
		Period:   c.Model.Period,
		Mean:     c.Model.Mean,
	}
}

// EstimationOptions converts the estimation section; log may be nil.
func (c *Config) EstimationOptions(log *zap.Logger) regarima.Options {
	e := c.Estimation
	return regarima.Options{
		Minimizer:             regarima.MinimizerKind(strings.ToLower(e.Minimizer)),
		FunctionPrecision:     e.FunctionPrecision,
		ParameterPrecision:    e.ParameterPrecision,
		MaxIterations:         e.MaxIterations,
		ExactFinalDerivatives: e.ExactFinalDerivatives,
		FailIfUnstable:        e.FailIfUnstable,
		FallbackToDefault:     e.FallbackToDefault,
		CorrectMissing:        e.CorrectMissing,
		Rescale:               e.Rescale,
		StationaryMapping:     e.StationaryMapping,
		Logger:                log,
	}
}
