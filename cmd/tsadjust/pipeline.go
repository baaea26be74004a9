package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"go.uber.org/zap"

	"tsadjust/arima"
	"tsadjust/config"
	"tsadjust/regarima"
	"tsadjust/timeseries"
	"tsadjust/ucarima"
)

// seriesOutput holds the output columns of one series.
type seriesOutput struct {
	names   []string
	columns [][]float64
}

func (o *seriesOutput) add(name string, values []float64) {
	o.names = append(o.names, name)
	o.columns = append(o.columns, values)
}

// run loads the input, estimates every selected series and writes the
// output table. Series whose estimation fails are reported and left out.
func run(ctx context.Context, cfg *config.Config, log *zap.Logger, stdout, report io.Writer) error {
	if cfg.Batch.Input == "" {
		return errors.New("no input file")
	}
	frame, err := timeseries.LoadCSV(cfg.Batch.Input)
	if err != nil {
		return err
	}
	log.Info("loaded series",
		zap.String("input", cfg.Batch.Input),
		zap.Int("rows", frame.Len()),
		zap.Strings("columns", frame.Names))

	series, results, err := estimate(ctx, frame, cfg, log)
	if err != nil {
		return err
	}

	var outputs []*seriesOutput
	for i, r := range results {
		name := series[i].Name
		if r.Err != nil {
			log.Warn("estimation failed", zap.String("series", name), zap.Stringer("run", r.ID), zap.Error(r.Err))
			PrintFailure(report, name, r)
			continue
		}
		PrintEstimation(report, name, r)
		out, err := adjust(report, frame, name, r.Estimation, cfg, log.With(zap.String("series", name), zap.Stringer("run", r.ID)))
		if err != nil {
			return fmt.Errorf("series %s: %w", name, err)
		}
		outputs = append(outputs, out)
	}
	if len(outputs) == 0 {
		return errors.New("no series could be estimated")
	}

	w := stdout
	if cfg.Output.Path != "-" {
		f, err := os.Create(cfg.Output.Path)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	header := []string{"date"}
	columns := [][]float64{timeseries.ExtendTime(frame.Time, cfg.Output.ForecastHorizon, cfg.Model.Period)}
	for _, o := range outputs {
		header = append(header, o.names...)
		columns = append(columns, o.columns...)
	}
	if err := timeseries.WriteCSV(w, header, columns); err != nil {
		return err
	}
	log.Info("results written", zap.String("output", cfg.Output.Path), zap.Int("series", len(outputs)))
	return nil
}

// estimate fits the configured model to every selected column; the results
// are aligned with the returned series.
func estimate(ctx context.Context, frame *timeseries.Frame, cfg *config.Config, log *zap.Logger) ([]*timeseries.Series, []regarima.BatchResult, error) {
	series, err := selectSeries(frame, cfg)
	if err != nil {
		return nil, nil, err
	}
	models := make([]*regarima.Model, len(series))
	for i, s := range series {
		if models[i], err = regarima.NewModel(s.Values, nil, cfg.Spec()); err != nil {
			return nil, nil, fmt.Errorf("series %s: %w", s.Name, err)
		}
	}
	proc, err := regarima.NewProcessorWithOptions(cfg.EstimationOptions(log))
	if err != nil {
		return nil, nil, err
	}
	results, err := proc.EstimateBatch(ctx, models, cfg.Batch.Workers)
	if err != nil {
		return nil, nil, err
	}
	return series, results, nil
}

// selectSeries returns the configured columns, in logs when the model is
// multiplicative.
func selectSeries(frame *timeseries.Frame, cfg *config.Config) ([]*timeseries.Series, error) {
	names := cfg.Batch.Columns
	if len(names) == 0 {
		names = frame.Names
	}
	out := make([]*timeseries.Series, 0, len(names))
	for _, name := range names {
		s, err := frame.Series(name, cfg.Model.Period)
		if err != nil {
			return nil, err
		}
		if cfg.Model.Log {
			if s, err = s.Log(); err != nil {
				return nil, err
			}
		}
		out = append(out, s)
	}
	return out, nil
}

// adjust computes the output columns of one estimated series. Sample
// columns are NaN over the forecast horizon and the forecasts are NaN over
// the sample. Multiplicative results are turned back into levels.
func adjust(report io.Writer, frame *timeseries.Frame, name string, est *regarima.Estimation, cfg *config.Config, log *zap.Logger) (*seriesOutput, error) {
	n := est.Model.Len()
	h := cfg.Output.ForecastHorizon
	levels := func(x []float64) []float64 {
		out := make([]float64, n+h)
		for t := range out {
			out[t] = math.NaN()
		}
		copy(out, x)
		if cfg.Model.Log {
			return timeseries.Exp(out)
		}
		return out
	}

	raw, err := frame.Series(name, cfg.Model.Period)
	if err != nil {
		return nil, err
	}
	out := &seriesOutput{}
	out.add(name, padded(raw.Values, n+h))
	interpolated := est.Interpolated()
	out.add(name+"_interpolated", levels(interpolated))

	if cfg.Output.Decompose {
		comps, err := decompose(est)
		if err != nil {
			log.Warn("no decomposition", zap.Error(err))
		} else {
			sa := append([]float64(nil), interpolated...)
			for _, c := range comps {
				if c.Kind == ucarima.Seasonal {
					for t := range sa {
						sa[t] -= c.Values[t]
					}
				}
				out.add(name+"_"+c.Kind.String(), levels(c.Values))
			}
			out.add(name+"_sa", levels(sa))
		}
	}

	if h > 0 {
		mean, stderr, err := est.Forecast(h, nil)
		if err != nil {
			return nil, err
		}
		PrintForecast(report, mean, stderr)
		fc := make([]float64, n+h)
		se := make([]float64, n+h)
		for t := 0; t < n; t++ {
			fc[t], se[t] = math.NaN(), math.NaN()
		}
		copy(fc[n:], mean)
		copy(se[n:], stderr)
		if cfg.Model.Log {
			fc = timeseries.Exp(fc)
		}
		out.add(name+"_forecast", fc)
		out.add(name+"_forecast_se", se)
	}
	return out, nil
}

// decompose splits the linearized series; the regression effect joins the
// trend.
func decompose(est *regarima.Estimation) ([]ucarima.Series, error) {
	d, err := ucarima.Decomposer{}.Decompose(est.Arima)
	if err != nil {
		return nil, err
	}
	comps, err := d.Estimate(est.Linearized(), est.Likelihood.Sigma2())
	if err != nil {
		return nil, err
	}
	reg := est.RegressionEffect()
	for i := range comps {
		if comps[i].Kind == ucarima.Trend {
			for t := range reg {
				comps[i].Values[t] += reg[t]
			}
		}
	}
	return comps, nil
}

func padded(x []float64, n int) []float64 {
	out := make([]float64, n)
	for t := range out {
		out[t] = math.NaN()
	}
	copy(out, x)
	return out
}

// parameterNames returns phi(i), theta(i), bphi(i), btheta(i) in the order
// of the parameter vector.
func parameterNames(spec arima.Spec) []string {
	prefix := map[arima.BlockKind]string{
		arima.RegularAR:  "phi",
		arima.RegularMA:  "theta",
		arima.SeasonalAR: "bphi",
		arima.SeasonalMA: "btheta",
	}
	var out []string
	for _, b := range spec.Blocks() {
		for i := 1; i <= b.Len; i++ {
			out = append(out, fmt.Sprintf("%s(%d)", prefix[b.Kind], i))
		}
	}
	return out
}
