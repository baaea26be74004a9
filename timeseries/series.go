package timeseries

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"tsadjust/polynomial"
)

// Series is a regularly spaced series. Missing values are NaN.
type Series struct {
	Name   string
	Period int // observations per year, 1 when unknown
	Values []float64
}

// Len returns the number of observations.
func (s *Series) Len() int { return len(s.Values) }

// Missing returns the positions of the missing values.
func (s *Series) Missing() []int {
	var out []int
	for t, v := range s.Values {
		if math.IsNaN(v) {
			out = append(out, t)
		}
	}
	return out
}

// Log returns the series in logs. Every observed value must be positive.
func (s *Series) Log() (*Series, error) {
	out := &Series{Name: s.Name, Period: s.Period, Values: make([]float64, len(s.Values))}
	for t, v := range s.Values {
		if !math.IsNaN(v) && v <= 0 {
			return nil, fmt.Errorf("log of %s: non-positive value %g at %d", s.Name, v, t)
		}
		out.Values[t] = math.Log(v)
	}
	return out, nil
}

// Exp returns exp of the values.
func Exp(x []float64) []float64 {
	out := make([]float64, len(x))
	for t, v := range x {
		out[t] = math.Exp(v)
	}
	return out
}

// Difference filters the series with p(B); the first deg(p) observations
// are lost.
func (s *Series) Difference(p polynomial.Polynomial) []float64 {
	return p.Apply(s.Values)
}

// Mean returns the mean of the observed values.
func (s *Series) Mean() float64 {
	var obs []float64
	for _, v := range s.Values {
		if !math.IsNaN(v) {
			obs = append(obs, v)
		}
	}
	if len(obs) == 0 {
		return math.NaN()
	}
	return floats.Sum(obs) / float64(len(obs))
}

// Frame is a set of aligned series: one column per variable, one row per
// period.
type Frame struct {
	// Y is the T x K matrix of values
	Y *mat.Dense
	// Time is the time index of the rows, 0, 1, 2... when the file has none
	Time []float64
	// Names has one entry per column of Y
	Names []string
}

// Len returns the number of periods.
func (f *Frame) Len() int {
	r, _ := f.Y.Dims()
	return r
}

// Column returns column j as a series.
func (f *Frame) Column(j int, period int) *Series {
	return &Series{Name: f.Names[j], Period: period, Values: mat.Col(nil, j, f.Y)}
}

// Series returns the column with the given name.
func (f *Frame) Series(name string, period int) (*Series, error) {
	for j, n := range f.Names {
		if n == name {
			return f.Column(j, period), nil
		}
	}
	return nil, fmt.Errorf("no column %q in %v", name, f.Names)
}

// Columns returns the named columns as the columns of a matrix, nil when
// names is empty.
func (f *Frame) Columns(names []string) (*mat.Dense, error) {
	if len(names) == 0 {
		return nil, nil
	}
	out := mat.NewDense(f.Len(), len(names), nil)
	for k, name := range names {
		s, err := f.Series(name, 1)
		if err != nil {
			return nil, err
		}
		out.SetCol(k, s.Values)
	}
	return out, nil
}

// ExtendTime continues the time index h periods. yyyymm (period 12) and
// yyyyq (period 4) stamps with a four-digit year roll over the year; any other index continues
// with its last step.
func ExtendTime(times []float64, h, period int) []float64 {
	out := append(make([]float64, 0, len(times)+h), times...)
	if len(times) == 0 || h <= 0 {
		return out
	}
	last := times[len(times)-1]
	base := 0.0
	switch period {
	case 12:
		base = 100
	case 4:
		base = 10
	}
	if base > 0 && last >= 1000*base && last == math.Trunc(last) {
		sub := math.Mod(last, base)
		if sub >= 1 && sub <= float64(period) {
			year := math.Floor(last / base)
			for i := 0; i < h; i++ {
				if sub++; sub > float64(period) {
					sub = 1
					year++
				}
				out = append(out, year*base+sub)
			}
			return out
		}
	}
	step := 1.0
	if len(times) > 1 {
		step = last - times[len(times)-2]
	}
	for i := 1; i <= h; i++ {
		out = append(out, last+float64(i)*step)
	}
	return out
}
