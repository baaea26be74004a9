package timeseries

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tsadjust/polynomial"
)

func TestLoadCSV(t *testing.T) {
	fr, err := LoadCSV("../testdata/airpassengers.csv")
	require.NoError(t, err)
	assert.Equal(t, 144, fr.Len())
	assert.Equal(t, []string{"passengers"}, fr.Names)
	assert.InDelta(t, 194901, fr.Time[0], 0)
	assert.InDelta(t, 196012, fr.Time[143], 0)

	s, err := fr.Series("passengers", 12)
	require.NoError(t, err)
	assert.InDelta(t, 112, s.Values[0], 0)
	assert.InDelta(t, 432, s.Values[143], 0)
	assert.Empty(t, s.Missing())

	_, err = fr.Series("unknown", 12)
	assert.Error(t, err)
	_, err = LoadCSV("../testdata/does-not-exist.csv")
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	in := "a, b\n1,2\n\n3,NA\n,4\n5,6\n"
	fr, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, fr.Names)
	assert.Equal(t, 4, fr.Len())
	assert.Equal(t, []float64{0, 1, 2, 3}, fr.Time)

	b := fr.Column(1, 1)
	assert.Equal(t, []int{1}, b.Missing())
	a := fr.Column(0, 1)
	assert.Equal(t, []int{2}, a.Missing())
	assert.InDelta(t, 3, a.Mean(), 1e-12)

	x, err := fr.Columns([]string{"b", "a"})
	require.NoError(t, err)
	assert.InDelta(t, 2, x.At(0, 0), 0)
	assert.InDelta(t, 1, x.At(0, 1), 0)

	tests := []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"no rows", "a,b\n"},
		{"ragged", "a,b\n1,2\n3\n"},
		{"not a number", "a\nx\n"},
		{"only time", "date\n1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tt.in))
			assert.Error(t, err)
		})
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []string{"y", "f"}, [][]float64{{1, math.NaN(), 3}, {0.5}})
	require.NoError(t, err)
	assert.Equal(t, "y,f\n1,0.5\n,\n3,\n", buf.String())

	assert.Error(t, WriteCSV(&buf, []string{"y"}, nil))
}

func TestSeriesTransformations(t *testing.T) {
	s := &Series{Name: "s", Period: 4, Values: []float64{1, math.E, math.NaN(), math.E * math.E}}
	l, err := s.Log()
	require.NoError(t, err)
	assert.InDelta(t, 0, l.Values[0], 1e-15)
	assert.InDelta(t, 2, l.Values[3], 1e-15)
	assert.True(t, math.IsNaN(l.Values[2]))
	assert.InDeltaSlice(t, []float64{1, math.E}, Exp(l.Values[:2]), 1e-15)

	_, err = (&Series{Values: []float64{1, -1}}).Log()
	assert.Error(t, err)

	d := (&Series{Values: []float64{1, 2, 4, 7, 11, 16}}).Difference(polynomial.New(1, -1).Seasonal(2))
	assert.Equal(t, []float64{3, 5, 7, 9}, d)
}

func TestExtendTime(t *testing.T) {
	assert.Equal(t, []float64{196011, 196012, 196101, 196102},
		ExtendTime([]float64{196011, 196012}, 2, 12))
	assert.Equal(t, []float64{19993, 19994, 20001},
		ExtendTime([]float64{19993, 19994}, 1, 4))
	assert.Equal(t, []float64{10, 11, 12, 13}, ExtendTime([]float64{10, 11}, 2, 12))
	assert.Equal(t, []float64{1.5, 2, 2.5}, ExtendTime([]float64{1.5, 2}, 1, 1))
	assert.Equal(t, []float64{7}, ExtendTime([]float64{7}, 0, 12))
}
