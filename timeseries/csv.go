package timeseries

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// timeColumns are header names read into Frame.Time instead of Y.
var timeColumns = map[string]bool{"time": true, "date": true, "period": true}

// LoadCSV reads a CSV file:
//
//   - The first row is a header with variable names
//   - All remaining rows are numeric values; empty, "NA" and "NaN" cells
//     are missing values
//   - An optional numeric column named time, date or period gives the time
//     index; otherwise time is taken as 0,1,2,...
func LoadCSV(path string) (*Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	fr, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return fr, nil
}

// ReadCSV reads the format of LoadCSV from r.
func ReadCSV(r io.Reader) (*Frame, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) == 0 {
		return nil, errors.New("empty header")
	}
	timeCol := -1
	var names []string
	for j, h := range header {
		if timeCol < 0 && timeColumns[strings.ToLower(strings.TrimSpace(h))] {
			timeCol = j
			continue
		}
		names = append(names, strings.TrimSpace(h))
	}
	if len(names) == 0 {
		return nil, errors.New("no value columns")
	}
	K := len(header)

	var (
		data  []float64
		times []float64
		row   int
	)
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row+2, err) // +2 for header + 1-based
		}
		if len(record) == 1 && record[0] == "" {
			continue
		}
		if len(record) != K {
			return nil, fmt.Errorf("row %d: expected %d columns, got %d", row+2, K, len(record))
		}

		tv := float64(row)
		for j, s := range record {
			v, err := parseValue(s)
			if err != nil {
				return nil, fmt.Errorf("parse float at row %d col %d (%q): %w", row+2, j+1, s, err)
			}
			if j == timeCol {
				tv = v
				continue
			}
			data = append(data, v)
		}
		times = append(times, tv)
		row++
	}
	if row == 0 {
		return nil, errors.New("no data rows")
	}
	return &Frame{Y: mat.NewDense(row, len(names), data), Time: times, Names: names}, nil
}

func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch strings.ToUpper(s) {
	case "", "NA", "NAN", ".":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

// WriteCSV writes aligned columns with a header. NaN values are written as
// empty cells.
func WriteCSV(w io.Writer, header []string, columns [][]float64) error {
	if len(header) != len(columns) {
		return fmt.Errorf("%d names for %d columns", len(header), len(columns))
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	rows := 0
	for _, c := range columns {
		rows = max(rows, len(c))
	}
	record := make([]string, len(columns))
	for t := 0; t < rows; t++ {
		for j, c := range columns {
			if t >= len(c) || math.IsNaN(c[t]) {
				record[j] = ""
				continue
			}
			record[j] = strconv.FormatFloat(c[t], 'g', -1, 64)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
