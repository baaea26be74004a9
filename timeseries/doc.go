// Package timeseries holds the series type used by the command line tool
// and CSV input and output.
package timeseries
