// Package series assembles per-transect distance series into a date-indexed
// table and post-processes it.
package series

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"
)

var (
	// ErrLengthMismatch is returned when a column does not match the date axis
	ErrLengthMismatch = errors.New("column length does not match dates")
	// ErrUnordered is returned when dates are not chronological
	ErrUnordered = errors.New("dates are not in chronological order")
	// ErrUnknownTransect is returned for a column that does not exist
	ErrUnknownTransect = errors.New("unknown transect")
)

// Table holds one row per date and one column per transect. Rejected cells are NaN.
type Table struct {
	Dates []time.Time
	// Sensors is either empty or aligned with Dates.
	Sensors []string
	Names   []string
	// Values[c][r] is transect Names[c] on Dates[r].
	Values [][]float64
}

// Assemble builds a table from series keyed by transect name. Columns are ordered
// by name; rows keep the order of dates, which must be chronological.
func Assemble(dates []time.Time, sensors []string, series map[string][]float64) (*Table, error) {
	for i := 1; i < len(dates); i++ {
		if dates[i].Before(dates[i-1]) {
			return nil, fmt.Errorf("%w: row %d", ErrUnordered, i)
		}
	}
	if len(sensors) != 0 && len(sensors) != len(dates) {
		return nil, fmt.Errorf("%w: %d sensors for %d dates", ErrLengthMismatch, len(sensors), len(dates))
	}

	names := make([]string, 0, len(series))
	for name, values := range series {
		if len(values) != len(dates) {
			return nil, fmt.Errorf("%w: %s has %d values for %d dates", ErrLengthMismatch, name, len(values), len(dates))
		}
		names = append(names, name)
	}
	sort.Strings(names)

	t := &Table{
		Dates:   append([]time.Time(nil), dates...),
		Sensors: append([]string(nil), sensors...),
		Names:   names,
		Values:  make([][]float64, len(names)),
	}
	for c, name := range names {
		t.Values[c] = append([]float64(nil), series[name]...)
	}
	return t, nil
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.Dates)
}

// Column returns the values of one transect
func (t *Table) Column(name string) ([]float64, error) {
	c := sort.SearchStrings(t.Names, name)
	if c == len(t.Names) || t.Names[c] != name {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransect, name)
	}
	return t.Values[c], nil
}

// Row returns the values of every transect on row r, in column order
func (t *Table) Row(r int) []float64 {
	row := make([]float64, len(t.Names))
	for c := range t.Names {
		row[c] = t.Values[c][r]
	}
	return row
}

// Series returns a copy of the table keyed by transect name
func (t *Table) Series() map[string][]float64 {
	out := make(map[string][]float64, len(t.Names))
	for c, name := range t.Names {
		out[name] = append([]float64(nil), t.Values[c]...)
	}
	return out
}

// Clone returns a deep copy
func (t *Table) Clone() *Table {
	clone := &Table{
		Dates:   append([]time.Time(nil), t.Dates...),
		Sensors: append([]string(nil), t.Sensors...),
		Names:   append([]string(nil), t.Names...),
		Values:  make([][]float64, len(t.Values)),
	}
	for c := range t.Values {
		clone.Values[c] = append([]float64(nil), t.Values[c]...)
	}
	return clone
}

// WriteCSV writes the table with a dates column, a satname column when sensors
// are known, and one column per transect. NaN cells are written as NaN.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	header := []string{"dates"}
	if len(t.Sensors) > 0 {
		header = append(header, "satname")
	}
	header = append(header, t.Names...)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for r, d := range t.Dates {
		record := make([]string, 0, len(header))
		record = append(record, d.UTC().Format(time.RFC3339))
		if len(t.Sensors) > 0 {
			record = append(record, t.Sensors[r])
		}
		for c := range t.Names {
			record = append(record, strconv.FormatFloat(t.Values[c][r], 'f', -1, 64))
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
