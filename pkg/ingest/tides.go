package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/1F47E/shoreline-transects/pkg/models"
)

// ReadTides reads a two column CSV of timestamp and tide level. A header row is
// skipped when its second column is not a number.
func ReadTides(r io.Reader) ([]models.TideSample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var samples []models.TideSample
	for line := 1; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tides: %w", err)
		}
		if len(record) < 2 {
			return nil, fmt.Errorf("tides line %d: expected 2 columns, got %d", line, len(record))
		}

		level, err := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("tides line %d: invalid level %q", line, record[1])
		}
		ts, err := ParseTime(strings.TrimSpace(record[0]))
		if err != nil {
			return nil, fmt.Errorf("tides line %d: %w", line, err)
		}
		samples = append(samples, models.TideSample{Time: ts, Level: level})
	}
	return samples, nil
}

// WriteTides writes samples in the format read by ReadTides
func WriteTides(w io.Writer, samples []models.TideSample) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"dates", "tide"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, s := range samples {
		row := []string{s.Time.UTC().Format(time.RFC3339), strconv.FormatFloat(s.Level, 'f', -1, 64)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write tide: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
