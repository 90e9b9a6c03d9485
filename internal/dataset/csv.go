package dataset

// csv.go converts between CSV bytes and Dataset.
//
// Parsing is lenient in the way spreadsheet users expect: stray quotes are
// tolerated, blank header cells get positional names, duplicate header names
// get numeric suffixes, and lines whose field count does not match the header
// are skipped and counted rather than failing the whole file. Only input that
// cannot be read as rows and columns at all is rejected with ErrMalformedInput.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrMalformedInput is returned when input cannot be parsed into rows and
// named columns. It is fatal for the request that produced it.
var ErrMalformedInput = errors.New("malformed input")

// ReadStats describes what ingestion had to skip or repair.
type ReadStats struct {
	SkippedLines   int      // Lines with a field count different from the header
	RenamedColumns []string // Header cells that were blank or duplicated
}

// Issues renders the stats as report lines.
func (s ReadStats) Issues() []string {
	var issues []string
	if s.SkippedLines > 0 {
		issues = append(issues, fmt.Sprintf("%d malformed line(s) skipped during parsing", s.SkippedLines))
	}
	if len(s.RenamedColumns) > 0 {
		issues = append(issues, fmt.Sprintf("Renamed blank or duplicate column header(s): %s", strings.Join(s.RenamedColumns, ", ")))
	}
	return issues
}

// Read parses CSV input with a header row into a Dataset.
// Empty cells become null; every other cell is kept as a string value until
// type coercion runs.
func Read(r io.Reader) (*Dataset, ReadStats, error) {
	var stats ReadStats

	cr := csv.NewReader(wrapForParsing(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, stats, fmt.Errorf("%w: empty file", ErrMalformedInput)
	}
	if err != nil {
		return nil, stats, fmt.Errorf("%w: invalid csv header: %v", ErrMalformedInput, err)
	}

	columns, renamed := normalizeHeader(header)
	stats.RenamedColumns = renamed

	var rows []Row
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				stats.SkippedLines++
				continue
			}
			return nil, stats, fmt.Errorf("%w: invalid csv: %v", ErrMalformedInput, err)
		}
		if len(record) != len(columns) {
			// A trailing empty line inside quotes or a ragged export.
			stats.SkippedLines++
			continue
		}

		row := make(Row, len(record))
		for i, cell := range record {
			row[i] = Text(cell)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, stats, fmt.Errorf("%w: csv must have a header and at least one data row", ErrMalformedInput)
	}

	ds, err := New(columns, rows)
	if err != nil {
		return nil, stats, err
	}
	return ds, stats, nil
}

// normalizeHeader trims header cells, names blank ones "column_N", and
// suffixes duplicates ("email", "email_2").
func normalizeHeader(header []string) ([]string, []string) {
	columns := make([]string, len(header))
	seen := make(map[string]int, len(header))
	var renamed []string

	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
			renamed = append(renamed, name)
		}
		if n, dup := seen[name]; dup {
			next := n + 1
			candidate := fmt.Sprintf("%s_%d", name, next)
			for {
				if _, taken := seen[candidate]; !taken {
					break
				}
				next++
				candidate = fmt.Sprintf("%s_%d", name, next)
			}
			seen[name] = next
			name = candidate
			renamed = append(renamed, name)
		}
		seen[name] = 1
		columns[i] = name
	}
	return columns, renamed
}

// Write serializes the dataset as CSV with a header row.
// Null values are written as empty fields.
func Write(w io.Writer, ds *Dataset) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ds.Columns()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, ds.NumColumns())
	for i := 0; i < ds.Len(); i++ {
		for j := range record {
			record[j] = ds.At(i, j).String()
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
