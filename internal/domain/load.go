package domain

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
)

var (
	// ErrEmptyCSV is returned when an upload has no header or no data rows.
	ErrEmptyCSV = errors.New("csv has no data rows")

	// ErrMissingColumns is returned when the header lacks a required column.
	ErrMissingColumns = errors.New("csv is missing required columns")
)

// ParseCSV reads an AIS export and returns its rows sorted by BaseDateTime.
//
// The sort compares the raw BaseDateTime text, which is chronological for the
// ISO timestamps in Marine Cadastre exports. Enrichment re-sorts on the parsed
// time, so other layouts still produce ordered output.
func ParseCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyCSV
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	header = normalizeHeader(header)

	if missing := missingColumns(header); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	table := &Table{Columns: header}
	for row := 1; ; row++ {
		values, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", row, err)
		}

		fields := make(map[string]string, len(header))
		for i, col := range header {
			fields[col] = values[i]
		}
		table.Rows = append(table.Rows, Broadcast{
			Row:    row,
			Fields: fields,
			Length: parseOptionalFloat(fields[ColLength]),
		})
	}

	if len(table.Rows) == 0 {
		return nil, ErrEmptyCSV
	}

	slices.SortStableFunc(table.Rows, func(a, b Broadcast) int {
		return strings.Compare(a.BaseDateTime(), b.BaseDateTime())
	})
	return table, nil
}

// normalizeHeader trims whitespace and a leading UTF-8 byte order mark.
func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		out[i] = strings.TrimSpace(h)
	}
	return out
}

func missingColumns(header []string) []string {
	var missing []string
	for _, col := range RequiredColumns {
		if !slices.Contains(header, col) {
			missing = append(missing, col)
		}
	}
	return missing
}

// parseOptionalFloat returns nil for empty or non-numeric cells.
func parseOptionalFloat(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}
