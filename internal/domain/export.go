package domain

import (
	"encoding/csv"
	"fmt"
	"io"
)

const (
	// ExportFileName is the download name of the enriched CSV.
	ExportFileName = "ship_info.csv"

	// ExportContentType is the MIME type of the enriched CSV.
	ExportContentType = "text/csv"
)

// WriteCSV serializes the enriched table as UTF-8 CSV with the columns
// returned by Header.
func WriteCSV(w io.Writer, t *EnrichedTable) error {
	cw := csv.NewWriter(w)
	header := t.Header()
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	row := make([]string, len(header))
	for i := range t.Records {
		for j, col := range header {
			row[j] = t.Records[i].Value(col)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
