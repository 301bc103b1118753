package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"
)

// WriteCSV writes the tables one after another, each with its header and
// separated by an empty record.
func WriteCSV(w io.Writer, tables []Table) error {
	cw := csv.NewWriter(w)
	for i, t := range tables {
		if i > 0 {
			if err := cw.Write(nil); err != nil {
				return err
			}
		}
		if err := cw.Write(t.labels()); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
		for _, row := range t.Rows {
			record := make([]string, len(t.Columns))
			for j, c := range t.Columns {
				record[j] = formatValue(row[c.Key], time.RFC3339)
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("failed to write row: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
