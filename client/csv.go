package client

import (
	"encoding/csv"
	"fmt"
	"io"
)

// ReadCSV parses a CSV export into loose rows keyed by the header line,
// matching what the dashboard sends after parsing a file in the browser.
// Empty lines are skipped; short records leave trailing columns absent.
func ReadCSV(r io.Reader) ([]map[string]any, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv file is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	var rows []map[string]any
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv record: %w", err)
		}

		empty := true
		for _, field := range record {
			if field != "" {
				empty = false
				break
			}
		}
		if empty {
			continue
		}

		row := make(map[string]any, len(header))
		for i, key := range header {
			if i >= len(record) {
				break
			}
			row[key] = record[i]
		}
		rows = append(rows, row)
	}
	return rows, nil
}
