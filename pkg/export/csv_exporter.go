package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var errNoHeaders = errors.New("dataset has no headers")

// CSVExporter encodes a Dataset as RFC 4180 CSV.
type CSVExporter struct {
	// Comma overrides the field delimiter. Zero means ','.
	Comma rune
}

// NewCSVExporter builds a comma separated exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render returns the encoded dataset.
func (e *CSVExporter) Render(data Dataset) ([]byte, error) {
	var buf bytes.Buffer
	if err := e.Write(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Write streams the dataset to w. Cells that a spreadsheet would evaluate as a formula are
// prefixed with a single quote.
func (e *CSVExporter) Write(w io.Writer, data Dataset) error {
	if len(data.Headers) == 0 {
		return fmt.Errorf("csv: %w", errNoHeaders)
	}
	writer := csv.NewWriter(w)
	if e.Comma != 0 {
		writer.Comma = e.Comma
	}
	if err := writer.Write(data.Headers); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	for i, row := range data.Rows {
		record := data.record(row)
		for j, cell := range record {
			record[j] = neutralizeFormula(cell)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("csv row %d: %w", i+1, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func neutralizeFormula(cell string) string {
	if cell != "" && strings.ContainsRune("=+-@", rune(cell[0])) {
		return "'" + cell
	}
	return cell
}
