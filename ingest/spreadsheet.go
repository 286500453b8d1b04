package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/sigilo/go-sigilo-server/types"
	"github.com/xuri/excelize/v2"
)

// RowError records a recipient row that could not be parsed. The row index
// is 1-based and counts data rows, the header is not counted.
type RowError struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// ParseRecipientTable reads an uploaded recipient table (xlsx or csv) into
// recipient rows. The first row is treated as a header and skipped. A
// malformed row is recorded as a RowError and never aborts the rest of the
// file, only an unreadable file returns an error.
func ParseRecipientTable(filename string, content []byte) ([]types.RecipientRow, []RowError, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return parseWorkbook(content)
	case ".csv":
		return parseCsv(content)
	}
	// no usable extension, sniff the content
	if bytes.HasPrefix(content, []byte("PK")) {
		return parseWorkbook(content)
	}
	return parseCsv(content)
}

func parseWorkbook(content []byte) ([]types.RecipientRow, []RowError, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}
	return collectRows(rows[1:])
}

func parseCsv(content []byte) ([]types.RecipientRow, []RowError, error) {
	reader := csv.NewReader(bytes.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read csv: %w", err)
		}
		rows = append(rows, record)
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}
	return collectRows(rows[1:])
}

// collectRows maps raw cells to recipient rows, column order is serial,
// email, name
func collectRows(raw [][]string) ([]types.RecipientRow, []RowError, error) {
	recipients := make([]types.RecipientRow, 0, len(raw))
	var failed []RowError
	for i, cells := range raw {
		index := i + 1
		if isEmptyRow(cells) {
			continue
		}
		if len(cells) < 2 {
			failed = append(failed, RowError{Index: index, Reason: "expected at least serial and email columns"})
			continue
		}
		row := types.RecipientRow{
			Serial: strings.TrimSpace(cells[0]),
			Email:  strings.TrimSpace(cells[1]),
		}
		if len(cells) > 2 {
			row.Name = strings.TrimSpace(cells[2])
		}
		if row.Serial == "" {
			failed = append(failed, RowError{Index: index, Reason: "missing serial"})
			continue
		}
		if row.Email == "" {
			failed = append(failed, RowError{Index: index, Reason: "missing email"})
			continue
		}
		recipients = append(recipients, row)
	}
	return recipients, failed, nil
}

func isEmptyRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
