package extract

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedTable is returned for files that are neither CSV nor XLSX.
var ErrUnsupportedTable = errors.New("unsupported spreadsheet format")

// MaxTableRows caps how many rows are sent to the model.
const MaxTableRows = 500

// ReadTable reads the first sheet of a CSV or XLSX file. The first non-empty
// row is the header; blank rows are skipped.
func ReadTable(name string, r io.Reader) ([]Row, error) {
	var records [][]string
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		all, err := cr.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("reading CSV: %w", err)
		}
		records = all
	case ".xlsx", ".xlsm":
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, fmt.Errorf("opening spreadsheet: %w", err)
		}
		defer f.Close()

		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return []Row{}, nil
		}
		all, err := f.GetRows(sheets[0])
		if err != nil {
			return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
		}
		records = all
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTable, name)
	}
	return toRows(records)
}

func toRows(records [][]string) ([]Row, error) {
	var header []string
	rows := []Row{}
	for _, rec := range records {
		if blank(rec) {
			continue
		}
		if header == nil {
			header = make([]string, len(rec))
			for i, h := range rec {
				header[i] = strings.TrimSpace(h)
				if header[i] == "" {
					header[i] = fmt.Sprintf("col%d", i+1)
				}
			}
			continue
		}
		if len(rows) == MaxTableRows {
			return nil, fmt.Errorf("spreadsheet has more than %d rows", MaxTableRows)
		}
		row := make(Row, len(header))
		for i, cell := range rec {
			if i >= len(header) {
				break
			}
			if cell = strings.TrimSpace(cell); cell != "" {
				row[header[i]] = cell
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
