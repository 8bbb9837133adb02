package statementsource

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// Supported statement extensions.
const (
	ExtCSV  = ".csv"
	ExtXLSX = ".xlsx"
	ExtXLS  = ".xls"
)

// readRows returns the cells of the first sheet of the statement at path, header row first.
func readRows(path string, delimiter rune) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ExtCSV:
		return readCSV(path, delimiter)
	case ExtXLSX:
		return readXLSX(path)
	case ExtXLS:
		return readXLS(path)
	default:
		return nil, fmt.Errorf("unsupported statement format: %s", filepath.Ext(path))
	}
}

func readCSV(path string, delimiter rune) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseCSV(f, delimiter)
}

func parseCSV(r io.Reader, delimiter rune) ([][]string, error) {
	cr := csv.NewReader(r)
	if delimiter != 0 {
		cr.Comma = delimiter
	}
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}
	if len(rows) > 0 && len(rows[0]) > 0 {
		rows[0][0] = strings.TrimPrefix(rows[0][0], "\ufeff")
	}
	return rows, nil
}

func readXLSX(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open XLSX: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func readXLS(path string) ([][]string, error) {
	book, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, fmt.Errorf("failed to open XLS: %w", err)
	}
	sheet := book.GetSheet(0)
	if sheet == nil {
		return nil, fmt.Errorf("no sheets found")
	}

	var rows [][]string
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for j := 0; j < row.LastCol(); j++ {
			cells = append(cells, row.Col(j))
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
