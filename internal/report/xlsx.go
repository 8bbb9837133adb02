package report

import (
	"fmt"
	"path/filepath"
	"strconv"

	"fjacquet/budget-sync/internal/fileutils"
	"fjacquet/budget-sync/internal/logging"

	"github.com/xuri/excelize/v2"
)

// PreviewSheet is the worksheet name used in exported workbooks.
const PreviewSheet = "Preview"

var xlsxHeader = []string{"Date", "Amount", "Payee", "Reference", "Source", "CategoryID", "Category", "Strategy"}

// WriteXLSXFile exports rows as a single sheet workbook. Amounts are written
// as numbers so they can be summed in a spreadsheet.
func (g *Generator) WriteXLSXFile(path string, rows []Row) error {
	if err := fileutils.EnsureDirectoryExists(filepath.Dir(path)); err != nil {
		return err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			g.logger.WithError(err).Warn("Failed to close workbook")
		}
	}()

	if err := f.SetSheetName(f.GetSheetName(0), PreviewSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, len(xlsxHeader))
	for i, h := range xlsxHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(PreviewSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for i, r := range rows {
		var amount interface{} = r.Amount
		if v, err := strconv.ParseFloat(r.Amount, 64); err == nil {
			amount = v
		}
		values := []interface{}{r.Date, amount, r.Payee, r.Reference, r.Source, r.CategoryID, r.Category, r.Strategy}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(PreviewSheet, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}

	g.logger.Info("Wrote preview workbook",
		logging.F(logging.FieldFile, path),
		logging.F(logging.FieldCount, len(rows)))
	return nil
}

// ReadXLSXRows reads back the preview sheet as text rows, header included.
func ReadXLSXRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.GetRows(PreviewSheet)
}
