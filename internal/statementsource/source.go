// Package statementsource reads movements from bank statement exports
// (CSV, XLSX and legacy XLS) dropped into a directory.
package statementsource

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"fjacquet/budget-sync/internal/batch"
	"fjacquet/budget-sync/internal/currencyutils"
	"fjacquet/budget-sync/internal/dateutils"
	"fjacquet/budget-sync/internal/fileutils"
	"fjacquet/budget-sync/internal/logging"
	"fjacquet/budget-sync/internal/models"
	"fjacquet/budget-sync/internal/syncerror"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// SourceName identifies statement files in errors, logs and Transaction.Source.
const SourceName = "statement"

// Mapping names the header of each column, matched case-insensitively.
// Either Amount or at least one of Debit and Credit must be set.
type Mapping struct {
	Date      string
	Payee     string
	Amount    string
	Debit     string
	Credit    string
	Reference string
	Notes     string

	// DateLayouts restricts date parsing, CommonFormats of dateutils otherwise.
	DateLayouts []string

	// Delimiter of CSV files, ',' when zero.
	Delimiter rune
}

// DefaultMapping matches the column names of a typical e-banking export.
func DefaultMapping() Mapping {
	return Mapping{
		Date:      "Date",
		Payee:     "Description",
		Amount:    "Amount",
		Reference: "Reference",
		Delimiter: ',',
	}
}

// Validate checks that the mapping can produce a movement.
func (m Mapping) Validate() error {
	if strings.TrimSpace(m.Date) == "" {
		return fmt.Errorf("%w: statement date column is required", syncerror.ErrInvalidConfig)
	}
	if strings.TrimSpace(m.Payee) == "" {
		return fmt.Errorf("%w: statement payee column is required", syncerror.ErrInvalidConfig)
	}
	if m.Amount == "" && m.Debit == "" && m.Credit == "" {
		return fmt.Errorf("%w: statement amount or debit/credit columns are required", syncerror.ErrInvalidConfig)
	}
	return nil
}

// Source reads every supported statement file of a directory.
type Source struct {
	dir     string
	mapping Mapping
	logger  logging.Logger
}

// NewSource creates a Source over dir.
func NewSource(dir string, mapping Mapping, logger logging.Logger) *Source {
	return &Source{dir: dir, mapping: mapping, logger: logging.OrDefault(logger)}
}

func (s *Source) Name() string {
	return SourceName
}

// FetchMovements returns the rows of every statement dated in window, files in path order.
// Rows that cannot be parsed are returned with Invalid set whatever their date,
// a file that cannot be read fails the fetch.
func (s *Source) FetchMovements(ctx context.Context, window batch.DateRange) ([]models.Transaction, error) {
	var files []string
	for _, ext := range []string{ExtCSV, ExtXLSX, ExtXLS} {
		found, err := fileutils.ListFilesWithExtension(s.dir, ext)
		if err != nil {
			return nil, &syncerror.FetchError{Source: SourceName, Op: "list statements", Err: err}
		}
		files = append(files, found...)
	}
	sort.Strings(files)

	var out []models.Transaction
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		txs, err := s.ReadFile(path)
		if err != nil {
			return nil, &syncerror.FetchError{Source: SourceName, Op: "read " + filepath.Base(path), Err: err}
		}
		for _, tx := range txs {
			if tx.Invalid != nil || window.Contains(tx.Date) {
				out = append(out, tx)
			}
		}
	}

	s.logger.Debug("Read statement files",
		logging.F(logging.FieldCount, len(out)),
		logging.F("files", len(files)))
	return out, nil
}

// ReadFile converts one statement file into movements.
func (s *Source) ReadFile(path string) ([]models.Transaction, error) {
	rows, err := readRows(path, s.mapping.Delimiter)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols, err := s.columns(rows[0])
	if err != nil {
		return nil, err
	}

	base := filepath.Base(path)
	var out []models.Transaction
	for i, row := range rows[1:] {
		if isEmptyRow(row) {
			continue
		}
		tx, err := s.toTransaction(cols, row)
		if err != nil {
			tx = models.Transaction{
				Payee:     strings.TrimSpace(cell(row, cols.payee)),
				Reference: strings.TrimSpace(cell(row, cols.reference)),
				Source:    SourceName,
				Invalid:   fmt.Errorf("%s row %d: %w", base, i+2, err),
			}
		}
		out = append(out, tx)
	}
	return out, nil
}

type columnIndex struct {
	date, payee, amount, debit, credit, reference, notes int
}

func (s *Source) columns(header []string) (columnIndex, error) {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if _, seen := byName[key]; !seen {
			byName[key] = i
		}
	}
	lookup := func(name string, required bool) (int, error) {
		if name == "" {
			return -1, nil
		}
		i, ok := byName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			if required {
				return -1, fmt.Errorf("column %q not found in header", name)
			}
			return -1, nil
		}
		return i, nil
	}

	var (
		idx columnIndex
		err error
	)
	if idx.date, err = lookup(s.mapping.Date, true); err != nil {
		return idx, err
	}
	if idx.payee, err = lookup(s.mapping.Payee, true); err != nil {
		return idx, err
	}
	if idx.amount, err = lookup(s.mapping.Amount, s.mapping.Debit == "" && s.mapping.Credit == ""); err != nil {
		return idx, err
	}
	if idx.debit, err = lookup(s.mapping.Debit, false); err != nil {
		return idx, err
	}
	if idx.credit, err = lookup(s.mapping.Credit, false); err != nil {
		return idx, err
	}
	if idx.amount < 0 && idx.debit < 0 && idx.credit < 0 {
		return idx, fmt.Errorf("no amount column found in header")
	}
	idx.reference, _ = lookup(s.mapping.Reference, false)
	idx.notes, _ = lookup(s.mapping.Notes, false)
	return idx, nil
}

func (s *Source) toTransaction(cols columnIndex, row []string) (models.Transaction, error) {
	date, err := s.parseDate(cell(row, cols.date))
	if err != nil {
		return models.Transaction{}, err
	}

	amount, err := s.amount(cols, row)
	if err != nil {
		return models.Transaction{}, err
	}

	payee := strings.TrimSpace(cell(row, cols.payee))
	if payee == "" {
		return models.Transaction{}, fmt.Errorf("empty payee")
	}

	return models.Transaction{
		Date:      date,
		Amount:    amount,
		Payee:     payee,
		Reference: strings.TrimSpace(cell(row, cols.reference)),
		Notes:     strings.TrimSpace(cell(row, cols.notes)),
		Source:    SourceName,
	}, nil
}

func (s *Source) amount(cols columnIndex, row []string) (decimal.Decimal, error) {
	if cols.amount >= 0 {
		return currencyutils.ParseAmount(cell(row, cols.amount))
	}
	debit, err := currencyutils.ParseAmount(cell(row, cols.debit))
	if err != nil {
		return decimal.Zero, err
	}
	credit, err := currencyutils.ParseAmount(cell(row, cols.credit))
	if err != nil {
		return decimal.Zero, err
	}
	return credit.Abs().Sub(debit.Abs()), nil
}

// parseDate accepts the configured layouts, or an Excel serial day number as
// left in cells without a date format.
func (s *Source) parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial > 0 && !strings.ContainsAny(value, ".-/") {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid excel date %q: %w", value, err)
		}
		return dateutils.ToCalendarDay(t), nil
	}

	layouts := s.mapping.DateLayouts
	if len(layouts) == 0 {
		layouts = dateutils.CommonFormats
	}
	d, _, err := dateutils.ParseDateWithLayouts(value, layouts...)
	return d, err
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func isEmptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
