// Package report renders dry-run previews and run summaries.
package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"fjacquet/budget-sync/internal/fileutils"
	"fjacquet/budget-sync/internal/logging"
	"fjacquet/budget-sync/internal/models"

	"github.com/gocarina/gocsv"
	"gopkg.in/yaml.v3"
)

// Row is one transaction that a live run would insert.
type Row struct {
	Date       string `csv:"Date" json:"date"`
	Amount     string `csv:"Amount" json:"amount"`
	Payee      string `csv:"Payee" json:"payee"`
	Reference  string `csv:"Reference" json:"reference,omitempty"`
	Source     string `csv:"Source" json:"source,omitempty"`
	CategoryID int64  `csv:"CategoryID" json:"category_id,omitempty"`
	Category   string `csv:"Category" json:"category"`
	Strategy   string `csv:"Strategy" json:"strategy,omitempty"`
}

// Skipped is a movement left out because it already exists.
type Skipped struct {
	Transaction models.Transaction
	Method      string
}

// RowFromTransaction builds a preview row. An empty category name is shown as
// models.Uncategorized.
func RowFromTransaction(tx models.Transaction, categoryName, strategy string) Row {
	if categoryName == "" {
		categoryName = models.Uncategorized
	}
	return Row{
		Date:       tx.DateString(),
		Amount:     tx.AmountString(),
		Payee:      tx.Payee,
		Reference:  tx.Reference,
		Source:     tx.Source,
		CategoryID: tx.CategoryID,
		Category:   categoryName,
		Strategy:   strategy,
	}
}

// Generator renders previews and exports.
type Generator struct {
	logger    logging.Logger
	delimiter rune
}

// NewGenerator creates a Generator writing comma separated CSV.
func NewGenerator(logger logging.Logger) *Generator {
	return &Generator{logger: logging.OrDefault(logger), delimiter: ','}
}

// WithDelimiter returns a copy of g using delim for CSV output.
func (g *Generator) WithDelimiter(delim rune) *Generator {
	cp := *g
	cp.delimiter = delim
	return &cp
}

// Preview renders the dry-run text: the rows that would be inserted followed by
// the skipped duplicates.
func (g *Generator) Preview(rows []Row, skipped []Skipped) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Dry run: %d transaction(s) would be inserted, %d duplicate(s) skipped\n", len(rows), len(skipped))

	if len(rows) > 0 {
		b.WriteString("\n")
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "DATE\tAMOUNT\tPAYEE\tCATEGORY\tSTRATEGY")
		for _, r := range rows {
			strategy := r.Strategy
			if strategy == "" {
				strategy = "-"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Date, r.Amount, r.Payee, r.Category, strategy)
		}
		_ = tw.Flush()
	}

	if len(skipped) > 0 {
		b.WriteString("\nSkipped duplicates:\n")
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		for _, s := range skipped {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t(%s)\n", s.Transaction.DateString(), s.Transaction.AmountString(), s.Transaction.Payee, s.Method)
		}
		_ = tw.Flush()
	}

	return b.String()
}

// WriteCSV marshals rows with a header line to w.
func (g *Generator) WriteCSV(w io.Writer, rows []Row) error {
	if rows == nil {
		rows = []Row{}
	}
	csvWriter := csv.NewWriter(w)
	csvWriter.Comma = g.delimiter

	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(csvWriter)); err != nil {
		return fmt.Errorf("error writing CSV data: %w", err)
	}
	return nil
}

// WriteCSVFile writes rows to path, creating parent directories.
func (g *Generator) WriteCSVFile(path string, rows []Row) error {
	var buf bytes.Buffer
	if err := g.WriteCSV(&buf, rows); err != nil {
		return err
	}
	if err := fileutils.WriteFileAtomic(path, buf.Bytes(), 0640); err != nil {
		g.logger.WithError(err).Error("Failed to write preview CSV", logging.F(logging.FieldFile, path))
		return fmt.Errorf("error creating CSV file: %w", err)
	}

	g.logger.Info("Wrote preview CSV",
		logging.F(logging.FieldFile, path),
		logging.F(logging.FieldCount, len(rows)))
	return nil
}

// Render encodes v as "json" (indented), "yaml" or "text" (fmt %v).
func (g *Generator) Render(v any, format string) ([]byte, error) {
	switch strings.ToLower(format) {
	case "", "json":
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal JSON report: %w", err)
		}
		return append(out, '\n'), nil
	case "yaml":
		out, err := yaml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal YAML report: %w", err)
		}
		return out, nil
	case "text":
		return []byte(fmt.Sprintf("%v\n", v)), nil
	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
}

// Print renders v to stdout.
func (g *Generator) Print(v any, format string) error {
	out, err := g.Render(v, format)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}
