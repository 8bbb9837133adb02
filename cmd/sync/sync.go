// Package sync implements the one-shot sync command.
package sync

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"fjacquet/budget-sync/cmd/root"
	"fjacquet/budget-sync/internal/batch"
	"fjacquet/budget-sync/internal/models"
	"fjacquet/budget-sync/internal/report"
	"fjacquet/budget-sync/internal/syncer"
	"fjacquet/budget-sync/internal/validation"

	"github.com/spf13/cobra"
)

var (
	dryRun      bool
	previewCSV  string
	previewXLSX string
	output      string
	from        string
	to          string

	nowFunc = time.Now
)

// Cmd represents the sync command
var Cmd = &cobra.Command{
	Use:   "sync",
	Short: "Synchronize bank movements into the budgeting service",
	Long: `Fetch movements from every enabled source, drop those already present in the
budgeting service, categorize the rest and insert them in batches. With --dry-run
nothing is inserted and a preview is printed instead.`,
	RunE: runSync,
}

func init() {
	Cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview without inserting (default from sync.dry_run)")
	Cmd.Flags().StringVar(&previewCSV, "preview-csv", "", "Write the dry-run rows to this CSV file")
	Cmd.Flags().StringVar(&previewXLSX, "preview-xlsx", "", "Write the dry-run rows to this XLSX file")
	Cmd.Flags().StringVarP(&output, "output", "o", "text", "Summary format: text, json or yaml")
	Cmd.Flags().StringVar(&from, "from", "", "Window start (YYYY-MM-DD), overrides sync.days_back")
	Cmd.Flags().StringVar(&to, "to", "", "Window end (YYYY-MM-DD), defaults to today")
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := validateFlags(); err != nil {
		return err
	}

	c, err := root.NewContainer(ctx, true)
	if err != nil {
		return err
	}
	defer c.Close()

	opts, err := buildOptions(c.GetConfig().Sync.DryRun || dryRun, cmd.Flags().Changed("dry-run"))
	if err != nil {
		return err
	}

	summary, runErr := c.GetOrchestrator().Run(ctx, opts)
	if summary != nil {
		if err := writeSummary(cmd.OutOrStdout(), c.GetReporter(), summary, output); err != nil {
			return err
		}
	}
	if runErr != nil {
		return runErr
	}
	if !summary.Success {
		return fmt.Errorf("sync finished with %d failed batches", len(summary.InsertionErrors))
	}
	return nil
}

func validateFlags() error {
	if err := validation.IsValidOutputFormat(output); err != nil {
		return err
	}
	if err := validation.IsValidExportPath(previewCSV, ".csv"); err != nil {
		return err
	}
	return validation.IsValidExportPath(previewXLSX, ".xlsx")
}

// buildOptions turns the flags into run options. An explicit --dry-run=false
// overrides a dry run enabled in the configuration.
func buildOptions(configured, flagSet bool) (syncer.Options, error) {
	opts := syncer.Options{
		DryRun:      configured,
		PreviewCSV:  previewCSV,
		PreviewXLSX: previewXLSX,
	}
	if flagSet {
		opts.DryRun = dryRun
	}
	window, err := parseWindow(from, to)
	if err != nil {
		return opts, err
	}
	opts.Window = window
	return opts, nil
}

func parseWindow(fromValue, toValue string) (batch.DateRange, error) {
	if fromValue == "" {
		if toValue != "" {
			return batch.DateRange{}, fmt.Errorf("--to requires --from")
		}
		return batch.DateRange{}, nil
	}
	start, err := models.ParseDate(fromValue)
	if err != nil {
		return batch.DateRange{}, err
	}
	end := models.TruncateToDate(nowFunc())
	if toValue != "" {
		if end, err = models.ParseDate(toValue); err != nil {
			return batch.DateRange{}, err
		}
	}
	if end.Before(start) {
		return batch.DateRange{}, fmt.Errorf("window end %s is before start %s", toValue, fromValue)
	}
	return batch.DateRange{Start: start, End: end}, nil
}

func writeSummary(w io.Writer, g *report.Generator, s *syncer.Summary, format string) error {
	if !strings.EqualFold(format, "text") {
		out, err := g.Render(s, format)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	}

	if s.DryRun && s.Preview != "" {
		fmt.Fprintln(w, s.Preview)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Run\t%s\n", s.RunID)
	fmt.Fprintf(tw, "Dry run\t%t\n", s.DryRun)
	fmt.Fprintf(tw, "Success\t%t\n", s.Success)
	fmt.Fprintf(tw, "Processed\t%d\n", s.Processed)
	fmt.Fprintf(tw, "Inserted\t%d\n", s.Inserted)
	fmt.Fprintf(tw, "Skipped\t%d\n", s.Skipped)
	fmt.Fprintf(tw, "Errors\t%d\n", s.Errors)
	for _, e := range s.ProcessingErrors {
		fmt.Fprintf(tw, "  processing\t%v\n", e)
	}
	for _, e := range s.InsertionErrors {
		fmt.Fprintf(tw, "  insertion\t%v\n", e)
	}
	return tw.Flush()
}
