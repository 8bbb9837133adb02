// Package memory implements the payee memory administration commands.
package memory

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"fjacquet/budget-sync/cmd/root"
	"fjacquet/budget-sync/internal/history"
	"fjacquet/budget-sync/internal/logging"
	"fjacquet/budget-sync/internal/memory"
	"fjacquet/budget-sync/internal/models"
	"fjacquet/budget-sync/internal/report"
	"fjacquet/budget-sync/internal/validation"

	"github.com/spf13/cobra"
)

// DefaultRebuildDays is how far back rebuild looks without --since.
const DefaultRebuildDays = 365

var (
	output  string
	since   string
	days    int
	replace bool

	nowFunc = time.Now
)

// Cmd groups the memory subcommands
var Cmd = &cobra.Command{
	Use:   "memory",
	Short: "Inspect and maintain the learned payee memory",
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show payee memory statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := validation.IsValidOutputFormat(output); err != nil {
			return err
		}
		c, err := root.NewContainer(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer c.Close()
		return runStats(cmd.Context(), c.GetMemory(), c.GetReporter(), cmd.OutOrStdout(), output)
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every learned payee",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := root.NewContainer(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.GetMemory().Clear(cmd.Context()); err != nil {
			return err
		}
		root.Log.Info("Payee memory cleared", logging.F(logging.FieldBackend, c.GetConfig().Memory.Backend))
		return nil
	},
}

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Learn payee categories from the budgeting service history",
	Long: `Fetch categorized transactions of the account and learn, for each payee seen
at least twice, its most frequent category. The result is merged into the stored
memory, or replaces it with --replace.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		start, err := sinceDate(since, days)
		if err != nil {
			return err
		}
		c, err := root.NewContainer(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer c.Close()

		learned, total, err := runRebuild(cmd.Context(), c.GetMemory(), c.HistoryFetcher(nowFunc), start, replace)
		if err != nil {
			return err
		}
		root.Log.Info("Payee memory rebuilt",
			logging.F("since", start.Format(models.DateLayout)),
			logging.F("learned", learned),
			logging.F("total", total),
			logging.F("replace", replace))
		fmt.Fprintf(cmd.OutOrStdout(), "Learned %d payees, memory now holds %d entries\n", learned, total)
		return nil
	},
}

func init() {
	statsCmd.Flags().StringVarP(&output, "output", "o", "text", "Output format: text, json or yaml")
	rebuildCmd.Flags().StringVar(&since, "since", "", "History start (YYYY-MM-DD)")
	rebuildCmd.Flags().IntVar(&days, "days", DefaultRebuildDays, "History length in days when --since is not set")
	rebuildCmd.Flags().BoolVar(&replace, "replace", false, "Replace the stored memory instead of merging")
	Cmd.AddCommand(statsCmd, clearCmd, rebuildCmd)
}

func runStats(ctx context.Context, cache *memory.Cache, g *report.Generator, w io.Writer, format string) error {
	stats, err := cache.Stats(ctx)
	if err != nil {
		return err
	}
	if !strings.EqualFold(format, "text") {
		out, err := g.Render(stats, format)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	}

	fmt.Fprintf(w, "Entries:    %d\n", stats.TotalEntries)
	fmt.Fprintf(w, "Categories: %d\n", stats.UniqueCategories)
	if stats.LastModified != nil {
		fmt.Fprintf(w, "Modified:   %s\n", stats.LastModified.Format(time.RFC3339))
	}
	for _, name := range stats.Categories {
		fmt.Fprintf(w, "  - %s\n", name)
	}
	return nil
}

// runRebuild learns from history and stores the result. It returns how many
// payees were learned and the resulting memory size.
func runRebuild(ctx context.Context, cache *memory.Cache, fetcher history.Fetcher, start time.Time, replaceAll bool) (int, int, error) {
	learned, err := history.Rebuild(ctx, fetcher, start)
	if err != nil {
		return 0, 0, err
	}

	result := learned
	if !replaceAll {
		result = cache.Entries(ctx).Clone()
		result.Merge(learned)
	}
	if err := cache.Replace(ctx, result); err != nil {
		return 0, 0, err
	}
	return learned.Len(), result.Len(), nil
}

func sinceDate(value string, n int) (time.Time, error) {
	if value != "" {
		return models.ParseDate(value)
	}
	if n <= 0 {
		return time.Time{}, fmt.Errorf("--days must be positive, got %d", n)
	}
	return models.TruncateToDate(nowFunc()).AddDate(0, 0, -n), nil
}
