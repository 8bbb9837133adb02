// Package categorize handles transaction categorization commands
package categorize

import (
	"context"
	"fmt"
	"io"

	"fjacquet/budget-sync/cmd/root"
	"fjacquet/budget-sync/internal/categorizer"
	"fjacquet/budget-sync/internal/logging"
	"fjacquet/budget-sync/internal/syncer"

	"github.com/spf13/cobra"
)

var payee string

// Cmd represents the categorize command
var Cmd = &cobra.Command{
	Use:   "categorize",
	Short: "Categorize a payee with the manual rules and the payee memory",
	Long: `Categorize a single payee the way a sync would: manual rules first, then the
learned payee memory. A memory match through similarity is learned under the exact payee.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := root.NewContainer(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer c.Close()
		return runCategorize(cmd.Context(), c.GetCategorizer(), c.GetRules(), payee, cmd.OutOrStdout())
	},
}

func init() {
	Cmd.Flags().StringVarP(&payee, "payee", "p", "", "Payee name to categorize")
	_ = Cmd.MarkFlagRequired("payee")
}

func runCategorize(ctx context.Context, cat syncer.Categorizer, rules syncer.RulesSource, name string, w io.Writer) error {
	manual, err := rules.Load(ctx)
	if err != nil {
		return err
	}

	assignment, ok, err := cat.AssignCategory(ctx, name, manual)
	if err != nil {
		return err
	}
	if !ok {
		root.Log.Info("No category found", logging.F(logging.FieldPayee, name))
		fmt.Fprintln(w, "Uncategorized")
		return nil
	}
	root.Log.Info("Transaction categorized",
		logging.F(logging.FieldPayee, name),
		logging.F(logging.FieldCategory, assignment.CategoryName),
		logging.F(logging.FieldStrategy, assignment.Strategy))
	fmt.Fprintf(w, "%s (%s, score %.2f)\n", assignment.CategoryName, assignment.Strategy, assignment.Score)
	return nil
}

var _ syncer.Categorizer = (*categorizer.Engine)(nil)
