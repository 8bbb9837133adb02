package syncer

import (
	"time"

	"fjacquet/budget-sync/internal/dedupe"
	"fjacquet/budget-sync/internal/report"
	"fjacquet/budget-sync/internal/syncerror"
)

// Summary is the outcome of one run.
//
// Success is false when any batch failed to insert; processing errors alone
// leave it true. Errors counts processing errors plus failed batches.
type Summary struct {
	RunID     string `json:"run_id"`
	Success   bool   `json:"success"`
	DryRun    bool   `json:"dry_run"`
	Processed int    `json:"processed"`
	Inserted  int    `json:"inserted"`
	Skipped   int    `json:"skipped"`
	Errors    int    `json:"errors"`
	Batches   int    `json:"batches,omitempty"`

	InsertionErrors  []*syncerror.InsertionError  `json:"insertion_errors,omitempty"`
	ProcessingErrors []*syncerror.ProcessingError `json:"processing_errors,omitempty"`
	Duplicates       []dedupe.Duplicate           `json:"duplicates,omitempty"`

	// Rows holds what was (or in a dry run would be) inserted.
	Rows    []report.Row `json:"rows,omitempty"`
	Preview string       `json:"preview,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Duration of the run.
func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s *Summary) finish(now time.Time) {
	s.Skipped = len(s.Duplicates)
	s.Errors = len(s.ProcessingErrors) + len(s.InsertionErrors)
	s.FinishedAt = now
}
