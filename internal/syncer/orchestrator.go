// Package syncer runs a synchronization: fetch source movements, fetch what the
// budgeting service already has, drop duplicates, categorize the rest and
// insert them in batches.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"fjacquet/budget-sync/internal/batch"
	"fjacquet/budget-sync/internal/dedupe"
	"fjacquet/budget-sync/internal/logging"
	"fjacquet/budget-sync/internal/models"
	"fjacquet/budget-sync/internal/report"
	"fjacquet/budget-sync/internal/retry"
	"fjacquet/budget-sync/internal/syncerror"

	"github.com/google/uuid"
)

// Processing stages recorded in ProcessingError.Stage.
const (
	StageTransform  = "transform"
	StageCategorize = "categorize"
)

// DefaultDaysBack is the sync window when none is configured.
const DefaultDaysBack = 30

// Settings are the static parameters of an Orchestrator.
type Settings struct {
	AccountID string
	BatchSize int
	DaysBack  int
	Retry     retry.Policy
}

// Options tune a single run.
type Options struct {
	DryRun bool

	// Window overrides the DaysBack window when both ends are set.
	Window batch.DateRange

	// PreviewCSV and PreviewXLSX, when set, receive the dry-run rows.
	PreviewCSV  string
	PreviewXLSX string
}

// Orchestrator executes sync runs, one at a time.
type Orchestrator struct {
	source      Source
	target      Target
	categorizer Categorizer
	rules       RulesSource
	reporter    *report.Generator
	settings    Settings
	logger      logging.Logger
	now         func() time.Time

	running atomic.Bool
}

// NewOrchestrator wires a run pipeline. A nil rules source means no manual rules.
func NewOrchestrator(source Source, target Target, cat Categorizer, rules RulesSource, settings Settings, logger logging.Logger) *Orchestrator {
	if rules == nil {
		rules = StaticRules{}
	}
	if settings.BatchSize < 1 || settings.BatchSize > batch.MaxSize {
		settings.BatchSize = batch.MaxSize
	}
	if settings.DaysBack <= 0 {
		settings.DaysBack = DefaultDaysBack
	}
	logger = logging.OrDefault(logger)
	return &Orchestrator{
		source:      source,
		target:      target,
		categorizer: cat,
		rules:       rules,
		reporter:    report.NewGenerator(logger),
		settings:    settings,
		logger:      logger,
		now:         time.Now,
	}
}

// SetClock replaces the time source, for tests.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// Running reports whether a run is active.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

type prepared struct {
	tx       models.Transaction
	category string
	strategy string
}

// Run performs one sync. It returns syncerror.ErrSyncInProgress when another
// run is active. A failure to load rules or to fetch either side aborts the run
// with an error and a summary showing no effect. Everything after that is
// reported in the summary and never returned as an error.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Summary, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, syncerror.ErrSyncInProgress
	}
	defer o.running.Store(false)

	summary := &Summary{
		RunID:     uuid.NewString(),
		DryRun:    opts.DryRun,
		StartedAt: o.now(),
	}
	log := o.logger.WithFields(
		logging.F(logging.FieldRunID, summary.RunID),
		logging.F(logging.FieldDryRun, opts.DryRun),
	)

	window := opts.Window
	if window.Start.IsZero() || window.End.IsZero() {
		window = batch.LastDays(summary.StartedAt, o.settings.DaysBack)
	}
	log.Info("Starting sync", logging.F("window", window.String()), logging.F(logging.FieldSource, o.source.Name()))

	rules, err := o.rules.Load(ctx)
	if err != nil {
		return o.abort(summary, log, "load_rules", fmt.Errorf("load rules: %w", err))
	}

	movements, err := o.source.FetchMovements(ctx, window)
	if err != nil {
		return o.abort(summary, log, "fetch_source", err)
	}
	summary.Processed = len(movements)

	existing, err := o.target.FetchTransactions(ctx, window, o.settings.AccountID)
	if err != nil {
		return o.abort(summary, log, "fetch_existing", err)
	}
	log.Info("Fetched transactions",
		logging.F("movements", len(movements)),
		logging.F("existing", len(existing)))

	movements = o.rejectInvalid(log, movements, summary)

	result := dedupe.Deduplicate(existing, movements)
	summary.Duplicates = result.Duplicates
	for _, d := range result.Duplicates {
		log.Debug("Skipping duplicate",
			logging.F(logging.FieldPayee, d.Transaction.Payee),
			logging.F(logging.FieldMethod, d.Method))
	}

	ready := o.prepare(ctx, log, result.New, rules, summary)

	summary.Rows = make([]report.Row, 0, len(ready))
	for _, p := range ready {
		summary.Rows = append(summary.Rows, report.RowFromTransaction(p.tx, p.category, p.strategy))
	}

	if opts.DryRun {
		o.preview(log, opts, summary, result.Duplicates)
	} else {
		o.insert(ctx, log, ready, summary)
	}

	summary.Success = len(summary.InsertionErrors) == 0
	summary.finish(o.now())

	log.Info("Sync finished",
		logging.F(logging.FieldStatus, statusOf(summary)),
		logging.F("processed", summary.Processed),
		logging.F("inserted", summary.Inserted),
		logging.F("skipped", summary.Skipped),
		logging.F("errors", summary.Errors),
		logging.F(logging.FieldDuration, summary.Duration().Milliseconds()))

	return summary, nil
}

func (o *Orchestrator) abort(summary *Summary, log logging.Logger, stage string, err error) (*Summary, error) {
	summary.Processed = 0
	summary.Success = false
	summary.finish(o.now())
	log.WithError(err).Error("Sync aborted", logging.F(logging.FieldStage, stage))
	return summary, err
}

// rejectInvalid records the movements a source could not convert and returns
// the others. Invalid movements are kept out of deduplication.
func (o *Orchestrator) rejectInvalid(log logging.Logger, movements []models.Transaction, summary *Summary) []models.Transaction {
	valid := movements[:0]
	for _, tx := range movements {
		if tx.Invalid != nil {
			o.recordProcessingError(log, summary, tx, StageTransform, tx.Invalid)
			continue
		}
		valid = append(valid, tx)
	}
	return valid
}

// prepare validates and categorizes each new candidate. Failures are recorded
// and the candidate is dropped.
func (o *Orchestrator) prepare(ctx context.Context, log logging.Logger, candidates []models.Transaction, rules *models.OrderedMap, summary *Summary) []prepared {
	ready := make([]prepared, 0, len(candidates))
	for _, tx := range candidates {
		if err := validate(tx); err != nil {
			o.recordProcessingError(log, summary, tx, StageTransform, err)
			continue
		}

		p := prepared{tx: tx}
		assignment, ok, err := o.categorizer.AssignCategory(ctx, tx.Payee, rules)
		if err != nil {
			o.recordProcessingError(log, summary, tx, StageCategorize, err)
			continue
		}
		if ok {
			p.tx.CategoryID = assignment.CategoryID
			p.category = assignment.CategoryName
			p.strategy = assignment.Strategy
		}
		ready = append(ready, p)
	}
	return ready
}

func (o *Orchestrator) recordProcessingError(log logging.Logger, summary *Summary, tx models.Transaction, stage string, err error) {
	pe := &syncerror.ProcessingError{Transaction: tx.String(), Stage: stage, Err: err}
	summary.ProcessingErrors = append(summary.ProcessingErrors, pe)
	log.WithError(err).Warn("Transaction excluded",
		logging.F(logging.FieldStage, stage),
		logging.F(logging.FieldPayee, tx.Payee))
}

func (o *Orchestrator) preview(log logging.Logger, opts Options, summary *Summary, duplicates []dedupe.Duplicate) {
	summary.Inserted = len(summary.Rows)
	summary.Batches = len(batch.Chunk(summary.Rows, o.settings.BatchSize))

	skipped := make([]report.Skipped, 0, len(duplicates))
	for _, d := range duplicates {
		skipped = append(skipped, report.Skipped{Transaction: d.Transaction, Method: d.Method})
	}
	summary.Preview = o.reporter.Preview(summary.Rows, skipped)

	if opts.PreviewCSV != "" {
		if err := o.reporter.WriteCSVFile(opts.PreviewCSV, summary.Rows); err != nil {
			log.WithError(err).Warn("Preview CSV not written", logging.F(logging.FieldFile, opts.PreviewCSV))
		}
	}
	if opts.PreviewXLSX != "" {
		if err := o.reporter.WriteXLSXFile(opts.PreviewXLSX, summary.Rows); err != nil {
			log.WithError(err).Warn("Preview workbook not written", logging.F(logging.FieldFile, opts.PreviewXLSX))
		}
	}
	log.Info("[DRY RUN] Would insert transactions", logging.F(logging.FieldCount, summary.Inserted))
}

// insert sends the batches one after another. A failing batch is recorded and
// the following batches are still attempted.
func (o *Orchestrator) insert(ctx context.Context, log logging.Logger, ready []prepared, summary *Summary) {
	chunks := batch.Chunk(ready, o.settings.BatchSize)
	summary.Batches = len(chunks)

	for i, chunk := range chunks {
		txs := make([]models.Transaction, len(chunk))
		for j, p := range chunk {
			txs[j] = p.tx
		}

		blog := log.WithFields(logging.F(logging.FieldBatch, i+1), logging.F(logging.FieldCount, len(txs)))
		policy := o.settings.Retry
		policy.OnRetry = func(attempt int, err error, wait time.Duration) {
			blog.WithError(err).Warn("Batch insert failed, retrying",
				logging.F(logging.FieldAttempt, attempt),
				logging.F("wait_ms", wait.Milliseconds()))
		}

		err := retry.Do(ctx, policy, func(ctx context.Context) error {
			return o.target.InsertTransactions(ctx, o.settings.AccountID, txs)
		})
		if err != nil {
			summary.InsertionErrors = append(summary.InsertionErrors, &syncerror.InsertionError{Batch: i + 1, Size: len(txs), Err: err})
			blog.WithError(err).Error("Batch insert failed")
			continue
		}
		summary.Inserted += len(txs)
		blog.Debug("Batch inserted")
	}
}

var errZeroDate = errors.New("missing date")

// validate rejects candidates without a date. Zero amounts are inserted.
func validate(tx models.Transaction) error {
	if tx.Date.IsZero() {
		return errZeroDate
	}
	return nil
}

func statusOf(s *Summary) string {
	switch {
	case !s.Success:
		return "failed"
	case s.Errors > 0:
		return "partial"
	default:
		return "ok"
	}
}
