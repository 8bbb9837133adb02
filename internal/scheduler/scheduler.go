// Package scheduler triggers live sync runs on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fjacquet/budget-sync/internal/logging"
	"fjacquet/budget-sync/internal/syncer"
	"fjacquet/budget-sync/internal/syncerror"

	"github.com/robfig/cron/v3"
)

// Runner executes one sync.
type Runner interface {
	Run(ctx context.Context, opts syncer.Options) (*syncer.Summary, error)
}

// Scheduler runs a Runner on a standard five field cron expression.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	logger logging.Logger
	expr   string
	entry  cron.EntryID
	ctx    context.Context
}

// New creates a Scheduler firing the cron expression expr in loc. It does not start it.
func New(runner Runner, expr string, loc *time.Location, logger logging.Logger) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	logger = logging.OrDefault(logger)

	s := &Scheduler{
		runner: runner,
		logger: logger,
		expr:   expr,
		ctx:    context.Background(),
	}
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLogger{logger}),
		cron.WithChain(cron.Recover(cronLogger{logger})),
	)

	id, err := s.cron.AddFunc(expr, func() { s.RunOnce(s.ctx) })
	if err != nil {
		return nil, fmt.Errorf("%w: invalid cron expression %q: %v", syncerror.ErrInvalidConfig, expr, err)
	}
	s.entry = id
	return s, nil
}

// Start begins firing in the background. Runs receive ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	s.logger.Info("Scheduler started",
		logging.F("cron", s.expr),
		logging.F("next_run", s.Next().Format(time.RFC3339)))
}

// Stop prevents new runs and returns a context done when the running one finished.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("Scheduler stopping")
	return s.cron.Stop()
}

// Next returns the time of the next scheduled run, zero before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entry).Next
}

// RunOnce performs one scheduled run. A run already in progress is skipped.
func (s *Scheduler) RunOnce(ctx context.Context) {
	summary, err := s.runner.Run(ctx, syncer.Options{})
	switch {
	case errors.Is(err, syncerror.ErrSyncInProgress):
		s.logger.Info("Sync already running, skipping scheduled run")
	case err != nil:
		s.logger.WithError(err).Error("Scheduled sync failed")
	default:
		s.logger.Info("Scheduled sync finished",
			logging.F(logging.FieldRunID, summary.RunID),
			logging.F("success", summary.Success),
			logging.F("inserted", summary.Inserted),
			logging.F("skipped", summary.Skipped),
			logging.F("errors", summary.Errors))
	}
}

// cronLogger routes the cron library's own messages to the application logger.
type cronLogger struct {
	logger logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, toFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithError(err).Error("cron: "+msg, toFields(keysAndValues)...)
}

func toFields(keysAndValues []interface{}) []logging.Field {
	fields := make([]logging.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields = append(fields, logging.F(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return fields
}
