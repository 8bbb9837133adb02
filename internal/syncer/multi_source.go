package syncer

import (
	"context"
	"fmt"
	"strings"

	"fjacquet/budget-sync/internal/batch"
	"fjacquet/budget-sync/internal/logging"
	"fjacquet/budget-sync/internal/models"
)

// MultiSource concatenates several sources in order. Any failing source fails
// the whole fetch so that a run never works on partial data.
type MultiSource struct {
	sources []Source
	logger  logging.Logger
}

// NewMultiSource combines sources.
func NewMultiSource(logger logging.Logger, sources ...Source) *MultiSource {
	return &MultiSource{sources: sources, logger: logging.OrDefault(logger)}
}

// Name lists the combined sources, e.g. "aggregator+email".
func (m *MultiSource) Name() string {
	names := make([]string, 0, len(m.sources))
	for _, s := range m.sources {
		names = append(names, s.Name())
	}
	return strings.Join(names, "+")
}

// Len returns the number of combined sources.
func (m *MultiSource) Len() int {
	return len(m.sources)
}

func (m *MultiSource) FetchMovements(ctx context.Context, window batch.DateRange) ([]models.Transaction, error) {
	var all []models.Transaction
	for _, s := range m.sources {
		movements, err := s.FetchMovements(ctx, window)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", s.Name(), err)
		}
		for i := range movements {
			if movements[i].Source == "" {
				movements[i].Source = s.Name()
			}
		}
		m.logger.Debug("Fetched movements",
			logging.F(logging.FieldSource, s.Name()),
			logging.F(logging.FieldCount, len(movements)))
		all = append(all, movements...)
	}
	return all, nil
}
