// Package emailsource turns bank notification emails stored as .eml files into
// movements, using one extraction profile per bank.
package emailsource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fjacquet/budget-sync/internal/batch"
	"fjacquet/budget-sync/internal/currencyutils"
	"fjacquet/budget-sync/internal/dateutils"
	"fjacquet/budget-sync/internal/fileutils"
	"fjacquet/budget-sync/internal/logging"
	"fjacquet/budget-sync/internal/models"
	"fjacquet/budget-sync/internal/syncerror"
)

// SourceName identifies the email source in errors, logs and Transaction.Source.
const SourceName = "email"

// Source reads .eml files from a directory.
type Source struct {
	dir      string
	profiles []Profile
	logger   logging.Logger
}

// NewSource creates a Source over dir. Profiles must come from LoadProfiles or ParseProfiles.
func NewSource(dir string, profiles []Profile, logger logging.Logger) *Source {
	return &Source{dir: dir, profiles: profiles, logger: logging.OrDefault(logger)}
}

func (s *Source) Name() string {
	return SourceName
}

// FetchMovements parses every message of the directory and keeps those dated in window.
// Messages that cannot be read or match no profile are logged and skipped.
func (s *Source) FetchMovements(ctx context.Context, window batch.DateRange) ([]models.Transaction, error) {
	files, err := fileutils.ListFilesWithExtension(s.dir, ".eml")
	if err != nil {
		return nil, &syncerror.FetchError{Source: SourceName, Op: "list messages", Err: err}
	}

	var out []models.Transaction
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		log := s.logger.WithField(logging.FieldFile, filepath.Base(path))
		tx, ok, err := s.readFile(path)
		if err != nil {
			log.WithError(err).Warn("Skipping unreadable notification")
			continue
		}
		if !ok {
			continue
		}
		if !window.Contains(tx.Date) {
			log.Debug("Notification outside sync window", logging.F("date", tx.DateString()))
			continue
		}
		out = append(out, tx)
	}

	s.logger.Debug("Parsed email notifications",
		logging.F(logging.FieldCount, len(out)),
		logging.F("files", len(files)))
	return out, nil
}

func (s *Source) readFile(path string) (models.Transaction, bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.Transaction{}, false, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			s.logger.WithError(cerr).Warn("Failed to close file", logging.F(logging.FieldFile, path))
		}
	}()

	msg, err := readMessage(f)
	if err != nil {
		return models.Transaction{}, false, err
	}

	profile := s.match(msg.From)
	if profile == nil {
		s.logger.Debug("No bank profile matches sender",
			logging.F(logging.FieldFile, filepath.Base(path)),
			logging.F("from", msg.From))
		return models.Transaction{}, false, nil
	}

	tx, err := profile.apply(msg)
	if err != nil {
		return models.Transaction{}, false, fmt.Errorf("profile %s: %w", profile.Name, err)
	}
	if tx.Reference == "" {
		tx.Reference = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return tx, true, nil
}

func (s *Source) match(sender string) *Profile {
	for i := range s.profiles {
		if s.profiles[i].Matches(sender) {
			return &s.profiles[i]
		}
	}
	return nil
}

// apply extracts one movement from msg.
func (p *Profile) apply(msg *message) (models.Transaction, error) {
	payee, ok, err := p.Payee.extract(msg)
	if err != nil {
		return models.Transaction{}, err
	}
	if !ok {
		return models.Transaction{}, fmt.Errorf("payee not found")
	}

	rawAmount, ok, err := p.Amount.extract(msg)
	if err != nil {
		return models.Transaction{}, err
	}
	if !ok {
		return models.Transaction{}, fmt.Errorf("amount not found")
	}
	amount, err := currencyutils.ParseAmount(rawAmount)
	if err != nil {
		return models.Transaction{}, err
	}
	if p.Expense {
		amount = currencyutils.AsExpense(amount)
	}

	date, err := p.date(msg)
	if err != nil {
		return models.Transaction{}, err
	}

	return models.Transaction{
		Date:      date,
		Amount:    amount,
		Payee:     payee,
		Reference: msg.MessageID,
		Notes:     msg.Subject,
		Source:    SourceName,
	}, nil
}

func (p *Profile) date(msg *message) (time.Time, error) {
	if p.Date.empty() {
		if msg.Date.IsZero() {
			return time.Time{}, fmt.Errorf("message has no date")
		}
		return dateutils.ToCalendarDay(msg.Date), nil
	}

	raw, ok, err := p.Date.extract(msg)
	if err != nil {
		return time.Time{}, err
	}
	if !ok {
		return time.Time{}, fmt.Errorf("date not found")
	}
	layouts := p.DateLayouts
	if len(layouts) == 0 {
		layouts = dateutils.CommonFormats
	}
	d, _, err := dateutils.ParseDateWithLayouts(raw, layouts...)
	return d, err
}
