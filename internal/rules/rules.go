// Package rules loads the manual categorization rules: a YAML mapping of
// payee keyword to category name, evaluated in file order.
package rules

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"fjacquet/budget-sync/internal/logging"
	"fjacquet/budget-sync/internal/models"
	"fjacquet/budget-sync/internal/syncerror"

	"gopkg.in/yaml.v3"
)

// DefaultFile is used when no rules file is configured.
const DefaultFile = "database/rules.yaml"

// File reads the rules at Path on every Load, so edits apply to the next run.
type File struct {
	path   string
	logger logging.Logger
}

// NewFile creates a rules loader for path.
func NewFile(path string, logger logging.Logger) *File {
	if path == "" {
		path = DefaultFile
	}
	return &File{path: path, logger: logging.OrDefault(logger)}
}

// Path returns the rules file location.
func (f *File) Path() string {
	return f.path
}

// Load returns the rules in file order. A missing file yields no rules.
func (f *File) Load(_ context.Context) (*models.OrderedMap, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		f.logger.Debug("No rules file, using no manual rules", logging.F(logging.FieldFile, f.path))
		return models.NewOrderedMap(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading rules %s: %w", f.path, err)
	}

	rules, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: rules %s: %v", syncerror.ErrInvalidConfig, f.path, err)
	}
	f.logger.Debug("Loaded manual rules", logging.F(logging.FieldFile, f.path), logging.F(logging.FieldCount, rules.Len()))
	return rules, nil
}

// Parse decodes a rules document. Blank keys or categories are rejected.
func Parse(data []byte) (*models.OrderedMap, error) {
	var m models.OrderedMap
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	for _, e := range m.Entries() {
		if e.Key == "" || e.Value == "" {
			return nil, fmt.Errorf("rule %q -> %q: keyword and category must not be empty", e.Key, e.Value)
		}
	}
	return &m, nil
}
