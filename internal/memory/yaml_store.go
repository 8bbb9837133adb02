package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"fjacquet/budget-sync/internal/fileutils"
	"fjacquet/budget-sync/internal/logging"
	"fjacquet/budget-sync/internal/models"
	"fjacquet/budget-sync/internal/syncerror"

	"gopkg.in/yaml.v3"
)

// DefaultFile is where the YAML store keeps the memory when no path is configured.
const DefaultFile = "database/memory.yaml"

// YAMLStore keeps the memory in a YAML mapping file, one "payee: category" line
// per entry, in learning order.
type YAMLStore struct {
	path   string
	logger logging.Logger
}

// NewYAMLStore creates a store backed by path. An empty path means DefaultFile.
func NewYAMLStore(path string, logger logging.Logger) *YAMLStore {
	if path == "" {
		path = DefaultFile
	}
	return &YAMLStore{path: path, logger: logging.OrDefault(logger)}
}

// Path returns the backing file.
func (s *YAMLStore) Path() string {
	return s.path
}

// Load reads the memory file. A missing file yields an empty mapping, and so
// does a corrupt one, after logging a warning.
func (s *YAMLStore) Load(_ context.Context) (*models.OrderedMap, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("Memory file not found, starting empty", logging.F(logging.FieldFile, s.path))
			return models.NewOrderedMap(), nil
		}
		return models.NewOrderedMap(), &syncerror.PersistenceError{Op: "load", Backend: BackendYAML, Err: err}
	}

	m := models.NewOrderedMap()
	if err := yaml.Unmarshal(data, m); err != nil {
		s.logger.WithError(err).Warn("Memory file is corrupt, ignoring its content",
			logging.F(logging.FieldFile, s.path))
		return models.NewOrderedMap(), nil
	}

	s.logger.Debug("Loaded payee memory",
		logging.F(logging.FieldFile, s.path),
		logging.F(logging.FieldCount, m.Len()))
	return m, nil
}

// Save overwrites the memory file with m.
func (s *YAMLStore) Save(_ context.Context, m *models.OrderedMap) error {
	if m == nil {
		m = models.NewOrderedMap()
	}
	data, err := yaml.Marshal(m)
	if err != nil {
		return &syncerror.PersistenceError{Op: "save", Backend: BackendYAML, Err: fmt.Errorf("encode: %w", err)}
	}
	if err := fileutils.WriteFileAtomic(s.path, data, 0600); err != nil {
		return &syncerror.PersistenceError{Op: "save", Backend: BackendYAML, Err: err}
	}
	return nil
}

// Clear deletes the memory file.
func (s *YAMLStore) Clear(_ context.Context) error {
	if err := fileutils.RemoveIfExists(s.path); err != nil {
		return &syncerror.PersistenceError{Op: "clear", Backend: BackendYAML, Err: err}
	}
	return nil
}

// Stats reports entry counts and the file modification time, which is nil when
// the file does not exist.
func (s *YAMLStore) Stats(ctx context.Context) (Stats, error) {
	m, err := s.Load(ctx)
	if err != nil {
		return Stats{}, err
	}

	var lastModified *time.Time
	if info, err := os.Stat(s.path); err == nil {
		mt := info.ModTime()
		lastModified = &mt
	}
	return computeStats(m, lastModified), nil
}
