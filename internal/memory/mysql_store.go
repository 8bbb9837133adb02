package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fjacquet/budget-sync/internal/logging"
	"fjacquet/budget-sync/internal/models"
	"fjacquet/budget-sync/internal/syncerror"

	"github.com/go-sql-driver/mysql"
)

const createMySQLTableSQL = `
CREATE TABLE IF NOT EXISTS payee_memory (
	position   INT          NOT NULL,
	payee      VARCHAR(255) NOT NULL PRIMARY KEY,
	category   VARCHAR(255) NOT NULL,
	updated_at DATETIME(6)  NOT NULL
) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin`

// MySQLStore keeps the memory in a MySQL payee_memory table with the same
// layout as PostgresStore.
type MySQLStore struct {
	db     *sql.DB
	logger logging.Logger
}

// NewMySQLStore opens dsn (go-sql-driver format, parseTime is forced on) and
// makes sure the table exists.
func NewMySQLStore(ctx context.Context, dsn string, logger logging.Logger) (*MySQLStore, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, &syncerror.PersistenceError{Op: "connect", Backend: BackendMySQL, Err: err}
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, &syncerror.PersistenceError{Op: "connect", Backend: BackendMySQL, Err: err}
	}
	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &syncerror.PersistenceError{Op: "connect", Backend: BackendMySQL, Err: err}
	}
	if _, err := db.ExecContext(ctx, createMySQLTableSQL); err != nil {
		db.Close()
		return nil, &syncerror.PersistenceError{Op: "migrate", Backend: BackendMySQL, Err: err}
	}
	return &MySQLStore{db: db, logger: logging.OrDefault(logger)}, nil
}

// Close closes the database handle.
func (s *MySQLStore) Close() error {
	return s.db.Close()
}

func (s *MySQLStore) Load(ctx context.Context) (*models.OrderedMap, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payee, category FROM payee_memory ORDER BY position`)
	if err != nil {
		return models.NewOrderedMap(), &syncerror.PersistenceError{Op: "load", Backend: BackendMySQL, Err: err}
	}
	defer rows.Close()

	m := models.NewOrderedMap()
	for rows.Next() {
		var payee, category string
		if err := rows.Scan(&payee, &category); err != nil {
			return models.NewOrderedMap(), &syncerror.PersistenceError{Op: "load", Backend: BackendMySQL, Err: err}
		}
		m.Set(payee, category)
	}
	if err := rows.Err(); err != nil {
		return models.NewOrderedMap(), &syncerror.PersistenceError{Op: "load", Backend: BackendMySQL, Err: err}
	}

	s.logger.Debug("Loaded payee memory", logging.F(logging.FieldBackend, BackendMySQL), logging.F(logging.FieldCount, m.Len()))
	return m, nil
}

// Save replaces the table content in a single transaction.
func (s *MySQLStore) Save(ctx context.Context, m *models.OrderedMap) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &syncerror.PersistenceError{Op: "save", Backend: BackendMySQL, Err: err}
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			err = &syncerror.PersistenceError{Op: "save", Backend: BackendMySQL, Err: err}
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM payee_memory`); err != nil {
		return fmt.Errorf("delete: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO payee_memory (position, payee, category, updated_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, e := range m.Entries() {
		if _, err = stmt.ExecContext(ctx, i, e.Key, e.Value, now); err != nil {
			return fmt.Errorf("insert %q: %w", e.Key, err)
		}
	}
	return tx.Commit()
}

func (s *MySQLStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM payee_memory`); err != nil {
		return &syncerror.PersistenceError{Op: "clear", Backend: BackendMySQL, Err: err}
	}
	return nil
}

func (s *MySQLStore) Stats(ctx context.Context) (Stats, error) {
	m, err := s.Load(ctx)
	if err != nil {
		return Stats{}, err
	}

	var last sql.NullTime
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(updated_at) FROM payee_memory`).Scan(&last); err != nil {
		return Stats{}, &syncerror.PersistenceError{Op: "stats", Backend: BackendMySQL, Err: err}
	}
	var lastModified *time.Time
	if last.Valid {
		lastModified = &last.Time
	}
	return computeStats(m, lastModified), nil
}
