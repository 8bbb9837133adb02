package memory

import (
	"context"
	"fmt"
	"time"

	"fjacquet/budget-sync/internal/logging"
	"fjacquet/budget-sync/internal/models"
	"fjacquet/budget-sync/internal/syncerror"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS payee_memory (
	position   INTEGER     NOT NULL,
	payee      TEXT        PRIMARY KEY,
	category   TEXT        NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresStore keeps the memory in the payee_memory table. Row order is
// preserved through the position column.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger logging.Logger
}

// NewPostgresStore connects to dsn and makes sure the table exists.
func NewPostgresStore(ctx context.Context, dsn string, logger logging.Logger) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, &syncerror.PersistenceError{Op: "connect", Backend: BackendPostgres, Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &syncerror.PersistenceError{Op: "connect", Backend: BackendPostgres, Err: err}
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, &syncerror.PersistenceError{Op: "migrate", Backend: BackendPostgres, Err: err}
	}
	return &PostgresStore{pool: pool, logger: logging.OrDefault(logger)}, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Load(ctx context.Context) (*models.OrderedMap, error) {
	rows, err := s.pool.Query(ctx, `SELECT payee, category FROM payee_memory ORDER BY position`)
	if err != nil {
		return models.NewOrderedMap(), &syncerror.PersistenceError{Op: "load", Backend: BackendPostgres, Err: err}
	}
	defer rows.Close()

	m := models.NewOrderedMap()
	for rows.Next() {
		var payee, category string
		if err := rows.Scan(&payee, &category); err != nil {
			return models.NewOrderedMap(), &syncerror.PersistenceError{Op: "load", Backend: BackendPostgres, Err: err}
		}
		m.Set(payee, category)
	}
	if err := rows.Err(); err != nil {
		return models.NewOrderedMap(), &syncerror.PersistenceError{Op: "load", Backend: BackendPostgres, Err: err}
	}

	s.logger.Debug("Loaded payee memory", logging.F(logging.FieldBackend, BackendPostgres), logging.F(logging.FieldCount, m.Len()))
	return m, nil
}

// Save replaces the table content in a single transaction.
func (s *PostgresStore) Save(ctx context.Context, m *models.OrderedMap) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM payee_memory`); err != nil {
			return fmt.Errorf("delete: %w", err)
		}
		rows := make([][]any, 0, m.Len())
		now := time.Now().UTC()
		for i, e := range m.Entries() {
			rows = append(rows, []any{i, e.Key, e.Value, now})
		}
		_, err := tx.CopyFrom(ctx,
			pgx.Identifier{"payee_memory"},
			[]string{"position", "payee", "category", "updated_at"},
			pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		return nil
	})
	if err != nil {
		return &syncerror.PersistenceError{Op: "save", Backend: BackendPostgres, Err: err}
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM payee_memory`); err != nil {
		return &syncerror.PersistenceError{Op: "clear", Backend: BackendPostgres, Err: err}
	}
	return nil
}

// Stats uses the most recent updated_at as the modification time.
func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	m, err := s.Load(ctx)
	if err != nil {
		return Stats{}, err
	}

	var lastModified *time.Time
	err = s.pool.QueryRow(ctx, `SELECT max(updated_at) FROM payee_memory`).Scan(&lastModified)
	if err != nil {
		return Stats{}, &syncerror.PersistenceError{Op: "stats", Backend: BackendPostgres, Err: err}
	}
	return computeStats(m, lastModified), nil
}
