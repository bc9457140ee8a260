// Package postgres implements organization.Store on PostgreSQL. Registry
// tables live in a master schema; each tenant partition is its own schema
// holding a records table.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/organization"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db *sql.DB
	q  querier
	// inTx is set on the Store handed to an Atomic callback.
	inTx bool
	// schema is the quoted master schema; schemaName the raw one.
	schema     string
	schemaName string
}

var _ organization.Store = (*Store)(nil)

// New wraps db. Call Migrate before first use.
func New(db *sql.DB, masterSchema string) *Store {
	return &Store{
		db:         db,
		q:          db,
		schema:     pq.QuoteIdentifier(masterSchema),
		schemaName: masterSchema,
	}
}

// DB exposes the underlying pool for health checks.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Registry() organization.Registry           { return &registry{s} }
func (s *Store) Admins() organization.AdminRepository      { return &admins{s} }
func (s *Store) Partitions() organization.PartitionManager { return &partitions{s} }
func (s *Store) Retention() organization.RetentionLedger   { return &retention{s} }

// table returns the qualified name of a master table.
func (s *Store) table(name string) string {
	return s.schema + "." + name
}

// Atomic runs fn in one database transaction. Partition DDL is
// transactional in Postgres, so a failed create or rename leaves no schema
// behind. Nested calls join the outer transaction.
func (s *Store) Atomic(ctx context.Context, fn func(tx organization.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	scoped := &Store{db: s.db, q: tx, inTx: true, schema: s.schema, schemaName: s.schemaName}
	if err := fn(scoped); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapPostgresError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}
