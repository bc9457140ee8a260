package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/organization"
)

type partitions struct {
	s *Store
}

func recordsTable(partitionID string) string {
	return pq.QuoteIdentifier(partitionID) + ".records"
}

func (p *partitions) Ensure(ctx context.Context, partitionID string) error {
	schema := pq.QuoteIdentifier(partitionID)
	ddl := fmt.Sprintf(`
		CREATE SCHEMA IF NOT EXISTS %[1]s;
		CREATE TABLE IF NOT EXISTS %[1]s.records (
			id         uuid PRIMARY KEY DEFAULT gen_random_uuid(),
			data       jsonb NOT NULL DEFAULT '{}'::jsonb,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema)

	if _, err := p.s.q.ExecContext(ctx, ddl); err != nil {
		return mapPostgresError(fmt.Errorf("failed to create partition schema %s: %w", partitionID, err))
	}
	return nil
}

func (p *partitions) CopyAll(ctx context.Context, src, dst string) (int64, error) {
	if src == dst {
		return 0, nil
	}
	exists, err := p.Exists(ctx, src)
	if err != nil || !exists {
		return 0, err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (data, created_at)
		SELECT data, now() FROM %s
	`, recordsTable(dst), recordsTable(src))

	result, err := p.s.q.ExecContext(ctx, query)
	if err != nil {
		return 0, mapPostgresError(fmt.Errorf("failed to copy %s into %s: %w", src, dst, err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func (p *partitions) Drop(ctx context.Context, partitionID string) (bool, error) {
	exists, err := p.Exists(ctx, partitionID)
	if err != nil || !exists {
		return false, err
	}

	if _, err := p.s.q.ExecContext(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", pq.QuoteIdentifier(partitionID))); err != nil {
		return false, fmt.Errorf("failed to drop schema %s: %w", partitionID, err)
	}
	log.Ctx(ctx).Debug().Str("partition_id", partitionID).Msg("dropped partition schema")
	return true, nil
}

func (p *partitions) Exists(ctx context.Context, partitionID string) (bool, error) {
	var exists bool
	err := p.s.q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_namespace WHERE nspname = $1)`, partitionID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check partition %s: %w", partitionID, err)
	}
	return exists, nil
}

func (p *partitions) Count(ctx context.Context, partitionID string) (int64, error) {
	exists, err := p.Exists(ctx, partitionID)
	if err != nil || !exists {
		return 0, err
	}

	var n int64
	if err := p.s.q.QueryRowContext(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, recordsTable(partitionID))).Scan(&n); err != nil {
		return 0, mapPostgresError(err)
	}
	return n, nil
}

func (p *partitions) Insert(ctx context.Context, partitionID string, record map[string]any) (string, error) {
	exists, err := p.Exists(ctx, partitionID)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", organization.ErrPartitionNotFound
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to encode record: %w", err)
	}

	var id string
	query := fmt.Sprintf(`INSERT INTO %s (data) VALUES ($1) RETURNING id`, recordsTable(partitionID))
	if err := p.s.q.QueryRowContext(ctx, query, data).Scan(&id); err != nil {
		return "", mapPostgresError(err)
	}
	return id, nil
}
