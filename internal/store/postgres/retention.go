package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/organization"
)

type retention struct {
	s *Store
}

func (r *retention) Retain(ctx context.Context, partitionID, orgID string, at time.Time) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (partition_id, organization_id, retained_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (partition_id) DO UPDATE
		SET organization_id = EXCLUDED.organization_id, retained_at = EXCLUDED.retained_at
	`, r.s.table("retained_partitions"))

	if _, err := r.s.q.ExecContext(ctx, query, partitionID, orgID, at); err != nil {
		return mapPostgresError(err)
	}
	return nil
}

func (r *retention) Release(ctx context.Context, partitionID string) (bool, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE partition_id = $1`, r.s.table("retained_partitions"))
	result, err := r.s.q.ExecContext(ctx, query, partitionID)
	if err != nil {
		return false, mapPostgresError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

func (r *retention) ListExpired(ctx context.Context, before time.Time) ([]organization.RetainedPartition, error) {
	query := fmt.Sprintf(`
		SELECT partition_id, organization_id, retained_at
		FROM %s
		WHERE retained_at < $1
		ORDER BY retained_at ASC
	`, r.s.table("retained_partitions"))

	rows, err := r.s.q.QueryContext(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("failed to query retained partitions: %w", err)
	}
	defer rows.Close()

	var out []organization.RetainedPartition
	for rows.Next() {
		var rp organization.RetainedPartition
		if err := rows.Scan(&rp.PartitionID, &rp.OrganizationID, &rp.RetainedAt); err != nil {
			return nil, fmt.Errorf("failed to scan retained partition: %w", err)
		}
		out = append(out, rp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating retained partitions: %w", err)
	}
	return out, nil
}
