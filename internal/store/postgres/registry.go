package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/organization"
)

const orgColumns = `id, name, partition_id, database_name, admin_id, created_at, updated_at`

type registry struct {
	s *Store
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrganization(row rowScanner) (*organization.Organization, error) {
	var org organization.Organization
	err := row.Scan(
		&org.ID,
		&org.Name,
		&org.PartitionID,
		&org.Database,
		&org.AdminID,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return nil, mapPostgresError(err)
	}
	return &org, nil
}

func (r *registry) findBy(ctx context.Context, column, value string) (*organization.Organization, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1`, orgColumns, r.s.table("organizations"), column)
	return scanOrganization(r.s.q.QueryRowContext(ctx, query, value))
}

func (r *registry) FindByName(ctx context.Context, name string) (*organization.Organization, error) {
	return r.findBy(ctx, "name_key", organization.NameKey(name))
}

func (r *registry) FindByPartition(ctx context.Context, partitionID string) (*organization.Organization, error) {
	return r.findBy(ctx, "partition_id", partitionID)
}

func (r *registry) FindByAdmin(ctx context.Context, adminID string) (*organization.Organization, error) {
	return r.findBy(ctx, "admin_id", adminID)
}

func (r *registry) Create(ctx context.Context, org *organization.Organization) (string, error) {
	id := uuid.NewString()
	createdAt := org.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := org.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	query := fmt.Sprintf(`
		INSERT INTO %s
		(id, name, name_key, partition_id, database_name, admin_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.s.table("organizations"))

	_, err := r.s.q.ExecContext(ctx, query,
		id,
		org.Name,
		organization.NameKey(org.Name),
		org.PartitionID,
		org.Database,
		org.AdminID,
		createdAt,
		updatedAt,
	)
	if err != nil {
		return "", mapPostgresError(err)
	}
	return id, nil
}

func (r *registry) Rename(ctx context.Context, id, newName, partitionID string) (*organization.Organization, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $2, name_key = $3, partition_id = $4, updated_at = now()
		WHERE id = $1
		RETURNING %s
	`, r.s.table("organizations"), orgColumns)

	return scanOrganization(r.s.q.QueryRowContext(ctx, query, id, newName, organization.NameKey(newName), partitionID))
}

func (r *registry) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.s.table("organizations"))
	return execOne(ctx, r.s.q, query, id)
}

// execOne runs a statement that must affect exactly one row.
func execOne(ctx context.Context, q querier, query string, args ...any) error {
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return mapPostgresError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return organization.ErrNotFound
	}
	return nil
}
