package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/organization"
)

// mapPostgresError maps driver errors onto the organization sentinels.
// Unrecognised errors are returned unchanged.
func mapPostgresError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return organization.ErrNotFound
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code.Name() {
	case "unique_violation":
		if pqErr.Constraint == "admins_email_key" {
			return fmt.Errorf("%w: %s", organization.ErrEmailConflict, pqErr.Constraint)
		}
		// organizations_* constraints, and pg_namespace_nspname_index when two
		// transactions create the same partition schema.
		return fmt.Errorf("%w: %s", organization.ErrNameConflict, pqErr.Constraint)

	case "invalid_text_representation":
		// A malformed uuid cannot name an existing row.
		return organization.ErrNotFound

	case "invalid_schema_name", "undefined_table":
		return fmt.Errorf("%w: %s", organization.ErrPartitionNotFound, pqErr.Message)

	case "serialization_failure", "deadlock_detected":
		return fmt.Errorf("transaction conflict: %w", err)

	case "query_canceled":
		return fmt.Errorf("query canceled: %w", err)
	}
	return err
}
