package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/organization"
)

func TestMapPostgresError(t *testing.T) {
	plain := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, organization.ErrNotFound},
		{"wrapped no rows", fmt.Errorf("scan: %w", sql.ErrNoRows), organization.ErrNotFound},
		{"email unique", &pq.Error{Code: "23505", Constraint: "admins_email_key"}, organization.ErrEmailConflict},
		{"name unique", &pq.Error{Code: "23505", Constraint: "organizations_name_key_key"}, organization.ErrNameConflict},
		{"partition unique", &pq.Error{Code: "23505", Constraint: "organizations_partition_id_key"}, organization.ErrNameConflict},
		{"concurrent schema create", &pq.Error{Code: "23505", Constraint: "pg_namespace_nspname_index"}, organization.ErrNameConflict},
		{"bad uuid", &pq.Error{Code: "22P02"}, organization.ErrNotFound},
		{"missing schema", fmt.Errorf("insert: %w", &pq.Error{Code: "3F000"}), organization.ErrPartitionNotFound},
		{"missing table", &pq.Error{Code: "42P01"}, organization.ErrPartitionNotFound},
		{"other", plain, plain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapPostgresError(tt.err)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestMapPostgresError_KeepsDriverErrorForConflicts(t *testing.T) {
	err := mapPostgresError(&pq.Error{Code: "40001"})
	var pqErr *pq.Error
	assert.True(t, errors.As(err, &pqErr))
	assert.Contains(t, err.Error(), "transaction conflict")
}
