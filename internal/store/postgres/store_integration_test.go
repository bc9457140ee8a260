//go:build integration

package postgres

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/organization"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/store/storetest"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/testutil"
)

var schemaSeq atomic.Int64

// newTestStore returns a migrated store in a fresh master schema; tenant
// schemas are dropped when the test ends.
func newTestStore(t *testing.T, url string) *Store {
	t.Helper()

	ctx := context.Background()
	schema := fmt.Sprintf("master_%d", schemaSeq.Add(1))
	s, err := Open(ctx, Config{URL: url, MasterSchema: schema})
	require.NoError(t, err)

	t.Cleanup(func() {
		testutil.DropPartitionSchemas(t, s.DB(), schema)
		s.Close()
	})
	return s
}

// TestIntegration_Postgres shares one container across all subtests.
func TestIntegration_Postgres(t *testing.T) {
	url := testutil.StartPostgres(t)

	storetest.NewStoreTest("Store", storetest.Harness{
		New:           func(t *testing.T) organization.Store { return newTestStore(t, url) },
		Transactional: true,
	})(t)

	t.Run("MigrateIsIdempotent", func(t *testing.T) { migrateIsIdempotent(t, url) })
	t.Run("PartitionIsSchema", func(t *testing.T) { partitionIsSchema(t, url) })
	t.Run("RenameCarriesRecords", func(t *testing.T) { renameCarriesRecords(t, url) })
}

func migrateIsIdempotent(t *testing.T, url string) {
	s := newTestStore(t, url)
	require.NoError(t, s.Migrate(context.Background()))

	var applied int
	err := s.DB().QueryRow(fmt.Sprintf(`SELECT count(*) FROM %s.schema_migrations`, s.schema)).Scan(&applied)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)
}

func partitionIsSchema(t *testing.T, url string) {
	s := newTestStore(t, url)
	ctx := context.Background()

	require.NoError(t, s.Partitions().Ensure(ctx, "org_acme_corp"))

	var tables int
	err := s.DB().QueryRow(
		`SELECT count(*) FROM information_schema.tables WHERE table_schema = 'org_acme_corp' AND table_name = 'records'`,
	).Scan(&tables)
	require.NoError(t, err)
	assert.Equal(t, 1, tables)

	_, err = s.Partitions().Insert(ctx, "org_missing", map[string]any{"a": 1})
	assert.ErrorIs(t, err, organization.ErrPartitionNotFound)
}

func renameCarriesRecords(t *testing.T, url string) {
	s := newTestStore(t, url)
	ctx := context.Background()

	require.NoError(t, s.Partitions().Ensure(ctx, "org_acme"))
	for i := 0; i < 3; i++ {
		_, err := s.Partitions().Insert(ctx, "org_acme", map[string]any{"n": i, "tags": []string{"a", "b"}})
		require.NoError(t, err)
	}

	err := s.Atomic(ctx, func(tx organization.Store) error {
		if err := tx.Partitions().Ensure(ctx, "org_acme_corp"); err != nil {
			return err
		}
		n, err := tx.Partitions().CopyAll(ctx, "org_acme", "org_acme_corp")
		if err != nil {
			return err
		}
		assert.EqualValues(t, 3, n)
		return nil
	})
	require.NoError(t, err)

	var matching int
	err = s.DB().QueryRow(`
		SELECT count(*) FROM org_acme_corp.records c
		JOIN org_acme.records o ON o.data = c.data AND o.id <> c.id
	`).Scan(&matching)
	require.NoError(t, err)
	assert.Equal(t, 3, matching)
}
