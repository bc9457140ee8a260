//go:build integration

package mongo

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/organization"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/store/storetest"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/testutil"
)

var databaseSeq atomic.Int64

// newTestStore returns a store on a fresh database that is dropped when the
// test ends.
func newTestStore(t *testing.T, uri string) *Store {
	t.Helper()

	ctx := context.Background()
	name := fmt.Sprintf("master_%d", databaseSeq.Add(1))
	s, err := Open(ctx, Config{URI: uri, Database: name})
	require.NoError(t, err)

	t.Cleanup(func() {
		if err := s.Database().Drop(context.Background()); err != nil {
			t.Logf("Warning: failed to drop database %s: %v", name, err)
		}
		_ = s.Close(context.Background())
	})
	return s
}

// TestIntegration_Mongo shares one container across all subtests. The
// rollback case only inserts, which the undo log reverses.
func TestIntegration_Mongo(t *testing.T) {
	uri := testutil.StartMongo(t)

	storetest.NewStoreTest("Store", storetest.Harness{
		New:           func(t *testing.T) organization.Store { return newTestStore(t, uri) },
		Transactional: true,
	})(t)

	t.Run("PartitionIsCollection", func(t *testing.T) { partitionIsCollection(t, uri) })
	t.Run("DocumentLayout", func(t *testing.T) { documentLayout(t, uri) })
	t.Run("EnsureIndexesIsIdempotent", func(t *testing.T) {
		s := newTestStore(t, uri)
		assert.NoError(t, s.EnsureIndexes(context.Background()))
	})
}

func partitionIsCollection(t *testing.T, uri string) {
	s := newTestStore(t, uri)
	ctx := context.Background()

	require.NoError(t, s.Partitions().Ensure(ctx, "org_acme_corp"))
	require.NoError(t, s.Partitions().Ensure(ctx, "org_acme_corp"))

	names, err := s.Database().ListCollectionNames(ctx, bson.D{{Key: "name", Value: "org_acme_corp"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"org_acme_corp"}, names)

	_, err = s.Partitions().Insert(ctx, "org_missing", map[string]any{"a": 1})
	assert.ErrorIs(t, err, organization.ErrPartitionNotFound)
}

func documentLayout(t *testing.T, uri string) {
	s := newTestStore(t, uri)
	ctx := context.Background()

	adminID, err := s.Admins().Create(ctx, &organization.Admin{Email: "a@acme.test", PasswordHash: "hash", Organization: "Acme"})
	require.NoError(t, err)
	_, err = s.Registry().Create(ctx, &organization.Organization{
		Name:        "Acme",
		PartitionID: "org_acme",
		Database:    "master",
		AdminID:     adminID,
	})
	require.NoError(t, err)

	var raw bson.M
	err = s.Database().Collection(organizationsCollection).FindOne(ctx, bson.M{"organization_name": "Acme"}).Decode(&raw)
	require.NoError(t, err)
	assert.Equal(t, "org_acme", raw["collection_name"])
	assert.Equal(t, "acme", raw["name_key"])

	var doc organizationDoc
	err = s.Database().Collection(organizationsCollection).FindOne(ctx, bson.M{"name_key": "acme"}).Decode(&doc)
	require.NoError(t, err)
	assert.Equal(t, "master", doc.Connection.DB)
	assert.Equal(t, adminID, doc.AdminRef.Hex())
}
