//go:build integration

package e2e

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/organization"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/store/mongo"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/store/postgres"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/testutil"
)

var seq atomic.Int64

func TestE2E_Postgres(t *testing.T) {
	url := testutil.StartPostgres(t)

	runFlows(t, func(t *testing.T) (organization.Store, string) {
		schema := fmt.Sprintf("master_e2e_%d", seq.Add(1))
		s, err := postgres.Open(context.Background(), postgres.Config{URL: url, MasterSchema: schema})
		if err != nil {
			t.Fatalf("Failed to open postgres store: %v", err)
		}
		t.Cleanup(func() {
			testutil.DropPartitionSchemas(t, s.DB(), schema)
			s.Close()
		})
		return s, schema
	})
}

func TestE2E_Mongo(t *testing.T) {
	uri := testutil.StartMongo(t)

	runFlows(t, func(t *testing.T) (organization.Store, string) {
		name := fmt.Sprintf("master_e2e_%d", seq.Add(1))
		s, err := mongo.Open(context.Background(), mongo.Config{URI: uri, Database: name})
		if err != nil {
			t.Fatalf("Failed to open mongo store: %v", err)
		}
		t.Cleanup(func() {
			_ = s.Database().Drop(context.Background())
			_ = s.Close(context.Background())
		})
		return s, name
	})
}
