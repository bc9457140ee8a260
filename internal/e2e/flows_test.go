package e2e

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/messaging"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/organization"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/store/memory"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/testutil"
)

// storeFactory returns an empty store and the database name it reports.
type storeFactory func(t *testing.T) (organization.Store, string)

func TestE2E_Memory(t *testing.T) {
	runFlows(t, func(t *testing.T) (organization.Store, string) {
		return memory.New(), memory.DatabaseName
	})
}

func runFlows(t *testing.T, newStore storeFactory) {
	t.Run("Lifecycle", func(t *testing.T) { lifecycleFlow(t, newStore) })
	t.Run("Rename", func(t *testing.T) { renameFlow(t, newStore) })
	t.Run("Authorization", func(t *testing.T) { authorizationFlow(t, newStore) })
	t.Run("Validation", func(t *testing.T) { validationFlow(t, newStore) })
}

func createOrg(t *testing.T, client *testutil.HTTPTestClient, name, email, pw string) organization.CreatedOrganization {
	t.Helper()

	resp := client.POST(t, "/org/create", map[string]string{
		"organization_name": name,
		"email":             email,
		"password":          pw,
	})
	testutil.AssertStatusCode(t, resp, http.StatusCreated)

	var body organization.CreateResponse
	testutil.DecodeJSON(t, resp, &body)
	if body.Organization == nil {
		t.Fatal("Expected organization in create response")
	}
	return *body.Organization
}

func login(t *testing.T, client *testutil.HTTPTestClient, email, pw string) organization.LoginResponse {
	t.Helper()

	resp := client.POST(t, "/admin/login", map[string]string{"email": email, "password": pw})
	testutil.AssertStatusCode(t, resp, http.StatusOK)

	var body organization.LoginResponse
	testutil.DecodeJSON(t, resp, &body)
	if body.Token == "" {
		t.Fatal("Expected token in login response")
	}
	return body
}

func lifecycleFlow(t *testing.T, newStore storeFactory) {
	store, database := newStore(t)
	ts := SetupE2ETest(t, store, database)
	client := ts.NewClient("")

	created := createOrg(t, client, "Test Co", "admin@test.co", "secret")
	if created.PartitionID != "org_test_co" {
		t.Errorf("Expected partition 'org_test_co', got '%s'", created.PartitionID)
	}

	resp := client.GET(t, "/org/get?organization_name=test%20co")
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	var got organization.GetResponse
	testutil.DecodeJSON(t, resp, &got)
	if got.Organization.ID != created.ID || got.Organization.Connection.DB != database {
		t.Errorf("Unexpected organization %+v", got.Organization)
	}

	session := login(t, client, "admin@test.co", "secret")
	if session.OrganizationID == nil || *session.OrganizationID != created.ID {
		t.Errorf("Expected organization_id %s, got %v", created.ID, session.OrganizationID)
	}

	resp = client.WithToken(session.Token).DELETE(t, "/org/delete", map[string]string{"organization_name": "Test Co"})
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	var deleted organization.DeleteResponse
	testutil.DecodeJSON(t, resp, &deleted)
	if !deleted.DroppedCollection {
		t.Error("Expected dropped_collection to be true")
	}

	resp = client.GET(t, "/org/get?organization_name=Test%20Co")
	testutil.AssertStatusCode(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = client.POST(t, "/admin/login", map[string]string{"email": "admin@test.co", "password": "secret"})
	testutil.AssertStatusCode(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	ts.MockPublisher.AssertEventCount(t, messaging.EventOrganizationCreated, 1)
	ts.MockPublisher.AssertEventCount(t, messaging.EventOrganizationDeleted, 1)
}

func renameFlow(t *testing.T, newStore storeFactory) {
	store, database := newStore(t)
	ts := SetupE2ETest(t, store, database)
	client := ts.NewClient("")
	ctx := context.Background()

	created := createOrg(t, client, "Acme", "admin@acme.test", "secret")
	for i := 0; i < 2; i++ {
		if _, err := store.Partitions().Insert(ctx, created.PartitionID, map[string]any{"n": i}); err != nil {
			t.Fatalf("Failed to seed partition: %v", err)
		}
	}

	resp := client.PUT(t, "/org/update", map[string]string{
		"organization_name":     "acme",
		"organization_name_new": "Acme Corp",
	})
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	var updated organization.UpdateResponse
	testutil.DecodeJSON(t, resp, &updated)
	if updated.Organization.PartitionID != "org_acme_corp" || updated.Organization.ID != created.ID {
		t.Errorf("Unexpected organization %+v", updated.Organization)
	}

	n, err := store.Partitions().Count(ctx, "org_acme_corp")
	if err != nil {
		t.Fatalf("Failed to count partition: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 records in new partition, got %d", n)
	}

	session := login(t, client, "admin@acme.test", "secret")
	principal, err := ts.Tokens.Validate(session.Token)
	if err != nil {
		t.Fatalf("Failed to validate token: %v", err)
	}
	if principal.Organization != "Acme Corp" {
		t.Errorf("Expected token organization 'Acme Corp', got '%s'", principal.Organization)
	}

	resp = client.PUT(t, "/org/update", map[string]string{
		"organization_name":     "Acme Corp",
		"new_organization_name": "Acme",
	})
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	resp.Body.Close()
	login(t, client, "admin@acme.test", "secret")

	resp = client.WithToken(session.Token).DELETE(t, "/org/delete", map[string]string{"organization_name": "Acme"})
	testutil.AssertStatusCode(t, resp, http.StatusForbidden)
	resp.Body.Close()

	session = login(t, client, "admin@acme.test", "secret")
	resp = client.WithToken(session.Token).DELETE(t, "/org/delete", map[string]string{"organization_name": "ACME"})
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	resp.Body.Close()

	ts.MockPublisher.AssertEventCount(t, messaging.EventOrganizationRenamed, 2)
}

func authorizationFlow(t *testing.T, newStore storeFactory) {
	store, database := newStore(t)
	ts := SetupE2ETest(t, store, database)
	client := ts.NewClient("")

	createOrg(t, client, "Acme", "admin@acme.test", "secret")
	createOrg(t, client, "Widget", "admin@widget.test", "secret")
	session := login(t, client, "admin@acme.test", "secret")

	resp := client.WithToken(session.Token).DELETE(t, "/org/delete", map[string]string{"organization_name": "Widget"})
	testutil.AssertStatusCode(t, resp, http.StatusForbidden)
	resp.Body.Close()

	resp = client.DELETE(t, "/org/delete", map[string]string{"organization_name": "Widget"})
	testutil.AssertStatusCode(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	expired := testutil.GenerateExpiredToken(t, "admin-1", "Widget")
	resp = client.WithToken(expired).DELETE(t, "/org/delete", map[string]string{"organization_name": "Widget"})
	testutil.AssertStatusCode(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	foreign := testutil.GenerateTestJWT(t, "another-secret", "admin-1", "Widget", time.Hour)
	resp = client.WithToken(foreign).DELETE(t, "/org/delete", map[string]string{"organization_name": "Widget"})
	testutil.AssertStatusCode(t, resp, http.StatusUnauthorized)
	resp.Body.Close()

	resp = client.WithToken(session.Token).DELETE(t, "/org/delete", map[string]string{"organization_name": "Nope"})
	testutil.AssertStatusCode(t, resp, http.StatusNotFound)
	resp.Body.Close()

	resp = client.GET(t, "/org/get?organization_name=Widget")
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	resp.Body.Close()
}

func validationFlow(t *testing.T, newStore storeFactory) {
	store, database := newStore(t)
	ts := SetupE2ETest(t, store, database)
	client := ts.NewClient("")

	createOrg(t, client, "Acme", "admin@acme.test", "secret")
	createOrg(t, client, "Widget", "admin@widget.test", "secret")

	tests := []struct {
		name      string
		method    string
		path      string
		body      interface{}
		wantError string
	}{
		{"create missing fields", http.MethodPost, "/org/create", map[string]string{"organization_name": "X"}, "validation_error"},
		{"create duplicate name", http.MethodPost, "/org/create", map[string]string{"organization_name": "ACME", "email": "x@acme.test", "password": "p"}, "name_conflict"},
		{"create duplicate email", http.MethodPost, "/org/create", map[string]string{"organization_name": "Other", "email": "admin@acme.test", "password": "p"}, "email_conflict"},
		{"get without name", http.MethodGet, "/org/get", nil, "validation_error"},
		{"update to taken name", http.MethodPut, "/org/update", map[string]string{"organization_name": "Acme", "new_organization_name": "widget"}, "name_conflict"},
		{"update without new name", http.MethodPut, "/org/update", map[string]string{"organization_name": "Acme"}, "validation_error"},
		{"login missing password", http.MethodPost, "/admin/login", map[string]string{"email": "admin@acme.test"}, "validation_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := client.Do(t, tt.method, tt.path, tt.body)
			testutil.AssertStatusCode(t, resp, http.StatusBadRequest)

			var body organization.ErrorResponse
			testutil.DecodeJSON(t, resp, &body)
			if body.Error != tt.wantError {
				t.Errorf("Expected error '%s', got '%s' (%s)", tt.wantError, body.Error, body.Message)
			}
		})
	}

	resp := client.PUT(t, "/org/update", map[string]string{"organization_name": "Nope", "new_organization_name": "Other"})
	testutil.AssertStatusCode(t, resp, http.StatusNotFound)
	resp.Body.Close()
}
