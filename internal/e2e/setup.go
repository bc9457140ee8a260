// Package e2e drives the full HTTP surface against a real store.
package e2e

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/auth"
	httpserver "github.com/WailSalutem-Health-Care/tenant-service/internal/http"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/organization"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/password"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/testutil"
)

// TestServer represents a complete E2E test environment
type TestServer struct {
	Server        *httptest.Server
	Store         organization.Store
	MockPublisher *testutil.MockPublisher
	Tokens        *auth.TokenService
}

// SetupE2ETest serves the router over store. Tokens are signed with
// testutil.TestJWTSecret and events go to an in-memory publisher.
func SetupE2ETest(t *testing.T, store organization.Store, database string) *TestServer {
	t.Helper()

	codec, err := password.NewCodec(bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to create password codec: %v", err)
	}
	tokens, err := auth.NewTokenService(auth.Config{Secret: testutil.TestJWTSecret, TTL: time.Hour}, nil)
	if err != nil {
		t.Fatalf("Failed to create token service: %v", err)
	}

	mockPublisher := testutil.NewMockPublisher()
	svc := organization.NewService(organization.Options{
		Store:     store,
		Codec:     codec,
		Tokens:    tokens,
		Publisher: mockPublisher,
		Database:  database,
	})

	router := httpserver.SetupRouter(httpserver.Deps{
		Service: svc,
		Tokens:  tokens,
		Logger:  zerolog.Nop(),
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &TestServer{
		Server:        server,
		Store:         store,
		MockPublisher: mockPublisher,
		Tokens:        tokens,
	}
}

// NewClient creates a new HTTP test client for this server with the given token
func (ts *TestServer) NewClient(token string) *testutil.HTTPTestClient {
	return testutil.NewHTTPTestClient(ts.Server.URL, token)
}
