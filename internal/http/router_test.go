package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/WailSalutem-Health-Care/tenant-service/internal/auth"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/organization"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/password"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/store/memory"
	"github.com/WailSalutem-Health-Care/tenant-service/internal/testutil"
)

type fakeMetrics struct {
	mu           sync.Mutex
	routes       []string
	statuses     []int
	authFailures []string
}

func (m *fakeMetrics) RecordHTTPRequest(_ context.Context, method, route string, statusCode int, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes = append(m.routes, method+" "+route)
	m.statuses = append(m.statuses, statusCode)
}

func (m *fakeMetrics) RecordAuthFailure(_ context.Context, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authFailures = append(m.authFailures, reason)
}

func newTestRouter(t *testing.T, metrics MetricsRecorder) http.Handler {
	t.Helper()

	codec, err := password.NewCodec(bcrypt.MinCost)
	require.NoError(t, err)
	tokens, err := auth.NewTokenService(auth.Config{Secret: testutil.TestJWTSecret, TTL: time.Hour}, nil)
	require.NoError(t, err)

	svc := organization.NewService(organization.Options{
		Store:    memory.New(),
		Codec:    codec,
		Tokens:   tokens,
		Database: memory.DatabaseName,
	})

	return SetupRouter(Deps{
		Service:        svc,
		Tokens:         tokens,
		Metrics:        metrics,
		Logger:         zerolog.Nop(),
		AllowedOrigins: []string{"https://app.example.test"},
	})
}

func serve(h http.Handler, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Health(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := serve(h, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","service":"tenant-service"}`, rec.Body.String())

	rec = serve(h, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Multitenant Organization Service"}`, rec.Body.String())
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := serve(h, http.MethodGet, "/org/create", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRouter_DeleteRequiresToken(t *testing.T) {
	metrics := &fakeMetrics{}
	h := newTestRouter(t, metrics)

	rec := serve(h, http.MethodDelete, "/org/delete", `{"organization_name":"Acme"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "Authorization header missing")

	rec = serve(h, http.MethodDelete, "/org/delete", `{"organization_name":"Acme"}`, http.Header{
		"Authorization": {"Bearer " + testutil.GenerateExpiredToken(t, "admin-1", "Acme")},
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.Equal(t, []string{"missing_authorization", "token_expired"}, metrics.authFailures)
	assert.Equal(t, []string{"DELETE /org/delete", "DELETE /org/delete"}, metrics.routes)
	assert.Equal(t, []int{http.StatusUnauthorized, http.StatusUnauthorized}, metrics.statuses)
}

func TestRouter_CORS(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := serve(h, http.MethodOptions, "/org/create", "", http.Header{
		"Origin":                        {"https://app.example.test"},
		"Access-Control-Request-Method": {http.MethodPost},
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.test", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = serve(h, http.MethodGet, "/health", "", http.Header{"Origin": {"https://evil.example.test"}})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_RequestID(t *testing.T) {
	h := newTestRouter(t, nil)

	rec := serve(h, http.MethodGet, "/health", "", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
