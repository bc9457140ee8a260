package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockMetrics struct {
	reasons []string
}

func (m *mockMetrics) RecordAuthFailure(ctx context.Context, reason string) {
	m.reasons = append(m.reasons, reason)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestMiddleware_ValidToken(t *testing.T) {
	svc := newTestTokenService(t, clock.NewMock())
	token, err := svc.Issue(Principal{AdminID: "admin-1", Organization: "Acme"})
	require.NoError(t, err)

	var got *Principal
	handler := Middleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pr, ok := FromContext(r.Context())
		require.True(t, ok)
		got = pr
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodDelete, "/org/delete", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "admin-1", got.AdminID)
	assert.Equal(t, "Acme", got.Organization)
}

func TestMiddleware_Rejections(t *testing.T) {
	clk := clock.NewMock()
	svc := newTestTokenService(t, clk)
	expired, err := svc.Issue(Principal{AdminID: "admin-1"})
	require.NoError(t, err)
	clk.Add(2 * time.Hour)

	tests := []struct {
		name     string
		header   string
		wantCode string
		reason   string
	}{
		{"missing header", "", "missing_authorization", "missing_authorization"},
		{"no bearer prefix", "some-token", "invalid_authorization_header", "invalid_header_format"},
		{"wrong scheme", "Basic dXNlcjpwYXNz", "invalid_authorization_header", "invalid_header_format"},
		{"only bearer", "Bearer", "invalid_authorization_header", "invalid_header_format"},
		{"empty after bearer", "Bearer ", "invalid_authorization_header", "invalid_header_format"},
		{"garbage token", "Bearer invalid-token", "token_invalid", "invalid_token"},
		{"expired token", "Bearer " + expired, "token_expired", "token_expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metrics := &mockMetrics{}
			called := false
			handler := MiddlewareWithMetrics(svc, metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodDelete, "/org/delete", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.False(t, called)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			assert.Equal(t, tt.wantCode, decodeError(t, rec).Error)
			assert.Equal(t, []string{tt.reason}, metrics.reasons)
		})
	}
}

func TestMiddleware_CaseInsensitiveScheme(t *testing.T) {
	svc := newTestTokenService(t, clock.NewMock())
	token, err := svc.Issue(Principal{AdminID: "admin-1", Organization: "Acme"})
	require.NoError(t, err)

	called := false
	handler := Middleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+token)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.True(t, called)
}

func TestFromContext(t *testing.T) {
	t.Run("principal present", func(t *testing.T) {
		expected := &Principal{AdminID: "admin-1", Organization: "Acme"}
		pr, ok := FromContext(ContextWithPrincipal(context.Background(), expected))
		assert.True(t, ok)
		assert.Same(t, expected, pr)
	})

	t.Run("principal absent", func(t *testing.T) {
		pr, ok := FromContext(context.Background())
		assert.False(t, ok)
		assert.Nil(t, pr)
	})
}
