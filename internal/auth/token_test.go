package auth

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newTestTokenService(t *testing.T, clk clock.Clock) *TokenService {
	t.Helper()
	svc, err := NewTokenService(Config{Secret: testSecret, Algorithm: "HS256", TTL: time.Hour}, clk)
	require.NoError(t, err)
	return svc
}

func TestTokenService_RoundTrip(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestTokenService(t, clk)

	token, err := svc.Issue(Principal{AdminID: "admin-1", Organization: "Acme"})
	require.NoError(t, err)

	pr, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", pr.AdminID)
	assert.Equal(t, "Acme", pr.Organization)
}

func TestTokenService_OrganizationNullWhenEmpty(t *testing.T) {
	svc := newTestTokenService(t, clock.NewMock())

	token, err := svc.Issue(Principal{AdminID: "admin-1"})
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	v, present := claims["organization"]
	assert.True(t, present)
	assert.Nil(t, v)

	pr, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Empty(t, pr.Organization)
}

func TestTokenService_Expiry(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestTokenService(t, clk)

	token, err := svc.Issue(Principal{AdminID: "admin-1", Organization: "Acme"})
	require.NoError(t, err)

	clk.Add(time.Hour - time.Second)
	_, err = svc.Validate(token)
	require.NoError(t, err)

	clk.Add(2 * time.Second)
	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenService_ExpClaimIsIatPlusTTL(t *testing.T) {
	clk := clock.NewMock()
	clk.Set(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := newTestTokenService(t, clk)

	token, err := svc.Issue(Principal{AdminID: "admin-1"})
	require.NoError(t, err)

	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(token, claims)
	require.NoError(t, err)
	iat := int64(claims["iat"].(float64))
	exp := int64(claims["exp"].(float64))
	assert.Equal(t, int64(time.Hour/time.Second), exp-iat)
	assert.Equal(t, "admin-1", claims["admin_id"])
}

func TestTokenService_RejectsTampered(t *testing.T) {
	clk := clock.NewMock()
	svc := newTestTokenService(t, clk)
	other, err := NewTokenService(Config{Secret: "other-secret", Algorithm: "HS256", TTL: time.Hour}, clk)
	require.NoError(t, err)

	forged, err := other.Issue(Principal{AdminID: "admin-1", Organization: "Acme"})
	require.NoError(t, err)

	_, err = svc.Validate(forged)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenService_RejectsOtherAlgorithm(t *testing.T) {
	clk := clock.NewMock()
	svc := newTestTokenService(t, clk)
	hs512, err := NewTokenService(Config{Secret: testSecret, Algorithm: "HS512", TTL: time.Hour}, clk)
	require.NoError(t, err)

	token, err := hs512.Issue(Principal{AdminID: "admin-1"})
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenService_RejectsMissingExpiry(t *testing.T) {
	svc := newTestTokenService(t, clock.NewMock())

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"admin_id":     "admin-1",
		"organization": "Acme",
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenService_Garbage(t *testing.T) {
	svc := newTestTokenService(t, clock.NewMock())

	_, err := svc.Validate("")
	assert.ErrorIs(t, err, ErrNoToken)

	_, err = svc.Validate("not.a.token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Secret: "s", Algorithm: "HS384"}, false},
		{"default algorithm", Config{Secret: "s"}, false},
		{"missing secret", Config{Algorithm: "HS256"}, true},
		{"asymmetric algorithm", Config{Secret: "s", Algorithm: "RS256"}, true},
		{"negative ttl", Config{Secret: "s", TTL: -time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewTokenService_DefaultTTL(t *testing.T) {
	svc, err := NewTokenService(Config{Secret: testSecret}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, svc.TTL())
}
