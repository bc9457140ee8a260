package testutil

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// TestJWTSecret is the HS256 secret used by test servers.
const TestJWTSecret = "test-jwt-secret"

// GenerateTestJWT signs a session token the way the login endpoint does.
// An empty organization is encoded as null.
func GenerateTestJWT(t *testing.T, secret, adminID, organization string, ttl time.Duration) string {
	t.Helper()

	now := time.Now()
	claims := jwt.MapClaims{
		"admin_id":     adminID,
		"organization": nil,
		"iat":          now.Unix(),
		"exp":          now.Add(ttl).Unix(),
	}
	if organization != "" {
		claims["organization"] = organization
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return tokenString
}

// GenerateAdminToken creates a one-hour token for the admin of organization.
func GenerateAdminToken(t *testing.T, adminID, organization string) string {
	t.Helper()
	return GenerateTestJWT(t, TestJWTSecret, adminID, organization, time.Hour)
}

// GenerateExpiredToken creates a token that expired a minute ago.
func GenerateExpiredToken(t *testing.T, adminID, organization string) string {
	t.Helper()
	return GenerateTestJWT(t, TestJWTSecret, adminID, organization, -time.Minute)
}
