package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v4"
)

// Principal holds the identity carried by a validated session token.
type Principal struct {
	AdminID string
	// Organization is empty when the admin had no organization at login.
	Organization string
}

var (
	ErrNoToken      = errors.New("no token provided")
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

type tokenClaims struct {
	AdminID      string  `json:"admin_id"`
	Organization *string `json:"organization"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HMAC-signed session tokens.
type TokenService struct {
	method *jwt.SigningMethodHMAC
	secret []byte
	ttl    time.Duration
	clock  clock.Clock
}

// NewTokenService builds a TokenService from cfg. A nil clock uses wall time.
func NewTokenService(cfg Config, clk clock.Clock) (*TokenService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	method, err := signingMethod(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}
	return &TokenService{
		method: method,
		secret: []byte(cfg.Secret),
		ttl:    ttl,
		clock:  clk,
	}, nil
}

func signingMethod(alg string) (*jwt.SigningMethodHMAC, error) {
	switch strings.ToUpper(alg) {
	case "", "HS256":
		return jwt.SigningMethodHS256, nil
	case "HS384":
		return jwt.SigningMethodHS384, nil
	case "HS512":
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported token signing algorithm %q", alg)
	}
}

// TTL returns the lifetime given to newly issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for p that expires TTL from now.
func (s *TokenService) Issue(p Principal) (string, error) {
	now := s.clock.Now()
	claims := tokenClaims{
		AdminID: p.AdminID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.AdminID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	if p.Organization != "" {
		org := p.Organization
		claims.Organization = &org
	}

	signed, err := jwt.NewWithClaims(s.method, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate verifies the signature and expiry of tokenString and returns its
// Principal. Expiry is checked against the service clock after the signature
// is verified; any other failure is ErrTokenInvalid.
func (s *TokenService) Validate(tokenString string) (*Principal, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrNoToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{s.method.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	var claims tokenClaims
	parsed, err := parser.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.ExpiresAt == nil {
		return nil, ErrTokenInvalid
	}
	if !claims.VerifyExpiresAt(s.clock.Now(), true) {
		return nil, ErrTokenExpired
	}

	p := &Principal{AdminID: claims.AdminID}
	if claims.Organization != nil {
		p.Organization = *claims.Organization
	}
	return p, nil
}
