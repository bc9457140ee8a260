package auth

import (
	"fmt"
	"time"
)

// Config holds the token signing configuration. It is loaded once at startup;
// rotating Secret invalidates every outstanding token.
type Config struct {
	Secret    string
	Algorithm string
	TTL       time.Duration
}

// DefaultTTL matches JWT_EXP_SECONDS=86400.
const DefaultTTL = 24 * time.Hour

// Validate checks that the configuration can sign tokens.
func (c Config) Validate() error {
	if c.Secret == "" {
		return fmt.Errorf("token signing secret is required")
	}
	if _, err := signingMethod(c.Algorithm); err != nil {
		return err
	}
	if c.TTL < 0 {
		return fmt.Errorf("token ttl must not be negative")
	}
	return nil
}
