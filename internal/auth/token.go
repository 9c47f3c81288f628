// Package auth guards the admin endpoints with a single bearer token. Only
// the bcrypt hash of the token lives in config; the raw token is shown once
// at generation time.
package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/tranmanhhung/sn111/internal/config"
)

const (
	// TokenPrefix marks admin tokens so they are recognizable in configs
	// and logs without revealing the secret.
	TokenPrefix = "sn111_adm_" // #nosec G101 // prefix pattern, not a credential

	// tokenLength is the random part of a token in bytes, hex encoded.
	tokenLength = 32

	// bcryptCost is the cost factor for token hashing.
	bcryptCost = 12
)

// GenerateToken mints a raw admin token together with the bcrypt hash that
// goes into the config file.
func GenerateToken() (token, hash string, err error) {
	bytes := make([]byte, tokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	token = TokenPrefix + hex.EncodeToString(bytes)
	hash, err = HashToken(token)
	if err != nil {
		return "", "", err
	}
	return token, hash, nil
}

// HashToken creates a bcrypt hash of a token. The prefix is stripped so
// only the secret part is hashed.
func HashToken(token string) (string, error) {
	secret := strings.TrimPrefix(token, TokenPrefix)
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(hash), nil
}

// VerifyToken checks a token against a stored hash.
func VerifyToken(token, hash string) bool {
	secret := strings.TrimPrefix(token, TokenPrefix)
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}

// MaskToken returns a display form that keeps only the prefix and the first
// few characters.
func MaskToken(token string) string {
	const keep = 8
	if len(token) < len(TokenPrefix)+keep {
		return "****"
	}
	return token[:len(TokenPrefix)+keep] + "****...****"
}

// Guard decides admission for admin requests.
type Guard struct {
	enabled bool
	hash    string
}

// NewGuard builds a Guard from config. With auth disabled the guard admits
// every request.
func NewGuard(cfg config.AuthConfig) *Guard {
	return &Guard{enabled: cfg.Enabled, hash: cfg.TokenHash}
}

// Enabled reports whether admin requests require a token.
func (g *Guard) Enabled() bool { return g.enabled }

// Allow reports whether the presented bearer token grants admin access.
func (g *Guard) Allow(token string) bool {
	if !g.enabled {
		return true
	}
	if token == "" || g.hash == "" {
		return false
	}
	return VerifyToken(token, g.hash)
}
