package auth

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/blake2b"
)

// SaltStore is the persisted per-identity salt mapping the deriver depends on.
// The salt for an external identity is generated exactly once and never
// recomputed, which is what makes the derived address stable across logins.
type SaltStore interface {
	GetOrCreateIdentitySalt(ctx context.Context, identityKey string) (string, error)
}

// ZkIdentityDeriver computes a stable Sui-style address from a third-party
// identity assertion (an OIDC JWT) plus a persisted per-identity salt, without
// the service ever holding a private key for that address.
type ZkIdentityDeriver struct {
	salts SaltStore
}

// NewZkIdentityDeriver creates a deriver backed by the given salt store.
func NewZkIdentityDeriver(salts SaltStore) *ZkIdentityDeriver {
	return &ZkIdentityDeriver{salts: salts}
}

// DeriveAddress parses the identity assertion and derives the address as
// blake2b-256(subject || issuer || audience || salt). A malformed or
// claim-incomplete assertion fails with ErrZkLogin; a salt-store failure is
// surfaced as-is so the caller can distinguish a client fault from a storage
// fault. The deriver never fabricates a salt itself.
func (d *ZkIdentityDeriver) DeriveAddress(ctx context.Context, assertion string) (string, error) {
	subject, issuer, audience, err := parseAssertionClaims(assertion)
	if err != nil {
		return "", err
	}

	identityKey := issuer + "|" + subject
	salt, err := d.salts.GetOrCreateIdentitySalt(ctx, identityKey)
	if err != nil {
		return "", fmt.Errorf("identity salt lookup: %w", err)
	}
	if strings.TrimSpace(salt) == "" {
		// Fail closed: deriving with an empty salt would make the address
		// forgeable from public claims alone.
		return "", fmt.Errorf("identity salt missing for %s: %w", issuer, ErrZkLogin)
	}

	h, err := blake2b.New256(nil)
	if err != nil {
		return "", err
	}
	h.Write([]byte(subject))
	h.Write([]byte(issuer))
	h.Write([]byte(audience))
	h.Write([]byte(salt))

	return "0x" + hex.EncodeToString(h.Sum(nil)), nil
}

// parseAssertionClaims extracts sub/iss/aud from the assertion. The assertion
// is issued by the external identity provider; its structure is validated here
// and its claims feed the derivation, so absent claims are a hard failure.
func parseAssertionClaims(assertion string) (subject, issuer, audience string, err error) {
	assertion = strings.TrimSpace(assertion)
	if assertion == "" {
		return "", "", "", fmt.Errorf("empty assertion: %w", ErrZkLogin)
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, parseErr := jwt.NewParser().ParseUnverified(assertion, claims); parseErr != nil {
		return "", "", "", fmt.Errorf("unparsable assertion: %w", ErrZkLogin)
	}

	subject = strings.TrimSpace(claims.Subject)
	issuer = strings.TrimSpace(claims.Issuer)
	if subject == "" || issuer == "" {
		return "", "", "", fmt.Errorf("assertion missing sub or iss claim: %w", ErrZkLogin)
	}
	if len(claims.Audience) > 0 {
		audience = strings.TrimSpace(claims.Audience[0])
	}

	return subject, issuer, audience, nil
}
