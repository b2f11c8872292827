package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type fakeSaltStore struct {
	salts map[string]string
	err   error
	calls []string
}

func (f *fakeSaltStore) GetOrCreateIdentitySalt(_ context.Context, identityKey string) (string, error) {
	f.calls = append(f.calls, identityKey)
	if f.err != nil {
		return "", f.err
	}
	return f.salts[identityKey], nil
}

// makeAssertion builds a provider-style identity assertion. Signature validity
// is the provider's concern, not the deriver's, so any signing key works.
func makeAssertion(t *testing.T, sub, iss string, aud []string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   sub,
		Issuer:    iss,
		Audience:  jwt.ClaimStrings(aud),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("provider-key"))
	if err != nil {
		t.Fatalf("failed to build assertion: %v", err)
	}
	return token
}

func TestZkIdentityDeriver_StableAcrossLogins(t *testing.T) {
	store := &fakeSaltStore{salts: map[string]string{
		"https://accounts.google.com|user-123": "a1b2c3d4e5f60718",
	}}
	d := NewZkIdentityDeriver(store)
	assertion := makeAssertion(t, "user-123", "https://accounts.google.com", []string{"suipay-client"})

	first, err := d.DeriveAddress(context.Background(), assertion)
	if err != nil {
		t.Fatalf("DeriveAddress returned error: %v", err)
	}
	second, err := d.DeriveAddress(context.Background(), assertion)
	if err != nil {
		t.Fatalf("DeriveAddress returned error: %v", err)
	}
	if first != second {
		t.Fatalf("expected stable address, got %q then %q", first, second)
	}
	if len(first) != 2+64 || first[:2] != "0x" {
		t.Fatalf("expected 0x-prefixed 32-byte hex address, got %q", first)
	}
	if len(store.calls) != 2 || store.calls[0] != "https://accounts.google.com|user-123" {
		t.Fatalf("expected salt lookups keyed by issuer|subject, got %v", store.calls)
	}
}

func TestZkIdentityDeriver_DifferentSaltsYieldDifferentAddresses(t *testing.T) {
	assertion := makeAssertion(t, "user-123", "https://accounts.google.com", []string{"suipay-client"})

	a, err := NewZkIdentityDeriver(&fakeSaltStore{salts: map[string]string{
		"https://accounts.google.com|user-123": "a1b2c3d4e5f60718",
	}}).DeriveAddress(context.Background(), assertion)
	if err != nil {
		t.Fatalf("DeriveAddress returned error: %v", err)
	}

	b, err := NewZkIdentityDeriver(&fakeSaltStore{salts: map[string]string{
		"https://accounts.google.com|user-123": "ffffffffffffffff",
	}}).DeriveAddress(context.Background(), assertion)
	if err != nil {
		t.Fatalf("DeriveAddress returned error: %v", err)
	}

	if a == b {
		t.Fatalf("expected different salts to produce different addresses, both were %q", a)
	}
}

func TestZkIdentityDeriver_Faults(t *testing.T) {
	store := &fakeSaltStore{salts: map[string]string{}}
	d := NewZkIdentityDeriver(store)

	tests := []struct {
		name      string
		assertion string
	}{
		{name: "empty assertion", assertion: ""},
		{name: "not a jwt", assertion: "garbage"},
		{name: "missing subject", assertion: makeAssertion(t, "", "https://accounts.google.com", nil)},
		{name: "missing issuer", assertion: makeAssertion(t, "user-123", "", nil)},
		{name: "no persisted salt", assertion: makeAssertion(t, "user-123", "https://accounts.google.com", nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.DeriveAddress(context.Background(), tt.assertion)
			if !errors.Is(err, ErrZkLogin) {
				t.Fatalf("expected ErrZkLogin, got %v", err)
			}
		})
	}
}

func TestZkIdentityDeriver_SaltStoreFailureIsNotAClientFault(t *testing.T) {
	storeErr := errors.New("connection refused")
	d := NewZkIdentityDeriver(&fakeSaltStore{err: storeErr})
	assertion := makeAssertion(t, "user-123", "https://accounts.google.com", nil)

	_, err := d.DeriveAddress(context.Background(), assertion)
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected salt store error to surface, got %v", err)
	}
	if errors.Is(err, ErrZkLogin) {
		t.Fatalf("storage failure must not be classified as a zk-login client fault")
	}
}
