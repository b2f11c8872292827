package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the verified content of a bearer credential: the subject it was
// minted for (a Sui address or a derived zk-address) and its absolute expiry.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// TokenService issues and verifies the service's bearer credentials. Tokens
// are stateless HS256 JWTs: never stored server-side, revoked only by expiry.
// The signing secret is injected once at startup rather than read from the
// process environment per call.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a TokenService with the given signing secret and
// credential lifetime.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue mints a signed, time-bounded credential asserting the given subject.
// A signing failure is a server configuration fault but is still surfaced as
// the invalid-token class so callers have a single error taxonomy.
func (s *TokenService) Issue(subject string) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrInvalidToken
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", ErrInvalidToken
	}
	return signed, nil
}

// Verify validates a bearer credential and returns the embedded claims.
// Expired tokens fail with ErrTokenExpired; every other defect (bad signature,
// wrong algorithm, malformed structure, empty subject) fails with
// ErrInvalidToken.
func (s *TokenService) Verify(tokenString string) (Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return Claims{}, ErrMissingCredentials
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(s.now),
	)

	claims := &jwt.RegisteredClaims{}
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrInvalidToken
	}
	if !token.Valid || strings.TrimSpace(claims.Subject) == "" || claims.ExpiresAt == nil {
		return Claims{}, ErrInvalidToken
	}

	return Claims{
		Subject:   claims.Subject,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
