package auth

import "errors"

// Authentication fault taxonomy. Handlers and middleware map these to stable
// HTTP codes, so tests and clients can distinguish "not logged in" from
// "session invalid" from "session expired" from "malformed identity proof"
// without string matching.
var (
	// ErrMissingCredentials means the client omitted the bearer credential entirely.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrInvalidToken covers credentials that are present but unverifiable:
	// bad signature, wrong structure, or a signing failure on issuance.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is a distinguishable sub-kind of ErrInvalidToken:
	// errors.Is(ErrTokenExpired, ErrInvalidToken) holds.
	ErrTokenExpired = wrapExpired()

	// ErrZkLogin means the external identity assertion could not be parsed or
	// is missing the claims required for address derivation.
	ErrZkLogin = errors.New("zk login error")
)

func wrapExpired() error {
	return &expiredError{}
}

type expiredError struct{}

func (e *expiredError) Error() string { return "invalid token: token expired" }

func (e *expiredError) Is(target error) bool {
	return target == ErrInvalidToken
}
