package identity

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCredentials = "identity_invalid_credentials"
	TextCodeEmailTaken         = "identity_email_taken"
	TextCodeUsernameTaken      = "identity_username_taken"
	TextCodeInvalidToken       = "identity_invalid_token"
	TextCodeUnauthenticated    = "identity_unauthenticated"
	TextCodeForbidden          = "identity_forbidden"
)

// ErrInvalidCredentials is returned for unknown local emails and wrong
// passwords alike; callers cannot distinguish the two.
var ErrInvalidCredentials = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrEmailTaken is returned when a registration email already exists.
var ErrEmailTaken = goerrors.New("email already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeConflict)

// ErrUsernameTaken is returned when a registration username already exists.
var ErrUsernameTaken = goerrors.New("username already taken", goerrors.CategoryConflict).
	WithTextCode(TextCodeUsernameTaken).
	WithCode(goerrors.CodeConflict)

// ErrProviderTaken is returned when a provider identifier is already linked
// to another account.
var ErrProviderTaken = goerrors.New("provider account already linked", goerrors.CategoryConflict).
	WithTextCode("identity_provider_taken").
	WithCode(goerrors.CodeConflict)

// ErrInvalidToken unifies malformed, expired, and wrong-signature tokens so
// verification failures never leak which check rejected the token.
var ErrInvalidToken = goerrors.New("invalid or expired token", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrUnauthenticated is returned when a request carries no usable identity.
var ErrUnauthenticated = goerrors.New("authentication required", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is returned when an authenticated account does not own the
// resource it is acting on.
var ErrForbidden = goerrors.New("access denied", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// IsConflict reports whether err is one of the duplicate-identity errors.
func IsConflict(err error) bool {
	return errors.Is(err, ErrEmailTaken) ||
		errors.Is(err, ErrUsernameTaken) ||
		errors.Is(err, ErrProviderTaken)
}

// storeFailure wraps opaque store errors so they surface as generic internal
// failures without exposing driver detail to callers.
func storeFailure(err error, msg string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}

// conflictFromDriver maps a unique-constraint violation reported by the
// database driver to the matching typed conflict error. The pre-checks in the
// resolver are a fast path only; the store's unique indexes are the
// authoritative guard, and a violation racing past the pre-check must still
// present as a Conflict to the caller. The repository layer may wrap the
// driver error behind a generic message, so every error in the chain is
// inspected, not just the outermost.
func conflictFromDriver(err error) error {
	for e := err; e != nil; e = errors.Unwrap(e) {
		msg := e.Error()
		if !strings.Contains(msg, "UNIQUE constraint failed") &&
			!strings.Contains(msg, "duplicate key value") {
			continue
		}

		switch {
		case strings.Contains(msg, "email"):
			return ErrEmailTaken
		case strings.Contains(msg, "username"):
			return ErrUsernameTaken
		default:
			return ErrProviderTaken
		}
	}
	return nil
}
