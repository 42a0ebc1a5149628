package identity

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

var usernameStrip = regexp.MustCompile(`[^A-Za-z0-9]`)

// UsernameAllocator derives collision-free handles from an email address or
// a raw display name by probing the Users store for the first available
// candidate. Allocation is not idempotent and can race a concurrent
// registration using the same seed; the store's unique index on username is
// the authoritative guard, and callers must treat an insert-time conflict as
// a signal to retry.
type UsernameAllocator struct {
	store Users
}

// NewUsernameAllocator returns an allocator probing the given store.
func NewUsernameAllocator(store Users) *UsernameAllocator {
	return &UsernameAllocator{store: store}
}

// Allocate returns the first available handle for seed. Email seeds use the
// local part before the @; everything outside [A-Za-z0-9] is stripped. When
// the bare base is taken, integer suffixes are probed in order (base1,
// base2, ...) without an upper bound.
func (a *UsernameAllocator) Allocate(ctx context.Context, seed string) (string, error) {
	base := UsernameBase(seed)
	if base == "" {
		base = "user" + uuid.NewString()[:8]
	}

	candidate := base
	for counter := 1; ; counter++ {
		_, err := a.store.FindByUsername(ctx, candidate)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return candidate, nil
			}
			return "", err
		}

		candidate = base + strconv.Itoa(counter)
	}
}

// UsernameBase normalizes a seed without consulting the store.
func UsernameBase(seed string) string {
	if at := strings.Index(seed, "@"); at >= 0 {
		seed = seed[:at]
	}
	return usernameStrip.ReplaceAllString(seed, "")
}
