package identity

import "github.com/google/uuid"

// parseAccountID parses a token subject back into an account id.
func parseAccountID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}
