package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind discriminates access from refresh tokens inside the signed
// payload, on top of the per-kind signing keys.
type TokenKind string

const (
	// TokenKindAccess authorizes individual requests.
	TokenKindAccess TokenKind = "access"
	// TokenKindRefresh is used only to mint new token pairs.
	TokenKindRefresh TokenKind = "refresh"
)

// Claims is the signed JWT payload for both token kinds.
type Claims struct {
	jwt.RegisteredClaims
	UID  string    `json:"uid,omitempty"`
	Kind TokenKind `json:"kind,omitempty"`
}

// SubjectID returns the account id the token authorizes.
func (c *Claims) SubjectID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// Expires returns the expiration time
func (c *Claims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued at time
func (c *Claims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
}
