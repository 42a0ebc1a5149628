package identity

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// AuthMethod identifies the source that created an account. It is set at
// creation and never changes, even when a provider identity is linked later.
type AuthMethod string

const (
	// AuthMethodLocal is email/password registration
	AuthMethodLocal AuthMethod = "local"
	// AuthMethodGoogle is Google OAuth
	AuthMethodGoogle AuthMethod = "google"
	// AuthMethodGitHub is GitHub OAuth
	AuthMethodGitHub AuthMethod = "github"
)

// User is the account model
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	// Email is nullzero so provider accounts without an email store NULL
	// rather than colliding on the unique index at the empty string.
	Email          string     `bun:"email,nullzero,unique" json:"email,omitempty"`
	Username       string     `bun:"username,notnull,unique" json:"username,omitempty"`
	FullName       string     `bun:"full_name" json:"full_name,omitempty"`
	AvatarURL      string     `bun:"avatar_url" json:"avatar_url,omitempty"`
	AuthMethod     AuthMethod `bun:"auth_method,notnull" json:"auth_method,omitempty"`
	PasswordHash   string     `bun:"password_hash" json:"-"`
	GoogleID       *string    `bun:"google_id,nullzero,unique" json:"google_id,omitempty"`
	GithubID       *string    `bun:"github_id,nullzero,unique" json:"github_id,omitempty"`
	GithubUsername string     `bun:"github_username" json:"github_username,omitempty"`
	IsVerified     bool       `bun:"is_verified" json:"is_verified"`
	LastLoginAt    *time.Time `bun:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt      *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt      *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// ProviderID returns the external identifier for the given provider, if set.
func (u *User) ProviderID(provider AuthMethod) (string, bool) {
	switch provider {
	case AuthMethodGoogle:
		if u.GoogleID != nil {
			return *u.GoogleID, true
		}
	case AuthMethodGitHub:
		if u.GithubID != nil {
			return *u.GithubID, true
		}
	}
	return "", false
}

// Sanitized returns a copy safe to hand to transport layers: the password
// hash is cleared. The bun model metadata travels with the copy but is inert
// outside the repository.
func (u *User) Sanitized() *User {
	if u == nil {
		return nil
	}
	clean := *u
	clean.PasswordHash = ""
	return &clean
}

// Profile is a normalized identity assertion from an OAuth provider, handed
// to Resolver.ResolveOAuth after the external handshake completes.
type Profile struct {
	Provider   AuthMethod `json:"provider"`
	ProviderID string     `json:"provider_id"`
	Email      string     `json:"email,omitempty"`
	FullName   string     `json:"full_name,omitempty"`
	Username   string     `json:"username,omitempty"`
	AvatarURL  string     `json:"avatar_url,omitempty"`
}
