package identity

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// Resolver maps identity assertions from the three sources onto accounts in
// the Users store. It is request-scoped and stateless; all read-modify-write
// sequences lean on the store's unique indexes as the authoritative guard
// against concurrent registrations (see conflictFromDriver).
type Resolver struct {
	store     Users
	allocator *UsernameAllocator
	logger    Logger
}

// NewResolver creates a Resolver over the given store.
func NewResolver(store Users) *Resolver {
	return &Resolver{
		store:     store,
		allocator: NewUsernameAllocator(store),
		logger:    defLogger{},
	}
}

// WithLogger overrides the resolver logger.
func (r *Resolver) WithLogger(l Logger) *Resolver {
	if l != nil {
		r.logger = l
	}
	return r
}

// RegisterInput is a local registration request.
type RegisterInput struct {
	Email    string
	Password string
	FullName string
	Username string
}

// ResolveLocal authenticates an email/password assertion. Unknown emails,
// accounts created through OAuth, and wrong passwords all collapse to
// ErrInvalidCredentials.
func (r *Resolver) ResolveLocal(ctx context.Context, email, password string) (*User, error) {
	user, err := r.store.FindByEmail(ctx, email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.AuthMethod != AuthMethodLocal {
		return nil, ErrInvalidCredentials
	}

	if err := ComparePasswordAndHash(password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	return r.touchLastLogin(ctx, user)
}

// RegisterLocal creates a new local account. Duplicate emails or usernames
// fail with a Conflict, whether caught by the pre-check or by the store's
// unique index when two registrations race.
func (r *Resolver) RegisterLocal(ctx context.Context, input RegisterInput) (*User, error) {
	if _, err := r.store.FindByEmail(ctx, input.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	if _, err := r.store.FindByUsername(ctx, input.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Email:        input.Email,
		Username:     input.Username,
		FullName:     input.FullName,
		AuthMethod:   AuthMethodLocal,
		PasswordHash: hash,
		IsVerified:   false,
	}

	created, err := r.store.Create(ctx, user)
	if err != nil {
		return nil, err
	}

	return created, nil
}

// ResolveOAuth maps a provider profile onto an account. Precedence:
//
//  1. Provider-ID match: the account already carries this provider ID;
//     touch last login and return it unchanged.
//  2. Email match: an account exists with the same email under any auth
//     method; link the provider ID to it, backfill the avatar only when
//     unset, and keep its auth method as-is.
//  3. No match: create a verified account owned by the provider, with a
//     username allocated from the email (or the provider handle when the
//     provider withheld the email, as GitHub may).
//
// The provider-ID check runs before the email check so that a profile whose
// email changed upstream still resolves to the account it first created.
func (r *Resolver) ResolveOAuth(ctx context.Context, profile Profile) (*User, error) {
	if profile.ProviderID == "" {
		return nil, errors.New("profile has no provider id", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}
	if _, ok := providerColumn(profile.Provider); !ok {
		return nil, errors.New("unknown provider", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest).
			WithMetadata(map[string]any{"provider": profile.Provider})
	}

	user, err := r.store.FindByProvider(ctx, profile.Provider, profile.ProviderID)
	if err == nil {
		return r.touchLastLogin(ctx, user)
	}
	if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	if profile.Email != "" {
		user, err = r.store.FindByEmail(ctx, profile.Email)
		if err == nil {
			return r.linkProvider(ctx, user, profile)
		}
		if !repository.IsRecordNotFound(err) {
			return nil, err
		}
	}

	return r.createFromProfile(ctx, profile)
}

// linkProvider attaches profile's provider ID to an existing account. The
// account's auth method is left untouched: linking adds a provider ID, it
// does not convert the account.
func (r *Resolver) linkProvider(ctx context.Context, user *User, profile Profile) (*User, error) {
	patch := &User{ID: user.ID}

	switch profile.Provider {
	case AuthMethodGoogle:
		patch.GoogleID = &profile.ProviderID
	case AuthMethodGitHub:
		patch.GithubID = &profile.ProviderID
		patch.GithubUsername = profile.Username
	}

	if user.AvatarURL == "" && profile.AvatarURL != "" {
		patch.AvatarURL = profile.AvatarURL
	}

	now := time.Now()
	patch.LastLoginAt = &now

	updated, err := r.store.Update(ctx, patch)
	if err != nil {
		return nil, err
	}

	r.logger.Info("linked %s identity to account %s", profile.Provider, user.ID)

	return updated, nil
}

func (r *Resolver) createFromProfile(ctx context.Context, profile Profile) (*User, error) {
	seed := profile.Email
	if seed == "" {
		seed = profile.Username
	}
	if seed == "" {
		seed = profile.FullName
	}

	username, err := r.allocator.Allocate(ctx, seed)
	if err != nil {
		return nil, err
	}

	fullName := profile.FullName
	if fullName == "" {
		fullName = profile.Username
	}

	now := time.Now()
	user := &User{
		Email:       profile.Email,
		Username:    username,
		FullName:    fullName,
		AvatarURL:   profile.AvatarURL,
		AuthMethod:  profile.Provider,
		IsVerified:  true,
		LastLoginAt: &now,
	}

	switch profile.Provider {
	case AuthMethodGoogle:
		user.GoogleID = &profile.ProviderID
	case AuthMethodGitHub:
		user.GithubID = &profile.ProviderID
		user.GithubUsername = profile.Username
	}

	return r.store.Create(ctx, user)
}

func (r *Resolver) touchLastLogin(ctx context.Context, user *User) (*User, error) {
	now := time.Now()
	patch := &User{ID: user.ID, LastLoginAt: &now}

	updated, err := r.store.Update(ctx, patch)
	if err != nil {
		r.logger.Error("failed to update last login for %s: %v", user.ID, err)
		return nil, err
	}

	return updated, nil
}
