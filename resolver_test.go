package identity_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registerLocal(t *testing.T, r *identity.Resolver, email, password, username string) *identity.User {
	t.Helper()

	user, err := r.RegisterLocal(context.Background(), identity.RegisterInput{
		Email:    email,
		Password: password,
		FullName: "Test User",
		Username: username,
	})
	require.NoError(t, err)
	return user
}

func TestRegisterLocal(t *testing.T) {
	store := setupUsersStore(t)
	resolver := identity.NewResolver(store)

	user := registerLocal(t, resolver, "ada@example.com", "secret-password", "ada")

	assert.Equal(t, identity.AuthMethodLocal, user.AuthMethod)
	assert.False(t, user.IsVerified)
	assert.NotEmpty(t, user.PasswordHash)
	assert.NotEqual(t, "secret-password", user.PasswordHash)
}

func TestRegisterLocalDuplicateEmail(t *testing.T) {
	store := setupUsersStore(t)
	resolver := identity.NewResolver(store)

	registerLocal(t, resolver, "ada@example.com", "secret-password", "ada")

	_, err := resolver.RegisterLocal(context.Background(), identity.RegisterInput{
		Email:    "ada@example.com",
		Password: "other-password",
		Username: "ada2",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, identity.ErrEmailTaken)
}

func TestRegisterLocalDuplicateUsername(t *testing.T) {
	store := setupUsersStore(t)
	resolver := identity.NewResolver(store)

	registerLocal(t, resolver, "ada@example.com", "secret-password", "ada")

	_, err := resolver.RegisterLocal(context.Background(), identity.RegisterInput{
		Email:    "other@example.com",
		Password: "other-password",
		Username: "ada",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, identity.ErrUsernameTaken)
}

func TestResolveLocal(t *testing.T) {
	store := setupUsersStore(t)
	resolver := identity.NewResolver(store)

	created := registerLocal(t, resolver, "ada@example.com", "secret-password", "ada")

	user, err := resolver.ResolveLocal(context.Background(), "ada@example.com", "secret-password")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.NotNil(t, user.LastLoginAt)
}

func TestResolveLocalFailuresCollapse(t *testing.T) {
	store := setupUsersStore(t)
	resolver := identity.NewResolver(store)
	ctx := context.Background()

	registerLocal(t, resolver, "ada@example.com", "secret-password", "ada")

	githubID := "gh-77"
	seedUser(t, store, &identity.User{
		Email:      "social@example.com",
		Username:   "social",
		AuthMethod: identity.AuthMethodGitHub,
		GithubID:   &githubID,
	})

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{
			name:     "unknown email",
			email:    "nobody@example.com",
			password: "secret-password",
		},
		{
			name:     "wrong password",
			email:    "ada@example.com",
			password: "not-the-password",
		},
		{
			name:     "oauth account has no password",
			email:    "social@example.com",
			password: "anything",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolver.ResolveLocal(ctx, tt.email, tt.password)
			require.Error(t, err)
			assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
		})
	}
}

func TestResolveOAuthProviderIDMatch(t *testing.T) {
	store := setupUsersStore(t)
	resolver := identity.NewResolver(store)
	ctx := context.Background()

	googleID := "google-1"
	created := seedUser(t, store, &identity.User{
		Email:      "old@example.com",
		Username:   "olduser",
		AuthMethod: identity.AuthMethodGoogle,
		GoogleID:   &googleID,
	})

	// Email changed upstream; provider ID still wins.
	user, err := resolver.ResolveOAuth(ctx, identity.Profile{
		Provider:   identity.AuthMethodGoogle,
		ProviderID: googleID,
		Email:      "new@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)
	assert.Equal(t, "old@example.com", user.Email)
	assert.NotNil(t, user.LastLoginAt)
}

func TestResolveOAuthLinksByEmail(t *testing.T) {
	store := setupUsersStore(t)
	resolver := identity.NewResolver(store)
	ctx := context.Background()

	local := registerLocal(t, resolver, "ada@example.com", "secret-password", "ada")

	user, err := resolver.ResolveOAuth(ctx, identity.Profile{
		Provider:   identity.AuthMethodGoogle,
		ProviderID: "google-9",
		Email:      "ada@example.com",
		AvatarURL:  "https://example.com/pic.png",
	})
	require.NoError(t, err)
	assert.Equal(t, local.ID, user.ID)

	fetched, err := store.FindByID(ctx, local.ID)
	require.NoError(t, err)
	require.NotNil(t, fetched.GoogleID)
	assert.Equal(t, "google-9", *fetched.GoogleID)
	assert.Equal(t, identity.AuthMethodLocal, fetched.AuthMethod, "linking never converts the auth method")
	assert.Equal(t, "https://example.com/pic.png", fetched.AvatarURL, "avatar is backfilled when unset")

	// Password login still works after linking.
	_, err = resolver.ResolveLocal(ctx, "ada@example.com", "secret-password")
	require.NoError(t, err)
}

func TestResolveOAuthLinkKeepsExistingAvatar(t *testing.T) {
	store := setupUsersStore(t)
	resolver := identity.NewResolver(store)
	ctx := context.Background()

	seedUser(t, store, &identity.User{
		Email:      "ada@example.com",
		Username:   "ada",
		AuthMethod: identity.AuthMethodLocal,
		AvatarURL:  "https://example.com/original.png",
	})

	_, err := resolver.ResolveOAuth(ctx, identity.Profile{
		Provider:   identity.AuthMethodGitHub,
		ProviderID: "gh-9",
		Email:      "ada@example.com",
		Username:   "adagh",
		AvatarURL:  "https://example.com/other.png",
	})
	require.NoError(t, err)

	fetched, err := store.FindByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/original.png", fetched.AvatarURL)
	assert.Equal(t, "adagh", fetched.GithubUsername)
}

func TestResolveOAuthCreatesAccount(t *testing.T) {
	store := setupUsersStore(t)
	resolver := identity.NewResolver(store)
	ctx := context.Background()

	user, err := resolver.ResolveOAuth(ctx, identity.Profile{
		Provider:   identity.AuthMethodGoogle,
		ProviderID: "google-new",
		Email:      "fresh@example.com",
		FullName:   "Fresh User",
		AvatarURL:  "https://example.com/fresh.png",
	})
	require.NoError(t, err)

	assert.Equal(t, identity.AuthMethodGoogle, user.AuthMethod)
	assert.True(t, user.IsVerified)
	assert.Equal(t, "fresh", user.Username)
	require.NotNil(t, user.GoogleID)
	assert.Equal(t, "google-new", *user.GoogleID)
	assert.NotNil(t, user.LastLoginAt)
}

func TestResolveOAuthUsernameCollision(t *testing.T) {
	store := setupUsersStore(t)
	resolver := identity.NewResolver(store)
	ctx := context.Background()

	seedUser(t, store, &identity.User{
		Email:      "taken@example.com",
		Username:   "fresh",
		AuthMethod: identity.AuthMethodLocal,
	})

	user, err := resolver.ResolveOAuth(ctx, identity.Profile{
		Provider:   identity.AuthMethodGoogle,
		ProviderID: "google-new",
		Email:      "fresh@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh1", user.Username)
}

func TestResolveOAuthNoEmailUsesProviderHandle(t *testing.T) {
	store := setupUsersStore(t)
	resolver := identity.NewResolver(store)
	ctx := context.Background()

	user, err := resolver.ResolveOAuth(ctx, identity.Profile{
		Provider:   identity.AuthMethodGitHub,
		ProviderID: "gh-hidden",
		Username:   "octocat",
	})
	require.NoError(t, err)

	assert.Equal(t, "octocat", user.Username)
	assert.Equal(t, "octocat", user.FullName)
	assert.Equal(t, "octocat", user.GithubUsername)
	assert.Empty(t, user.Email)
}

func TestResolveOAuthMultipleAccountsWithoutEmail(t *testing.T) {
	store := setupUsersStore(t)
	resolver := identity.NewResolver(store)
	ctx := context.Background()

	first, err := resolver.ResolveOAuth(ctx, identity.Profile{
		Provider:   identity.AuthMethodGitHub,
		ProviderID: "gh-hidden-1",
		Username:   "octocat",
	})
	require.NoError(t, err)

	// a second withheld-email profile must not collide with the first on
	// the email unique index
	second, err := resolver.ResolveOAuth(ctx, identity.Profile{
		Provider:   identity.AuthMethodGitHub,
		ProviderID: "gh-hidden-2",
		Username:   "hubber",
	})
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
	assert.Empty(t, second.Email)

	again, err := resolver.ResolveOAuth(ctx, identity.Profile{
		Provider:   identity.AuthMethodGitHub,
		ProviderID: "gh-hidden-2",
		Username:   "hubber",
	})
	require.NoError(t, err)
	assert.Equal(t, second.ID, again.ID)
}

func TestResolveOAuthRejectsBadProfile(t *testing.T) {
	store := setupUsersStore(t)
	resolver := identity.NewResolver(store)
	ctx := context.Background()

	_, err := resolver.ResolveOAuth(ctx, identity.Profile{
		Provider: identity.AuthMethodGoogle,
	})
	require.Error(t, err)

	_, err = resolver.ResolveOAuth(ctx, identity.Profile{
		Provider:   "myspace",
		ProviderID: "m-1",
	})
	require.Error(t, err)
}
