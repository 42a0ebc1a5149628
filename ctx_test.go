package identity_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-identity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserContextRoundTrip(t *testing.T) {
	user := &identity.User{ID: uuid.New(), Username: "ada"}

	ctx := identity.WithContext(context.Background(), user)

	got, ok := identity.FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, user, got)
}

func TestFromContextMissing(t *testing.T) {
	got, ok := identity.FromContext(context.Background())
	assert.False(t, ok)
	assert.Nil(t, got)
}
