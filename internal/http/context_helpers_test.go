package httpx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	domainauth "github.com/ahava-health/ahava-api/internal/domain/auth"
)

func TestIdentityFromContext(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)

	_, ok = IdentityFromContext(SetIdentityInContext(context.Background(), domainauth.Identity{}))
	assert.False(t, ok, "identity without a user id is not an identity")

	ctx := SetIdentityInContext(context.Background(), domainauth.Identity{UserID: "u1", Email: "a@b.co"})
	id, ok := IdentityFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u1", id.UserID)
}
