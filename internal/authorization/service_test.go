package authorization

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/queueline/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMemoryService(t *testing.T) Service {
	t.Helper()
	enforcer, err := NewMemoryEnforcer()
	require.NoError(t, err)
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestAuthorizeAdminMayCall(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()

	assert.NoError(t, svc.Authorize(ctx, snowflake.ID(10), RoleAdmin, ObjectQueue, ActionQueueCall))
	assert.NoError(t, svc.Authorize(ctx, snowflake.ID(10), "ADMIN", ObjectTickets, ActionTicketsView))
	assert.ErrorIs(t, svc.Authorize(ctx, snowflake.ID(11), RoleUser, ObjectQueue, ActionQueueCall), ErrForbidden)
}

func TestAuthorizeFollowsRoleChanges(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()
	id := snowflake.ID(42)

	require.NoError(t, svc.Authorize(ctx, id, RoleAdmin, ObjectQueue, ActionQueueCall))
	assert.ErrorIs(t, svc.Authorize(ctx, id, RoleUser, ObjectQueue, ActionQueueCall), ErrForbidden)
}

func TestAuthorizeValidatesInput(t *testing.T) {
	svc := newMemoryService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Authorize(ctx, 0, RoleAdmin, ObjectQueue, ActionQueueCall), ErrInvalidActor)
	assert.ErrorIs(t, svc.Authorize(ctx, 1, " ", ObjectQueue, ActionQueueCall), ErrInvalidRole)
	assert.ErrorIs(t, svc.Authorize(ctx, 1, RoleAdmin, "", ActionQueueCall), ErrInvalidObject)
	assert.ErrorIs(t, svc.Authorize(ctx, 1, RoleAdmin, ObjectQueue, ""), ErrInvalidAction)
}

func TestGormEnforcerPersistsSeedPolicies(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)

	enforcer, err := NewEnforcer(conn)
	require.NoError(t, err)
	ok, err := enforcer.HasPolicy(roleSubject(RoleAdmin), ObjectQueue, ActionQueueCall)
	require.NoError(t, err)
	assert.True(t, ok)

	// a second enforcer over the same table must not duplicate seeds
	again, err := NewEnforcer(conn)
	require.NoError(t, err)
	policies, err := again.GetPolicy()
	require.NoError(t, err)
	assert.Len(t, policies, 2)
}
