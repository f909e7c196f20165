package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/queueline/internal/identity/domain"
	"github.com/smallbiznis/queueline/internal/identity/repository"
	"github.com/smallbiznis/queueline/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&domain.User{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(Params{
		Log:   zap.NewNop(),
		Repo:  repository.New(dbConn),
		GenID: node,
	})
}

func register(t *testing.T, svc domain.Service, username string) *domain.User {
	t.Helper()
	user, err := svc.Register(context.Background(), domain.RegisterRequest{
		Username:    username,
		Password:    "pass-" + username,
		FullName:    "User " + username,
		PhoneNumber: "0812",
	})
	require.NoError(t, err)
	return user
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user := register(t, svc, "alice")
	assert.Equal(t, domain.RoleUser, user.Role)
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, "pass-alice", user.PasswordHash)

	got, err := svc.Login(ctx, domain.LoginRequest{Username: " alice ", Password: "pass-alice"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "User alice", got.FullName)
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		req  domain.RegisterRequest
		want error
	}{
		{name: "username", req: domain.RegisterRequest{Password: "x", FullName: "A"}, want: domain.ErrInvalidUsername},
		{name: "password", req: domain.RegisterRequest{Username: "a", FullName: "A"}, want: domain.ErrInvalidPassword},
		{name: "full_name", req: domain.RegisterRequest{Username: "a", Password: "x"}, want: domain.ErrInvalidFullName},
		{name: "email", req: domain.RegisterRequest{Username: "a", Password: "x", FullName: "A", Email: "nope"}, want: domain.ErrInvalidEmail},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := newTestService(t)
	register(t, svc, "bob")

	_, err := svc.Register(context.Background(), domain.RegisterRequest{
		Username: "bob",
		Password: "other",
		FullName: "Another Bob",
	})
	assert.ErrorIs(t, err, domain.ErrUserExists)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	register(t, svc, "carol")

	_, err := svc.Login(ctx, domain.LoginRequest{Username: "carol", Password: "wrong"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, domain.LoginRequest{Username: "nobody", Password: "pass"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = svc.Login(ctx, domain.LoginRequest{Username: "carol"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	admin, created, err := svc.EnsureAdmin(ctx, "admin", "admin123")
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, admin.IsAdmin())

	again, created, err := svc.EnsureAdmin(ctx, "admin", "different")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, admin.ID, again.ID)

	_, err = svc.Login(ctx, domain.LoginRequest{Username: "admin", Password: "admin123"})
	assert.NoError(t, err)
}

func TestCountNonAdminAndLookups(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, _, err := svc.EnsureAdmin(ctx, "admin", "admin123")
	require.NoError(t, err)
	a := register(t, svc, "a")
	b := register(t, svc, "b")

	count, err := svc.CountNonAdmin(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	users, err := svc.ListByIDs(ctx, []snowflake.ID{a.ID, b.ID, a.ID, 12345})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, "User b", users[b.ID].FullName)

	_, err = svc.GetByID(ctx, 12345)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
