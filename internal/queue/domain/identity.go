package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// Identity is what the queue needs to know about a user.
type Identity struct {
	UserID snowflake.ID
	Exists bool
	Role   string
}

type Profile struct {
	FullName    string
	PhoneNumber string
}

// IdentityStore resolves users for the queue without exposing account storage.
type IdentityStore interface {
	Resolve(ctx context.Context, userID snowflake.ID) (Identity, error)
	DisplayName(ctx context.Context, userID snowflake.ID) (string, error)
	Profiles(ctx context.Context, userIDs []snowflake.ID) (map[snowflake.ID]Profile, error)
	CountNonAdmin(ctx context.Context) (int64, error)
}
