package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

//go:generate mockgen -source=service.go -destination=../mocks/mock_service.go -package=mocks
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*User, error)
	Login(ctx context.Context, req LoginRequest) (*User, error)
	GetByID(ctx context.Context, id snowflake.ID) (*User, error)
	ListByIDs(ctx context.Context, ids []snowflake.ID) (map[snowflake.ID]*User, error)
	CountNonAdmin(ctx context.Context) (int64, error)
	EnsureAdmin(ctx context.Context, username, password string) (*User, bool, error)
}

type RegisterRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}
