package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// TicketFilter narrows ListTickets. AfterID is an exclusive upper bound on id
// for descending cursor pagination.
type TicketFilter struct {
	UserID  snowflake.ID
	Status  Status
	AfterID snowflake.ID
	Limit   int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, ticket *Ticket) error
	FindWaitingByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*Ticket, error)
	FindFirstWaiting(ctx context.Context, db *gorm.DB) (*Ticket, error)
	ListWaiting(ctx context.Context, db *gorm.DB) ([]*Ticket, error)
	UpdatePosition(ctx context.Context, db *gorm.DB, id snowflake.ID, position int) error
	Complete(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	Cancel(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error)
	NextSequence(ctx context.Context, db *gorm.DB, serviceDay string, now time.Time) (int64, error)
	CountByStatus(ctx context.Context, db *gorm.DB, status Status) (int64, error)
	CountCompletedBetween(ctx context.Context, db *gorm.DB, from, to time.Time) (int64, error)
	List(ctx context.Context, db *gorm.DB, filter TicketFilter) ([]*Ticket, error)
	InsertEvent(ctx context.Context, db *gorm.DB, event *QueueEvent) error
}
