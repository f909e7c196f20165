package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/queueline/pkg/db/pagination"
)

type Service interface {
	Join(ctx context.Context, req JoinRequest) (*JoinResult, error)
	Leave(ctx context.Context, req LeaveRequest) error
	CallNext(ctx context.Context, req CallNextRequest) (*CallNextResult, error)
	Status(ctx context.Context, req StatusRequest) (*StatusResult, error)
	ListWaiting(ctx context.Context) ([]WaitingEntry, error)
	Stats(ctx context.Context) (*Stats, error)
	ListTickets(ctx context.Context, req ListTicketsRequest) (*ListTicketsResponse, error)
	Recompute(ctx context.Context) error
}

type JoinRequest struct {
	UserID    string `json:"user_id"`
	QueueType string `json:"queue_type"`
}

// JoinResult is also populated alongside an AlreadyQueuedError.
type JoinResult struct {
	TicketID     string    `json:"ticket_id"`
	TicketNumber string    `json:"ticket_number"`
	Position     int       `json:"position"`
	QueueType    string    `json:"queue_type"`
	JoinTime     time.Time `json:"join_time"`
}

type LeaveRequest struct {
	UserID string `json:"user_id" form:"user_id"`
}

type CallNextRequest struct {
	CallerID string `json:"admin_id"`
}

type CallNextResult struct {
	TicketID     string    `json:"ticket_id"`
	TicketNumber string    `json:"ticket_number"`
	UserID       string    `json:"user_id"`
	FullName     string    `json:"full_name"`
	QueueType    string    `json:"queue_type"`
	CalledTime   time.Time `json:"called_time"`
}

type StatusRequest struct {
	UserID string `form:"user_id"`
}

type StatusResult struct {
	InQueue      bool       `json:"in_queue"`
	TicketNumber string     `json:"ticket_number,omitempty"`
	Position     int        `json:"position,omitempty"`
	Status       Status     `json:"status,omitempty"`
	QueueType    string     `json:"queue_type,omitempty"`
	JoinTime     *time.Time `json:"join_time,omitempty"`
}

type WaitingEntry struct {
	TicketNumber string    `json:"ticket_number"`
	UserID       string    `json:"user_id"`
	FullName     string    `json:"full_name"`
	PhoneNumber  string    `json:"phone_number,omitempty"`
	QueueType    string    `json:"queue_type"`
	Position     int       `json:"position"`
	JoinTime     time.Time `json:"join_time"`
}

type Stats struct {
	WaitingCount       int64 `json:"waiting_in_queue"`
	CompletedToday     int64 `json:"completed_today"`
	TotalNonAdminUsers int64 `json:"total_users"`
}

// ListTicketsRequest filters ticket history. Requesters may read their own
// tickets; any other UserID, or none, requires permission to view every ticket.
type ListTicketsRequest struct {
	UserID      string `form:"user_id"`
	RequesterID string `form:"requester_id"`
	Status      string `form:"status"`
	pagination.Pagination
}

type ListTicketsResponse struct {
	Tickets  []*Ticket            `json:"tickets"`
	PageInfo *pagination.PageInfo `json:"page_info"`
}
