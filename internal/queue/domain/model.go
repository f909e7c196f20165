// Package domain contains the ticket queue model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// Ticket is one entry in the shared waiting line. Position is the 1-based
// rank among waiting tickets and 0 once the ticket has left the line.
type Ticket struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	UserID        snowflake.ID `gorm:"column:user_id;not null;index" json:"user_id"`
	TicketNumber  string       `gorm:"column:ticket_number;type:varchar(32);not null;uniqueIndex:ux_tickets_day_number,priority:2" json:"ticket_number"`
	ServiceDay    string       `gorm:"column:service_day;type:varchar(10);not null;uniqueIndex:ux_tickets_day_number,priority:1" json:"service_day"`
	QueueType     string       `gorm:"column:queue_type;type:varchar(64);not null;default:general" json:"queue_type"`
	Status        Status       `gorm:"column:status;type:varchar(16);not null;index:idx_tickets_status_join,priority:1" json:"status"`
	JoinTime      time.Time    `gorm:"column:join_time;not null;index:idx_tickets_status_join,priority:2" json:"join_time"`
	CalledTime    *time.Time   `gorm:"column:called_time" json:"called_time,omitempty"`
	CompletedTime *time.Time   `gorm:"column:completed_time" json:"completed_time,omitempty"`
	Position      int          `gorm:"column:position;not null;default:0" json:"position,omitempty"`
}

// TableName sets the database table name.
func (Ticket) TableName() string { return "tickets" }

// TicketSequence holds the last ticket number issued on a service day.
type TicketSequence struct {
	ServiceDay string    `gorm:"column:service_day;type:varchar(10);primaryKey"`
	LastValue  int64     `gorm:"column:last_value;not null;default:0"`
	UpdatedAt  time.Time `gorm:"column:updated_at;not null"`
}

func (TicketSequence) TableName() string { return "ticket_sequences" }

type EventType string

const (
	EventJoined EventType = "joined"
	EventCalled EventType = "called"
	EventLeft   EventType = "left"
)

// QueueEvent is an append-only record of a ticket transition.
type QueueEvent struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	TicketID  snowflake.ID      `gorm:"column:ticket_id;not null;index" json:"ticket_id"`
	UserID    snowflake.ID      `gorm:"column:user_id;not null" json:"user_id"`
	ActorID   snowflake.ID      `gorm:"column:actor_id;not null" json:"actor_id"`
	Type      EventType         `gorm:"column:event_type;type:varchar(16);not null" json:"event_type"`
	Metadata  datatypes.JSONMap `gorm:"column:metadata" json:"metadata"`
	CreatedAt time.Time         `gorm:"column:created_at;not null" json:"created_at"`
}

func (QueueEvent) TableName() string { return "queue_events" }
