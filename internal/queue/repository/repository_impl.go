package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/queueline/internal/queue/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const ticketColumns = `id, user_id, ticket_number, service_day, queue_type, status,
	join_time, called_time, completed_time, position`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, ticket *domain.Ticket) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO tickets (id, user_id, ticket_number, service_day, queue_type, status, join_time, position)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ticket.ID,
		ticket.UserID,
		ticket.TicketNumber,
		ticket.ServiceDay,
		ticket.QueueType,
		ticket.Status,
		ticket.JoinTime,
		ticket.Position,
	).Error
}

func (r *repo) FindWaitingByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) (*domain.Ticket, error) {
	var ticket domain.Ticket
	err := db.WithContext(ctx).Raw(
		`SELECT `+ticketColumns+`
		 FROM tickets
		 WHERE user_id = ? AND status = ?
		 ORDER BY join_time ASC, id ASC
		 LIMIT 1`,
		userID,
		domain.StatusWaiting,
	).Scan(&ticket).Error
	if err != nil {
		return nil, err
	}
	if ticket.ID == 0 {
		return nil, nil
	}
	return &ticket, nil
}

func (r *repo) FindFirstWaiting(ctx context.Context, db *gorm.DB) (*domain.Ticket, error) {
	var ticket domain.Ticket
	err := db.WithContext(ctx).Raw(
		`SELECT `+ticketColumns+`
		 FROM tickets
		 WHERE status = ?
		 ORDER BY join_time ASC, id ASC
		 LIMIT 1`,
		domain.StatusWaiting,
	).Scan(&ticket).Error
	if err != nil {
		return nil, err
	}
	if ticket.ID == 0 {
		return nil, nil
	}
	return &ticket, nil
}

func (r *repo) ListWaiting(ctx context.Context, db *gorm.DB) ([]*domain.Ticket, error) {
	var tickets []*domain.Ticket
	err := db.WithContext(ctx).Raw(
		`SELECT `+ticketColumns+`
		 FROM tickets
		 WHERE status = ?
		 ORDER BY join_time ASC, id ASC`,
		domain.StatusWaiting,
	).Scan(&tickets).Error
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *repo) UpdatePosition(ctx context.Context, db *gorm.DB, id snowflake.ID, position int) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tickets SET position = ? WHERE id = ? AND status = ?`,
		position,
		id,
		domain.StatusWaiting,
	).Error
}

// Complete moves a waiting ticket to completed. It reports false when the
// ticket was no longer waiting.
func (r *repo) Complete(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE tickets
		 SET status = ?, called_time = ?, completed_time = ?, position = 0
		 WHERE id = ? AND status = ?`,
		domain.StatusCompleted,
		at,
		at,
		id,
		domain.StatusWaiting,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) Cancel(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE tickets
		 SET status = ?, completed_time = ?, position = 0
		 WHERE id = ? AND status = ?`,
		domain.StatusCancelled,
		at,
		id,
		domain.StatusWaiting,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// NextSequence increments and returns the counter for serviceDay. The row is
// created on first use; the UPDATE takes a row write lock, so concurrent
// issuers on the same day are serialized by the database.
func (r *repo) NextSequence(ctx context.Context, db *gorm.DB, serviceDay string, now time.Time) (int64, error) {
	tx := db.WithContext(ctx)

	err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&domain.TicketSequence{
		ServiceDay: serviceDay,
		LastValue:  0,
		UpdatedAt:  now,
	}).Error
	if err != nil {
		return 0, err
	}

	err = tx.Exec(
		`UPDATE ticket_sequences SET last_value = last_value + 1, updated_at = ? WHERE service_day = ?`,
		now,
		serviceDay,
	).Error
	if err != nil {
		return 0, err
	}

	var seq domain.TicketSequence
	err = tx.Raw(
		`SELECT service_day, last_value, updated_at FROM ticket_sequences WHERE service_day = ?`,
		serviceDay,
	).Scan(&seq).Error
	if err != nil {
		return 0, err
	}
	return seq.LastValue, nil
}

func (r *repo) CountByStatus(ctx context.Context, db *gorm.DB, status domain.Status) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM tickets WHERE status = ?`,
		status,
	).Scan(&count).Error
	return count, err
}

func (r *repo) CountCompletedBetween(ctx context.Context, db *gorm.DB, from, to time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(*) FROM tickets
		 WHERE status = ? AND called_time >= ? AND called_time < ?`,
		domain.StatusCompleted,
		from,
		to,
	).Scan(&count).Error
	return count, err
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.TicketFilter) ([]*domain.Ticket, error) {
	var tickets []*domain.Ticket
	stmt := db.WithContext(ctx).Model(&domain.Ticket{})
	if filter.UserID != 0 {
		stmt = stmt.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.AfterID != 0 {
		stmt = stmt.Where("id < ?", filter.AfterID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}
	err := stmt.Order("id desc").Find(&tickets).Error
	if err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, event *domain.QueueEvent) error {
	return db.WithContext(ctx).Create(event).Error
}
