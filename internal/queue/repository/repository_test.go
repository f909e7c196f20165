package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/queueline/internal/migration"
	"github.com/smallbiznis/queueline/internal/queue/domain"
	"github.com/smallbiznis/queueline/internal/queue/repository"
	"github.com/smallbiznis/queueline/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.AutoMigrate(conn))
	return conn
}

func TestNextSequenceIsPerDay(t *testing.T) {
	conn := newTestDB(t)
	repo := repository.Provide()
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	for want := int64(1); want <= 3; want++ {
		got, err := repo.NextSequence(ctx, conn, "2026-03-02", now)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := repo.NextSequence(ctx, conn, "2026-03-03", now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestCompleteOnlyAffectsWaitingTickets(t *testing.T) {
	conn := newTestDB(t)
	repo := repository.Provide()
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	ticket := &domain.Ticket{
		ID: 10, UserID: 1, TicketNumber: "TICKET-001", ServiceDay: "2026-03-02",
		QueueType: "general", Status: domain.StatusWaiting, JoinTime: now, Position: 1,
	}
	require.NoError(t, repo.Insert(ctx, conn, ticket))

	found, err := repo.FindWaitingByUser(ctx, conn, 1)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "TICKET-001", found.TicketNumber)

	ok, err := repo.Complete(ctx, conn, ticket.ID, now.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Cancel(ctx, conn, ticket.ID, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)

	found, err = repo.FindWaitingByUser(ctx, conn, 1)
	require.NoError(t, err)
	assert.Nil(t, found)

	first, err := repo.FindFirstWaiting(ctx, conn)
	require.NoError(t, err)
	assert.Nil(t, first)

	count, err := repo.CountCompletedBetween(ctx, conn, now.Truncate(24*time.Hour), now.Truncate(24*time.Hour).Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestListWaitingOrdersByJoinTimeThenID(t *testing.T) {
	conn := newTestDB(t)
	repo := repository.Provide()
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	insert := func(id int64, user int64, number string, at time.Time) {
		require.NoError(t, repo.Insert(ctx, conn, &domain.Ticket{
			ID: snowflake.ID(id), UserID: snowflake.ID(user), TicketNumber: number, ServiceDay: "2026-03-02",
			QueueType: "general", Status: domain.StatusWaiting, JoinTime: at,
		}))
	}
	insert(30, 3, "TICKET-003", now.Add(time.Second))
	insert(20, 2, "TICKET-002", now)
	insert(10, 1, "TICKET-001", now)

	tickets, err := repo.ListWaiting(ctx, conn)
	require.NoError(t, err)
	require.Len(t, tickets, 3)
	assert.Equal(t, "TICKET-001", tickets[0].TicketNumber)
	assert.Equal(t, "TICKET-002", tickets[1].TicketNumber)
	assert.Equal(t, "TICKET-003", tickets[2].TicketNumber)

	count, err := repo.CountByStatus(ctx, conn, domain.StatusWaiting)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	page, err := repo.List(ctx, conn, domain.TicketFilter{AfterID: 30, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "TICKET-002", page[0].TicketNumber)
}
