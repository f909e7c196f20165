package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/queueline/internal/authorization"
	"github.com/smallbiznis/queueline/internal/clock"
	"github.com/smallbiznis/queueline/internal/config"
	"github.com/smallbiznis/queueline/internal/lock"
	obsmetrics "github.com/smallbiznis/queueline/internal/observability/metrics"
	"github.com/smallbiznis/queueline/internal/observability/tracing"
	"github.com/smallbiznis/queueline/internal/queue/domain"
	"github.com/smallbiznis/queueline/pkg/db"
	"github.com/smallbiznis/queueline/pkg/db/pagination"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const queueLockKey = "queueline:queue"

const (
	opJoin      = "join"
	opLeave     = "leave"
	opCallNext  = "call_next"
	opRecompute = "recompute"
)

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	Identities   domain.IdentityStore
	Authz        authorization.Service
	Locker       lock.Locker
	Policy       config.QueuePolicySource
	Cfg          config.Config
	Metrics      *obsmetrics.Metrics      `optional:"true"`
	QueueMetrics *obsmetrics.QueueMetrics `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	identities   domain.IdentityStore
	authz        authorization.Service
	locker       lock.Locker
	policy       config.QueuePolicySource
	loc          *time.Location
	metrics      *obsmetrics.Metrics
	queueMetrics *obsmetrics.QueueMetrics
}

func New(p Params) (domain.Service, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(p.Cfg.Queue.TimeZone))
	if err != nil {
		return nil, fmt.Errorf("load queue time zone %q: %w", p.Cfg.Queue.TimeZone, err)
	}

	return &Service{
		db:           p.DB,
		log:          p.Log.Named("queue.service"),
		genID:        p.GenID,
		clock:        p.Clock,
		repo:         p.Repo,
		identities:   p.Identities,
		authz:        p.Authz,
		locker:       p.Locker,
		policy:       p.Policy,
		loc:          loc,
		metrics:      p.Metrics,
		queueMetrics: p.QueueMetrics,
	}, nil
}

func (s *Service) Join(ctx context.Context, req domain.JoinRequest) (result *domain.JoinResult, err error) {
	ctx, span := tracing.StartOperation(ctx, opJoin)
	start := time.Now()
	defer func() { s.observe(ctx, span, opJoin, start, err) }()

	userID, err := parseID(req.UserID)
	if err != nil {
		return nil, err
	}

	policy := s.policy.Get()
	queueType := strings.TrimSpace(req.QueueType)
	if queueType == "" {
		queueType = policy.DefaultType
	}
	queueType, ok := policy.Canonical(queueType)
	if !ok {
		return nil, domain.ErrInvalidQueueType
	}

	identity, err := s.identities.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !identity.Exists {
		return nil, domain.ErrUserNotFound
	}

	var ticket domain.Ticket
	var waiting int
	err = s.withQueueLock(ctx, opJoin, func(tx *gorm.DB) error {
		existing, err := s.repo.FindWaitingByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			ticket = *existing
			return &domain.AlreadyQueuedError{
				TicketNumber: existing.TicketNumber,
				Position:     existing.Position,
			}
		}

		now := s.clock.Now().UTC()
		day := domain.ServiceDay(now, s.loc)
		seq, err := s.repo.NextSequence(ctx, tx, day, now)
		if err != nil {
			return err
		}

		ticket = domain.Ticket{
			ID:           s.genID.Generate(),
			UserID:       userID,
			TicketNumber: domain.FormatTicketNumber(seq),
			ServiceDay:   day,
			QueueType:    queueType,
			Status:       domain.StatusWaiting,
			JoinTime:     now,
		}
		if err := s.repo.Insert(ctx, tx, &ticket); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return fmt.Errorf("%w: %w", domain.ErrConflict, err)
			}
			return err
		}

		positions, err := s.recompute(ctx, tx)
		if err != nil {
			return err
		}
		ticket.Position = positions[ticket.ID]
		waiting = len(positions)

		return s.appendEvent(ctx, tx, &ticket, userID, domain.EventJoined, now)
	})

	if ticket.ID != 0 {
		result = &domain.JoinResult{
			TicketID:     ticket.ID.String(),
			TicketNumber: ticket.TicketNumber,
			Position:     ticket.Position,
			QueueType:    ticket.QueueType,
			JoinTime:     ticket.JoinTime,
		}
	}
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyQueued) {
			return result, err
		}
		return nil, err
	}

	s.queueMetrics.SetWaiting(waiting)
	s.metrics.RecordJoin(ctx, ticket.QueueType)
	s.log.Info("ticket issued",
		zap.String("user_id", userID.String()),
		zap.String("ticket_number", ticket.TicketNumber),
		zap.Int("position", ticket.Position),
	)
	return result, nil
}

func (s *Service) Leave(ctx context.Context, req domain.LeaveRequest) (err error) {
	ctx, span := tracing.StartOperation(ctx, opLeave)
	start := time.Now()
	defer func() { s.observe(ctx, span, opLeave, start, err) }()

	userID, err := parseID(req.UserID)
	if err != nil {
		return err
	}

	var ticket *domain.Ticket
	var waiting int
	err = s.withQueueLock(ctx, opLeave, func(tx *gorm.DB) error {
		var err error
		ticket, err = s.repo.FindWaitingByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if ticket == nil {
			return domain.ErrNotInQueue
		}

		now := s.clock.Now().UTC()
		ok, err := s.repo.Cancel(ctx, tx, ticket.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotInQueue
		}

		positions, err := s.recompute(ctx, tx)
		if err != nil {
			return err
		}
		waiting = len(positions)

		return s.appendEvent(ctx, tx, ticket, userID, domain.EventLeft, now)
	})
	if err != nil {
		return err
	}

	s.queueMetrics.SetWaiting(waiting)
	s.metrics.RecordLeave(ctx, ticket.QueueType)
	s.log.Info("ticket cancelled",
		zap.String("user_id", userID.String()),
		zap.String("ticket_number", ticket.TicketNumber),
	)
	return nil
}

func (s *Service) CallNext(ctx context.Context, req domain.CallNextRequest) (result *domain.CallNextResult, err error) {
	ctx, span := tracing.StartOperation(ctx, opCallNext)
	start := time.Now()
	defer func() { s.observe(ctx, span, opCallNext, start, err) }()

	callerID, err := parseID(req.CallerID)
	if err != nil {
		return nil, domain.ErrPermissionDenied
	}
	if err := s.authorize(ctx, callerID, authorization.ObjectQueue, authorization.ActionQueueCall); err != nil {
		return nil, err
	}

	var ticket *domain.Ticket
	var calledAt time.Time
	var waiting int
	err = s.withQueueLock(ctx, opCallNext, func(tx *gorm.DB) error {
		var err error
		ticket, err = s.repo.FindFirstWaiting(ctx, tx)
		if err != nil {
			return err
		}
		if ticket == nil {
			return domain.ErrEmptyQueue
		}

		calledAt = s.clock.Now().UTC()
		ok, err := s.repo.Complete(ctx, tx, ticket.ID, calledAt)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrConflict
		}

		positions, err := s.recompute(ctx, tx)
		if err != nil {
			return err
		}
		waiting = len(positions)

		return s.appendEvent(ctx, tx, ticket, callerID, domain.EventCalled, calledAt)
	})
	if err != nil {
		return nil, err
	}

	name, err := s.identities.DisplayName(ctx, ticket.UserID)
	if err != nil {
		s.log.Warn("display name lookup failed",
			zap.String("user_id", ticket.UserID.String()),
			zap.Error(err),
		)
		name = ""
	}

	s.queueMetrics.SetWaiting(waiting)
	s.metrics.RecordCall(ctx, ticket.QueueType)
	s.log.Info("ticket called",
		zap.String("caller_id", callerID.String()),
		zap.String("ticket_number", ticket.TicketNumber),
	)

	return &domain.CallNextResult{
		TicketID:     ticket.ID.String(),
		TicketNumber: ticket.TicketNumber,
		UserID:       ticket.UserID.String(),
		FullName:     name,
		QueueType:    ticket.QueueType,
		CalledTime:   calledAt,
	}, nil
}

func (s *Service) Status(ctx context.Context, req domain.StatusRequest) (*domain.StatusResult, error) {
	userID, err := parseID(req.UserID)
	if err != nil {
		return nil, err
	}

	ticket, err := s.repo.FindWaitingByUser(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if ticket == nil {
		return &domain.StatusResult{InQueue: false}, nil
	}

	joinTime := ticket.JoinTime
	return &domain.StatusResult{
		InQueue:      true,
		TicketNumber: ticket.TicketNumber,
		Position:     ticket.Position,
		Status:       ticket.Status,
		QueueType:    ticket.QueueType,
		JoinTime:     &joinTime,
	}, nil
}

func (s *Service) ListWaiting(ctx context.Context) ([]domain.WaitingEntry, error) {
	tickets, err := s.repo.ListWaiting(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if len(tickets) == 0 {
		return []domain.WaitingEntry{}, nil
	}

	userIDs := make([]snowflake.ID, 0, len(tickets))
	for _, t := range tickets {
		userIDs = append(userIDs, t.UserID)
	}
	profiles, err := s.identities.Profiles(ctx, userIDs)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.WaitingEntry, 0, len(tickets))
	for _, t := range tickets {
		profile := profiles[t.UserID]
		entries = append(entries, domain.WaitingEntry{
			TicketNumber: t.TicketNumber,
			UserID:       t.UserID.String(),
			FullName:     profile.FullName,
			PhoneNumber:  profile.PhoneNumber,
			QueueType:    t.QueueType,
			Position:     t.Position,
			JoinTime:     t.JoinTime,
		})
	}
	return entries, nil
}

func (s *Service) Stats(ctx context.Context) (*domain.Stats, error) {
	from, to := domain.DayBounds(s.clock.Now(), s.loc)

	var stats domain.Stats
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		stats.WaitingCount, err = s.repo.CountByStatus(ctx, tx, domain.StatusWaiting)
		if err != nil {
			return err
		}
		stats.CompletedToday, err = s.repo.CountCompletedBetween(ctx, tx, from, to)
		return err
	}, s.snapshotTxOptions()...)
	if err != nil {
		return nil, err
	}

	stats.TotalNonAdminUsers, err = s.identities.CountNonAdmin(ctx)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *Service) ListTickets(ctx context.Context, req domain.ListTicketsRequest) (*domain.ListTicketsResponse, error) {
	filter := domain.TicketFilter{}

	if strings.TrimSpace(req.UserID) != "" {
		userID, err := parseID(req.UserID)
		if err != nil {
			return nil, err
		}
		filter.UserID = userID
	}

	requesterID, err := parseID(req.RequesterID)
	if err != nil {
		return nil, domain.ErrPermissionDenied
	}
	// Own history needs no role; anything wider needs tickets.view_all.
	if filter.UserID == 0 || filter.UserID != requesterID {
		if err := s.authorize(ctx, requesterID, authorization.ObjectTickets, authorization.ActionTicketsView); err != nil {
			return nil, err
		}
	}

	if raw := strings.TrimSpace(req.Status); raw != "" {
		status := domain.Status(strings.ToLower(raw))
		if !status.Valid() {
			return nil, domain.ErrInvalidStatus
		}
		filter.Status = status
	}

	if token := strings.TrimSpace(req.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return nil, err
		}
		afterID, err := snowflake.ParseString(cursor.ID)
		if err != nil || afterID <= 0 {
			return nil, pagination.ErrInvalidPageToken
		}
		filter.AfterID = afterID
	}

	limit := req.Limit()
	filter.Limit = limit + 1

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	items, pageInfo := pagination.BuildCursorPageInfo(items, limit, func(t *domain.Ticket) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        t.ID.String(),
			CreatedAt: t.JoinTime.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if items == nil {
		items = []*domain.Ticket{}
	}

	return &domain.ListTicketsResponse{Tickets: items, PageInfo: pageInfo}, nil
}

// Recompute rewrites waiting positions under the queue lock.
func (s *Service) Recompute(ctx context.Context) (err error) {
	ctx, span := tracing.StartOperation(ctx, opRecompute)
	start := time.Now()
	defer func() { s.observe(ctx, span, opRecompute, start, err) }()

	var waiting int
	err = s.withQueueLock(ctx, opRecompute, func(tx *gorm.DB) error {
		positions, err := s.recompute(ctx, tx)
		waiting = len(positions)
		return err
	})
	if err != nil {
		return err
	}
	s.queueMetrics.SetWaiting(waiting)
	return nil
}

// recompute assigns 1..N to waiting tickets in (join_time, id) order and
// writes only the positions that changed.
func (s *Service) recompute(ctx context.Context, tx *gorm.DB) (map[snowflake.ID]int, error) {
	tickets, err := s.repo.ListWaiting(ctx, tx)
	if err != nil {
		return nil, err
	}

	positions := make(map[snowflake.ID]int, len(tickets))
	for i, t := range tickets {
		rank := i + 1
		positions[t.ID] = rank
		if t.Position == rank {
			continue
		}
		if err := s.repo.UpdatePosition(ctx, tx, t.ID, rank); err != nil {
			return nil, err
		}
	}
	return positions, nil
}

func (s *Service) withQueueLock(ctx context.Context, operation string, fn func(tx *gorm.DB) error) error {
	wait := s.policy.Get().LockWait

	waitStart := time.Now()
	release, err := s.locker.Acquire(ctx, queueLockKey, wait)
	s.queueMetrics.ObserveLockWait(time.Since(waitStart))
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			s.queueMetrics.IncLockTimeout()
			s.log.Warn("queue lock wait exceeded",
				zap.String("operation", operation),
				zap.Duration("wait", wait),
			)
			return fmt.Errorf("%w: %w", domain.ErrUnavailable, err)
		}
		return err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("queue lock release failed", zap.String("operation", operation), zap.Error(err))
		}
	}()

	return s.db.WithContext(ctx).Transaction(fn)
}

// authorize resolves the actor's role and checks it against the policy.
// Unknown actors are denied.
// snapshotTxOptions makes multi-statement reads see one snapshot. SQLite
// transactions already serialize, and its driver rejects isolation levels.
func (s *Service) snapshotTxOptions() []*sql.TxOptions {
	if s.db.Dialector.Name() == db.DialectSQLite {
		return nil
	}
	return []*sql.TxOptions{{Isolation: sql.LevelRepeatableRead, ReadOnly: true}}
}

func (s *Service) authorize(ctx context.Context, actorID snowflake.ID, object, action string) error {
	identity, err := s.identities.Resolve(ctx, actorID)
	if err != nil {
		return err
	}
	if !identity.Exists {
		return domain.ErrPermissionDenied
	}

	if err := s.authz.Authorize(ctx, actorID, identity.Role, object, action); err != nil {
		switch {
		case errors.Is(err, authorization.ErrForbidden),
			errors.Is(err, authorization.ErrInvalidRole),
			errors.Is(err, authorization.ErrInvalidActor):
			return domain.ErrPermissionDenied
		default:
			return err
		}
	}
	return nil
}

func (s *Service) appendEvent(ctx context.Context, tx *gorm.DB, ticket *domain.Ticket, actorID snowflake.ID, eventType domain.EventType, at time.Time) error {
	return s.repo.InsertEvent(ctx, tx, &domain.QueueEvent{
		ID:       s.genID.Generate(),
		TicketID: ticket.ID,
		UserID:   ticket.UserID,
		ActorID:  actorID,
		Type:     eventType,
		Metadata: datatypes.JSONMap{
			"ticket_number": ticket.TicketNumber,
			"queue_type":    ticket.QueueType,
		},
		CreatedAt: at,
	})
}

func (s *Service) observe(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	s.queueMetrics.ObserveOperation(operation, time.Since(start))
	reason, rejected := rejectionReason(err)
	tracing.EndOperation(span, err, reason)
	if err == nil {
		return
	}
	if rejected {
		s.metrics.RecordRejection(ctx, operation, reason)
		return
	}
	s.queueMetrics.IncOperationError(operation, err)
	s.log.Error("queue operation failed", zap.String("operation", operation), zap.Error(err))
}

// rejectionReason reports expected negative outcomes, which are not faults.
func rejectionReason(err error) (string, bool) {
	switch {
	case errors.Is(err, domain.ErrAlreadyQueued):
		return "already_queued", true
	case errors.Is(err, domain.ErrNotInQueue):
		return "not_in_queue", true
	case errors.Is(err, domain.ErrEmptyQueue):
		return "empty_queue", true
	case errors.Is(err, domain.ErrPermissionDenied):
		return "permission_denied", true
	case errors.Is(err, domain.ErrUserNotFound):
		return "user_not_found", true
	case errors.Is(err, domain.ErrInvalidUserID), errors.Is(err, domain.ErrInvalidQueueType):
		return "invalid_input", true
	case errors.Is(err, domain.ErrUnavailable):
		return "lock_timeout", true
	default:
		return "", false
	}
}

func parseID(raw string) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, domain.ErrInvalidUserID
	}
	id, err := snowflake.ParseString(raw)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidUserID
	}
	return id, nil
}
