package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/smallbiznis/queueline/internal/config"
	identitydomain "github.com/smallbiznis/queueline/internal/identity/domain"
	"github.com/smallbiznis/queueline/internal/identity/mocks"
	"github.com/smallbiznis/queueline/internal/observability"
	obsmetrics "github.com/smallbiznis/queueline/internal/observability/metrics"
	queuedomain "github.com/smallbiznis/queueline/internal/queue/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockQueueService struct {
	mock.Mock
}

func (m *mockQueueService) Join(ctx context.Context, req queuedomain.JoinRequest) (*queuedomain.JoinResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*queuedomain.JoinResult)
	return res, args.Error(1)
}

func (m *mockQueueService) Leave(ctx context.Context, req queuedomain.LeaveRequest) error {
	return m.Called(ctx, req).Error(0)
}

func (m *mockQueueService) CallNext(ctx context.Context, req queuedomain.CallNextRequest) (*queuedomain.CallNextResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*queuedomain.CallNextResult)
	return res, args.Error(1)
}

func (m *mockQueueService) Status(ctx context.Context, req queuedomain.StatusRequest) (*queuedomain.StatusResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*queuedomain.StatusResult)
	return res, args.Error(1)
}

func (m *mockQueueService) ListWaiting(ctx context.Context) ([]queuedomain.WaitingEntry, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).([]queuedomain.WaitingEntry)
	return res, args.Error(1)
}

func (m *mockQueueService) Stats(ctx context.Context) (*queuedomain.Stats, error) {
	args := m.Called(ctx)
	res, _ := args.Get(0).(*queuedomain.Stats)
	return res, args.Error(1)
}

func (m *mockQueueService) ListTickets(ctx context.Context, req queuedomain.ListTicketsRequest) (*queuedomain.ListTicketsResponse, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*queuedomain.ListTicketsResponse)
	return res, args.Error(1)
}

func (m *mockQueueService) Recompute(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type testServer struct {
	engine *gin.Engine
	queue  *mockQueueService
	users  *mocks.MockService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctrl := gomock.NewController(t)
	users := mocks.NewMockService(ctrl)
	queue := &mockQueueService{}
	t.Cleanup(func() { queue.AssertExpectations(t) })

	engine := NewEngine(observability.Config{LogLevel: "info"}, obsmetrics.NewHTTPMetrics(obsmetrics.Config{ServiceName: "queueline-test"}))
	srv := NewServer(ServerParams{
		Gin:         engine,
		Cfg:         config.Config{AppVersion: "test"},
		IdentitySvc: users,
		QueueSvc:    queue,
	})

	return &testServer{engine: srv.Engine(), queue: queue, users: users}
}

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func errorType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode(t, rec)
	payload, ok := body["error"].(map[string]any)
	require.True(t, ok, "missing error payload: %s", rec.Body.String())
	return fmt.Sprint(payload["type"])
}

func TestHealthAndIndex(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "online", body["status"])
	assert.Contains(t, body["endpoints"], "/join_queue")
}

func TestJoinQueue(t *testing.T) {
	ts := newTestServer(t)
	joined := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	ts.queue.On("Join", mock.Anything, queuedomain.JoinRequest{UserID: "42", QueueType: "general"}).
		Return(&queuedomain.JoinResult{TicketID: "1", TicketNumber: "TICKET-001", Position: 1, QueueType: "general", JoinTime: joined}, nil).
		Once()

	rec := ts.do(http.MethodPost, "/join_queue", map[string]string{"user_id": "42", "queue_type": "general"})
	require.Equal(t, http.StatusCreated, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "TICKET-001", data["ticket_number"])
	assert.Equal(t, float64(1), data["position"])
}

func TestJoinQueueAlreadyQueued(t *testing.T) {
	ts := newTestServer(t)

	ts.queue.On("Join", mock.Anything, queuedomain.JoinRequest{UserID: "42"}).
		Return(&queuedomain.JoinResult{TicketNumber: "TICKET-007", Position: 3}, &queuedomain.AlreadyQueuedError{TicketNumber: "TICKET-007", Position: 3}).
		Once()

	rec := ts.do(http.MethodPost, "/join_queue", map[string]string{"user_id": "42"})
	require.Equal(t, http.StatusConflict, rec.Code)

	payload := decode(t, rec)["error"].(map[string]any)
	assert.Equal(t, "already_queued", payload["type"])
	details := payload["details"].(map[string]any)
	assert.Equal(t, "TICKET-007", details["ticket_number"])
	assert.Equal(t, float64(3), details["position"])
}

func TestJoinQueueRequiresUserID(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/join_queue", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorType(t, rec))
}

func TestJoinQueueUnknownUser(t *testing.T) {
	ts := newTestServer(t)
	ts.queue.On("Join", mock.Anything, mock.Anything).Return(nil, queuedomain.ErrUserNotFound).Once()

	rec := ts.do(http.MethodPost, "/join_queue", map[string]string{"user_id": "9"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCallNextOutcomes(t *testing.T) {
	ts := newTestServer(t)
	req := queuedomain.CallNextRequest{CallerID: "1"}

	ts.queue.On("CallNext", mock.Anything, req).Return(nil, queuedomain.ErrPermissionDenied).Once()
	rec := ts.do(http.MethodPost, "/call_next", map[string]string{"admin_id": "1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	ts.queue.On("CallNext", mock.Anything, req).Return(nil, queuedomain.ErrEmptyQueue).Once()
	rec = ts.do(http.MethodPost, "/call_next", map[string]string{"admin_id": "1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "empty_queue", errorType(t, rec))

	ts.queue.On("CallNext", mock.Anything, req).
		Return(&queuedomain.CallNextResult{TicketNumber: "TICKET-001", FullName: "Ana"}, nil).Once()
	rec = ts.do(http.MethodPost, "/call_next", map[string]string{"admin_id": "1"})
	require.Equal(t, http.StatusOK, rec.Code)
	data := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, "Ana", data["full_name"])
}

func TestCallNextUnavailableSetsRetryAfter(t *testing.T) {
	ts := newTestServer(t)
	ts.queue.On("CallNext", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: lock_timeout", queuedomain.ErrUnavailable)).Once()

	rec := ts.do(http.MethodPost, "/call_next", map[string]string{"admin_id": "1"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestLeaveQueue(t *testing.T) {
	ts := newTestServer(t)

	ts.queue.On("Leave", mock.Anything, queuedomain.LeaveRequest{UserID: "42"}).Return(nil).Once()
	rec := ts.do(http.MethodDelete, "/leave_queue?user_id=42", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	ts.queue.On("Leave", mock.Anything, queuedomain.LeaveRequest{UserID: "43"}).Return(queuedomain.ErrNotInQueue).Once()
	rec = ts.do(http.MethodDelete, "/leave_queue?user_id=43", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_in_queue", errorType(t, rec))

	rec = ts.do(http.MethodDelete, "/leave_queue", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestQueueStatusAndListing(t *testing.T) {
	ts := newTestServer(t)

	ts.queue.On("Status", mock.Anything, queuedomain.StatusRequest{UserID: "42"}).
		Return(&queuedomain.StatusResult{InQueue: false}, nil).Once()
	rec := ts.do(http.MethodGet, "/queue_status?user_id=42", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["data"].(map[string]any)["in_queue"])

	ts.queue.On("ListWaiting", mock.Anything).Return([]queuedomain.WaitingEntry{
		{TicketNumber: "TICKET-001", Position: 1},
		{TicketNumber: "TICKET-002", Position: 2},
	}, nil).Once()
	rec = ts.do(http.MethodGet, "/all_queues", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), decode(t, rec)["data"].(map[string]any)["total"])

	ts.queue.On("Stats", mock.Anything).Return(&queuedomain.Stats{WaitingCount: 3, CompletedToday: 2, TotalNonAdminUsers: 9}, nil).Once()
	rec = ts.do(http.MethodGet, "/queue_stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode(t, rec)["data"].(map[string]any)
	assert.Equal(t, float64(3), stats["waiting_in_queue"])
	assert.Equal(t, float64(2), stats["completed_today"])
	assert.Equal(t, float64(9), stats["total_users"])
}

func TestListTicketsBindsQuery(t *testing.T) {
	ts := newTestServer(t)

	ts.queue.On("ListTickets", mock.Anything, mock.MatchedBy(func(req queuedomain.ListTicketsRequest) bool {
		return req.UserID == "42" && req.RequesterID == "42" && req.Status == "completed" && req.PageSize == 5 && req.PageToken == "abc"
	})).Return(&queuedomain.ListTicketsResponse{Tickets: []*queuedomain.Ticket{}}, nil).Once()

	rec := ts.do(http.MethodGet, "/tickets?user_id=42&requester_id=42&status=completed&page_size=5&page_token=abc", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/tickets?page_size=500", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	ts := newTestServer(t)

	ts.users.EXPECT().
		Register(gomock.Any(), identitydomain.RegisterRequest{Username: "ana", Password: "pw", FullName: "Ana"}).
		Return(&identitydomain.User{ID: 77, Username: "ana", FullName: "Ana"}, nil)
	rec := ts.do(http.MethodPost, "/register", map[string]string{"username": "ana", "password": "pw", "full_name": "Ana"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "77", decode(t, rec)["data"].(map[string]any)["user_id"])

	ts.users.EXPECT().
		Register(gomock.Any(), gomock.Any()).
		Return(nil, identitydomain.ErrUserExists)
	rec = ts.do(http.MethodPost, "/register", map[string]string{"username": "ana", "password": "pw", "full_name": "Ana"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	ts.users.EXPECT().
		Login(gomock.Any(), identitydomain.LoginRequest{Username: "ana", Password: "bad"}).
		Return(nil, identitydomain.ErrInvalidCredentials)
	rec = ts.do(http.MethodPost, "/login", map[string]string{"username": "ana", "password": "bad"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	ts.users.EXPECT().
		Login(gomock.Any(), identitydomain.LoginRequest{Username: "ana", Password: "pw"}).
		Return(&identitydomain.User{ID: 77, Username: "ana", FullName: "Ana", Role: identitydomain.RoleUser}, nil)
	rec = ts.do(http.MethodPost, "/login", map[string]string{"username": "ana", "password": "pw"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user", decode(t, rec)["data"].(map[string]any)["role"])

	rec = ts.do(http.MethodPost, "/login", map[string]string{"username": "ana"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorType(t, rec))
}

func TestMapErrorValidation(t *testing.T) {
	status, payload := mapError(queuedomain.ErrInvalidQueueType)
	assert.Equal(t, http.StatusBadRequest, status)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "queue_type", payload.Errors[0].Field)

	status, _ = mapError(identitydomain.ErrInvalidFullName)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = mapError(ErrRateLimited)
	assert.Equal(t, http.StatusTooManyRequests, status)
}
