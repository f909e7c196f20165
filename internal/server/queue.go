package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/queueline/internal/observability/context"
	queuedomain "github.com/smallbiznis/queueline/internal/queue/domain"
)

var publicEndpoints = []string{
	"/register", "/login", "/join_queue", "/queue_status",
	"/all_queues", "/call_next", "/leave_queue", "/queue_stats", "/tickets",
}

func (s *Server) Index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"message":   "queue service is running",
		"version":   s.cfg.AppVersion,
		"endpoints": publicEndpoints,
	})
}

func (s *Server) JoinQueue(c *gin.Context) {
	var req queuedomain.JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		AbortWithError(c, newValidationError("user_id", "required", "user_id is required"))
		return
	}
	setActor(c, req.UserID)

	resp, err := s.queueSvc.Join(c.Request.Context(), req)
	if resp != nil {
		c.Set("ticket_number", resp.TicketNumber)
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) QueueStatus(c *gin.Context) {
	var req queuedomain.StatusRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		AbortWithError(c, newValidationError("user_id", "required", "user_id is required"))
		return
	}

	resp, err := s.queueSvc.Status(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) AllQueues(c *gin.Context) {
	entries, err := s.queueSvc.ListWaiting(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"queue": entries,
		"total": len(entries),
	}})
}

func (s *Server) CallNext(c *gin.Context) {
	var req queuedomain.CallNextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.CallerID) == "" {
		AbortWithError(c, newValidationError("admin_id", "required", "admin_id is required"))
		return
	}
	setActor(c, req.CallerID)

	resp, err := s.queueSvc.CallNext(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Set("ticket_number", resp.TicketNumber)

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) LeaveQueue(c *gin.Context) {
	var req queuedomain.LeaveRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		AbortWithError(c, newValidationError("user_id", "required", "user_id is required"))
		return
	}
	setActor(c, req.UserID)

	if err := s.queueSvc.Leave(c.Request.Context(), req); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"message": "left the queue"}})
}

func (s *Server) QueueStats(c *gin.Context) {
	stats, err := s.queueSvc.Stats(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": stats})
}

func (s *Server) ListTickets(c *gin.Context) {
	var req queuedomain.ListTicketsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, newValidationError("query", "invalid_query", "page_size must be an integer between 0 and 250"))
		return
	}

	resp, err := s.queueSvc.ListTickets(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Tickets, "page_info": resp.PageInfo})
}

func setActor(c *gin.Context, actorID string) {
	c.Request = c.Request.WithContext(obscontext.WithActorID(c.Request.Context(), strings.TrimSpace(actorID)))
}
