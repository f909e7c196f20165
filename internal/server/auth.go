package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	identitydomain "github.com/smallbiznis/queueline/internal/identity/domain"
	obscontext "github.com/smallbiznis/queueline/internal/observability/context"
)

type registerRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     string `json:"role,omitempty"`
}

func (s *Server) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	user, err := s.identitySvc.Register(c.Request.Context(), identitydomain.RegisterRequest{
		Username:    strings.TrimSpace(req.Username),
		Password:    req.Password,
		FullName:    strings.TrimSpace(req.FullName),
		PhoneNumber: strings.TrimSpace(req.PhoneNumber),
		Email:       strings.TrimSpace(req.Email),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": userResponse{
		UserID:   user.ID.String(),
		Username: user.Username,
		FullName: user.FullName,
	}})
}

func (s *Server) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		AbortWithError(c, newValidationError("credentials", "required", "username and password are required"))
		return
	}

	user, err := s.identitySvc.Login(c.Request.Context(), identitydomain.LoginRequest{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Request = c.Request.WithContext(obscontext.WithActorID(c.Request.Context(), user.ID.String()))
	c.JSON(http.StatusOK, gin.H{"data": userResponse{
		UserID:   user.ID.String(),
		Username: user.Username,
		FullName: user.FullName,
		Role:     user.Role,
	}})
}
