package api

import (
	stderrors "errors"
	"net/http"

	"zapline/backend/internal/models"
	"zapline/backend/internal/service"
	"zapline/backend/pkg/errors"
	"zapline/backend/pkg/logger"
	"zapline/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// AuthHandler exposes account registration and login.
type AuthHandler struct {
	users *service.UserService
	log   *logger.Logger
}

func NewAuthHandler(users *service.UserService, log *logger.Logger) *AuthHandler {
	return &AuthHandler{users: users, log: log}
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidArgumentError("name, phone and password are required"))
		return
	}

	user, token, err := h.users.Register(c.Request.Context(), &req)
	if err != nil {
		switch {
		case stderrors.Is(err, service.ErrPhoneTaken):
			c.Error(errors.NewConflictError("phone number already registered"))
		default:
			c.Error(errors.NewPersistenceError("could not create account"))
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":    user.ID,
		"name":  user.Name,
		"token": token,
	})
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errors.NewInvalidArgumentError("id and password are required"))
		return
	}

	user, token, err := h.users.Login(c.Request.Context(), &req)
	if err != nil {
		switch {
		case stderrors.Is(err, service.ErrUserNotFound):
			c.Error(errors.NewNotFoundError("user not found"))
		case stderrors.Is(err, service.ErrInvalidCredentials):
			c.Error(errors.NewUnauthorizedError("invalid credentials"))
		default:
			c.Error(errors.NewPersistenceError("could not verify credentials"))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":    user.ID,
		"name":  user.Name,
		"token": token,
	})
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.AuthenticatedUser(c)
	if !ok {
		c.Error(errors.NewUnauthorizedError("authentication required"))
		return
	}

	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		if stderrors.Is(err, service.ErrUserNotFound) {
			c.Error(errors.NewNotFoundError("account no longer exists"))
		} else {
			c.Error(errors.NewPersistenceError("could not load account"))
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":    user.ID,
		"name":  user.Name,
		"phone": user.Phone,
	})
}
