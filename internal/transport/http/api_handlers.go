package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/auth"
	"github.com/vovakirdan/linechat-server/internal/core"
)

// APIHandlers provides HTTP handlers for REST API endpoints.
type APIHandlers struct {
	authService *auth.Service
	hub         *core.Hub
	log         *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(authService *auth.Service, hub *core.Hub, logger *zerolog.Logger) *APIHandlers {
	return &APIHandlers{
		authService: authService,
		hub:         hub,
		log:         logger,
	}
}

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
	Nick     string `json:"nick" binding:"required"`
}

// LoginRequest represents the login request body.
type LoginRequest struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserResponse represents an account in API responses.
type UserResponse struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
	Nick  string `json:"nick"`
}

// AuthResponse represents the authentication response body.
type AuthResponse struct {
	Token string `json:"token"`
}

// OnlineResponse lists the nicks of active chat sessions.
type OnlineResponse struct {
	Count int      `json:"count"`
	Nicks []string `json:"nicks"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Register handles account creation.
// POST /api/register
func (h *APIHandlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid register request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Login, req.Password, req.Nick)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrUserExists):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "user already exists"})
		return
	case errors.Is(err, auth.ErrNickTaken):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "nick already taken"})
		return
	case errors.Is(err, auth.ErrInvalidLogin), errors.Is(err, auth.ErrInvalidPassword), errors.Is(err, auth.ErrInvalidNick):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	default:
		h.log.Error().Err(err).Str("login", req.Login).Msg("failed to register user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("login", user.Login).Str("nick", user.Nick).Msg("user registered successfully")
	c.JSON(http.StatusCreated, UserResponse{ID: user.ID, Login: user.Login, Nick: user.Nick})
}

// Login handles user login.
// POST /api/login
func (h *APIHandlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid login request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	token, err := h.authService.Login(c.Request.Context(), req.Login, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid credentials"})
			return
		}
		h.log.Error().Err(err).Str("login", req.Login).Msg("failed to login user")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	h.log.Info().Str("login", req.Login).Msg("user logged in successfully")
	c.JSON(http.StatusOK, AuthResponse{Token: token})
}

// Online lists who is in the chat right now.
// GET /api/online
func (h *APIHandlers) Online(c *gin.Context) {
	nicks := h.hub.Online()
	h.log.Debug().Str("login", c.GetString(ContextKeyLogin)).Int("count", len(nicks)).Msg("online list requested")
	c.JSON(http.StatusOK, OnlineResponse{Count: len(nicks), Nicks: nicks})
}
