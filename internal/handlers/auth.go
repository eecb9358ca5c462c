package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"messenger-service/internal/auth"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
	"messenger-service/internal/telemetry"
)

// AuthHandler serves registration, login and the current user.
type AuthHandler struct {
	Deps
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(deps Deps) *AuthHandler {
	return &AuthHandler{Deps: deps}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required,max=255"`
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=8,max=72"`
}

// Register creates a user account.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bind(c, &req) {
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.respondError(c, err, "could not register user")
		return
	}

	user, err := h.Users.CreateUser(c.Request.Context(), models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: hash,
		Status:       models.PresenceOffline,
		CreatedAt:    h.Clock.Now(),
	})
	if errors.Is(err, repositories.ErrEmailTaken) {
		respondValidation(c, models.NewValidationError("email", "has already been taken"))
		return
	}
	if err != nil {
		h.respondError(c, err, "could not register user")
		return
	}

	c.Set("userID", user.ID)
	h.audit(c, telemetry.LevelInfo, "user registered")
	c.JSON(http.StatusCreated, user)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login exchanges credentials for a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bind(c, &req) {
		return
	}

	user, err := h.Users.GetUserByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil && !errors.Is(err, repositories.ErrUserNotFound) {
		h.respondError(c, err, "could not log in")
		return
	}
	if err != nil || !auth.CheckPassword(req.Password, user.PasswordHash) {
		h.audit(c, telemetry.LevelWarn, "login failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, err := h.Tokens.Issue(user.ID)
	if err != nil {
		h.respondError(c, err, "could not log in")
		return
	}

	c.Set("userID", user.ID)
	h.audit(c, telemetry.LevelInfo, "user logged in")
	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.Users.GetUser(c.Request.Context(), c.GetInt("userID"))
	if err != nil {
		h.respondError(c, err, "failed to load user")
		return
	}
	c.JSON(http.StatusOK, user)
}
