package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"messenger-service/internal/auth"
	"messenger-service/internal/models"
	"messenger-service/internal/repositories"
)

func setupAuthRouter(td *testDeps, userID int) *gin.Engine {
	handler := NewAuthHandler(td.Deps)
	r := asUser(userID)
	r.POST("/auth/register", handler.Register)
	r.POST("/auth/login", handler.Login)
	r.GET("/users/me", handler.Me)
	return r
}

func TestRegister(t *testing.T) {
	td := newTestDeps(t)
	router := setupAuthRouter(td, 0)

	td.users.On("CreateUser", mock.Anything, mock.MatchedBy(func(u models.User) bool {
		return u.Email == "ann@example.com" && u.Name == "Ann" && auth.CheckPassword("password1", u.PasswordHash) &&
			u.Status == models.PresenceOffline && u.CreatedAt.Equal(testNow)
	})).Return(models.User{ID: 4, Name: "Ann", Email: "ann@example.com", PasswordHash: "secret-hash"}, nil).Once()

	rec := doJSON(t, router, http.MethodPost, "/auth/register", `{"name":"Ann","email":"Ann@Example.com","password":"password1"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret-hash")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	td := newTestDeps(t)
	router := setupAuthRouter(td, 0)

	td.users.On("CreateUser", mock.Anything, mock.Anything).Return(nil, repositories.ErrEmailTaken).Once()

	rec := doJSON(t, router, http.MethodPost, "/auth/register", `{"name":"Ann","email":"ann@example.com","password":"password1"}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "has already been taken")
}

func TestRegisterValidation(t *testing.T) {
	td := newTestDeps(t)
	router := setupAuthRouter(td, 0)

	rec := doJSON(t, router, http.MethodPost, "/auth/register", `{"name":"Ann","email":"nope","password":"short"}`)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp struct {
		Errors map[string][]string `json:"errors"`
	}
	decode(t, rec, &resp)
	assert.Contains(t, resp.Errors, "email")
	assert.Contains(t, resp.Errors, "password")
}

func TestLogin(t *testing.T) {
	td := newTestDeps(t)
	router := setupAuthRouter(td, 0)

	hash, err := auth.HashPassword("password1")
	require.NoError(t, err)
	td.users.On("GetUserByEmail", mock.Anything, "ann@example.com").Return(models.User{ID: 4, Email: "ann@example.com", PasswordHash: hash}, nil).Once()

	rec := doJSON(t, router, http.MethodPost, "/auth/login", `{"email":"ann@example.com","password":"password1"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Token string      `json:"token"`
		User  models.User `json:"user"`
	}
	decode(t, rec, &resp)
	userID, err := td.Tokens.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, 4, userID)
}

func TestLoginBadCredentials(t *testing.T) {
	hash, err := auth.HashPassword("password1")
	require.NoError(t, err)

	tests := []struct {
		name string
		user models.User
		err  error
	}{
		{name: "wrong password", user: models.User{ID: 4, PasswordHash: hash}},
		{name: "unknown email", err: repositories.ErrUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			td := newTestDeps(t)
			router := setupAuthRouter(td, 0)
			td.users.On("GetUserByEmail", mock.Anything, "ann@example.com").Return(tt.user, tt.err).Once()

			rec := doJSON(t, router, http.MethodPost, "/auth/login", `{"email":"ann@example.com","password":"wrong-pass"}`)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestMe(t *testing.T) {
	td := newTestDeps(t)
	router := setupAuthRouter(td, 4)

	td.users.On("GetUser", mock.Anything, 4).Return(models.User{ID: 4, Name: "Ann", Status: models.PresenceOnline}, nil).Once()

	rec := doJSON(t, router, http.MethodGet, "/users/me", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var user models.User
	decode(t, rec, &user)
	assert.Equal(t, "Ann", user.Name)
}
