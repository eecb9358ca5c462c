package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messenger-service/internal/models"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
)

const userColumns = `id, name, email, password_hash, avatar, status, last_seen_at, created_at`

// UserRepository abstracts the user directory.
type UserRepository interface {
	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUser(ctx context.Context, userID int) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	MissingUserIDs(ctx context.Context, ids []int) ([]int, error)
	SetPresence(ctx context.Context, userID int, status string, at time.Time) error
}

// UserRepo is a sqlx implementation of UserRepository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs a UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

// CreateUser inserts a user; a duplicate email yields ErrEmailTaken.
func (r *UserRepo) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	if user.Status == "" {
		user.Status = models.PresenceOffline
	}
	var created models.User
	err := r.db.GetContext(ctx, &created, `INSERT INTO users (name, email, password_hash, avatar, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6) RETURNING `+userColumns,
		user.Name, user.Email, user.PasswordHash, user.Avatar, user.Status, user.CreatedAt)
	if constraintName(err) == "users_email_key" {
		return models.User{}, ErrEmailTaken
	}
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	return created, nil
}

// GetUser fetches a user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// GetUserByEmail fetches a user by email.
func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}

// MissingUserIDs returns the ids, sorted, that have no user record.
func (r *UserRepo) MissingUserIDs(ctx context.Context, ids []int) ([]int, error) {
	ids = uniqueInts(ids)
	if len(ids) == 0 {
		return nil, nil
	}

	var found []int
	if err := r.db.SelectContext(ctx, &found, `SELECT id FROM users WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("lookup users: %w", err)
	}

	known := make(map[int]struct{}, len(found))
	for _, id := range found {
		known[id] = struct{}{}
	}
	var missing []int
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Ints(missing)
	return missing, nil
}

// SetPresence records the presence status and when the user was last seen.
func (r *UserRepo) SetPresence(ctx context.Context, userID int, status string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE users SET status=$2, last_seen_at=$3 WHERE id=$1`, userID, status, at)
	return err
}
