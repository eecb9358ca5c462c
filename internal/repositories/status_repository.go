package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"messenger-service/internal/models"
)

var ErrStatusNotFound = errors.New("status not found")

var statusWithAuthorColumns = []string{
	"s.id", "s.user_id", "s.type", "s.content", "s.media_url", "s.expires_at", "s.created_at",
	`u.id AS "user.id"`, `u.name AS "user.name"`, `u.avatar AS "user.avatar"`,
}

var viewerColumns = []string{
	"sv.status_id", "sv.user_id", "sv.viewed_at",
	`u.id AS "user.id"`, `u.name AS "user.name"`, `u.avatar AS "user.avatar"`,
}

// StatusRepository abstracts statuses, the per-author privacy row and view records.
type StatusRepository interface {
	CreateStatus(ctx context.Context, status models.Status, privacy models.StatusPrivacy) (models.StatusWithAuthor, error)
	GetStatus(ctx context.Context, statusID int) (models.StatusWithAuthor, error)
	DeleteStatus(ctx context.Context, statusID int) error
	ListVisible(ctx context.Context, viewerID int, now time.Time) ([]models.StatusWithAuthor, error)
	ListByUser(ctx context.Context, userID int) ([]models.StatusDetail, error)
	GetPrivacy(ctx context.Context, userID int) (models.StatusPrivacy, error)
	UpsertPrivacy(ctx context.Context, privacy models.StatusPrivacy) error
	RecordView(ctx context.Context, statusID int, viewerID int, at time.Time) (bool, error)
	ListViewers(ctx context.Context, statusID int) ([]models.StatusViewer, error)
}

// StatusRepo is a sqlx implementation of StatusRepository.
type StatusRepo struct {
	db *sqlx.DB
}

// NewStatusRepo constructs a StatusRepo.
func NewStatusRepo(db *sqlx.DB) *StatusRepo {
	return &StatusRepo{db: db}
}

type privacyRow struct {
	UserID        int           `db:"user_id"`
	Type          string        `db:"privacy_type"`
	SelectedUsers pq.Int64Array `db:"selected_users"`
	UpdatedAt     time.Time     `db:"updated_at"`
}

func (p privacyRow) toModel() models.StatusPrivacy {
	ids := make([]int, 0, len(p.SelectedUsers))
	for _, id := range p.SelectedUsers {
		ids = append(ids, int(id))
	}
	return models.StatusPrivacy{
		UserID:        p.UserID,
		Type:          models.PrivacyType(p.Type),
		SelectedUsers: ids,
		UpdatedAt:     p.UpdatedAt,
	}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertPrivacy(ctx context.Context, db execer, privacy models.StatusPrivacy) error {
	ids := make(pq.Int64Array, 0, len(privacy.SelectedUsers))
	for _, id := range privacy.SelectedUsers {
		ids = append(ids, int64(id))
	}
	_, err := db.ExecContext(ctx, `INSERT INTO status_privacy (user_id, privacy_type, selected_users, updated_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (user_id) DO UPDATE SET
            privacy_type = EXCLUDED.privacy_type,
            selected_users = EXCLUDED.selected_users,
            updated_at = EXCLUDED.updated_at`,
		privacy.UserID, string(privacy.Type), ids, privacy.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert privacy: %w", err)
	}
	return nil
}

// CreateStatus inserts the status and replaces the author's privacy row atomically.
func (r *StatusRepo) CreateStatus(ctx context.Context, status models.Status, privacy models.StatusPrivacy) (models.StatusWithAuthor, error) {
	var id int
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &id, `INSERT INTO statuses (user_id, type, content, media_url, expires_at, created_at)
            VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			status.UserID, status.Type, status.Content, status.MediaURL, status.ExpiresAt, status.CreatedAt); err != nil {
			return fmt.Errorf("insert status: %w", err)
		}
		return upsertPrivacy(ctx, tx, privacy)
	})
	if err != nil {
		return models.StatusWithAuthor{}, err
	}
	return r.GetStatus(ctx, id)
}

// GetStatus fetches a status with its author.
func (r *StatusRepo) GetStatus(ctx context.Context, statusID int) (models.StatusWithAuthor, error) {
	query, args, err := psql.Select(statusWithAuthorColumns...).
		From("statuses s").
		Join("users u ON u.id = s.user_id").
		Where(sq.Eq{"s.id": statusID}).
		ToSql()
	if err != nil {
		return models.StatusWithAuthor{}, err
	}

	var status models.StatusWithAuthor
	err = r.db.GetContext(ctx, &status, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.StatusWithAuthor{}, ErrStatusNotFound
	}
	return status, err
}

// DeleteStatus removes the status; its view records go with it.
func (r *StatusRepo) DeleteStatus(ctx context.Context, statusID int) error {
	return withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM status_viewers WHERE status_id=$1`, statusID); err != nil {
			return fmt.Errorf("delete viewers: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM statuses WHERE id=$1`, statusID)
		if err != nil {
			return fmt.Errorf("delete status: %w", err)
		}
		count, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrStatusNotFound
		}
		return nil
	})
}

// ListVisible returns active statuses of every author whose current privacy
// admits viewerID, newest first. Authors without a privacy row are visible to all.
func (r *StatusRepo) ListVisible(ctx context.Context, viewerID int, now time.Time) ([]models.StatusWithAuthor, error) {
	query, args, err := psql.Select(statusWithAuthorColumns...).
		From("statuses s").
		Join("users u ON u.id = s.user_id").
		LeftJoin("status_privacy p ON p.user_id = s.user_id").
		Where(sq.Gt{"s.expires_at": now}).
		Where(sq.Or{
			sq.Expr("p.user_id IS NULL"),
			sq.Eq{"p.privacy_type": string(models.PrivacyAll)},
			sq.And{
				sq.Eq{"p.privacy_type": string(models.PrivacySelected)},
				sq.Expr("? = ANY(p.selected_users)", viewerID),
			},
			sq.And{
				sq.Eq{"p.privacy_type": string(models.PrivacyExcept)},
				sq.Expr("NOT (? = ANY(p.selected_users))", viewerID),
			},
		}).
		OrderBy("s.created_at DESC", "s.id DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	statuses := []models.StatusWithAuthor{}
	if err := r.db.SelectContext(ctx, &statuses, query, args...); err != nil {
		return nil, fmt.Errorf("list visible statuses: %w", err)
	}
	return statuses, nil
}

// ListByUser returns all of the user's statuses, expired ones included, with viewers.
func (r *StatusRepo) ListByUser(ctx context.Context, userID int) ([]models.StatusDetail, error) {
	query, args, err := psql.Select(statusWithAuthorColumns...).
		From("statuses s").
		Join("users u ON u.id = s.user_id").
		Where(sq.Eq{"s.user_id": userID}).
		OrderBy("s.created_at DESC", "s.id DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	var statuses []models.StatusWithAuthor
	if err := r.db.SelectContext(ctx, &statuses, query, args...); err != nil {
		return nil, fmt.Errorf("list user statuses: %w", err)
	}
	if len(statuses) == 0 {
		return []models.StatusDetail{}, nil
	}

	ids := make([]int, 0, len(statuses))
	for _, s := range statuses {
		ids = append(ids, s.ID)
	}
	viewers, err := r.viewersByStatus(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]models.StatusDetail, 0, len(statuses))
	for _, s := range statuses {
		v := viewers[s.ID]
		if v == nil {
			v = []models.StatusViewer{}
		}
		result = append(result, models.StatusDetail{StatusWithAuthor: s, Viewers: v})
	}
	return result, nil
}

// GetPrivacy returns the author's privacy row, or the default allow-all rule
// when the author never configured one.
func (r *StatusRepo) GetPrivacy(ctx context.Context, userID int) (models.StatusPrivacy, error) {
	var row privacyRow
	err := r.db.GetContext(ctx, &row, `SELECT user_id, privacy_type, selected_users, updated_at FROM status_privacy WHERE user_id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultPrivacy(userID), nil
	}
	if err != nil {
		return models.StatusPrivacy{}, fmt.Errorf("load privacy: %w", err)
	}
	return row.toModel(), nil
}

// UpsertPrivacy replaces the user's privacy row.
func (r *StatusRepo) UpsertPrivacy(ctx context.Context, privacy models.StatusPrivacy) error {
	return upsertPrivacy(ctx, r.db, privacy)
}

// RecordView inserts the first view of viewerID on the status. Later views leave
// the first record untouched. It reports whether a record was created.
func (r *StatusRepo) RecordView(ctx context.Context, statusID int, viewerID int, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO status_viewers (status_id, user_id, viewed_at) VALUES ($1, $2, $3)
        ON CONFLICT (status_id, user_id) DO NOTHING`, statusID, viewerID, at)
	if err != nil {
		return false, fmt.Errorf("record view: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return count == 1, nil
}

// ListViewers returns the status's view records in viewing order.
func (r *StatusRepo) ListViewers(ctx context.Context, statusID int) ([]models.StatusViewer, error) {
	viewers, err := r.viewersByStatus(ctx, []int{statusID})
	if err != nil {
		return nil, err
	}
	if viewers[statusID] == nil {
		return []models.StatusViewer{}, nil
	}
	return viewers[statusID], nil
}

func (r *StatusRepo) viewersByStatus(ctx context.Context, statusIDs []int) (map[int][]models.StatusViewer, error) {
	query, args, err := psql.Select(viewerColumns...).
		From("status_viewers sv").
		Join("users u ON u.id = sv.user_id").
		Where(sq.Eq{"sv.status_id": statusIDs}).
		OrderBy("sv.viewed_at", "sv.user_id").
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []models.StatusViewer
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("load viewers: %w", err)
	}
	out := make(map[int][]models.StatusViewer, len(statusIDs))
	for _, v := range rows {
		out[v.StatusID] = append(out[v.StatusID], v)
	}
	return out, nil
}
