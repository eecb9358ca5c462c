package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `id, chat_id, user_id, content, type, file_url, is_delivered, is_seen, created_at`

var messageWithAuthorColumns = []string{
	"m.id", "m.chat_id", "m.user_id", "m.content", "m.type", "m.file_url", "m.is_delivered", "m.is_seen", "m.created_at",
	`u.id AS "user.id"`, `u.name AS "user.name"`, `u.avatar AS "user.avatar"`,
}

// MessageRepository defines interactions for chat messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.MessageWithAuthor, error)
	GetMessage(ctx context.Context, messageID int) (models.MessageWithAuthor, error)
	ListMessages(ctx context.Context, chatID int, page int, perPage int) ([]models.MessageWithAuthor, int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateMessage stores the message and advances the sender's read pointer to the
// message time in the same transaction. A sender without a membership row gets
// ErrNotMember and nothing is written.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.MessageWithAuthor, error) {
	var id int
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &id, `INSERT INTO messages (chat_id, user_id, content, type, file_url, created_at)
            VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
			msg.ChatID, msg.UserID, msg.Content, msg.Type, msg.FileURL, msg.CreatedAt); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		res, err := tx.ExecContext(ctx, `UPDATE chat_user SET last_read_at=$3 WHERE chat_id=$1 AND user_id=$2`, msg.ChatID, msg.UserID, msg.CreatedAt)
		if err != nil {
			return fmt.Errorf("advance read pointer: %w", err)
		}
		count, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrNotMember
		}
		return nil
	})
	if err != nil {
		return models.MessageWithAuthor{}, err
	}
	return r.GetMessage(ctx, id)
}

// GetMessage retrieves a single message with its author.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.MessageWithAuthor, error) {
	query, args, err := psql.Select(messageWithAuthorColumns...).
		From("messages m").
		Join("users u ON u.id = m.user_id").
		Where(sq.Eq{"m.id": messageID}).
		ToSql()
	if err != nil {
		return models.MessageWithAuthor{}, err
	}

	var msg models.MessageWithAuthor
	err = r.db.GetContext(ctx, &msg, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return models.MessageWithAuthor{}, ErrMessageNotFound
	}
	return msg, err
}

// ListMessages returns one page of the chat's messages, newest first, and the total count.
func (r *MessageRepo) ListMessages(ctx context.Context, chatID int, page int, perPage int) ([]models.MessageWithAuthor, int, error) {
	if page < 1 {
		page = 1
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM messages WHERE chat_id=$1`, chatID); err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}

	offset, ok := pageOffset(page, perPage, total)
	if !ok {
		return []models.MessageWithAuthor{}, total, nil
	}

	query, args, err := psql.Select(messageWithAuthorColumns...).
		From("messages m").
		Join("users u ON u.id = m.user_id").
		Where(sq.Eq{"m.chat_id": chatID}).
		OrderBy("m.created_at DESC", "m.id DESC").
		Limit(uint64(perPage)).
		Offset(offset).
		ToSql()
	if err != nil {
		return nil, 0, err
	}

	msgs := []models.MessageWithAuthor{}
	if err := r.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	return msgs, total, nil
}

// pageOffset returns the row offset of page, or false when the page lies past
// the last row and no query is needed.
func pageOffset(page, perPage, total int) (uint64, bool) {
	if page < 1 || perPage < 1 || total < 1 {
		return 0, false
	}
	lastPage := (total + perPage - 1) / perPage
	if page > lastPage {
		return 0, false
	}
	return uint64(page-1) * uint64(perPage), true
}
