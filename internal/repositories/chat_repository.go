package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"messenger-service/internal/models"
)

var (
	ErrChatNotFound = errors.New("chat not found")
	ErrNotMember    = errors.New("user is not a chat member")
)

const chatColumns = `id, name, type, image, created_at`

// ChatRepository abstracts chat and membership persistence.
type ChatRepository interface {
	CreateChat(ctx context.Context, chat models.Chat, creatorID int, memberIDs []int) (models.ChatWithMembers, error)
	GetChat(ctx context.Context, chatID int) (models.Chat, error)
	GetChatWithMembers(ctx context.Context, chatID int) (models.ChatWithMembers, error)
	ListChatsForUser(ctx context.Context, userID int) ([]models.ChatOverview, error)
	GetMembership(ctx context.Context, chatID int, userID int) (models.Membership, error)
	IsMember(ctx context.Context, chatID int, userID int) (bool, error)
	AddMembers(ctx context.Context, chatID int, userIDs []int, at time.Time) ([]int, error)
	RemoveMembers(ctx context.Context, chatID int, userIDs []int) ([]int, error)
	MarkRead(ctx context.Context, chatID int, userID int, at time.Time) error
	DeleteChat(ctx context.Context, chatID int) ([]string, error)
}

// ChatRepo is a sqlx implementation of ChatRepository.
type ChatRepo struct {
	db *sqlx.DB
}

// NewChatRepo constructs a ChatRepo.
func NewChatRepo(db *sqlx.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// CreateChat creates a chat and its memberships atomically. The creator is an
// admin only in group chats; every other member joins as a regular member.
func (r *ChatRepo) CreateChat(ctx context.Context, chat models.Chat, creatorID int, memberIDs []int) (models.ChatWithMembers, error) {
	var created models.Chat
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &created, `INSERT INTO chats (name, type, image, created_at) VALUES ($1, $2, $3, $4) RETURNING `+chatColumns,
			chat.Name, chat.Type, chat.Image, chat.CreatedAt); err != nil {
			return fmt.Errorf("insert chat: %w", err)
		}

		insert := psql.Insert("chat_user").Columns("chat_id", "user_id", "is_admin", "created_at").
			Values(created.ID, creatorID, chat.IsGroup(), chat.CreatedAt)
		for _, id := range uniqueInts(memberIDs) {
			if id == creatorID {
				continue
			}
			insert = insert.Values(created.ID, id, false, chat.CreatedAt)
		}
		query, args, err := insert.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert members: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.ChatWithMembers{}, err
	}
	return r.GetChatWithMembers(ctx, created.ID)
}

// GetChat fetches a chat by id.
func (r *ChatRepo) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	var chat models.Chat
	err := r.db.GetContext(ctx, &chat, `SELECT `+chatColumns+` FROM chats WHERE id=$1`, chatID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Chat{}, ErrChatNotFound
	}
	return chat, err
}

// GetChatWithMembers fetches a chat and its members ordered by user id.
func (r *ChatRepo) GetChatWithMembers(ctx context.Context, chatID int) (models.ChatWithMembers, error) {
	chat, err := r.GetChat(ctx, chatID)
	if err != nil {
		return models.ChatWithMembers{}, err
	}
	members, err := r.membersByChat(ctx, []int{chatID})
	if err != nil {
		return models.ChatWithMembers{}, err
	}
	return models.ChatWithMembers{Chat: chat, Users: nonNilMembers(members[chatID])}, nil
}

// ListChatsForUser returns every chat the user belongs to with its members and
// only its most recent message.
func (r *ChatRepo) ListChatsForUser(ctx context.Context, userID int) ([]models.ChatOverview, error) {
	var chats []models.Chat
	err := r.db.SelectContext(ctx, &chats, `SELECT c.id, c.name, c.type, c.image, c.created_at FROM chats c
        INNER JOIN chat_user cu ON cu.chat_id = c.id
        WHERE cu.user_id=$1
        ORDER BY c.created_at DESC, c.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	if len(chats) == 0 {
		return []models.ChatOverview{}, nil
	}

	ids := make([]int, 0, len(chats))
	for _, c := range chats {
		ids = append(ids, c.ID)
	}

	members, err := r.membersByChat(ctx, ids)
	if err != nil {
		return nil, err
	}
	latest, err := r.latestMessages(ctx, ids)
	if err != nil {
		return nil, err
	}

	result := make([]models.ChatOverview, 0, len(chats))
	for _, c := range chats {
		overview := models.ChatOverview{
			ChatWithMembers: models.ChatWithMembers{Chat: c, Users: nonNilMembers(members[c.ID])},
		}
		if msg, ok := latest[c.ID]; ok {
			overview.LatestMessage = &msg
		}
		result = append(result, overview)
	}
	return result, nil
}

type memberRow struct {
	ChatID int `db:"chat_id"`
	models.ChatMember
}

func (r *ChatRepo) membersByChat(ctx context.Context, chatIDs []int) (map[int][]models.ChatMember, error) {
	query, args, err := psql.Select("cu.chat_id", "u.id", "u.name", "u.avatar", "cu.is_admin", "cu.last_read_at").
		From("chat_user cu").
		Join("users u ON u.id = cu.user_id").
		Where(sq.Eq{"cu.chat_id": chatIDs}).
		OrderBy("cu.chat_id", "u.id").
		ToSql()
	if err != nil {
		return nil, err
	}

	var rows []memberRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("load members: %w", err)
	}
	out := make(map[int][]models.ChatMember, len(chatIDs))
	for _, row := range rows {
		out[row.ChatID] = append(out[row.ChatID], row.ChatMember)
	}
	return out, nil
}

// latestMessages picks the newest message per chat with DISTINCT ON.
func (r *ChatRepo) latestMessages(ctx context.Context, chatIDs []int) (map[int]models.Message, error) {
	query, args, err := psql.Select("DISTINCT ON (chat_id) " + messageColumns).
		From("messages").
		Where(sq.Eq{"chat_id": chatIDs}).
		OrderBy("chat_id", "created_at DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	var msgs []models.Message
	if err := r.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, fmt.Errorf("load latest messages: %w", err)
	}
	out := make(map[int]models.Message, len(msgs))
	for _, m := range msgs {
		out[m.ChatID] = m
	}
	return out, nil
}

// GetMembership returns the membership row or ErrNotMember.
func (r *ChatRepo) GetMembership(ctx context.Context, chatID int, userID int) (models.Membership, error) {
	var m models.Membership
	err := r.db.GetContext(ctx, &m, `SELECT chat_id, user_id, is_admin, last_read_at, created_at FROM chat_user WHERE chat_id=$1 AND user_id=$2`, chatID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Membership{}, ErrNotMember
	}
	return m, err
}

// IsMember checks membership.
func (r *ChatRepo) IsMember(ctx context.Context, chatID int, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM chat_user WHERE chat_id=$1 AND user_id=$2)`, chatID, userID)
	return exists, err
}

// AddMembers attaches the ids that are not members yet as regular members and
// returns the ids that were added.
func (r *ChatRepo) AddMembers(ctx context.Context, chatID int, userIDs []int, at time.Time) ([]int, error) {
	var added []int
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var existing []int
		if err := tx.SelectContext(ctx, &existing, `SELECT user_id FROM chat_user WHERE chat_id=$1 FOR UPDATE`, chatID); err != nil {
			return fmt.Errorf("load members: %w", err)
		}
		current := make(map[int]struct{}, len(existing))
		for _, id := range existing {
			current[id] = struct{}{}
		}

		insert := psql.Insert("chat_user").Columns("chat_id", "user_id", "is_admin", "created_at").
			Suffix("ON CONFLICT (chat_id, user_id) DO NOTHING")
		for _, id := range uniqueInts(userIDs) {
			if _, ok := current[id]; ok {
				continue
			}
			insert = insert.Values(chatID, id, false, at)
			added = append(added, id)
		}
		if len(added) == 0 {
			return nil
		}

		query, args, err := insert.ToSql()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// RemoveMembers detaches the given ids. Ids that are not members are ignored.
func (r *ChatRepo) RemoveMembers(ctx context.Context, chatID int, userIDs []int) ([]int, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	query, args, err := psql.Delete("chat_user").
		Where(sq.Eq{"chat_id": chatID, "user_id": uniqueInts(userIDs)}).
		Suffix("RETURNING user_id").
		ToSql()
	if err != nil {
		return nil, err
	}

	var removed []int
	if err := r.db.SelectContext(ctx, &removed, query, args...); err != nil {
		return nil, fmt.Errorf("remove members: %w", err)
	}
	return removed, nil
}

// MarkRead advances the member's read pointer.
func (r *ChatRepo) MarkRead(ctx context.Context, chatID int, userID int, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE chat_user SET last_read_at=$3 WHERE chat_id=$1 AND user_id=$2`, chatID, userID, at)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotMember
	}
	return nil
}

// DeleteChat removes the chat and everything it owns in one
// transaction and returns the media keys the deleted messages referenced.
func (r *ChatRepo) DeleteChat(ctx context.Context, chatID int) ([]string, error) {
	var mediaKeys []string
	err := withTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &mediaKeys, `DELETE FROM messages WHERE chat_id=$1 AND file_url IS NOT NULL RETURNING file_url`, chatID); err != nil {
			return fmt.Errorf("delete media messages: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE chat_id=$1`, chatID); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM chat_user WHERE chat_id=$1`, chatID); err != nil {
			return fmt.Errorf("delete members: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM chats WHERE id=$1`, chatID)
		if err != nil {
			return fmt.Errorf("delete chat: %w", err)
		}
		count, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if count == 0 {
			return ErrChatNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mediaKeys, nil
}

func nonNilMembers(members []models.ChatMember) []models.ChatMember {
	if members == nil {
		return []models.ChatMember{}
	}
	return members
}
