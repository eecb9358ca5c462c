package models

import "time"

// ChatType distinguishes one-to-one chats from groups.
type ChatType string

const (
	ChatTypePrivate ChatType = "private"
	ChatTypeGroup   ChatType = "group"
)

// Valid reports whether t is a known chat type.
func (t ChatType) Valid() bool {
	return t == ChatTypePrivate || t == ChatTypeGroup
}

// Chat is a conversation between members.
type Chat struct {
	ID        int       `db:"id" json:"id"`
	Name      *string   `db:"name" json:"name"`
	Type      ChatType  `db:"type" json:"type"`
	Image     *string   `db:"image" json:"image"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// IsGroup reports whether membership management applies to the chat.
func (c Chat) IsGroup() bool {
	return c.Type == ChatTypeGroup
}

// NewChat validates the creation input: a name is required exactly for groups.
func NewChat(chatType ChatType, name string) (Chat, error) {
	verr := &ValidationError{}
	if !chatType.Valid() {
		verr.Add("type", "must be one of private, group")
	}
	if chatType == ChatTypeGroup && name == "" {
		verr.Add("name", "is required for group chats")
	}
	if err := verr.OrNil(); err != nil {
		return Chat{}, err
	}

	chat := Chat{Type: chatType}
	if chatType == ChatTypeGroup {
		chat.Name = &name
	}
	return chat, nil
}

// Membership is the chat/user join row.
type Membership struct {
	ChatID     int        `db:"chat_id" json:"chat_id"`
	UserID     int        `db:"user_id" json:"user_id"`
	IsAdmin    bool       `db:"is_admin" json:"is_admin"`
	LastReadAt *time.Time `db:"last_read_at" json:"last_read_at"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// ChatMember is a user as seen through a membership.
type ChatMember struct {
	UserSummary
	IsAdmin    bool       `db:"is_admin" json:"is_admin"`
	LastReadAt *time.Time `db:"last_read_at" json:"last_read_at"`
}

// ChatWithMembers is a chat together with its member list.
type ChatWithMembers struct {
	Chat
	Users []ChatMember `json:"users"`
}

// ChatOverview is one row of the caller's chat list.
type ChatOverview struct {
	ChatWithMembers
	LatestMessage *Message `json:"latest_message"`
}
