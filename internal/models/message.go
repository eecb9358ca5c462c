package models

import "time"

// MessageType tags the payload carried by a message.
type MessageType string

const (
	MessageText     MessageType = "text"
	MessageImage    MessageType = "image"
	MessageVideo    MessageType = "video"
	MessageAudio    MessageType = "audio"
	MessageDocument MessageType = "document"
)

// RequiresMedia reports whether messages of this type must carry a file.
func (t MessageType) RequiresMedia() bool {
	switch t {
	case MessageImage, MessageVideo, MessageAudio, MessageDocument:
		return true
	}
	return false
}

// Valid reports whether t is a known message type.
func (t MessageType) Valid() bool {
	return t == MessageText || t.RequiresMedia()
}

// MessageBody is the validated payload of a message before persistence.
type MessageBody struct {
	Type     MessageType
	Content  *string
	HasMedia bool
}

// NewMessageBody enforces the per-type presence rules: text needs content
// even when a file is attached, every other type needs media.
func NewMessageBody(t MessageType, content string, hasMedia bool) (MessageBody, error) {
	verr := &ValidationError{}
	if !t.Valid() {
		verr.Add("type", "must be one of text, image, video, audio, document")
	}
	switch {
	case t == MessageText && content == "":
		verr.Add("content", "is required for text messages")
	case content == "" && !hasMedia:
		verr.Add("content", "is required when no file is attached")
	}
	if t.RequiresMedia() && !hasMedia {
		verr.Add("file", "is required for "+string(t)+" messages")
	}
	if err := verr.OrNil(); err != nil {
		return MessageBody{}, err
	}

	body := MessageBody{Type: t, HasMedia: hasMedia}
	if content != "" {
		body.Content = &content
	}
	return body, nil
}

// Message is a chat message. Only the delivery flags change after creation.
type Message struct {
	ID          int         `db:"id" json:"id"`
	ChatID      int         `db:"chat_id" json:"chat_id"`
	UserID      int         `db:"user_id" json:"user_id"`
	Content     *string     `db:"content" json:"content"`
	Type        MessageType `db:"type" json:"type"`
	FileURL     *string     `db:"file_url" json:"file_url"`
	IsDelivered bool        `db:"is_delivered" json:"is_delivered"`
	IsSeen      bool        `db:"is_seen" json:"is_seen"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
}

// MessageWithAuthor embeds the author summary for API responses.
type MessageWithAuthor struct {
	Message
	User UserSummary `db:"user" json:"user"`
}

// ChatEvent is broadcast through websockets.
type ChatEvent struct {
	Type    string             `json:"type"`
	Message *MessageWithAuthor `json:"message,omitempty"`
	UserID  int                `json:"user_id,omitempty"`
	UserIDs []int              `json:"user_ids,omitempty"`
	At      *time.Time         `json:"at,omitempty"`
}

// Page is a paginated slice of results.
type Page[T any] struct {
	Data        []T `json:"data"`
	CurrentPage int `json:"current_page"`
	PerPage     int `json:"per_page"`
	Total       int `json:"total"`
	LastPage    int `json:"last_page"`
}

// NewPage computes the page metadata for total results.
func NewPage[T any](data []T, page, perPage, total int) Page[T] {
	last := 1
	if perPage > 0 && total > 0 {
		last = (total + perPage - 1) / perPage
	}
	if data == nil {
		data = []T{}
	}
	return Page[T]{Data: data, CurrentPage: page, PerPage: perPage, Total: total, LastPage: last}
}
