package models

import "time"

// Presence values stored in users.status.
const (
	PresenceOnline  = "online"
	PresenceOffline = "offline"
)

// User is an identity record.
type User struct {
	ID           int        `db:"id" json:"id"`
	Name         string     `db:"name" json:"name"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Avatar       *string    `db:"avatar" json:"avatar"`
	Status       string     `db:"status" json:"status"`
	LastSeenAt   *time.Time `db:"last_seen_at" json:"last_seen_at"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// UserSummary is the public projection of a user embedded in other payloads.
type UserSummary struct {
	ID     int     `db:"id" json:"id"`
	Name   string  `db:"name" json:"name"`
	Avatar *string `db:"avatar" json:"avatar"`
}
