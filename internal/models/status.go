package models

import (
	"slices"
	"time"
)

// StatusLifetime is how long a status stays active after creation.
const StatusLifetime = 24 * time.Hour

// StatusType tags the payload of a status.
type StatusType string

const (
	StatusText  StatusType = "text"
	StatusImage StatusType = "image"
	StatusVideo StatusType = "video"
)

// RequiresMedia reports whether statuses of this type must carry media.
func (t StatusType) RequiresMedia() bool {
	return t == StatusImage || t == StatusVideo
}

// Valid reports whether t is a known status type.
func (t StatusType) Valid() bool {
	return t == StatusText || t.RequiresMedia()
}

// StatusBody is the validated payload of a status before persistence.
type StatusBody struct {
	Type     StatusType
	Content  *string
	HasMedia bool
}

// NewStatusBody enforces that content is present when there is no media and
// that image and video statuses carry media.
func NewStatusBody(t StatusType, content string, hasMedia bool) (StatusBody, error) {
	verr := &ValidationError{}
	if !t.Valid() {
		verr.Add("type", "must be one of text, image, video")
	}
	if content == "" && !hasMedia {
		verr.Add("content", "is required when no media is attached")
	}
	if t.RequiresMedia() && !hasMedia {
		verr.Add("media", "is required for "+string(t)+" statuses")
	}
	if err := verr.OrNil(); err != nil {
		return StatusBody{}, err
	}

	body := StatusBody{Type: t, HasMedia: hasMedia}
	if content != "" {
		body.Content = &content
	}
	return body, nil
}

// Status is an ephemeral post. It is active while now is before ExpiresAt.
type Status struct {
	ID        int        `db:"id" json:"id"`
	UserID    int        `db:"user_id" json:"user_id"`
	Type      StatusType `db:"type" json:"type"`
	Content   *string    `db:"content" json:"content"`
	MediaURL  *string    `db:"media_url" json:"media_url"`
	ExpiresAt time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// NewStatus stamps a body with its author and lifetime.
func NewStatus(userID int, body StatusBody, now time.Time) Status {
	return Status{
		UserID:    userID,
		Type:      body.Type,
		Content:   body.Content,
		CreatedAt: now,
		ExpiresAt: now.Add(StatusLifetime),
	}
}

// IsActive reports whether the status is still live at now.
func (s Status) IsActive(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// HasMedia reports whether a media object backs the status.
func (s Status) HasMedia() bool {
	return s.MediaURL != nil && *s.MediaURL != ""
}

// PrivacyType selects how StatusPrivacy.SelectedUsers is interpreted.
type PrivacyType string

const (
	PrivacyAll      PrivacyType = "all"
	PrivacySelected PrivacyType = "selected"
	PrivacyExcept   PrivacyType = "except"
)

// Valid reports whether t is a known privacy type.
func (t PrivacyType) Valid() bool {
	switch t {
	case PrivacyAll, PrivacySelected, PrivacyExcept:
		return true
	}
	return false
}

// StatusPrivacy is the per-author visibility rule shared by all of the author's statuses.
type StatusPrivacy struct {
	UserID        int         `json:"user_id"`
	Type          PrivacyType `json:"privacy_type"`
	SelectedUsers []int       `json:"selected_users"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// DefaultPrivacy is applied to authors who never configured privacy.
func DefaultPrivacy(userID int) StatusPrivacy {
	return StatusPrivacy{UserID: userID, Type: PrivacyAll, SelectedUsers: []int{}}
}

// NewStatusPrivacy validates a privacy setting. The user list is required for
// selected and except, and ignored for all.
func NewStatusPrivacy(userID int, t PrivacyType, selected []int) (StatusPrivacy, error) {
	if !t.Valid() {
		return StatusPrivacy{}, NewValidationError("privacy_type", "must be one of all, selected, except")
	}
	if t == PrivacyAll {
		return StatusPrivacy{UserID: userID, Type: t, SelectedUsers: []int{}}, nil
	}
	if selected == nil {
		return StatusPrivacy{}, NewValidationError("selected_users", "is required for "+string(t)+" privacy")
	}

	ids := slices.Clone(selected)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	return StatusPrivacy{UserID: userID, Type: t, SelectedUsers: ids}, nil
}

// CanView decides whether viewerID may see statuses governed by p.
func (p StatusPrivacy) CanView(viewerID int) bool {
	if p.Type == PrivacyAll {
		return true
	}
	listed := slices.Contains(p.SelectedUsers, viewerID)
	if p.Type == PrivacySelected {
		return listed
	}
	return !listed
}

// StatusViewer is the first-view record of a viewer on a status.
type StatusViewer struct {
	StatusID int         `db:"status_id" json:"status_id"`
	UserID   int         `db:"user_id" json:"user_id"`
	ViewedAt time.Time   `db:"viewed_at" json:"viewed_at"`
	User     UserSummary `db:"user" json:"user"`
}

// StatusWithAuthor is a status joined with its author.
type StatusWithAuthor struct {
	Status
	User UserSummary `db:"user" json:"user"`
}

// StatusDetail is a status with its author and viewer list.
type StatusDetail struct {
	StatusWithAuthor
	Viewers []StatusViewer `json:"viewers"`
}
