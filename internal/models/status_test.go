package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanView(t *testing.T) {
	tests := []struct {
		name    string
		privacy StatusPrivacy
		viewer  int
		want    bool
	}{
		{name: "all", privacy: StatusPrivacy{Type: PrivacyAll}, viewer: 2, want: true},
		{name: "all ignores list", privacy: StatusPrivacy{Type: PrivacyAll, SelectedUsers: []int{2}}, viewer: 2, want: true},
		{name: "selected listed", privacy: StatusPrivacy{Type: PrivacySelected, SelectedUsers: []int{2, 3}}, viewer: 3, want: true},
		{name: "selected unlisted", privacy: StatusPrivacy{Type: PrivacySelected, SelectedUsers: []int{2}}, viewer: 3, want: false},
		{name: "selected empty", privacy: StatusPrivacy{Type: PrivacySelected, SelectedUsers: []int{}}, viewer: 3, want: false},
		{name: "except listed", privacy: StatusPrivacy{Type: PrivacyExcept, SelectedUsers: []int{2}}, viewer: 2, want: false},
		{name: "except unlisted", privacy: StatusPrivacy{Type: PrivacyExcept, SelectedUsers: []int{2}}, viewer: 3, want: true},
		{name: "except empty", privacy: StatusPrivacy{Type: PrivacyExcept}, viewer: 3, want: true},
		{name: "author is not exempt", privacy: StatusPrivacy{UserID: 1, Type: PrivacySelected, SelectedUsers: []int{2}}, viewer: 1, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.privacy.CanView(tt.viewer))
		})
	}
}

func TestSelectedAndExceptAreComplements(t *testing.T) {
	list := []int{2, 5, 9}
	selected := StatusPrivacy{Type: PrivacySelected, SelectedUsers: list}
	except := StatusPrivacy{Type: PrivacyExcept, SelectedUsers: list}

	for viewer := 1; viewer <= 10; viewer++ {
		assert.NotEqual(t, selected.CanView(viewer), except.CanView(viewer), "viewer %d", viewer)
	}
}

func TestNewStatusPrivacy(t *testing.T) {
	p, err := NewStatusPrivacy(1, PrivacyExcept, []int{3, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, p.SelectedUsers)

	p, err = NewStatusPrivacy(1, PrivacyAll, []int{3})
	require.NoError(t, err)
	assert.Empty(t, p.SelectedUsers)

	p, err = NewStatusPrivacy(1, PrivacySelected, []int{})
	require.NoError(t, err)
	assert.Empty(t, p.SelectedUsers)
	assert.False(t, p.CanView(2))

	_, err = NewStatusPrivacy(1, PrivacySelected, nil)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "selected_users")

	_, err = NewStatusPrivacy(1, "friends", nil)
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "privacy_type")
}

func TestStatusLifetime(t *testing.T) {
	created := time.Date(2024, 3, 19, 10, 0, 0, 0, time.UTC)
	body, err := NewStatusBody(StatusText, "hi", false)
	require.NoError(t, err)

	s := NewStatus(7, body, created)

	assert.Equal(t, created.Add(24*time.Hour), s.ExpiresAt)
	assert.True(t, s.IsActive(created))
	assert.True(t, s.IsActive(created.Add(24*time.Hour-time.Second)))
	assert.False(t, s.IsActive(created.Add(24*time.Hour)))
	assert.False(t, s.IsActive(created.Add(24*time.Hour+time.Second)))
	assert.False(t, s.HasMedia())
}

func TestNewStatusBody(t *testing.T) {
	tests := []struct {
		name     string
		typ      StatusType
		content  string
		hasMedia bool
		fields   []string
	}{
		{name: "text", typ: StatusText, content: "hi"},
		{name: "image with media", typ: StatusImage, hasMedia: true},
		{name: "text with media only", typ: StatusText, hasMedia: true},
		{name: "empty text", typ: StatusText, fields: []string{"content"}},
		{name: "video without media", typ: StatusVideo, content: "clip", fields: []string{"media"}},
		{name: "unknown type", typ: "audio", content: "x", fields: []string{"type"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := NewStatusBody(tt.typ, tt.content, tt.hasMedia)
			if len(tt.fields) == 0 {
				require.NoError(t, err)
				assert.Equal(t, tt.typ, body.Type)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			for _, f := range tt.fields {
				assert.Contains(t, verr.Fields, f)
			}
		})
	}
}
