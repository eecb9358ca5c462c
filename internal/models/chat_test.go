package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChat(t *testing.T) {
	group, err := NewChat(ChatTypeGroup, "Team")
	require.NoError(t, err)
	assert.True(t, group.IsGroup())
	require.NotNil(t, group.Name)
	assert.Equal(t, "Team", *group.Name)

	private, err := NewChat(ChatTypePrivate, "ignored")
	require.NoError(t, err)
	assert.False(t, private.IsGroup())
	assert.Nil(t, private.Name)

	_, err = NewChat(ChatTypeGroup, "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"is required for group chats"}, verr.Fields["name"])

	_, err = NewChat("channel", "")
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "type")
}

func TestValidationError(t *testing.T) {
	var empty *ValidationError
	assert.NoError(t, empty.OrNil())
	assert.NoError(t, (&ValidationError{}).OrNil())

	verr := NewValidationError("users", "user 9 does not exist")
	verr.Add("name", "is required")

	assert.Error(t, verr.OrNil())
	assert.Equal(t, "validation failed: name: is required; users: user 9 does not exist", verr.Error())
}
