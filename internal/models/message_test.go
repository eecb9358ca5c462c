package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMessageBody(t *testing.T) {
	tests := []struct {
		name     string
		typ      MessageType
		content  string
		hasMedia bool
		fields   []string
	}{
		{name: "text", typ: MessageText, content: "hello"},
		{name: "document with caption", typ: MessageDocument, content: "report", hasMedia: true},
		{name: "audio", typ: MessageAudio, hasMedia: true},
		{name: "empty text", typ: MessageText, fields: []string{"content"}},
		{name: "text with file but no content", typ: MessageText, hasMedia: true, fields: []string{"content"}},
		{name: "image without file", typ: MessageImage, content: "look", fields: []string{"file"}},
		{name: "image with nothing", typ: MessageImage, fields: []string{"content", "file"}},
		{name: "unknown type", typ: "sticker", content: "x", fields: []string{"type"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := NewMessageBody(tt.typ, tt.content, tt.hasMedia)
			if len(tt.fields) == 0 {
				require.NoError(t, err)
				assert.Equal(t, tt.hasMedia, body.HasMedia)
				if tt.content == "" {
					assert.Nil(t, body.Content)
				} else {
					assert.Equal(t, tt.content, *body.Content)
				}
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Len(t, verr.Fields, len(tt.fields))
			for _, f := range tt.fields {
				assert.Contains(t, verr.Fields, f)
			}
		})
	}
}

func TestNewPage(t *testing.T) {
	p := NewPage([]int{1, 2}, 2, 50, 52)
	assert.Equal(t, 2, p.LastPage)
	assert.Equal(t, 52, p.Total)

	empty := NewPage[int](nil, 1, 50, 0)
	assert.NotNil(t, empty.Data)
	assert.Equal(t, 1, empty.LastPage)

	exact := NewPage([]int{}, 1, 50, 100)
	assert.Equal(t, 2, exact.LastPage)
}
