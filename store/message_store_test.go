package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatsync/models"
)

func TestNextReaction(t *testing.T) {
	tests := []struct {
		name    string
		current string
		emoji   string
		want    string
	}{
		{"set on empty", "", "👍", "👍"},
		{"same emoji toggles off", "👍", "👍", ""},
		{"different emoji replaces", "👍", "❤️", "❤️"},
		{"toggle off then same emoji sets again", "", "❤️", "❤️"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextReaction(tt.current, tt.emoji))
		})
	}
}

func TestForwardParams(t *testing.T) {
	replyTo := primitive.NewObjectID()
	src := &models.Message{
		ID:        primitive.NewObjectID(),
		ChatID:    primitive.NewObjectID(),
		SenderID:  primitive.NewObjectID(),
		Content:   "see attached",
		Type:      models.MessageTypeFile,
		FileURL:   "https://files.example/report.pdf",
		FileID:    "attachments/abc123",
		FileName:  "report.pdf",
		IsRead:    true,
		Reaction:  "👍",
		ReplyToID: &replyTo,
	}
	targetChatID := primitive.NewObjectID()
	senderID := primitive.NewObjectID()

	p := forwardParams(src, targetChatID, senderID)

	assert.Equal(t, targetChatID, p.ChatID)
	assert.Equal(t, senderID, p.SenderID)
	assert.Equal(t, src.Content, p.Content)
	assert.Equal(t, src.Type, p.Type)
	assert.Equal(t, src.FileURL, p.FileURL)
	assert.Equal(t, src.FileID, p.FileID, "forwarded copy shares the source blob")
	assert.Equal(t, src.FileName, p.FileName)
	assert.True(t, p.IsForwarded)
	assert.Nil(t, p.ReplyToID, "reply reference must not survive a forward")
}
