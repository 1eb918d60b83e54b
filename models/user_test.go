package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestIsTypingIn(t *testing.T) {
	chatID := primitive.NewObjectID()
	otherChatID := primitive.NewObjectID()
	now := time.Now()

	tests := []struct {
		name      string
		typingIn  *primitive.ObjectID
		typingAt  int64
		chatID    primitive.ObjectID
		threshold time.Duration
		want      bool
	}{
		{"no pointer", nil, 0, chatID, 10 * time.Second, false},
		{"different chat", &otherChatID, now.Unix(), chatID, 10 * time.Second, false},
		{"fresh pointer", &chatID, now.Unix(), chatID, 10 * time.Second, true},
		{"stale pointer", &chatID, now.Add(-time.Minute).Unix(), chatID, 10 * time.Second, false},
		{"exactly at threshold", &chatID, now.Add(-10 * time.Second).Unix(), chatID, 10 * time.Second, true},
		{"zero threshold never stale", &chatID, now.Add(-time.Hour).Unix(), chatID, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &User{TypingIn: tt.typingIn, TypingAt: tt.typingAt}
			assert.Equal(t, tt.want, u.IsTypingIn(tt.chatID, now, tt.threshold))
		})
	}
}
