package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

type User struct {
	ID           primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Email        string              `bson:"email" json:"email"`
	PasswordHash string              `bson:"passwordHash" json:"-"`
	DisplayName  string              `bson:"displayName" json:"displayName"`
	Avatar       string              `bson:"avatar" json:"avatar"`
	Status       string              `bson:"status" json:"status"` // online, offline
	LastSeen     int64               `bson:"lastSeen" json:"lastSeen"`
	TypingIn     *primitive.ObjectID `bson:"typingIn,omitempty" json:"typingIn,omitempty"`
	TypingAt     int64               `bson:"typingAt,omitempty" json:"typingAt,omitempty"`
	CreatedAt    int64               `bson:"createdAt" json:"createdAt"`
}

// IsTypingIn reports whether the user's typing pointer targets chatID and is
// fresher than threshold. The pointer itself never expires server-side; staleness
// is a consumer-side judgement.
func (u *User) IsTypingIn(chatID primitive.ObjectID, now time.Time, threshold time.Duration) bool {
	if u.TypingIn == nil || *u.TypingIn != chatID {
		return false
	}
	if threshold <= 0 {
		return true
	}
	return now.Unix()-u.TypingAt <= int64(threshold.Seconds())
}
