package models

import "go.mongodb.org/mongo-driver/bson/primitive"

type Chat struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Participants []primitive.ObjectID `bson:"participants" json:"participants"`
	IsGroup      bool                 `bson:"isGroup" json:"isGroup"`
	// PairKey is the sorted participant id pair for direct chats. A unique
	// partial index on it guarantees at most one chat per 1:1 pair.
	PairKey         string `bson:"pairKey,omitempty" json:"-"`
	LastMessage     string `bson:"lastMessage" json:"lastMessage"`
	LastMessageTime int64  `bson:"lastMessageTime" json:"lastMessageTime"`
	GroupName       string `bson:"groupName,omitempty" json:"groupName,omitempty"`
	GroupAvatar     string `bson:"groupAvatar,omitempty" json:"groupAvatar,omitempty"`
	CreatedAt       int64  `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
}

// HasParticipant reports whether userID is a member of the chat.
func (c *Chat) HasParticipant(userID primitive.ObjectID) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}
