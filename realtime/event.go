package realtime

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatsync/models"
)

// Action mirrors the store's change-stream verbs.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ChatEvent is a change to a chat record. Record is zero-valued for deletes;
// ChatID is always set.
type ChatEvent struct {
	Action Action             `json:"action"`
	ChatID primitive.ObjectID `json:"chatId"`
	Record models.Chat        `json:"record"`
}

// MessageEvent is a change to a message record. ChatID identifies the owning
// chat; for deletes it comes from the router's record cache and may be zero if
// the message predates this process.
type MessageEvent struct {
	Action    Action             `json:"action"`
	MessageID primitive.ObjectID `json:"messageId"`
	ChatID    primitive.ObjectID `json:"chatId"`
	Record    models.Message     `json:"record"`
}

// UserEvent is a change to a user record. Delivered unfiltered; consumers pick
// out the ids they care about.
type UserEvent struct {
	Action Action             `json:"action"`
	UserID primitive.ObjectID `json:"userId"`
	Record models.User        `json:"record"`
}
