package models

import "go.mongodb.org/mongo-driver/bson/primitive"

const (
	MessageTypeText = "text"
	MessageTypeFile = "file"
)

type Message struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChatID   primitive.ObjectID `bson:"chatId" json:"chatId"`
	SenderID primitive.ObjectID `bson:"senderId" json:"senderId"`
	Content  string             `bson:"content" json:"content"`
	Type     string             `bson:"type" json:"type"` // text, file
	FileURL  string             `bson:"fileUrl,omitempty" json:"fileUrl,omitempty"`
	FileID   string             `bson:"fileId,omitempty" json:"-"`
	FileName string             `bson:"fileName,omitempty" json:"fileName,omitempty"`
	IsRead   bool               `bson:"isRead" json:"isRead"`
	// ReadBy carries per-user receipts for group chats; IsRead stays the
	// boolean the 1:1 UI keys off.
	ReadBy      []primitive.ObjectID `bson:"readBy,omitempty" json:"readBy,omitempty"`
	IsEdited    bool                 `bson:"isEdited" json:"isEdited"`
	Reaction    string               `bson:"reaction" json:"reaction"` // single emoji, empty = none
	ReplyToID   *primitive.ObjectID  `bson:"replyToId,omitempty" json:"replyToId,omitempty"`
	IsForwarded bool                 `bson:"isForwarded" json:"isForwarded"`
	CreatedAt   int64                `bson:"createdAt" json:"createdAt"`
}
