package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chatsync/models"
)

type MessageStore struct {
	messages *mongo.Collection
}

func NewMessageStore(messages *mongo.Collection) *MessageStore {
	return &MessageStore{messages: messages}
}

// CreateParams carries everything a send accepts. Attachments are uploaded by
// the caller before the insert; FileURL/FileID reference the stored blob.
type CreateParams struct {
	ChatID      primitive.ObjectID
	SenderID    primitive.ObjectID
	Content     string
	Type        string
	FileURL     string
	FileID      string
	FileName    string
	ReplyToID   *primitive.ObjectID
	IsForwarded bool
}

// Create inserts a new message. Messages always start unread.
func (s *MessageStore) Create(ctx context.Context, p CreateParams) (*models.Message, error) {
	if p.ChatID.IsZero() || p.SenderID.IsZero() {
		return nil, ErrInvalidOperation
	}
	if p.Type == "" {
		p.Type = models.MessageTypeText
	}

	msg := models.Message{
		ID:          primitive.NewObjectID(),
		ChatID:      p.ChatID,
		SenderID:    p.SenderID,
		Content:     p.Content,
		Type:        p.Type,
		FileURL:     p.FileURL,
		FileID:      p.FileID,
		FileName:    p.FileName,
		IsRead:      false,
		IsEdited:    false,
		Reaction:    "",
		ReplyToID:   p.ReplyToID,
		IsForwarded: p.IsForwarded,
		CreatedAt:   time.Now().Unix(),
	}

	if _, err := s.messages.InsertOne(ctx, msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *MessageStore) Get(ctx context.Context, messageID primitive.ObjectID) (*models.Message, error) {
	var msg models.Message
	err := s.messages.FindOne(ctx, bson.M{"_id": messageID}).Decode(&msg)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListByChat returns a chat's messages in delivery order (creation time).
func (s *MessageStore) ListByChat(ctx context.Context, chatID primitive.ObjectID) ([]models.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.messages.Find(ctx, bson.M{"chatId": chatID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	msgs := []models.Message{}
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// Edit replaces a message's content. Allowed only while the message is unread
// and only for its sender. The isRead guard lives in the update filter, so a
// read that lands first makes the edit fail rather than racing past the check.
func (s *MessageStore) Edit(ctx context.Context, messageID, senderID primitive.ObjectID, content string) error {
	result, err := s.messages.UpdateOne(ctx,
		bson.M{"_id": messageID, "senderId": senderID, "isRead": false},
		bson.M{"$set": bson.M{"content": content, "isEdited": true}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount > 0 {
		return nil
	}

	// Filter missed: work out which guard failed.
	msg, err := s.Get(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != senderID {
		return ErrNotSender
	}
	return ErrEditRejected
}

// MarkRead flags the message read and records the reader. Idempotent: marking
// an already-read message again changes nothing.
func (s *MessageStore) MarkRead(ctx context.Context, messageID, readerID primitive.ObjectID) error {
	result, err := s.messages.UpdateOne(ctx,
		bson.M{"_id": messageID},
		bson.M{
			"$set":      bson.M{"isRead": true},
			"$addToSet": bson.M{"readBy": readerID},
		},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkChatRead marks every unread message from other senders in the chat.
func (s *MessageStore) MarkChatRead(ctx context.Context, chatID, readerID primitive.ObjectID) (int64, error) {
	result, err := s.messages.UpdateMany(ctx,
		bson.M{"chatId": chatID, "senderId": bson.M{"$ne": readerID}, "isRead": false},
		bson.M{
			"$set":      bson.M{"isRead": true},
			"$addToSet": bson.M{"readBy": readerID},
		},
	)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}

// nextReaction implements the toggle: repeating the stored emoji clears it,
// anything else becomes the stored value (last writer wins across reactors).
func nextReaction(current, emoji string) string {
	if current == emoji {
		return ""
	}
	return emoji
}

// React toggles the message's single reaction value and returns what is stored
// after the call.
func (s *MessageStore) React(ctx context.Context, messageID primitive.ObjectID, emoji string) (string, error) {
	msg, err := s.Get(ctx, messageID)
	if err != nil {
		return "", err
	}

	reaction := nextReaction(msg.Reaction, emoji)
	_, err = s.messages.UpdateOne(ctx,
		bson.M{"_id": messageID},
		bson.M{"$set": bson.M{"reaction": reaction}},
	)
	if err != nil {
		return "", err
	}
	return reaction, nil
}

// Delete removes a message. Sender-only; no tombstone is left behind, peers
// reconcile through the realtime delete event.
func (s *MessageStore) Delete(ctx context.Context, messageID, senderID primitive.ObjectID) (*models.Message, error) {
	msg, err := s.Get(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != senderID {
		return nil, ErrNotSender
	}

	result, err := s.messages.DeleteOne(ctx, bson.M{"_id": messageID, "senderId": senderID})
	if err != nil {
		return nil, err
	}
	if result.DeletedCount == 0 {
		return nil, ErrNotFound
	}
	return msg, nil
}

// forwardParams builds the copy: content, type and attachment ride along,
// isForwarded is set, and neither the reply reference nor any link back to
// the original message survives.
func forwardParams(src *models.Message, targetChatID, senderID primitive.ObjectID) CreateParams {
	return CreateParams{
		ChatID:      targetChatID,
		SenderID:    senderID,
		Content:     src.Content,
		Type:        src.Type,
		FileURL:     src.FileURL,
		FileID:      src.FileID,
		FileName:    src.FileName,
		IsForwarded: true,
	}
}

// Forward sends a copy of src into targetChatID. The copy references the same
// stored blob as the source; callers deleting messages consult CountByFileID
// before destroying it.
func (s *MessageStore) Forward(ctx context.Context, src *models.Message, targetChatID, senderID primitive.ObjectID) (*models.Message, error) {
	return s.Create(ctx, forwardParams(src, targetChatID, senderID))
}

// CountByFileID reports how many messages still reference a stored blob.
// Forwarded copies share the source's blob, so it may only be destroyed once
// this reaches zero.
func (s *MessageStore) CountByFileID(ctx context.Context, fileID string) (int64, error) {
	if fileID == "" {
		return 0, nil
	}
	return s.messages.CountDocuments(ctx, bson.M{"fileId": fileID})
}
