package store

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chatsync/models"
)

type ChatStore struct {
	chats    *mongo.Collection
	messages *mongo.Collection
}

func NewChatStore(chats, messages *mongo.Collection) *ChatStore {
	return &ChatStore{chats: chats, messages: messages}
}

// PairKey builds the deterministic key for a 1:1 chat: the two participant ids
// in lexical order, joined with ":". Order of the arguments does not matter.
func PairKey(a, b primitive.ObjectID) string {
	x, y := a.Hex(), b.Hex()
	if x > y {
		x, y = y, x
	}
	return x + ":" + y
}

// ResolveDirect returns the existing 1:1 chat between self and other, creating
// it if none exists. The unique index on pairKey makes concurrent resolution
// safe: the insert that loses the race re-reads the winner's chat.
func (s *ChatStore) ResolveDirect(ctx context.Context, selfID, otherID primitive.ObjectID) (*models.Chat, error) {
	if selfID == otherID {
		return nil, ErrInvalidOperation
	}

	key := PairKey(selfID, otherID)

	existing, err := s.findDirect(ctx, key)
	if err == nil {
		return existing, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	now := time.Now()
	chat := models.Chat{
		ID:              primitive.NewObjectID(),
		Participants:    []primitive.ObjectID{selfID, otherID},
		IsGroup:         false,
		PairKey:         key,
		LastMessage:     "",
		LastMessageTime: now.Unix(),
		CreatedAt:       now.Unix(),
	}

	_, err = s.chats.InsertOne(ctx, chat)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Someone else created the chat between our lookup and insert.
			return s.findDirect(ctx, key)
		}
		return nil, err
	}
	return &chat, nil
}

func (s *ChatStore) findDirect(ctx context.Context, pairKey string) (*models.Chat, error) {
	// Sorted by recency: should the index ever be rebuilt around legacy
	// duplicates, the most recently active chat wins.
	opts := options.FindOne().SetSort(bson.D{{Key: "lastMessageTime", Value: -1}})
	var chat models.Chat
	err := s.chats.FindOne(ctx, bson.M{"pairKey": pairKey, "isGroup": false}, opts).Decode(&chat)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// CreateGroup always creates a new chat; group creation never dedupes.
func (s *ChatStore) CreateGroup(ctx context.Context, creatorID primitive.ObjectID, memberIDs []primitive.ObjectID, name, avatarURL string) (*models.Chat, error) {
	participants := []primitive.ObjectID{creatorID}
	for _, id := range memberIDs {
		if id == creatorID || containsID(participants, id) {
			continue
		}
		participants = append(participants, id)
	}
	if len(participants) < 2 {
		return nil, ErrInvalidOperation
	}

	now := time.Now()
	chat := models.Chat{
		ID:              primitive.NewObjectID(),
		Participants:    participants,
		IsGroup:         true,
		LastMessage:     "",
		LastMessageTime: now.Unix(),
		GroupName:       strings.TrimSpace(name),
		GroupAvatar:     avatarURL,
		CreatedAt:       now.Unix(),
	}

	if _, err := s.chats.InsertOne(ctx, chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (s *ChatStore) Get(ctx context.Context, chatID primitive.ObjectID) (*models.Chat, error) {
	var chat models.Chat
	err := s.chats.FindOne(ctx, bson.M{"_id": chatID}).Decode(&chat)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

// ListForUser returns the user's chats ordered by last activity, newest first.
func (s *ChatStore) ListForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Chat, error) {
	opts := options.Find().SetSort(bson.D{{Key: "lastMessageTime", Value: -1}})
	cursor, err := s.chats.Find(ctx, bson.M{"participants": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	chats := []models.Chat{}
	if err := cursor.All(ctx, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// Delete removes a chat and its messages. Any participant may delete.
func (s *ChatStore) Delete(ctx context.Context, chatID, userID primitive.ObjectID) error {
	result, err := s.chats.DeleteOne(ctx, bson.M{"_id": chatID, "participants": userID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}

	// Cascade. Message delete events let clients with cached lists reconcile.
	if _, err := s.messages.DeleteMany(ctx, bson.M{"chatId": chatID}); err != nil {
		return err
	}
	return nil
}

// TouchLastMessage refreshes the denormalized listing fields. Denormalization
// is push-based: callers invoke this after an accepted send.
func (s *ChatStore) TouchLastMessage(ctx context.Context, chatID primitive.ObjectID, preview string, at int64) error {
	_, err := s.chats.UpdateOne(ctx,
		bson.M{"_id": chatID},
		bson.M{"$set": bson.M{"lastMessage": preview, "lastMessageTime": at}},
	)
	return err
}

// UpdateGroupMeta edits group name/avatar; participant-only, groups only.
func (s *ChatStore) UpdateGroupMeta(ctx context.Context, chatID, userID primitive.ObjectID, name, avatarURL string) error {
	set := bson.M{}
	if name != "" {
		set["groupName"] = strings.TrimSpace(name)
	}
	if avatarURL != "" {
		set["groupAvatar"] = avatarURL
	}
	if len(set) == 0 {
		return nil
	}

	result, err := s.chats.UpdateOne(ctx,
		bson.M{"_id": chatID, "participants": userID, "isGroup": true},
		bson.M{"$set": set},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
