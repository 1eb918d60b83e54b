package store

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chatsync/models"
)

type UserStore struct {
	users *mongo.Collection
}

func NewUserStore(users *mongo.Collection) *UserStore {
	return &UserStore{users: users}
}

// Create inserts a new user at signup. The email must be unused.
func (s *UserStore) Create(ctx context.Context, email, passwordHash, displayName string) (*models.User, error) {
	count, err := s.users.CountDocuments(ctx, bson.M{"email": email})
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, ErrInvalidOperation
	}

	now := time.Now().Unix()
	user := models.User{
		ID:           primitive.NewObjectID(),
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
		Status:       models.StatusOffline,
		LastSeen:     now,
		CreatedAt:    now,
	}
	if _, err := s.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Concurrent signup with the same email; the unique index kept one.
			return nil, ErrInvalidOperation
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserStore) Get(ctx context.Context, userID primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.users.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// searchFilter builds the user lookup, always excluding the searcher. A query
// containing "@" is an exact email lookup; anything else is a case-insensitive
// displayName substring match with regex metacharacters neutralized, so "a+b"
// finds "a+b" and "(" cannot break the query.
func searchFilter(selfID primitive.ObjectID, query string) bson.M {
	filter := bson.M{"_id": bson.M{"$ne": selfID}}
	if strings.Contains(query, "@") {
		filter["email"] = query
	} else {
		filter["displayName"] = bson.M{"$regex": primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}}
	}
	return filter
}

// Search finds users by displayName substring, or by exact email when the
// query looks like one. The searcher is never in the results.
func (s *UserStore) Search(ctx context.Context, selfID primitive.ObjectID, query string) ([]models.User, error) {
	filter := searchFilter(selfID, query)
	opts := options.Find().SetSort(bson.D{{Key: "displayName", Value: 1}}).SetLimit(50)
	cursor, err := s.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetMany fetches the given users in one round trip.
func (s *UserStore) GetMany(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	cursor, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	users := []models.User{}
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateStatus sets presence and lastSeen. Called on login and logout only;
// there is no heartbeat, an abrupt disconnect leaves the user online until the
// next explicit logout.
func (s *UserStore) UpdateStatus(ctx context.Context, userID primitive.ObjectID, status string) error {
	if status != models.StatusOnline && status != models.StatusOffline {
		return ErrInvalidOperation
	}
	result, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$set": bson.M{"status": status, "lastSeen": time.Now().Unix()}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SetTyping points the user's single typing target at chatID, overwriting any
// previous target; nil clears it. typingAt lets consumers judge staleness, the
// store itself never expires the pointer.
func (s *UserStore) SetTyping(ctx context.Context, userID primitive.ObjectID, chatID *primitive.ObjectID) error {
	var update bson.M
	if chatID == nil {
		update = bson.M{"$unset": bson.M{"typingIn": "", "typingAt": ""}}
	} else {
		update = bson.M{"$set": bson.M{"typingIn": *chatID, "typingAt": time.Now().Unix()}}
	}
	result, err := s.users.UpdateOne(ctx, bson.M{"_id": userID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProfile edits displayName and/or avatar URL. Empty fields are left as
// they are.
func (s *UserStore) UpdateProfile(ctx context.Context, userID primitive.ObjectID, displayName, avatarURL string) error {
	set := bson.M{}
	if displayName != "" {
		set["displayName"] = displayName
	}
	if avatarURL != "" {
		set["avatar"] = avatarURL
	}
	if len(set) == 0 {
		return nil
	}
	result, err := s.users.UpdateOne(ctx, bson.M{"_id": userID}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the account record.
func (s *UserStore) Delete(ctx context.Context, userID primitive.ObjectID) error {
	result, err := s.users.DeleteOne(ctx, bson.M{"_id": userID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
