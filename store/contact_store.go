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

type ContactStore struct {
	contacts *mongo.Collection
}

func NewContactStore(contacts *mongo.Collection) *ContactStore {
	return &ContactStore{contacts: contacts}
}

// Add creates an address book entry for owner pointing at target. Adding a
// pair that already exists is not an error: the existing record is returned
// with already=true. Adding yourself is rejected.
func (s *ContactStore) Add(ctx context.Context, ownerID, targetID primitive.ObjectID) (*models.Contact, bool, error) {
	if ownerID == targetID {
		return nil, false, ErrInvalidOperation
	}

	var existing models.Contact
	err := s.contacts.FindOne(ctx, bson.M{"owner": ownerID, "contactUser": targetID}).Decode(&existing)
	if err == nil {
		return &existing, true, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, err
	}

	contact := models.Contact{
		ID:          primitive.NewObjectID(),
		Owner:       ownerID,
		ContactUser: targetID,
		CreatedAt:   time.Now().Unix(),
	}
	_, err = s.contacts.InsertOne(ctx, contact)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Concurrent add of the same pair; the unique index kept one.
			err = s.contacts.FindOne(ctx, bson.M{"owner": ownerID, "contactUser": targetID}).Decode(&existing)
			if err != nil {
				return nil, false, err
			}
			return &existing, true, nil
		}
		return nil, false, err
	}
	return &contact, false, nil
}

// Delete removes the (owner, target) entry. Deleting a pair that does not
// exist succeeds, which makes the operation idempotent.
func (s *ContactStore) Delete(ctx context.Context, ownerID, targetID primitive.ObjectID) error {
	_, err := s.contacts.DeleteOne(ctx, bson.M{"owner": ownerID, "contactUser": targetID})
	return err
}

// List returns the owner's contacts, oldest first.
func (s *ContactStore) List(ctx context.Context, ownerID primitive.ObjectID) ([]models.Contact, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := s.contacts.Find(ctx, bson.M{"owner": ownerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	contacts := []models.Contact{}
	if err := cursor.All(ctx, &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}
