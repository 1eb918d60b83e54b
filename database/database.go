package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var Client *mongo.Client
var Users *mongo.Collection
var Chats *mongo.Collection
var Messages *mongo.Collection
var Contacts *mongo.Collection
var PushSubs *mongo.Collection

func ConnectMongo(uri, dbName string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	var err error
	Client, err = mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return err
	}

	if err := Client.Ping(ctx, nil); err != nil {
		return err
	}

	db := Client.Database(dbName)
	Users = db.Collection("users")
	Chats = db.Collection("chats")
	Messages = db.Collection("messages")
	Contacts = db.Collection("contacts")
	PushSubs = db.Collection("push_subscriptions")

	log.Println("Connected to MongoDB successfully")
	return nil
}

// EnsureIndexes creates the uniqueness constraints the stores rely on. The
// pairKey index is what makes 1:1 chat resolution race-free: two concurrent
// creators collide here instead of both inserting.
func EnsureIndexes(ctx context.Context) error {
	_, err := Chats.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "pairKey", Value: 1}},
		Options: options.Index().
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"isGroup": false, "pairKey": bson.M{"$type": "string"}}),
	})
	if err != nil {
		return err
	}

	_, err = Contacts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "owner", Value: 1}, {Key: "contactUser", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}

	_, err = Messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "chatId", Value: 1}, {Key: "createdAt", Value: 1}},
	})
	if err != nil {
		return err
	}

	_, err = Users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func DisconnectMongo() error {
	if Client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := Client.Disconnect(ctx); err != nil {
		return err
	}

	log.Println("Disconnected from MongoDB")
	return nil
}
