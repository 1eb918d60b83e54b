package models

import "go.mongodb.org/mongo-driver/bson/primitive"

type Contact struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Owner       primitive.ObjectID `bson:"owner" json:"owner"`
	ContactUser primitive.ObjectID `bson:"contactUser" json:"contactUser"`
	CreatedAt   int64              `bson:"createdAt" json:"createdAt"`
	User        *User              `bson:"-" json:"user,omitempty"` // populated in responses only
}
