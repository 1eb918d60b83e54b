package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chatsync/database"
	"chatsync/models"
)

func GetVapidPublicKey(c *gin.Context) {
	if cfg == nil || cfg.Push.VAPIDPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Push notifications not configured"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"publicKey": cfg.Push.VAPIDPublicKey})
}

// SubscribePush stores the browser's push subscription for the caller. One
// subscription per user; re-subscribing replaces the old one.
func SubscribePush(c *gin.Context) {
	var req struct {
		Endpoint string `json:"endpoint" binding:"required"`
		Keys     struct {
			P256dh string `json:"p256dh" binding:"required"`
			Auth   string `json:"auth" binding:"required"`
		} `json:"keys" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sub := webpush.Subscription{
		Endpoint: req.Endpoint,
		Keys: webpush.Keys{
			P256dh: req.Keys.P256dh,
			Auth:   req.Keys.Auth,
		},
	}

	_, err := database.PushSubs.UpdateOne(
		ctx,
		bson.M{"userId": userID},
		bson.M{
			"$set":         bson.M{"sub": sub},
			"$setOnInsert": bson.M{"_id": primitive.NewObjectID(), "userId": userID},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		log.Printf("Failed to save push subscription: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Push subscription saved"})
}

// UnsubscribePush drops the caller's push subscription.
func UnsubscribePush(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := database.PushSubs.DeleteOne(ctx, bson.M{"userId": userID}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Push subscription removed"})
}

// SendPushNotification delivers a web push to one user, if they have a
// subscription. Expired subscriptions (410 from the push service) are
// deleted on the way out.
func SendPushNotification(userID primitive.ObjectID, title, body, icon string) {
	if cfg == nil || cfg.Push.VAPIDPrivateKey == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var sub models.PushSubscription
	err := database.PushSubs.FindOne(ctx, bson.M{"userId": userID}).Decode(&sub)
	if err == mongo.ErrNoDocuments {
		return
	}
	if err != nil {
		log.Printf("Failed to find push subscription for user %s: %v", userID.Hex(), err)
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"title": title,
		"body":  body,
		"icon":  icon,
		"data": map[string]interface{}{
			"timestamp": time.Now().Unix(),
		},
	})
	if err != nil {
		log.Printf("Failed to marshal push payload: %v", err)
		return
	}

	resp, err := webpush.SendNotification(payload, &sub.Sub, &webpush.Options{
		Subscriber:      cfg.Push.Subscriber,
		VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
		TTL:             30,
	})
	if err != nil {
		log.Printf("Failed to send push notification to user %s: %v", userID.Hex(), err)
		if resp != nil && resp.StatusCode == http.StatusGone {
			if _, delErr := database.PushSubs.DeleteOne(ctx, bson.M{"userId": userID}); delErr != nil {
				log.Printf("Failed to delete expired subscription: %v", delErr)
			}
		}
		return
	}
	resp.Body.Close()
}

// truncatePreview cuts s to at most max bytes without splitting a rune.
func truncatePreview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// SendMessagePush formats and sends the new-message notification.
func SendMessagePush(receiverID primitive.ObjectID, messageContent, senderName string) {
	if senderName == "" {
		senderName = "Someone"
	}

	body := truncatePreview(messageContent, 100)

	SendPushNotification(receiverID, senderName+" sent a message", body, "")
}
