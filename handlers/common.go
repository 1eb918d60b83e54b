package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatsync/config"
	"chatsync/storage"
	"chatsync/store"
	"chatsync/websocket"
)

// Shared handler dependencies, wired once from main.
var (
	userStore    *store.UserStore
	chatStore    *store.ChatStore
	messageStore *store.MessageStore
	contactStore *store.ContactStore
	blobStore    *storage.BlobStore // nil when CLOUDINARY_URL is unset
	wsManager    *websocket.Manager
	cfg          *config.Config
)

const fallbackAvatar = "https://upload.wikimedia.org/wikipedia/commons/8/89/Portrait_Placeholder.png"

type Deps struct {
	Users    *store.UserStore
	Chats    *store.ChatStore
	Messages *store.MessageStore
	Contacts *store.ContactStore
	Blobs    *storage.BlobStore
	WS       *websocket.Manager
	Config   *config.Config
}

func Init(d Deps) {
	userStore = d.Users
	chatStore = d.Chats
	messageStore = d.Messages
	contactStore = d.Contacts
	blobStore = d.Blobs
	wsManager = d.WS
	cfg = d.Config
}

// currentUserID pulls the authenticated user id set by the JWT middleware.
func currentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	userID, err := primitive.ObjectIDFromHex(c.GetString("userId"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user ID"})
		return primitive.NilObjectID, false
	}
	return userID, true
}

// abortWithStoreErr maps store sentinels to HTTP statuses.
func abortWithStoreErr(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, store.ErrEditRejected):
		c.JSON(http.StatusConflict, gin.H{"error": "Cannot edit a message that has already been read"})
	case errors.Is(err, store.ErrNotSender):
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the sender may do this"})
	case errors.Is(err, store.ErrInvalidOperation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid operation"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
