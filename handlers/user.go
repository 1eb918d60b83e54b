package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatsync/models"
)

func GetMyProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := userStore.Get(ctx, userID)
	if err != nil {
		abortWithStoreErr(c, err, "Failed to fetch profile")
		return
	}

	c.JSON(http.StatusOK, user)
}

func GetUser(c *gin.Context) {
	targetID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := userStore.Get(ctx, targetID)
	if err != nil {
		abortWithStoreErr(c, err, "Failed to fetch user")
		return
	}

	c.JSON(http.StatusOK, user)
}

// UpdateMyProfile accepts multipart form data: displayName and/or an avatar
// file. The avatar is uploaded first and only then referenced; if the profile
// write fails the blob is destroyed again.
func UpdateMyProfile(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	displayName := c.PostForm("displayName")

	avatarURL := ""
	avatarBlobID := ""
	avatarFile, _, err := c.Request.FormFile("avatar")
	if err == nil {
		defer avatarFile.Close()

		if blobStore == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "File storage not configured"})
			return
		}
		blob, err := blobStore.Upload(ctx, avatarFile, "chatsync/avatars", userID.Hex())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload avatar"})
			return
		}
		avatarURL = blob.URL
		avatarBlobID = blob.PublicID
	}

	if err := userStore.UpdateProfile(ctx, userID, displayName, avatarURL); err != nil {
		if avatarBlobID != "" {
			blobStore.Compensate(avatarBlobID)
		}
		abortWithStoreErr(c, err, "Failed to update profile")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Profile updated successfully"})
}

func UpdateUserStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
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

	if err := userStore.UpdateStatus(ctx, userID, req.Status); err != nil {
		abortWithStoreErr(c, err, "Failed to update status")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Status updated"})
}

func SearchUsers(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusOK, []models.User{})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	users, err := userStore.Search(ctx, userID, query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to search users"})
		return
	}

	c.JSON(http.StatusOK, users)
}

// SetTyping moves the caller's single typing pointer. Body carries the target
// chat id, or null/empty to clear. Setting chat X overwrites any previous
// target: a user is never typing in two chats at once.
func SetTyping(c *gin.Context) {
	var req struct {
		ChatID string `json:"chatId"`
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

	var target *primitive.ObjectID
	if req.ChatID != "" {
		chatID, err := primitive.ObjectIDFromHex(req.ChatID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chat ID"})
			return
		}
		target = &chatID
	}

	if err := userStore.SetTyping(ctx, userID, target); err != nil {
		abortWithStoreErr(c, err, "Failed to update typing status")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Typing status updated"})
}

// DeleteMyAccount removes the caller's user record. Chats and messages are
// left in place; peers reconcile through user delete events.
func DeleteMyAccount(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := userStore.Delete(ctx, userID); err != nil {
		abortWithStoreErr(c, err, "Failed to delete account")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Account deleted"})
}
