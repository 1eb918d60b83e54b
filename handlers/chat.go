package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatsync/models"
)

// GetChatList returns the caller's chats, most recently active first, with a
// resolved partner profile for direct chats.
func GetChatList(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	chats, err := chatStore.ListForUser(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch chats"})
		return
	}

	response := make([]gin.H, len(chats))
	for i := range chats {
		response[i] = chatResponse(ctx, &chats[i], userID)
	}

	c.JSON(http.StatusOK, response)
}

// ResolveChat finds or creates the 1:1 chat with the given user. Repeated
// calls for the same pair return the same chat.
func ResolveChat(c *gin.Context) {
	var req struct {
		OtherUserID string `json:"otherUserId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	otherID, err := primitive.ObjectIDFromHex(req.OtherUserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	chat, err := chatStore.ResolveDirect(ctx, userID, otherID)
	if err != nil {
		abortWithStoreErr(c, err, "Failed to resolve chat")
		return
	}

	c.JSON(http.StatusOK, chatResponse(ctx, chat, userID))
}

// CreateGroup creates a new group chat. Groups never dedupe; every call makes
// a fresh chat.
func CreateGroup(c *gin.Context) {
	var req struct {
		MemberIDs []string `json:"memberIds" binding:"required,min=1"`
		Name      string   `json:"name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	memberIDs := make([]primitive.ObjectID, 0, len(req.MemberIDs))
	for _, m := range req.MemberIDs {
		id, err := primitive.ObjectIDFromHex(m)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid member ID"})
			return
		}
		memberIDs = append(memberIDs, id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	chat, err := chatStore.CreateGroup(ctx, userID, memberIDs, req.Name, "")
	if err != nil {
		abortWithStoreErr(c, err, "Failed to create group")
		return
	}

	c.JSON(http.StatusCreated, chatResponse(ctx, chat, userID))
}

func GetChat(c *gin.Context) {
	chatID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chat ID"})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	chat, err := chatStore.Get(ctx, chatID)
	if err != nil {
		abortWithStoreErr(c, err, "Failed to fetch chat")
		return
	}
	if !chat.HasParticipant(userID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Chat not found or access denied"})
		return
	}

	c.JSON(http.StatusOK, chatResponse(ctx, chat, userID))
}

func DeleteChat(c *gin.Context) {
	chatID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chat ID"})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := chatStore.Delete(ctx, chatID, userID); err != nil {
		abortWithStoreErr(c, err, "Failed to delete chat")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Chat deleted"})
}

// UpdateGroup edits group name; participant-only.
func UpdateGroup(c *gin.Context) {
	chatID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chat ID"})
		return
	}

	var req struct {
		Name string `json:"name"`
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

	if err := chatStore.UpdateGroupMeta(ctx, chatID, userID, req.Name, ""); err != nil {
		abortWithStoreErr(c, err, "Failed to update group")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Group updated"})
}

// chatResponse shapes a chat for the client: for direct chats the other
// participant's profile rides along as "partner", with fallbacks so the field
// is never null.
func chatResponse(ctx context.Context, chat *models.Chat, selfID primitive.ObjectID) gin.H {
	resp := gin.H{
		"id":              chat.ID.Hex(),
		"participants":    chat.Participants,
		"isGroup":         chat.IsGroup,
		"lastMessage":     chat.LastMessage,
		"lastMessageTime": chat.LastMessageTime,
	}
	if chat.IsGroup {
		resp["groupName"] = chat.GroupName
		resp["groupAvatar"] = chat.GroupAvatar
		return resp
	}

	partner := gin.H{
		"id":     "",
		"name":   "Unknown",
		"avatar": fallbackAvatar,
		"status": models.StatusOffline,
	}
	for _, p := range chat.Participants {
		if p == selfID {
			continue
		}
		if user, err := userStore.Get(ctx, p); err == nil {
			partner["id"] = user.ID.Hex()
			if user.DisplayName != "" {
				partner["name"] = user.DisplayName
			}
			if user.Avatar != "" {
				partner["avatar"] = user.Avatar
			}
			if user.Status != "" {
				partner["status"] = user.Status
			}
		}
		break
	}
	resp["partner"] = partner
	return resp
}
