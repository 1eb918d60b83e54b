package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatsync/models"
	"chatsync/store"
)

// GetMessages returns a chat's full history, oldest first, with a resolved
// sender profile on each message.
func GetMessages(c *gin.Context) {
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
		abortWithStoreErr(c, err, "Failed to verify chat access")
		return
	}
	if !chat.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied to chat"})
		return
	}

	messages, err := messageStore.ListByChat(ctx, chatID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}

	senderIDs := make([]primitive.ObjectID, 0, len(chat.Participants))
	senderIDs = append(senderIDs, chat.Participants...)
	senders, err := userStore.GetMany(ctx, senderIDs)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sender profiles"})
		return
	}
	byID := make(map[primitive.ObjectID]*models.User, len(senders))
	for i := range senders {
		byID[senders[i].ID] = &senders[i]
	}

	response := make([]gin.H, len(messages))
	for i := range messages {
		response[i] = messageResponse(&messages[i], byID[messages[i].SenderID])
	}

	c.JSON(http.StatusOK, response)
}

// SendMessage creates a message in a chat. The body is multipart form data so
// an attachment can ride along: the file is uploaded first, and if the
// message insert then fails the blob is destroyed again.
func SendMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	chatID, err := primitive.ObjectIDFromHex(c.PostForm("chatId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid chat ID"})
		return
	}

	content := c.PostForm("content")

	var replyToID *primitive.ObjectID
	if raw := c.PostForm("replyToId"); raw != "" {
		id, err := primitive.ObjectIDFromHex(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid reply target ID"})
			return
		}
		replyToID = &id
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	chat, err := chatStore.Get(ctx, chatID)
	if err != nil {
		abortWithStoreErr(c, err, "Failed to verify chat access")
		return
	}
	if !chat.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied to chat"})
		return
	}

	if replyToID != nil {
		parent, err := messageStore.Get(ctx, *replyToID)
		if err != nil || parent.ChatID != chatID {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Reply target is not in this chat"})
			return
		}
	}

	params := store.CreateParams{
		ChatID:    chatID,
		SenderID:  userID,
		Content:   content,
		Type:      models.MessageTypeText,
		ReplyToID: replyToID,
	}

	file, header, err := c.Request.FormFile("file")
	if err == nil {
		defer file.Close()

		if blobStore == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "File storage not configured"})
			return
		}
		blob, err := blobStore.Upload(ctx, file, "chatsync/attachments", uuid.NewString())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file"})
			return
		}
		params.Type = models.MessageTypeFile
		params.FileURL = blob.URL
		params.FileID = blob.PublicID
		params.FileName = header.Filename
	}

	if content == "" && params.FileURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message needs content or a file"})
		return
	}

	message, err := messageStore.Create(ctx, params)
	if err != nil {
		if params.FileID != "" {
			blobStore.Compensate(params.FileID)
		}
		abortWithStoreErr(c, err, "Failed to send message")
		return
	}

	preview := message.Content
	if preview == "" {
		preview = "Sent a file"
	}
	if err := chatStore.TouchLastMessage(ctx, chatID, preview, message.CreatedAt); err != nil {
		// Not critical, the message itself is saved.
		log.Printf("Update chat lastMessage error: %v", err)
	}

	go notifyRecipients(chat, userID, preview)

	c.JSON(http.StatusCreated, gin.H{
		"message": "Message sent",
		"id":      message.ID.Hex(),
	})
}

// EditMessage rewrites a message's content. Only the sender may edit, and
// only while no one has read the message yet.
func EditMessage(c *gin.Context) {
	messageID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message ID"})
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
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

	if err := messageStore.Edit(ctx, messageID, userID, req.Content); err != nil {
		abortWithStoreErr(c, err, "Failed to edit message")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Message updated"})
}

// MarkChatRead marks every unread message from other senders in a chat as
// read by the caller.
func MarkChatRead(c *gin.Context) {
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
		abortWithStoreErr(c, err, "Failed to verify chat access")
		return
	}
	if !chat.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied to chat"})
		return
	}

	updated, err := messageStore.MarkChatRead(ctx, chatID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark as read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Marked as read",
		"updatedCount": updated,
	})
}

// MarkMessageRead marks a single message as read by the caller. Re-marking is
// a no-op, not an error.
func MarkMessageRead(c *gin.Context) {
	messageID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message ID"})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := requireMessageAccess(ctx, c, messageID, userID); err != nil {
		return
	}

	if err := messageStore.MarkRead(ctx, messageID, userID); err != nil {
		abortWithStoreErr(c, err, "Failed to mark as read")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Marked as read"})
}

// ReactToMessage toggles the caller's reaction. Sending the emoji the message
// already carries clears it; sending a different one replaces it.
func ReactToMessage(c *gin.Context) {
	messageID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message ID"})
		return
	}

	var req struct {
		Emoji string `json:"emoji" binding:"required"`
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

	if err := requireMessageAccess(ctx, c, messageID, userID); err != nil {
		return
	}

	reaction, err := messageStore.React(ctx, messageID, req.Emoji)
	if err != nil {
		abortWithStoreErr(c, err, "Failed to update reaction")
		return
	}

	c.JSON(http.StatusOK, gin.H{"reaction": reaction})
}

// ForwardMessage copies a message into another chat the caller belongs to.
// The copy is flagged as forwarded and never carries a reply reference.
func ForwardMessage(c *gin.Context) {
	messageID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message ID"})
		return
	}

	var req struct {
		ChatID string `json:"chatId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	targetChatID, err := primitive.ObjectIDFromHex(req.ChatID)
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

	src, err := messageStore.Get(ctx, messageID)
	if err != nil {
		abortWithStoreErr(c, err, "Failed to fetch message")
		return
	}

	srcChat, err := chatStore.Get(ctx, src.ChatID)
	if err != nil || !srcChat.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied to chat"})
		return
	}

	target, err := chatStore.Get(ctx, targetChatID)
	if err != nil {
		abortWithStoreErr(c, err, "Failed to fetch target chat")
		return
	}
	if !target.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied to chat"})
		return
	}

	forwarded, err := messageStore.Forward(ctx, src, targetChatID, userID)
	if err != nil {
		abortWithStoreErr(c, err, "Failed to forward message")
		return
	}

	preview := forwarded.Content
	if preview == "" {
		preview = "Sent a file"
	}
	if err := chatStore.TouchLastMessage(ctx, targetChatID, preview, forwarded.CreatedAt); err != nil {
		log.Printf("Update chat lastMessage error: %v", err)
	}

	go notifyRecipients(target, userID, preview)

	c.JSON(http.StatusCreated, gin.H{
		"message": "Message forwarded",
		"id":      forwarded.ID.Hex(),
	})
}

// DeleteMessage removes a message. Only the sender may delete; attached files
// are destroyed after the record is gone.
func DeleteMessage(c *gin.Context) {
	messageID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message ID"})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	deleted, err := messageStore.Delete(ctx, messageID, userID)
	if err != nil {
		abortWithStoreErr(c, err, "Failed to delete message")
		return
	}

	if deleted.FileID != "" && blobStore != nil {
		// Forwarded copies share the source's blob; destroy it only when no
		// message references it anymore.
		refs, err := messageStore.CountByFileID(ctx, deleted.FileID)
		if err == nil && refs == 0 {
			blobStore.Compensate(deleted.FileID)
		}
	}

	c.JSON(http.StatusOK, gin.H{"message": "Message deleted"})
}

// requireMessageAccess verifies the caller belongs to the message's chat,
// writing the error response itself when they don't.
func requireMessageAccess(ctx context.Context, c *gin.Context, messageID, userID primitive.ObjectID) error {
	msg, err := messageStore.Get(ctx, messageID)
	if err != nil {
		abortWithStoreErr(c, err, "Failed to fetch message")
		return err
	}
	chat, err := chatStore.Get(ctx, msg.ChatID)
	if err != nil {
		abortWithStoreErr(c, err, "Failed to verify chat access")
		return err
	}
	if !chat.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied to chat"})
		return errors.New("access denied")
	}
	return nil
}

func messageResponse(m *models.Message, sender *models.User) gin.H {
	senderMap := gin.H{
		"id":     m.SenderID.Hex(),
		"name":   "Unknown",
		"avatar": fallbackAvatar,
	}
	if sender != nil {
		if sender.DisplayName != "" {
			senderMap["name"] = sender.DisplayName
		}
		if sender.Avatar != "" {
			senderMap["avatar"] = sender.Avatar
		}
	}

	resp := gin.H{
		"id":          m.ID.Hex(),
		"chatId":      m.ChatID.Hex(),
		"senderId":    m.SenderID.Hex(),
		"sender":      senderMap,
		"content":     m.Content,
		"type":        m.Type,
		"isRead":      m.IsRead,
		"isEdited":    m.IsEdited,
		"reaction":    m.Reaction,
		"isForwarded": m.IsForwarded,
		"createdAt":   m.CreatedAt,
	}
	if m.FileURL != "" {
		resp["fileUrl"] = m.FileURL
		resp["fileName"] = m.FileName
	}
	if m.ReplyToID != nil {
		resp["replyToId"] = m.ReplyToID.Hex()
	}
	return resp
}

// notifyRecipients pushes a new-message notification to every participant
// except the sender. Runs in its own goroutine; failures only log.
func notifyRecipients(chat *models.Chat, senderID primitive.ObjectID, preview string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	senderName := ""
	if sender, err := userStore.Get(ctx, senderID); err == nil {
		senderName = sender.DisplayName
	}

	for _, participantID := range chat.Participants {
		if participantID == senderID {
			continue
		}
		// A live socket already carries the message event; push is for
		// everyone else.
		if wsManager != nil && wsManager.IsConnected(participantID) {
			continue
		}
		SendMessagePush(participantID, preview, senderName)
	}
}
