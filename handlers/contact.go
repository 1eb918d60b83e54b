package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatsync/models"
)

// AddContact saves another user to the caller's contact list. Adding someone
// who is already a contact is not an error; the existing entry comes back
// with a 200 instead of a 201.
func AddContact(c *gin.Context) {
	var req struct {
		UserID string `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	targetID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := userStore.Get(ctx, targetID); err != nil {
		abortWithStoreErr(c, err, "Failed to look up user")
		return
	}

	contact, already, err := contactStore.Add(ctx, userID, targetID)
	if err != nil {
		abortWithStoreErr(c, err, "Failed to add contact")
		return
	}

	status := http.StatusCreated
	message := "Contact added"
	if already {
		status = http.StatusOK
		message = "Contact already exists"
	}
	c.JSON(status, gin.H{"message": message, "contact": contact})
}

// DeleteContact removes a contact entry. Deleting a contact that does not
// exist succeeds; the end state is the same either way.
func DeleteContact(c *gin.Context) {
	targetID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := contactStore.Delete(ctx, userID, targetID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete contact"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Contact deleted"})
}

// GetContacts lists the caller's contacts with each contact's profile
// populated.
func GetContacts(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	contacts, err := contactStore.List(ctx, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch contacts"})
		return
	}

	ids := make([]primitive.ObjectID, 0, len(contacts))
	for _, ct := range contacts {
		ids = append(ids, ct.ContactUser)
	}

	users, err := userStore.GetMany(ctx, ids)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch contact profiles"})
		return
	}

	byID := make(map[primitive.ObjectID]*models.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}
	for i := range contacts {
		contacts[i].User = byID[contacts[i].ContactUser]
	}

	c.JSON(http.StatusOK, contacts)
}
