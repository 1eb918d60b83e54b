package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const testSecret = "test-secret"

func TestTokenRoundTrip(t *testing.T) {
	userID := primitive.NewObjectID().Hex()

	token, err := GenerateToken(userID, testSecret, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ParseToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken(primitive.NewObjectID().Hex(), testSecret, time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(token, "some-other-secret")
	assert.Error(t, err)
}

func TestParseTokenExpired(t *testing.T) {
	token, err := GenerateToken(primitive.NewObjectID().Hex(), testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(token, testSecret)
	assert.Error(t, err)
}

func TestParseTokenEmptyUserID(t *testing.T) {
	token, err := GenerateToken("", testSecret, time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(token, testSecret)
	assert.Error(t, err)
}

func TestParseTokenGarbage(t *testing.T) {
	_, err := ParseToken("not.a.token", testSecret)
	assert.Error(t, err)
}
