package store

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func searchPattern(t *testing.T, filter bson.M) primitive.Regex {
	t.Helper()
	clause, ok := filter["displayName"].(bson.M)
	require.True(t, ok, "expected a displayName clause")
	re, ok := clause["$regex"].(primitive.Regex)
	require.True(t, ok, "expected a regex match")
	return re
}

func TestSearchFilterExcludesSelf(t *testing.T) {
	self := primitive.NewObjectID()

	filter := searchFilter(self, "alice")
	assert.Equal(t, bson.M{"$ne": self}, filter["_id"])
}

func TestSearchFilterDisplayNameSubstring(t *testing.T) {
	filter := searchFilter(primitive.NewObjectID(), "alice")

	re := searchPattern(t, filter)
	assert.Equal(t, "alice", re.Pattern)
	assert.Equal(t, "i", re.Options)
	assert.NotContains(t, filter, "email")
}

func TestSearchFilterEscapesMetacharacters(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"plus", "a+b"},
		{"open paren", "("},
		{"dot star", "c.*d"},
		{"brackets", "[team]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := searchFilter(primitive.NewObjectID(), tt.query)

			re := searchPattern(t, filter)
			assert.Equal(t, regexp.QuoteMeta(tt.query), re.Pattern)

			// The escaped pattern must compile and match the literal query.
			compiled, err := regexp.Compile(re.Pattern)
			require.NoError(t, err)
			assert.True(t, compiled.MatchString(tt.query))
		})
	}
}

func TestSearchFilterEmailQueryIsExact(t *testing.T) {
	filter := searchFilter(primitive.NewObjectID(), "bob@example.com")

	assert.Equal(t, "bob@example.com", filter["email"])
	assert.NotContains(t, filter, "displayName")
}
