package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestPairKeyOrderIndependent(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()

	assert.Equal(t, PairKey(a, b), PairKey(b, a))
}

func TestPairKeyDistinctPairs(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()
	c := primitive.NewObjectID()

	assert.NotEqual(t, PairKey(a, b), PairKey(a, c))
	assert.NotEqual(t, PairKey(a, b), PairKey(b, c))
}

func TestPairKeyFormat(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()

	key := PairKey(a, b)
	parts := strings.Split(key, ":")
	assert.Len(t, parts, 2)
	assert.True(t, parts[0] <= parts[1], "key halves must be sorted")
	assert.Contains(t, []string{a.Hex(), b.Hex()}, parts[0])
	assert.Contains(t, []string{a.Hex(), b.Hex()}, parts[1])
}
