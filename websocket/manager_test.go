package websocket

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatsync/models"
	"chatsync/realtime"
)

// The registry and broadcast paths run without a live socket; tests construct
// clients directly and read frames off their send channels.

func newTestManager(threshold time.Duration) *Manager {
	return NewManager(realtime.NewRouter(nil, nil, nil), nil, threshold)
}

func newTestClient(m *Manager, userID primitive.ObjectID) *Client {
	return &Client{
		userID:  userID,
		send:    make(chan []byte, 16),
		manager: m,
		msgSubs: make(map[primitive.ObjectID]*realtime.MessageSubscription),
	}
}

func recvEnvelope(t *testing.T, c *Client) envelope {
	t.Helper()
	select {
	case data := <-c.send:
		var env envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("no frame received")
		return envelope{}
	}
}

func TestBroadcastReachesAllClients(t *testing.T) {
	m := newTestManager(0)

	alice := newTestClient(m, primitive.NewObjectID())
	bob := newTestClient(m, primitive.NewObjectID())
	m.addClient(alice)
	m.addClient(bob)

	userID := primitive.NewObjectID()
	m.broadcastUserEvent(realtime.UserEvent{
		Action: realtime.ActionUpdate,
		UserID: userID,
		Record: models.User{ID: userID, Status: models.StatusOnline},
	})

	for _, c := range []*Client{alice, bob} {
		env := recvEnvelope(t, c)
		assert.Equal(t, "user_event", env.Type)
	}
}

func TestBroadcastBlanksStaleTyping(t *testing.T) {
	m := newTestManager(5 * time.Second)

	client := newTestClient(m, primitive.NewObjectID())
	m.addClient(client)

	chatID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	m.broadcastUserEvent(realtime.UserEvent{
		Action: realtime.ActionUpdate,
		UserID: userID,
		Record: models.User{
			ID:       userID,
			TypingIn: &chatID,
			TypingAt: time.Now().Add(-time.Minute).Unix(),
		},
	})

	env := recvEnvelope(t, client)
	payload, err := json.Marshal(env.Payload)
	require.NoError(t, err)

	var ev realtime.UserEvent
	require.NoError(t, json.Unmarshal(payload, &ev))
	assert.Nil(t, ev.Record.TypingIn, "stale typing pointer must not leave the process")
	assert.Zero(t, ev.Record.TypingAt)
}

func TestBroadcastKeepsFreshTyping(t *testing.T) {
	m := newTestManager(5 * time.Second)

	client := newTestClient(m, primitive.NewObjectID())
	m.addClient(client)

	chatID := primitive.NewObjectID()
	userID := primitive.NewObjectID()
	m.broadcastUserEvent(realtime.UserEvent{
		Action: realtime.ActionUpdate,
		UserID: userID,
		Record: models.User{
			ID:       userID,
			TypingIn: &chatID,
			TypingAt: time.Now().Unix(),
		},
	})

	env := recvEnvelope(t, client)
	payload, err := json.Marshal(env.Payload)
	require.NoError(t, err)

	var ev realtime.UserEvent
	require.NoError(t, json.Unmarshal(payload, &ev))
	require.NotNil(t, ev.Record.TypingIn)
	assert.Equal(t, chatID, *ev.Record.TypingIn)
}

func TestSendToUserTargetsOneUser(t *testing.T) {
	m := newTestManager(0)

	aliceID := primitive.NewObjectID()
	alice := newTestClient(m, aliceID)
	bob := newTestClient(m, primitive.NewObjectID())
	m.addClient(alice)
	m.addClient(bob)

	m.SendToUser(aliceID, "test", map[string]string{"hello": "there"})

	env := recvEnvelope(t, alice)
	assert.Equal(t, "test", env.Type)

	select {
	case <-bob.send:
		t.Fatal("frame delivered to the wrong user")
	default:
	}
}

func TestRemoveClientClosesSend(t *testing.T) {
	m := newTestManager(0)

	client := newTestClient(m, primitive.NewObjectID())
	m.addClient(client)
	assert.Equal(t, 1, m.ConnectedUsers())
	assert.True(t, m.IsConnected(client.userID))

	m.removeClient(client)
	assert.Equal(t, 0, m.ConnectedUsers())
	assert.False(t, m.IsConnected(client.userID))

	_, open := <-client.send
	assert.False(t, open)

	// Removing twice must not close the channel again.
	m.removeClient(client)
}

func TestEnqueueAfterRemoveIsSafe(t *testing.T) {
	m := newTestManager(0)

	client := newTestClient(m, primitive.NewObjectID())
	m.addClient(client)
	m.removeClient(client)

	// A frame still in flight when the client disconnects is dropped, never
	// sent on the closed channel.
	client.enqueue([]byte(`{"type":"test"}`))
}

func TestDisconnectDuringDispatchDoesNotPanic(t *testing.T) {
	m := newTestManager(0)

	userID := primitive.NewObjectID()
	client := newTestClient(m, userID)
	m.addClient(client)

	// Drain so the forwarder keeps delivering instead of dropping.
	done := make(chan struct{})
	go func() {
		for range client.send {
		}
		close(done)
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			chatID := primitive.NewObjectID()
			m.router.DispatchChat(realtime.ChatEvent{
				Action: realtime.ActionCreate,
				ChatID: chatID,
				Record: models.Chat{ID: chatID, Participants: []primitive.ObjectID{userID}},
			})
		}
	}()

	m.removeClient(client)
	wg.Wait()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("send channel never closed")
	}
}
