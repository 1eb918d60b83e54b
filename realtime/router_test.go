package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatsync/models"
)

// Dispatch and subscription routing run entirely in memory, so these tests
// exercise the fan-out without a database; the change streams themselves need
// a replica set and are not started here.

func newTestRouter() *Router {
	return NewRouter(nil, nil, nil)
}

func chatWith(participants ...primitive.ObjectID) models.Chat {
	return models.Chat{ID: primitive.NewObjectID(), Participants: participants}
}

func TestDispatchChatMembershipFilter(t *testing.T) {
	r := newTestRouter()

	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()
	carol := primitive.NewObjectID()

	aliceSub := r.SubscribeChats(alice)
	carolSub := r.SubscribeChats(carol)
	defer aliceSub.Cancel()
	defer carolSub.Cancel()

	chat := chatWith(alice, bob)
	r.DispatchChat(ChatEvent{Action: ActionCreate, ChatID: chat.ID, Record: chat})

	select {
	case ev := <-aliceSub.Events():
		assert.Equal(t, ActionCreate, ev.Action)
		assert.Equal(t, chat.ID, ev.ChatID)
	default:
		t.Fatal("participant did not receive the chat event")
	}

	select {
	case <-carolSub.Events():
		t.Fatal("non-participant received a chat event")
	default:
	}
}

func TestDispatchChatDeliversOncePerSubscriber(t *testing.T) {
	r := newTestRouter()

	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()
	sub := r.SubscribeChats(alice)
	defer sub.Cancel()

	chat := chatWith(alice, bob, alice) // duplicated participant must not double-deliver
	r.DispatchChat(ChatEvent{Action: ActionCreate, ChatID: chat.ID, Record: chat})

	assert.Len(t, sub.Events(), 1)
}

func TestDispatchChatDeleteUsesMembershipCache(t *testing.T) {
	r := newTestRouter()

	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()
	sub := r.SubscribeChats(alice)
	defer sub.Cancel()

	chat := chatWith(alice, bob)
	r.DispatchChat(ChatEvent{Action: ActionCreate, ChatID: chat.ID, Record: chat})
	<-sub.Events()

	// Delete events carry no record; membership comes from the cache.
	r.DispatchChat(ChatEvent{Action: ActionDelete, ChatID: chat.ID})

	select {
	case ev := <-sub.Events():
		assert.Equal(t, ActionDelete, ev.Action)
		assert.Equal(t, chat.ID, ev.ChatID)
	default:
		t.Fatal("participant did not receive the delete event")
	}

	// A second delete finds no cache entry and goes nowhere.
	r.DispatchChat(ChatEvent{Action: ActionDelete, ChatID: chat.ID})
	assert.Empty(t, sub.Events())
}

func TestDispatchMessagePerChatFilter(t *testing.T) {
	r := newTestRouter()

	chatA := primitive.NewObjectID()
	chatB := primitive.NewObjectID()

	subA := r.SubscribeMessages(chatA)
	subB := r.SubscribeMessages(chatB)
	defer subA.Cancel()
	defer subB.Cancel()

	msgID := primitive.NewObjectID()
	r.DispatchMessage(MessageEvent{
		Action:    ActionCreate,
		MessageID: msgID,
		ChatID:    chatA,
		Record:    models.Message{ID: msgID, ChatID: chatA},
	})

	select {
	case ev := <-subA.Events():
		assert.Equal(t, chatA, ev.ChatID)
		assert.Equal(t, msgID, ev.MessageID)
	default:
		t.Fatal("chat subscriber did not receive its message event")
	}

	select {
	case <-subB.Events():
		t.Fatal("subscriber for another chat received the event")
	default:
	}
}

func TestDispatchMessageFirehose(t *testing.T) {
	r := newTestRouter()

	// A zero chat id opts out of filtering.
	firehose := r.SubscribeMessages(primitive.NilObjectID)
	defer firehose.Cancel()

	for i := 0; i < 3; i++ {
		msgID := primitive.NewObjectID()
		r.DispatchMessage(MessageEvent{
			Action:    ActionCreate,
			MessageID: msgID,
			ChatID:    primitive.NewObjectID(),
			Record:    models.Message{ID: msgID},
		})
	}

	assert.Len(t, firehose.Events(), 3)
}

func TestDispatchMessageDeleteUsesChatCache(t *testing.T) {
	r := newTestRouter()

	chatID := primitive.NewObjectID()
	sub := r.SubscribeMessages(chatID)
	defer sub.Cancel()

	msgID := primitive.NewObjectID()
	r.DispatchMessage(MessageEvent{
		Action:    ActionCreate,
		MessageID: msgID,
		ChatID:    chatID,
		Record:    models.Message{ID: msgID, ChatID: chatID},
	})
	<-sub.Events()

	// The delete event arrives with a zero chat id, as the stream reports it.
	r.DispatchMessage(MessageEvent{Action: ActionDelete, MessageID: msgID})

	select {
	case ev := <-sub.Events():
		assert.Equal(t, ActionDelete, ev.Action)
		assert.Equal(t, chatID, ev.ChatID)
	default:
		t.Fatal("subscriber did not receive the delete event")
	}
}

func TestDispatchUserUnfiltered(t *testing.T) {
	r := newTestRouter()

	sub1 := r.SubscribeUsers()
	sub2 := r.SubscribeUsers()
	defer sub1.Cancel()
	defer sub2.Cancel()

	userID := primitive.NewObjectID()
	r.DispatchUser(UserEvent{Action: ActionUpdate, UserID: userID, Record: models.User{ID: userID}})

	for _, sub := range []*UserSubscription{sub1, sub2} {
		select {
		case ev := <-sub.Events():
			assert.Equal(t, userID, ev.UserID)
		default:
			t.Fatal("user subscriber missed the event")
		}
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	r := newTestRouter()

	alice := primitive.NewObjectID()
	sub := r.SubscribeChats(alice)
	sub.Cancel()
	sub.Cancel() // idempotent

	// Events channel is closed after Cancel.
	_, open := <-sub.Events()
	require.False(t, open)

	// Dispatching after cancel must not panic or deliver.
	chat := chatWith(alice)
	r.DispatchChat(ChatEvent{Action: ActionCreate, ChatID: chat.ID, Record: chat})
}

func TestDeleteCachesStayBounded(t *testing.T) {
	r := newTestRouter()

	for i := 0; i < maxCachedMessages+50; i++ {
		msgID := primitive.NewObjectID()
		r.DispatchMessage(MessageEvent{
			Action:    ActionCreate,
			MessageID: msgID,
			ChatID:    primitive.NewObjectID(),
			Record:    models.Message{ID: msgID},
		})
	}
	assert.LessOrEqual(t, len(r.msgChats), maxCachedMessages)

	for i := 0; i < maxCachedChats+50; i++ {
		chat := chatWith(primitive.NewObjectID())
		r.DispatchChat(ChatEvent{Action: ActionCreate, ChatID: chat.ID, Record: chat})
	}
	assert.LessOrEqual(t, len(r.chatMembers), maxCachedChats)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	r := newTestRouter()

	firehose := r.SubscribeMessages(primitive.NilObjectID)
	defer firehose.Cancel()

	for i := 0; i < subBuffer+10; i++ {
		msgID := primitive.NewObjectID()
		r.DispatchMessage(MessageEvent{
			Action:    ActionCreate,
			MessageID: msgID,
			ChatID:    primitive.NewObjectID(),
			Record:    models.Message{ID: msgID},
		})
	}

	// The buffer's worth arrived; the overflow was dropped, not blocked on.
	assert.Len(t, firehose.Events(), subBuffer)
}
