package realtime

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chatsync/models"
)

// subBuffer is the per-subscription channel depth. A subscriber that falls
// this far behind starts losing events, same as a slow websocket client.
const subBuffer = 64

// Caps for the delete-event caches. Past the cap an arbitrary entry is
// evicted; a delete for an evicted record is then dropped, the same as one
// for a record that predates this process.
const (
	maxCachedChats    = 4096
	maxCachedMessages = 16384
)

// Router consumes the per-collection change streams and fans filtered events
// out to subscribers. The store gives one global stream per collection, not a
// per-query one, so all membership filtering happens here, client-side:
//
//   - chat events reach a subscriber only if that subscriber's user is among
//     the record's participants;
//   - message events are filtered by chat id (opt-out via an empty chat id,
//     which restores the unfiltered firehose);
//   - user events are delivered to every user subscriber.
//
// Each collection has its own owned stream handle; stopping one does not
// affect the others. Events are delivered in per-record commit order; there is
// no ordering guarantee across collections.
type Router struct {
	chats    *mongo.Collection
	messages *mongo.Collection
	users    *mongo.Collection

	mu       sync.RWMutex
	chatSubs map[string]*ChatSubscription
	msgSubs  map[string]*MessageSubscription
	userSubs map[string]*UserSubscription

	// Delete events carry only the record id, so membership and chat
	// ownership for them come from these caches, filled by earlier
	// create/update events.
	chatMembers map[primitive.ObjectID][]primitive.ObjectID
	msgChats    map[primitive.ObjectID]primitive.ObjectID

	streams map[string]*streamHandle
}

type streamHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRouter(chats, messages, users *mongo.Collection) *Router {
	return &Router{
		chats:       chats,
		messages:    messages,
		users:       users,
		chatSubs:    make(map[string]*ChatSubscription),
		msgSubs:     make(map[string]*MessageSubscription),
		userSubs:    make(map[string]*UserSubscription),
		chatMembers: make(map[primitive.ObjectID][]primitive.ObjectID),
		msgChats:    make(map[primitive.ObjectID]primitive.ObjectID),
		streams:     make(map[string]*streamHandle),
	}
}

// Start opens the three collection streams. Each runs until Stop (or the
// parent context) cancels it; a stream error is terminal for that stream and
// logged, never retried here.
func (r *Router) Start(ctx context.Context) error {
	if err := r.startStream(ctx, "chats", r.chats, r.handleChatChange); err != nil {
		return err
	}
	if err := r.startStream(ctx, "messages", r.messages, r.handleMessageChange); err != nil {
		r.Stop()
		return err
	}
	if err := r.startStream(ctx, "users", r.users, r.handleUserChange); err != nil {
		r.Stop()
		return err
	}
	return nil
}

// Stop cancels every collection stream and waits for the watch loops to exit.
func (r *Router) Stop() {
	r.mu.Lock()
	handles := r.streams
	r.streams = make(map[string]*streamHandle)
	r.mu.Unlock()

	for _, h := range handles {
		h.cancel()
	}
	for _, h := range handles {
		<-h.done
	}
}

// StopCollection cancels a single collection's stream, leaving the others
// running.
func (r *Router) StopCollection(name string) {
	r.mu.Lock()
	h, ok := r.streams[name]
	delete(r.streams, name)
	r.mu.Unlock()
	if ok {
		h.cancel()
		<-h.done
	}
}

func (r *Router) startStream(ctx context.Context, name string, coll *mongo.Collection, handle func(*mongo.ChangeStream)) error {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	streamCtx, cancel := context.WithCancel(ctx)

	cs, err := coll.Watch(streamCtx, mongo.Pipeline{}, opts)
	if err != nil {
		cancel()
		return err
	}

	h := &streamHandle{cancel: cancel, done: make(chan struct{})}
	r.mu.Lock()
	r.streams[name] = h
	r.mu.Unlock()

	go func() {
		defer close(h.done)
		defer cs.Close(context.Background())
		for cs.Next(streamCtx) {
			handle(cs)
		}
		if err := cs.Err(); err != nil && streamCtx.Err() == nil {
			log.Printf("realtime: %s stream closed: %v", name, err)
		}
	}()
	return nil
}

// evictOne removes an arbitrary entry to keep a cache at its cap.
func evictOne[V any](m map[primitive.ObjectID]V) {
	for k := range m {
		delete(m, k)
		return
	}
}

func toAction(op string) (Action, bool) {
	switch op {
	case "insert":
		return ActionCreate, true
	case "update", "replace":
		return ActionUpdate, true
	case "delete":
		return ActionDelete, true
	}
	return "", false
}

func (r *Router) handleChatChange(cs *mongo.ChangeStream) {
	var change struct {
		OperationType string `bson:"operationType"`
		DocumentKey   struct {
			ID primitive.ObjectID `bson:"_id"`
		} `bson:"documentKey"`
		FullDocument *models.Chat `bson:"fullDocument"`
	}
	if err := cs.Decode(&change); err != nil {
		log.Printf("realtime: decode chat change: %v", err)
		return
	}
	action, ok := toAction(change.OperationType)
	if !ok {
		return
	}

	ev := ChatEvent{Action: action, ChatID: change.DocumentKey.ID}
	if change.FullDocument != nil {
		ev.Record = *change.FullDocument
	}
	r.DispatchChat(ev)
}

func (r *Router) handleMessageChange(cs *mongo.ChangeStream) {
	var change struct {
		OperationType string `bson:"operationType"`
		DocumentKey   struct {
			ID primitive.ObjectID `bson:"_id"`
		} `bson:"documentKey"`
		FullDocument *models.Message `bson:"fullDocument"`
	}
	if err := cs.Decode(&change); err != nil {
		log.Printf("realtime: decode message change: %v", err)
		return
	}
	action, ok := toAction(change.OperationType)
	if !ok {
		return
	}

	ev := MessageEvent{Action: action, MessageID: change.DocumentKey.ID}
	if change.FullDocument != nil {
		ev.Record = *change.FullDocument
		ev.ChatID = change.FullDocument.ChatID
	}
	r.DispatchMessage(ev)
}

func (r *Router) handleUserChange(cs *mongo.ChangeStream) {
	var change struct {
		OperationType string `bson:"operationType"`
		DocumentKey   struct {
			ID primitive.ObjectID `bson:"_id"`
		} `bson:"documentKey"`
		FullDocument *models.User `bson:"fullDocument"`
	}
	if err := cs.Decode(&change); err != nil {
		log.Printf("realtime: decode user change: %v", err)
		return
	}
	action, ok := toAction(change.OperationType)
	if !ok {
		return
	}

	ev := UserEvent{Action: action, UserID: change.DocumentKey.ID}
	if change.FullDocument != nil {
		ev.Record = *change.FullDocument
	}
	r.DispatchUser(ev)
}

// DispatchChat applies the membership filter and delivers the event to every
// chat subscriber whose user participates in the chat. Deletes fall back on
// the membership cache; a chat this process never saw is dropped.
func (r *Router) DispatchChat(ev ChatEvent) {
	r.mu.Lock()
	var participants []primitive.ObjectID
	if ev.Action == ActionDelete {
		participants = r.chatMembers[ev.ChatID]
		delete(r.chatMembers, ev.ChatID)
	} else {
		participants = ev.Record.Participants
		if _, ok := r.chatMembers[ev.ChatID]; !ok && len(r.chatMembers) >= maxCachedChats {
			evictOne(r.chatMembers)
		}
		r.chatMembers[ev.ChatID] = participants
	}

	// Delivery happens under the lock; sends are non-blocking, and it keeps
	// Cancel's close from racing a send.
	for _, sub := range r.chatSubs {
		for _, p := range participants {
			if p == sub.userID {
				sub.deliver(ev)
				break
			}
		}
	}
	r.mu.Unlock()
}

// DispatchMessage applies the per-chat filter. Subscribers with a zero chat id
// asked for the firehose and get every event.
func (r *Router) DispatchMessage(ev MessageEvent) {
	r.mu.Lock()
	if ev.Action == ActionDelete {
		ev.ChatID = r.msgChats[ev.MessageID]
		delete(r.msgChats, ev.MessageID)
	} else {
		if _, ok := r.msgChats[ev.MessageID]; !ok && len(r.msgChats) >= maxCachedMessages {
			evictOne(r.msgChats)
		}
		r.msgChats[ev.MessageID] = ev.ChatID
	}

	for _, sub := range r.msgSubs {
		if sub.chatID.IsZero() || sub.chatID == ev.ChatID {
			sub.deliver(ev)
		}
	}
	r.mu.Unlock()
}

// DispatchUser delivers to all user subscribers, unfiltered.
func (r *Router) DispatchUser(ev UserEvent) {
	r.mu.RLock()
	for _, sub := range r.userSubs {
		sub.deliver(ev)
	}
	r.mu.RUnlock()
}

type ChatSubscription struct {
	id     string
	userID primitive.ObjectID
	ch     chan ChatEvent
	router *Router
	once   sync.Once
}

// SubscribeChats registers a membership-filtered chat subscription for userID.
func (r *Router) SubscribeChats(userID primitive.ObjectID) *ChatSubscription {
	sub := &ChatSubscription{
		id:     uuid.New().String(),
		userID: userID,
		ch:     make(chan ChatEvent, subBuffer),
		router: r,
	}
	r.mu.Lock()
	r.chatSubs[sub.id] = sub
	r.mu.Unlock()
	return sub
}

func (s *ChatSubscription) Events() <-chan ChatEvent { return s.ch }

func (s *ChatSubscription) Cancel() {
	s.once.Do(func() {
		s.router.mu.Lock()
		delete(s.router.chatSubs, s.id)
		s.router.mu.Unlock()
		close(s.ch)
	})
}

func (s *ChatSubscription) deliver(ev ChatEvent) {
	select {
	case s.ch <- ev:
	default:
		log.Printf("realtime: dropping chat event for slow subscriber %s", s.id)
	}
}

type MessageSubscription struct {
	id     string
	chatID primitive.ObjectID
	ch     chan MessageEvent
	router *Router
	once   sync.Once
}

// SubscribeMessages registers a message subscription scoped to chatID. A zero
// chatID disables the filter and delivers every message event in the store,
// which matches the original unfiltered behavior.
func (r *Router) SubscribeMessages(chatID primitive.ObjectID) *MessageSubscription {
	sub := &MessageSubscription{
		id:     uuid.New().String(),
		chatID: chatID,
		ch:     make(chan MessageEvent, subBuffer),
		router: r,
	}
	r.mu.Lock()
	r.msgSubs[sub.id] = sub
	r.mu.Unlock()
	return sub
}

func (s *MessageSubscription) Events() <-chan MessageEvent { return s.ch }

func (s *MessageSubscription) Cancel() {
	s.once.Do(func() {
		s.router.mu.Lock()
		delete(s.router.msgSubs, s.id)
		s.router.mu.Unlock()
		close(s.ch)
	})
}

func (s *MessageSubscription) deliver(ev MessageEvent) {
	select {
	case s.ch <- ev:
	default:
		log.Printf("realtime: dropping message event for slow subscriber %s", s.id)
	}
}

type UserSubscription struct {
	id     string
	ch     chan UserEvent
	router *Router
	once   sync.Once
}

// SubscribeUsers registers an unfiltered user subscription.
func (r *Router) SubscribeUsers() *UserSubscription {
	sub := &UserSubscription{
		id:     uuid.New().String(),
		ch:     make(chan UserEvent, subBuffer),
		router: r,
	}
	r.mu.Lock()
	r.userSubs[sub.id] = sub
	r.mu.Unlock()
	return sub
}

func (s *UserSubscription) Events() <-chan UserEvent { return s.ch }

func (s *UserSubscription) Cancel() {
	s.once.Do(func() {
		s.router.mu.Lock()
		delete(s.router.userSubs, s.id)
		s.router.mu.Unlock()
		close(s.ch)
	})
}

func (s *UserSubscription) deliver(ev UserEvent) {
	select {
	case s.ch <- ev:
	default:
		log.Printf("realtime: dropping user event for slow subscriber %s", s.id)
	}
}
