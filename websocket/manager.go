package websocket

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatsync/middleware"
	"chatsync/realtime"
	"chatsync/store"
)

// Manager keeps the per-user socket registry and bridges the realtime router
// into it. Each connected client gets its own membership-filtered chat
// subscription; message subscriptions are opened per chat on request, so a
// client only ever sees traffic for chats it asked about.
type Manager struct {
	router          *realtime.Router
	users           *store.UserStore
	typingThreshold time.Duration

	clients    map[primitive.ObjectID]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
}

func NewManager(router *realtime.Router, users *store.UserStore, typingThreshold time.Duration) *Manager {
	return &Manager{
		router:          router,
		users:           users,
		typingThreshold: typingThreshold,
		clients:         make(map[primitive.ObjectID]map[*Client]bool),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
	}
}

// Start runs the registry loop and the user-event broadcaster until ctx is
// cancelled.
func (m *Manager) Start(ctx context.Context) {
	userSub := m.router.SubscribeUsers()
	defer userSub.Cancel()

	for {
		select {
		case client := <-m.register:
			m.addClient(client)
			log.Printf("websocket: client registered, user=%s users=%d", client.userID.Hex(), m.ConnectedUsers())

		case client := <-m.unregister:
			m.removeClient(client)
			log.Printf("websocket: client unregistered, user=%s users=%d", client.userID.Hex(), m.ConnectedUsers())

		case ev := <-userSub.Events():
			m.broadcastUserEvent(ev)

		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) addClient(client *Client) {
	m.mu.Lock()
	if m.clients[client.userID] == nil {
		m.clients[client.userID] = make(map[*Client]bool)
	}
	m.clients[client.userID][client] = true
	m.mu.Unlock()

	// Every connection carries its own chat subscription so membership
	// filtering stays per-user.
	client.chatSub = m.router.SubscribeChats(client.userID)
	go client.forwardChatEvents()
}

func (m *Manager) removeClient(client *Client) {
	m.mu.Lock()
	if conns, ok := m.clients[client.userID]; ok {
		delete(conns, client)
		if len(conns) == 0 {
			delete(m.clients, client.userID)
		}
	}
	m.mu.Unlock()

	// Subscriptions stop producing first; only then does the send channel
	// close, so a forwarder mid-delivery cannot send on a closed channel.
	client.cancelSubscriptions()
	client.closeSend()
}

// broadcastUserEvent fans presence/typing changes out to every connected
// client. A typing pointer older than the staleness threshold is blanked
// before it leaves the process; the store never expires it on its own.
func (m *Manager) broadcastUserEvent(ev realtime.UserEvent) {
	if u := &ev.Record; u.TypingIn != nil && m.typingThreshold > 0 {
		if !u.IsTypingIn(*u.TypingIn, time.Now(), m.typingThreshold) {
			u.TypingIn = nil
			u.TypingAt = 0
		}
	}
	m.broadcast(envelope{Type: "user_event", Payload: ev})
}

type envelope struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

func (m *Manager) broadcast(env envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Printf("websocket: marshal broadcast: %v", err)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, conns := range m.clients {
		for client := range conns {
			client.enqueue(data)
		}
	}
}

// SendToUser delivers a payload to every connection of one user.
func (m *Manager) SendToUser(userID primitive.ObjectID, typ string, payload interface{}) {
	data, err := json.Marshal(envelope{Type: typ, Payload: payload})
	if err != nil {
		log.Printf("websocket: marshal send: %v", err)
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	for client := range m.clients[userID] {
		client.enqueue(data)
	}
}

// ConnectedUsers counts users with at least one open socket.
func (m *Manager) ConnectedUsers() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// IsConnected reports whether the user has at least one open socket.
func (m *Manager) IsConnected(userID primitive.ObjectID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients[userID]) > 0
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Handler upgrades an authenticated request into a registered client. The
// handshake carries the session token as a query parameter.
func Handler(m *Manager, jwtSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "Token required", http.StatusUnauthorized)
			return
		}

		claims, err := middleware.ParseToken(token, jwtSecret)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}
		userID, err := primitive.ObjectIDFromHex(claims.UserID)
		if err != nil {
			http.Error(w, "Invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("websocket: upgrade failed: %v", err)
			return
		}

		client := &Client{
			conn:    conn,
			userID:  userID,
			send:    make(chan []byte, 256),
			manager: m,
			msgSubs: make(map[primitive.ObjectID]*realtime.MessageSubscription),
		}

		m.register <- client

		welcome, _ := json.Marshal(envelope{Type: "connected", Payload: map[string]interface{}{
			"userId": userID.Hex(),
			"time":   time.Now().Unix(),
		}})
		client.enqueue(welcome)

		go client.writePump()
		go client.readPump()
	}
}
