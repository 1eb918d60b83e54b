package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"chatsync/realtime"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
)

type Client struct {
	conn    *websocket.Conn
	userID  primitive.ObjectID
	send    chan []byte
	manager *Manager

	// sendMu orders enqueue against closeSend: the forwarder goroutines keep
	// producing until their subscriptions drain, so a frame in flight during
	// disconnect must never hit a closed channel.
	sendMu sync.Mutex
	closed bool

	chatSub *realtime.ChatSubscription

	subMu   sync.Mutex
	msgSubs map[primitive.ObjectID]*realtime.MessageSubscription
}

func (c *Client) enqueue(data []byte) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		// Slow consumer; the socket's ping/pong cycle will reap it.
		log.Printf("websocket: dropping frame for user %s", c.userID.Hex())
	}
}

// closeSend shuts the send channel exactly once. Safe against concurrent
// enqueue; callers must cancel the client's subscriptions first.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Client) forwardChatEvents() {
	for ev := range c.chatSub.Events() {
		data, err := json.Marshal(envelope{Type: "chat_event", Payload: ev})
		if err != nil {
			log.Printf("websocket: marshal chat event: %v", err)
			continue
		}
		c.enqueue(data)
	}
}

func (c *Client) forwardMessageEvents(sub *realtime.MessageSubscription) {
	for ev := range sub.Events() {
		data, err := json.Marshal(envelope{Type: "message_event", Payload: ev})
		if err != nil {
			log.Printf("websocket: marshal message event: %v", err)
			continue
		}
		c.enqueue(data)
	}
}

func (c *Client) cancelSubscriptions() {
	if c.chatSub != nil {
		c.chatSub.Cancel()
	}
	c.subMu.Lock()
	for _, sub := range c.msgSubs {
		sub.Cancel()
	}
	c.msgSubs = make(map[primitive.ObjectID]*realtime.MessageSubscription)
	c.subMu.Unlock()
}

type inbound struct {
	Type    string `json:"type"`
	Payload struct {
		ChatID string `json:"chatId"`
	} `json:"payload"`
}

func (c *Client) readPump() {
	defer func() {
		c.manager.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket: read error: %v", err)
			}
			break
		}

		var msg inbound
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Printf("websocket: unmarshal client frame: %v", err)
			continue
		}

		switch msg.Type {
		case "subscribe_chat":
			c.handleSubscribeChat(msg.Payload.ChatID)
		case "unsubscribe_chat":
			c.handleUnsubscribeChat(msg.Payload.ChatID)
		case "typing_start":
			c.handleTyping(msg.Payload.ChatID)
		case "typing_end":
			c.handleTyping("")
		case "ping":
			c.sendPong()
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleSubscribeChat opens a per-chat message subscription for this
// connection. Subscribing twice to the same chat is a no-op.
func (c *Client) handleSubscribeChat(chatIDStr string) {
	chatID, err := primitive.ObjectIDFromHex(chatIDStr)
	if err != nil {
		return
	}

	c.subMu.Lock()
	if _, ok := c.msgSubs[chatID]; ok {
		c.subMu.Unlock()
		return
	}
	sub := c.manager.router.SubscribeMessages(chatID)
	c.msgSubs[chatID] = sub
	c.subMu.Unlock()

	go c.forwardMessageEvents(sub)

	data, _ := json.Marshal(envelope{Type: "chat_subscribed", Payload: map[string]string{
		"chatId": chatID.Hex(),
	}})
	c.enqueue(data)
}

func (c *Client) handleUnsubscribeChat(chatIDStr string) {
	chatID, err := primitive.ObjectIDFromHex(chatIDStr)
	if err != nil {
		return
	}

	c.subMu.Lock()
	sub, ok := c.msgSubs[chatID]
	delete(c.msgSubs, chatID)
	c.subMu.Unlock()

	if ok {
		sub.Cancel()
	}
}

// handleTyping moves the user's single typing pointer; an empty chat id
// clears it.
func (c *Client) handleTyping(chatIDStr string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var target *primitive.ObjectID
	if chatIDStr != "" {
		chatID, err := primitive.ObjectIDFromHex(chatIDStr)
		if err != nil {
			return
		}
		target = &chatID
	}

	if err := c.manager.users.SetTyping(ctx, c.userID, target); err != nil {
		log.Printf("websocket: set typing: %v", err)
	}
}

func (c *Client) sendPong() {
	data, _ := json.Marshal(envelope{Type: "pong", Payload: map[string]int64{
		"time": time.Now().Unix(),
	}})
	c.enqueue(data)
}
