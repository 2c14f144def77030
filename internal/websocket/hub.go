package websocket

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Feed topics. TopicAll receives every published message.
const (
	TopicAll      = "all"
	TopicLogin    = "login"
	TopicRegister = "register"
)

// ValidTopic reports whether topic can be subscribed to.
func ValidTopic(topic string) bool {
	switch topic {
	case TopicAll, TopicLogin, TopicRegister:
		return true
	}
	return false
}

// EventTopic maps an event type such as "user.login.success" to its topic.
func EventTopic(eventType string) string {
	parts := strings.Split(eventType, ".")
	if len(parts) >= 2 && ValidTopic(parts[1]) {
		return parts[1]
	}
	return TopicAll
}

type envelope struct {
	topic  string
	client *Client
	data   []byte
}

// Hub maintains the set of active clients and broadcasts messages to them.
// All client bookkeeping happens on the Run goroutine.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// A map of topics to the set of clients subscribed to it.
	subscriptions map[string]map[*Client]bool

	broadcast  chan envelope
	direct     chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	count atomic.Int64
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
		broadcast:     make(chan envelope, 64),
		direct:        make(chan envelope, 16),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		done:          make(chan struct{}),
	}
}

// Run starts the Hub's message processing loop. It returns when ctx is
// cancelled, closing every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			log.Info().Msg("Websocket hub stopped")
			return
		case client := <-h.register:
			h.clients[client] = true
			h.addSubscription(client, client.Topic)
			h.count.Store(int64(len(h.clients)))
			log.Info().Str("topic", client.Topic).Int("total_clients", len(h.clients)).Msg("Client connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Info().Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case env := <-h.direct:
			if h.clients[env.client] {
				h.deliver(map[*Client]bool{env.client: true}, env.data)
			}
		case env := <-h.broadcast:
			h.deliver(h.subscriptions[env.topic], env.data)
			if env.topic != TopicAll {
				h.deliver(h.subscriptions[TopicAll], env.data)
			}
		}
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		close(c.Send)
	}
}

// Unregister removes a client from the hub. It is safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Publish sends data to every client subscribed to topic and to TopicAll.
func (h *Hub) Publish(topic string, data []byte) {
	if len(data) == 0 {
		return
	}
	select {
	case h.broadcast <- envelope{topic: topic, data: data}:
	case <-h.done:
	}
}

func (h *Hub) sendTo(c *Client, data []byte) {
	if len(data) == 0 {
		return
	}
	select {
	case h.direct <- envelope{client: c, data: data}:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

func (h *Hub) deliver(subs map[*Client]bool, data []byte) {
	for client := range subs {
		select {
		case client.Send <- data:
		default:
			log.Warn().Str("topic", client.Topic).Msg("Dropping slow websocket client")
			h.drop(client)
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	h.removeSubscription(client)
	close(client.Send)
	h.count.Store(int64(len(h.clients)))
}

func (h *Hub) addSubscription(client *Client, topic string) {
	if h.subscriptions[topic] == nil {
		h.subscriptions[topic] = make(map[*Client]bool)
	}
	h.subscriptions[topic][client] = true
}

func (h *Hub) removeSubscription(client *Client) {
	for topic, subs := range h.subscriptions {
		if _, ok := subs[client]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.subscriptions, topic)
			}
		}
	}
}
