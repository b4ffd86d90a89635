package sse

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	HeartbeatInterval = 30 * time.Second

	// clientBufferSize bounds how far a slow subscriber may lag before
	// events are dropped for that subscriber only.
	clientBufferSize = 16
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Client struct {
	Token  string
	Events chan Event
	Done   chan struct{}
}

// Broker fans out events to every live subscriber of a pairing token.
// It is purely in-process: subscriptions do not survive a restart and
// clients are expected to reconnect. The broker itself does not check
// token validity; callers admit connections only after the session
// service has validated the token.
type Broker struct {
	clients map[string]map[*Client]bool // token -> set of clients
	mu      sync.RWMutex
	closed  bool
}

func NewBroker() *Broker {
	return &Broker{
		clients: make(map[string]map[*Client]bool),
	}
}

func (b *Broker) Subscribe(token string) *Client {
	client := &Client{
		Token:  token,
		Events: make(chan Event, clientBufferSize),
		Done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(client.Done)
		return client
	}
	if b.clients[token] == nil {
		b.clients[token] = make(map[*Client]bool)
	}
	b.clients[token][client] = true
	clientCount := len(b.clients[token])
	b.mu.Unlock()

	log.Info().
		Int("clientCount", clientCount).
		Msg("sse client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if clients, ok := b.clients[client.Token]; ok && clients[client] {
		delete(clients, client)
		close(client.Done)

		if len(clients) == 0 {
			delete(b.clients, client.Token)
		}

		log.Info().
			Int("clientCount", len(clients)).
			Msg("sse client unsubscribed")
	}
}

// Publish delivers event to every current subscriber of token, in call
// order for a single publisher. Delivery is best-effort: a subscriber
// whose buffer is full misses the event, nobody else is affected, and a
// publish with zero subscribers is simply not delivered to anyone.
func (b *Broker) Publish(token string, event Event) {
	b.mu.RLock()
	clients := b.clients[token]
	delivered := 0
	for client := range clients {
		select {
		case client.Events <- event:
			delivered++
		default:
			log.Warn().Msg("client event buffer full, dropping event")
		}
	}
	b.mu.RUnlock()

	if delivered == 0 {
		log.Debug().Str("eventType", event.Type).Msg("published with no live subscribers")
	}
}

func (b *Broker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for _, clients := range b.clients {
		for client := range clients {
			close(client.Done)
		}
	}
	b.clients = make(map[string]map[*Client]bool)
}

func (b *Broker) ClientCount(token string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[token])
}

func (b *Broker) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, clients := range b.clients {
		total += len(clients)
	}
	return total
}
