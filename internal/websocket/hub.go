// Package websocket streams audit records to admin clients as they are written.
package websocket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/welldanyogia/webrana-mailfunnel/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeAudit       MessageType = "audit"
	MessageTypeError       MessageType = "error"
)

// WSMessage represents a WebSocket message. An AddressID of zero on
// subscribe means every audit record.
type WSMessage struct {
	Type      MessageType `json:"type"`
	AddressID uint        `json:"address_id,omitempty"`
	Event     interface{} `json:"event,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// AuditEventPayload is the wire form of a stored audit record
type AuditEventPayload struct {
	ID         uint    `json:"id"`
	AddressID  uint    `json:"address_id,omitempty"`
	From       string  `json:"from"`
	Subject    string  `json:"subject,omitempty"`
	Provider   string  `json:"provider,omitempty"`
	SpamScore  *string `json:"spam_score,omitempty"`
	IsRejected bool    `json:"is_rejected"`
	Reason     *string `json:"reason"`
	CreatedAt  string  `json:"created_at"`
}

// NewAuditEventPayload converts an audit record
func NewAuditEventPayload(m *models.Message) *AuditEventPayload {
	p := &AuditEventPayload{
		ID:         m.ID,
		From:       m.From,
		Subject:    m.Subject,
		Provider:   m.Provider,
		SpamScore:  m.SpamScore,
		IsRejected: m.IsRejected,
		CreatedAt:  m.CreatedAt.UTC().Format(time.RFC3339),
	}
	if m.AddressID != nil {
		p.AddressID = *m.AddressID
	}
	if m.Reason != nil {
		r := string(*m.Reason)
		p.Reason = &r
	}
	return p
}

// allAddresses is the subscription key of the firehose
const allAddresses uint = 0

// Hub maintains the set of active clients and fans audit events out to them
type Hub struct {
	clients map[*Client]bool

	// address id -> subscribers, allAddresses receives everything
	subscriptions map[uint]map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest
	broadcast   chan *broadcastMessage

	// closed when Run returns
	done chan struct{}

	mu     sync.RWMutex
	logger *slog.Logger
}

type subscriptionRequest struct {
	client    *Client
	addressID uint
}

type broadcastMessage struct {
	addressID uint
	message   []byte
}

// NewHub creates a new Hub instance
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		subscriptions: make(map[uint]map[*Client]bool),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		subscribe:     make(chan *subscriptionRequest),
		unsubscribe:   make(chan *subscriptionRequest),
		broadcast:     make(chan *broadcastMessage, 256),
		done:          make(chan struct{}),
		logger:        logger,
	}
}

// Run starts the hub's main loop. It returns when ctx is cancelled, after
// closing every client's send channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.debug("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			h.debug("client unregistered")

		case req := <-h.subscribe:
			h.mu.Lock()
			if h.clients[req.client] {
				if h.subscriptions[req.addressID] == nil {
					h.subscriptions[req.addressID] = make(map[*Client]bool)
				}
				h.subscriptions[req.addressID][req.client] = true
			}
			h.mu.Unlock()
			h.debug("client subscribed", slog.Uint64("address_id", uint64(req.addressID)))

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if subscribers, ok := h.subscriptions[req.addressID]; ok {
				delete(subscribers, req.client)
				if len(subscribers) == 0 {
					delete(h.subscriptions, req.addressID)
				}
			}
			h.mu.Unlock()
			h.debug("client unsubscribed", slog.Uint64("address_id", uint64(req.addressID)))

		case msg := <-h.broadcast:
			h.mu.RLock()
			h.deliver(msg)
			h.mu.RUnlock()
		}
	}
}

// deliver sends msg to everyone subscribed to its address or to all.
// Slow clients whose buffer is full miss the event.
func (h *Hub) deliver(msg *broadcastMessage) {
	seen := make(map[*Client]bool)
	for _, key := range []uint{msg.addressID, allAddresses} {
		for client := range h.subscriptions[key] {
			if seen[client] {
				continue
			}
			seen[client] = true
			select {
			case client.send <- msg.message:
			default:
			}
		}
	}
}

// remove must be called with mu held
func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	for addressID, subscribers := range h.subscriptions {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.subscriptions, addressID)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		h.remove(client)
	}
}

func (h *Hub) debug(msg string, args ...any) {
	if h.logger != nil {
		h.logger.Debug(msg, args...)
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribe subscribes a client to the events of one address, or all of them for zero
func (h *Hub) Subscribe(client *Client, addressID uint) {
	select {
	case h.subscribe <- &subscriptionRequest{client: client, addressID: addressID}:
	case <-h.done:
	}
}

// Unsubscribe reverses Subscribe
func (h *Hub) Unsubscribe(client *Client, addressID uint) {
	select {
	case h.unsubscribe <- &subscriptionRequest{client: client, addressID: addressID}:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// NotifyAudit publishes a stored audit record. It never blocks the caller:
// when the hub is stopped or backed up the event is dropped.
func (h *Hub) NotifyAudit(message *models.Message) {
	if message == nil {
		return
	}
	payload := NewAuditEventPayload(message)
	data, err := json.Marshal(WSMessage{
		Type:      MessageTypeAudit,
		AddressID: payload.AddressID,
		Event:     payload,
	})
	if err != nil {
		if h.logger != nil {
			h.logger.Error("failed to marshal audit event", slog.Any("error", err))
		}
		return
	}

	select {
	case h.broadcast <- &broadcastMessage{addressID: payload.AddressID, message: data}:
	case <-h.done:
	default:
		if h.logger != nil {
			h.logger.Warn("audit event dropped, hub backlog full", slog.Uint64("message_id", uint64(payload.ID)))
		}
	}
}
