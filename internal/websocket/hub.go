package websocket

import (
	"github.com/isdelr/tweeter-be/internal/metrics"
	"github.com/rs/zerolog"
)

type delivery struct {
	userIDs []uint
	client  *Client // set for replies to a single connection
	message []byte
}

// Hub maintains the set of active clients and routes messages to users.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Register requests from the clients.
	Register chan *Client

	// Unregister requests from clients.
	Unregister chan *Client

	// Messages addressed to specific users.
	deliver chan delivery

	// A map of user IDs to the clients that user has open.
	byUser map[uint]map[*Client]bool

	done chan struct{}
	log  zerolog.Logger
}

// NewHub creates a new Hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		deliver:    make(chan delivery, 256),
		clients:    make(map[*Client]bool),
		byUser:     make(map[uint]map[*Client]bool),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the Hub's message processing loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for client := range h.clients {
				h.remove(client)
			}
			return
		case client := <-h.Register:
			h.clients[client] = true
			if h.byUser[client.UserID] == nil {
				h.byUser[client.UserID] = make(map[*Client]bool)
			}
			h.byUser[client.UserID][client] = true
			metrics.WebsocketClients.Inc()
			h.log.Info().Uint("user_id", client.UserID).Int("total_clients", len(h.clients)).Msg("Client connected")
		case client := <-h.Unregister:
			if _, ok := h.clients[client]; ok {
				h.remove(client)
				h.log.Info().Uint("user_id", client.UserID).Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case d := <-h.deliver:
			if d.client != nil {
				if h.clients[d.client] {
					h.send(d.client, d.message)
				}
				continue
			}
			for _, userID := range d.userIDs {
				for client := range h.byUser[userID] {
					h.send(client, d.message)
				}
			}
		}
	}
}

// Join registers a client unless the hub has stopped.
func (h *Hub) Join(client *Client) bool {
	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Leave unregisters a client. It is safe to call after Stop.
func (h *Hub) Leave(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

// Reply queues a message for a single connection.
func (h *Hub) Reply(client *Client, message []byte) {
	select {
	case h.deliver <- delivery{client: client, message: message}:
	case <-h.done:
	}
}

// Stop ends Run and closes every client's send channel.
func (h *Hub) Stop() {
	close(h.done)
}

// Notify queues a message for every open connection of the given users.
// It never blocks the caller; if the queue is full the message is dropped.
func (h *Hub) Notify(userIDs []uint, action string, payload interface{}) {
	if len(userIDs) == 0 {
		return
	}
	select {
	case h.deliver <- delivery{userIDs: userIDs, message: NewMessage(action, payload)}:
	default:
		h.log.Warn().Str("action", action).Int("recipients", len(userIDs)).Msg("Websocket delivery queue full, dropping message")
	}
}

func (h *Hub) send(client *Client, message []byte) {
	select {
	case client.Send <- message:
	default:
		// Slow consumer; drop it rather than block the hub.
		h.remove(client)
	}
}

func (h *Hub) remove(client *Client) {
	delete(h.clients, client)
	if subs, ok := h.byUser[client.UserID]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.byUser, client.UserID)
		}
	}
	close(client.Send)
	metrics.WebsocketClients.Dec()
}
