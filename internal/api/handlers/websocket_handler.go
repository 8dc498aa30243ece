package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	ws "github.com/isdelr/tweeter-be/internal/websocket"
	"github.com/rs/zerolog"
)

// WebSocketHandler upgrades authenticated requests to live update connections.
type WebSocketHandler struct {
	hub      *ws.Hub
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocketHandler. Browser origins are checked
// against allowedOrigins; requests without an Origin header are accepted.
func NewWebSocketHandler(hub *ws.Hub, allowedOrigins []string) *WebSocketHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WebSocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// Serve handles the WebSocket connection request.
func (h *WebSocketHandler) Serve(w http.ResponseWriter, r *http.Request) {
	userID := callerID(r)
	log := zerolog.Ctx(r.Context()).With().Uint("user_id", userID).Logger()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	client := ws.NewClient(h.hub, conn, userID)
	if !h.hub.Join(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go func() {
		client.ReadPump(h.handleIncomingWSMessage(log))
		h.hub.Leave(client)
	}()
}

// handleIncomingWSMessage processes messages received from a websocket client.
func (h *WebSocketHandler) handleIncomingWSMessage(log zerolog.Logger) func(*ws.Client, []byte) {
	return func(client *ws.Client, message []byte) {
		var msg ws.Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Debug().Err(err).Bytes("message", message).Msg("Error decoding websocket message")
			h.hub.Reply(client, ws.NewErrorMessage("Invalid message"))
			return
		}

		switch msg.Action {
		case "ping":
			h.hub.Reply(client, ws.NewMessage(ws.ActionPong, nil))
		default:
			log.Warn().Str("action", msg.Action).Msg("Unknown websocket action received")
			h.hub.Reply(client, ws.NewErrorMessage("Unknown action: "+msg.Action))
		}
	}
}
