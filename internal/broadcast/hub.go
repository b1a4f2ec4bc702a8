// Package broadcast pushes match updates to connected clients over websockets
// and to an MQTT broker.
package broadcast

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lotusgame/duel-server-go/internal/errors"
	"github.com/lotusgame/duel-server-go/internal/match"
)

const (
	MessageTypeMatchUpdate = "match_update"

	sendBuffer = 64
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Message is the envelope written to websocket clients.
type Message struct {
	Type    string     `json:"type"`
	MatchID string     `json:"matchId"`
	Data    match.View `json:"data"`
}

type delivery struct {
	matchID string
	view    match.View
	payload []byte
}

type client struct {
	conn     *websocket.Conn
	send     chan []byte
	playerID string
	matchID  string
}

// Hub fans match updates out to the websocket clients watching that match.
// Only participants of a match receive its updates.
type Hub struct {
	upgrader   websocket.Upgrader
	clients    map[*client]struct{}
	deliveries chan delivery
	register   chan *client
	unregister chan *client
	done       chan struct{}
	logger     *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients:    make(map[*client]struct{}),
		deliveries: make(chan delivery),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		logger:     logger.Named("ws-hub"),
	}
}

// Run dispatches updates until ctx is done and then disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.drop(c)
			}
			return nil

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.logger.Debug("client subscribed",
				zap.String("match_id", c.matchID),
				zap.String("player_id", c.playerID),
			)

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.drop(c)
			}

		case d := <-h.deliveries:
			for c := range h.clients {
				if c.matchID != d.matchID || !isParticipant(d.view, c.playerID) {
					continue
				}
				select {
				case c.send <- d.payload:
				default:
					h.logger.Warn("dropping slow client",
						zap.String("match_id", c.matchID),
						zap.String("player_id", c.playerID),
					)
					h.drop(c)
				}
			}
		}
	}
}

func (h *Hub) drop(c *client) {
	delete(h.clients, c)
	close(c.send)
}

func isParticipant(v match.View, playerID string) bool {
	return playerID != "" && (v.Player1ID == playerID || v.Player2ID == playerID)
}

// Publish hands a match update to the hub. It blocks until the hub accepts it
// or ctx is done.
func (h *Hub) Publish(ctx context.Context, matchID string, view match.View) error {
	payload, err := json.Marshal(Message{Type: MessageTypeMatchUpdate, MatchID: matchID, Data: view})
	if err != nil {
		return errors.Error{Code: errors.ErrInternal, Kind: errors.KindEncodeJSON, Err: err,
			Message: "encode match update", Details: errors.Details{"match_id": matchID}}
	}
	select {
	case h.deliveries <- delivery{matchID: matchID, view: view, payload: payload}:
		return nil
	case <-ctx.Done():
		return errors.Error{Code: errors.ErrCommunication, Err: ctx.Err(),
			Message: "hub did not accept match update", Details: errors.Details{"match_id": matchID}}
	case <-h.done:
		return errors.Error{Code: errors.ErrCommunication,
			Message: "hub stopped", Details: errors.Details{"match_id": matchID}}
	}
}

// ServeHTTP upgrades the request and subscribes the connection to one match.
// The match is chosen with the match_id query parameter; the player is taken
// from the X-Player-ID header or the player_id query parameter.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	matchID := r.URL.Query().Get("match_id")
	playerID := r.Header.Get("X-Player-ID")
	if playerID == "" {
		playerID = r.URL.Query().Get("player_id")
	}
	if matchID == "" || playerID == "" {
		http.Error(w, "match_id and player id are required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	c := &client{
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		playerID: playerID,
		matchID:  matchID,
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(c)
	h.readPump(c)
}

// readPump discards client messages and notices disconnects.
func (h *Hub) readPump(c *client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
