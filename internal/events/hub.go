// Package events fans run lifecycle events out to websocket
// subscribers, so a dashboard can follow a rebalance stage by stage
// without polling the journal.
package events

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
	"github.com/guberm/wealthsimple-trading-bot/pkg/logger"
)

const (
	// writeWait is the maximum time to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is the maximum time to wait for a pong from the client.
	pongWait = 60 * time.Second

	// pingPeriod sends pings at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds inbound frames; subscribers only listen.
	maxMessageSize = 512

	// sendBufferSize is the per-client outgoing buffer. A client that
	// falls this far behind is evicted.
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The API binds to localhost in every supported deployment.
		return true
	},
}

// Event is the envelope every subscriber receives.
type Event struct {
	Type    string      `json:"type"`
	At      time.Time   `json:"at"`
	Payload interface{} `json:"payload"`
}

// client is a single websocket subscriber.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub owns the subscriber set. Only the Run loop touches it, so client
// registration and broadcast flow through channels instead of a lock.
type Hub struct {
	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	logger     *logger.Logger
}

// New creates a hub. Call Run in a goroutine before serving /ws.
func New(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		logger:     log,
	}
}

// Run handles registration and broadcasting until ctx is cancelled,
// then closes every remaining client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			h.logger.WithField("clients", len(h.clients)).Debug("Websocket client connected")

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.logger.WithField("clients", len(h.clients)).Debug("Websocket client disconnected")

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// A full buffer means the reader stopped keeping
					// up; evict it rather than stall the loop.
					delete(h.clients, c)
					close(c.send)
					h.logger.Warn("Evicting slow websocket client")
				}
			}
		}
	}
}

// RunStarted announces a new pipeline run.
func (h *Hub) RunStarted(runID string, mode contracts.RunMode) {
	h.publish("run_started", map[string]interface{}{
		"run_id": runID,
		"mode":   mode,
	})
}

// StageRecorded announces one finished pipeline stage.
func (h *Hub) StageRecorded(runID string, stage contracts.StageResult) {
	h.publish("stage", map[string]interface{}{
		"run_id": runID,
		"stage":  stage,
	})
}

// RunFinished announces a completed run with its full report.
func (h *Hub) RunFinished(report *contracts.RunReport) {
	h.publish("run_finished", report)
}

// publish drops the event when the broadcast queue is full; a stalled
// hub must never block the trading pipeline.
func (h *Hub) publish(eventType string, payload interface{}) {
	data, err := json.Marshal(Event{Type: eventType, At: time.Now(), Payload: payload})
	if err != nil {
		h.logger.WithError(err).Warn("Failed to encode event")
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.WithField("type", eventType).Warn("Event queue full, dropping event")
	}
}

// HandleWS upgrades the request and registers the subscriber
// GET /ws
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}

	// The hello is enqueued before the hub loop can touch the channel
	// and delivered only after registration, so a client that has read
	// it is guaranteed to receive subsequent broadcasts.
	if hello, err := json.Marshal(Event{Type: "hello", At: time.Now(), Payload: map[string]string{"service": "wstrader"}}); err == nil {
		c.send <- hello
	}

	h.register <- c

	go c.writePump()
	go c.readPump()
}

// readPump discards inbound frames and keeps the pong deadline fresh.
// Its exit, for any reason, unregisters the client.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump delivers broadcasts and pings until the hub closes the
// send channel or a write fails.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
