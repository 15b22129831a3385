// Package ws is the fan-out notifier: it relays market-data bus messages to
// WebSocket clients that have subscribed to the message's market symbol.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Ajaydeep123/TradeOpx/internal/transport"
)

// control is the subscribe/unsubscribe message clients send.
type control struct {
	Type         string `json:"type"`
	MarketSymbol string `json:"marketSymbol"`
}

type client struct {
	conn *websocket.Conn

	mu      sync.Mutex // guards writes and the subscription set
	markets map[string]struct{}
}

func (c *client) subscribed(symbol string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, found := c.markets[symbol]
	return found
}

func (c *client) send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

type Hub struct {
	bus      transport.Bus
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub(bus transport.Bus, log *zap.Logger) *Hub {
	return &Hub{
		bus: bus,
		log: log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Run consumes both market-data topics until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	books, err := h.bus.Subscribe(ctx, transport.TopicOrderbookUpdates)
	if err != nil {
		return err
	}
	markets, err := h.bus.Subscribe(ctx, transport.TopicMarketUpdates)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, open := <-books:
			if !open {
				return nil
			}
			h.broadcast(msg)
		case msg, open := <-markets:
			if !open {
				return nil
			}
			h.broadcast(msg)
		}
	}
}

func (h *Hub) broadcast(msg transport.Message) {
	payload, err := json.Marshal(struct {
		Topic string          `json:"topic"`
		Data  json.RawMessage `json:"data"`
	}{msg.Topic, msg.Value})
	if err != nil {
		h.log.Error("failed to encode broadcast", zap.Error(err))
		return
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if c.subscribed(msg.Key) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.send(payload); err != nil {
			h.log.Debug("dropping client", zap.Error(err))
			h.remove(c)
		}
	}
}

// HandleWS upgrades a connection and services its subscribe/unsubscribe
// control messages until it closes.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, markets: make(map[string]struct{})}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Info("client connected")

	go h.readLoop(c)
}

func (h *Hub) readLoop(c *client) {
	defer h.remove(c)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			h.log.Info("client disconnected")
			return
		}
		var msg control
		if err := json.Unmarshal(raw, &msg); err != nil {
			h.log.Warn("bad control message", zap.Error(err))
			continue
		}
		switch msg.Type {
		case "subscribe":
			c.mu.Lock()
			c.markets[msg.MarketSymbol] = struct{}{}
			c.mu.Unlock()
		case "unsubscribe":
			c.mu.Lock()
			delete(c.markets, msg.MarketSymbol)
			c.mu.Unlock()
		}
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, found := h.clients[c]; found {
		delete(h.clients, c)
		_ = c.conn.Close()
	}
	h.mu.Unlock()
}
