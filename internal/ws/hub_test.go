package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ajaydeep123/TradeOpx/internal/transport"
)

func dialHub(t *testing.T, tr *transport.Inmem) (*Hub, *websocket.Conn) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(tr, zap.NewNop())
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return hub, conn
}

func subscribe(t *testing.T, conn *websocket.Conn, symbol string) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "subscribe", "marketSymbol": symbol}))
}

// publish pushes one market-data message and waits for the hub to pick it up.
func publish(t *testing.T, tr *transport.Inmem, topic, symbol string, value []byte) {
	t.Helper()
	require.NoError(t, tr.Publish(context.Background(), topic, symbol, value))
}

func readBroadcast(t *testing.T, conn *websocket.Conn) (string, json.RawMessage, bool) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return "", nil, false
	}
	var msg struct {
		Topic string          `json:"topic"`
		Data  json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg.Topic, msg.Data, true
}

func TestSubscribedClientReceivesUpdates(t *testing.T) {
	tr := transport.NewInmem()
	_, conn := dialHub(t, tr)

	subscribe(t, conn, "IND-WC-2027")
	// Give the control message time to land before publishing.
	time.Sleep(50 * time.Millisecond)

	update := []byte(`{"type":"orderbook_update","data":{"success":true}}`)
	publish(t, tr, transport.TopicOrderbookUpdates, "IND-WC-2027", update)

	topic, data, ok := readBroadcast(t, conn)
	require.True(t, ok, "subscribed client must receive the update")
	assert.Equal(t, transport.TopicOrderbookUpdates, topic)
	assert.JSONEq(t, string(update), string(data))
}

func TestMarketUpdatesAlsoRelayed(t *testing.T) {
	tr := transport.NewInmem()
	_, conn := dialHub(t, tr)

	subscribe(t, conn, "US-PRES-DEM")
	time.Sleep(50 * time.Millisecond)

	publish(t, tr, transport.TopicMarketUpdates, "US-PRES-DEM", []byte(`{"type":"market_update"}`))

	topic, _, ok := readBroadcast(t, conn)
	require.True(t, ok)
	assert.Equal(t, transport.TopicMarketUpdates, topic)
}

func TestUnsubscribedMarketFiltered(t *testing.T) {
	tr := transport.NewInmem()
	_, conn := dialHub(t, tr)

	subscribe(t, conn, "IND-WC-2027")
	time.Sleep(50 * time.Millisecond)

	publish(t, tr, transport.TopicOrderbookUpdates, "OTHER-MKT", []byte(`{"type":"orderbook_update"}`))

	_, _, ok := readBroadcast(t, conn)
	assert.False(t, ok, "updates for other markets must not be delivered")
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	tr := transport.NewInmem()
	_, conn := dialHub(t, tr)

	subscribe(t, conn, "IND-WC-2027")
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, conn.WriteJSON(map[string]string{"type": "unsubscribe", "marketSymbol": "IND-WC-2027"}))
	time.Sleep(50 * time.Millisecond)

	publish(t, tr, transport.TopicOrderbookUpdates, "IND-WC-2027", []byte(`{"type":"orderbook_update"}`))

	_, _, ok := readBroadcast(t, conn)
	assert.False(t, ok, "unsubscribed client must not receive further updates")
}
