// Package transport abstracts the broker between the gateway, the engine, and
// the notifier: a durable work queue for inbound requests and a keyed pub/sub
// bus for responses and market-data deltas.
package transport

import "context"

// Topic and queue names shared by all processes.
const (
	QueueRequests         = "requests"
	TopicResponses        = "responses"
	TopicOrderbookUpdates = "orderbook-updates"
	TopicMarketUpdates    = "market-updates"
)

// Message is one keyed bus item.
type Message struct {
	Topic string
	Key   string
	Value []byte
}

// Queue is the durable inbound work queue. The engine is its single consumer;
// that single consumption point is what serializes all state mutation.
type Queue interface {
	Enqueue(ctx context.Context, value []byte) error
	Dequeue(ctx context.Context) ([]byte, error)
}

// Bus is the outbound publish/subscribe side.
type Bus interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
	Subscribe(ctx context.Context, topic string) (<-chan Message, error)
}
