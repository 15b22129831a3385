// Package kafka backs the transport abstraction with Kafka, matching the
// production deployment: the request queue is a single-partition topic with one
// consumer, responses and market-data deltas are keyed topics.
package kafka

import (
	"context"
	"sync"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Ajaydeep123/TradeOpx/internal/errs"
	"github.com/Ajaydeep123/TradeOpx/internal/transport"
)

// Transport implements transport.Queue and transport.Bus over a Kafka cluster.
type Transport struct {
	brokers []string
	groupID string
	log     *zap.Logger

	mu      sync.Mutex
	writers map[string]*kafkago.Writer
	reqRead *kafkago.Reader
}

var (
	_ transport.Queue = (*Transport)(nil)
	_ transport.Bus   = (*Transport)(nil)
)

// New connects lazily; groupID names this process's consumer group.
func New(brokers []string, groupID string, log *zap.Logger) *Transport {
	return &Transport{
		brokers: brokers,
		groupID: groupID,
		log:     log,
		writers: make(map[string]*kafkago.Writer),
	}
}

func (t *Transport) writer(topic string) *kafkago.Writer {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.writers[topic]
	if !ok {
		w = &kafkago.Writer{
			Addr:     kafkago.TCP(t.brokers...),
			Topic:    topic,
			Balancer: &kafkago.Hash{},
		}
		t.writers[topic] = w
	}
	return w
}

// Enqueue pushes a request onto the requests topic.
func (t *Transport) Enqueue(ctx context.Context, value []byte) error {
	err := t.writer(transport.QueueRequests).WriteMessages(ctx, kafkago.Message{Value: value})
	if err != nil {
		return errs.Wrap(errs.KindTransport, err, "failed to enqueue request")
	}
	return nil
}

// Dequeue blocks for the next request. Only the engine calls this, through a
// single goroutine; the shared reader keeps consumption serial.
func (t *Transport) Dequeue(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	if t.reqRead == nil {
		t.reqRead = kafkago.NewReader(kafkago.ReaderConfig{
			Brokers: t.brokers,
			GroupID: t.groupID,
			Topic:   transport.QueueRequests,
		})
	}
	r := t.reqRead
	t.mu.Unlock()

	msg, err := r.ReadMessage(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransport, err, "failed to read request")
	}
	return msg.Value, nil
}

// Publish sends one keyed message to a topic.
func (t *Transport) Publish(ctx context.Context, topic, key string, value []byte) error {
	err := t.writer(topic).WriteMessages(ctx, kafkago.Message{
		Key:   []byte(key),
		Value: value,
	})
	if err != nil {
		return errs.Wrap(errs.KindTransport, err, "failed to publish to "+topic)
	}
	return nil
}

// Subscribe consumes a topic into a channel until ctx is cancelled.
func (t *Transport) Subscribe(ctx context.Context, topic string) (<-chan transport.Message, error) {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers: t.brokers,
		GroupID: t.groupID,
		Topic:   topic,
	})

	ch := make(chan transport.Message)
	go func() {
		defer close(ch)
		defer reader.Close()
		for {
			msg, err := reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() == nil {
					t.log.Error("subscriber read failed", zap.String("topic", topic), zap.Error(err))
				}
				return
			}
			select {
			case ch <- transport.Message{Topic: topic, Key: string(msg.Key), Value: msg.Value}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// Close shuts down writers and the request reader.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, w := range t.writers {
		_ = w.Close()
	}
	if t.reqRead != nil {
		return t.reqRead.Close()
	}
	return nil
}
