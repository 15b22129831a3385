package transport

import (
	"context"
	"sync"

	"github.com/Ajaydeep123/TradeOpx/internal/errs"
)

const (
	inmemQueueDepth = 1024
	inmemSubDepth   = 256
)

// Inmem is a channel-backed Queue+Bus for tests and single-binary development.
type Inmem struct {
	mu    sync.RWMutex
	queue chan []byte
	subs  map[string][]chan Message
}

var (
	_ Queue = (*Inmem)(nil)
	_ Bus   = (*Inmem)(nil)
)

func NewInmem() *Inmem {
	return &Inmem{
		queue: make(chan []byte, inmemQueueDepth),
		subs:  make(map[string][]chan Message),
	}
}

func (t *Inmem) Enqueue(ctx context.Context, value []byte) error {
	select {
	case t.queue <- value:
		return nil
	case <-ctx.Done():
		return errs.Wrap(errs.KindTransport, ctx.Err(), "enqueue cancelled")
	default:
		return errs.New(errs.KindTransport, "request queue is full")
	}
}

func (t *Inmem) Dequeue(ctx context.Context) ([]byte, error) {
	select {
	case v := <-t.queue:
		return v, nil
	case <-ctx.Done():
		return nil, errs.Wrap(errs.KindTransport, ctx.Err(), "dequeue cancelled")
	}
}

func (t *Inmem) Publish(ctx context.Context, topic, key string, value []byte) error {
	t.mu.RLock()
	subs := t.subs[topic]
	t.mu.RUnlock()

	msg := Message{Topic: topic, Key: key, Value: value}
	for _, ch := range subs {
		select {
		case ch <- msg:
		case <-ctx.Done():
			return errs.Wrap(errs.KindTransport, ctx.Err(), "publish cancelled")
		}
	}
	return nil
}

func (t *Inmem) Subscribe(_ context.Context, topic string) (<-chan Message, error) {
	ch := make(chan Message, inmemSubDepth)
	t.mu.Lock()
	t.subs[topic] = append(t.subs[topic], ch)
	t.mu.Unlock()
	return ch, nil
}
