// Package correlator matches asynchronous engine responses back to their
// callers. Each outbound request gets a unique id and a single-use waiter; the
// waiter resolves exactly once, via the correlated response, a parse-failure
// payload, or a timeout.
package correlator

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ajaydeep123/TradeOpx/internal/errs"
	"github.com/Ajaydeep123/TradeOpx/internal/models"
	"github.com/Ajaydeep123/TradeOpx/internal/transport"
)

// parseFailure is delivered to the waiter when a response payload is not valid
// JSON, instead of dropping the response.
var parseFailure = json.RawMessage(`{"error":"Couldn't parse the response"}`)

type Correlator struct {
	queue   transport.Queue
	bus     transport.Bus
	timeout time.Duration
	log     *zap.Logger

	mu      sync.Mutex
	waiters map[string]chan json.RawMessage
}

func New(queue transport.Queue, bus transport.Bus, timeout time.Duration, log *zap.Logger) *Correlator {
	return &Correlator{
		queue:   queue,
		bus:     bus,
		timeout: timeout,
		log:     log,
		waiters: make(map[string]chan json.RawMessage),
	}
}

// Start subscribes to the response topic and drains it until ctx is cancelled.
// Call once before any SendAndAwait.
func (c *Correlator) Start(ctx context.Context) error {
	ch, err := c.bus.Subscribe(ctx, transport.TopicResponses)
	if err != nil {
		return errs.Wrap(errs.KindTransport, err, "failed to subscribe to responses")
	}
	go c.consume(ctx, ch)
	return nil
}

func (c *Correlator) consume(ctx context.Context, ch <-chan transport.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			c.resolve(msg.Key, msg.Value)
		}
	}
}

// resolve delivers a response to its waiter, if one is still registered.
// Responses with no waiter (timed out or duplicate) are dropped.
func (c *Correlator) resolve(id string, value []byte) {
	c.mu.Lock()
	waiter, ok := c.waiters[id]
	if ok {
		delete(c.waiters, id)
	}
	c.mu.Unlock()
	if !ok {
		return
	}
	if !json.Valid(value) {
		c.log.Warn("unparseable response payload", zap.String("id", id))
		waiter <- parseFailure
		return
	}
	waiter <- json.RawMessage(value)
}

// SendAndAwait enqueues a typed request and blocks until its correlated
// response arrives or the timeout elapses.
func (c *Correlator) SendAndAwait(ctx context.Context, reqType string, payload any) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, err, "failed to encode request payload")
	}
	id := uuid.NewString()
	env, err := json.Marshal(models.RequestEnvelope{
		ID:      id,
		Type:    reqType,
		Payload: raw,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, err, "failed to encode request envelope")
	}

	// Register before enqueueing so a fast response cannot race past the waiter.
	waiter := make(chan json.RawMessage, 1)
	c.mu.Lock()
	c.waiters[id] = waiter
	c.mu.Unlock()

	if err := c.queue.Enqueue(ctx, env); err != nil {
		c.drop(id)
		return nil, errs.Wrap(errs.KindTransport, err, "failed to send request")
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case resp := <-waiter:
		return resp, nil
	case <-timer.C:
		c.drop(id)
		return nil, errs.New(errs.KindTimeout, "request timed out for %s", reqType)
	case <-ctx.Done():
		c.drop(id)
		return nil, errs.Wrap(errs.KindTransport, ctx.Err(), "request cancelled")
	}
}

func (c *Correlator) drop(id string) {
	c.mu.Lock()
	delete(c.waiters, id)
	c.mu.Unlock()
}
