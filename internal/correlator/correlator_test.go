package correlator

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ajaydeep123/TradeOpx/internal/errs"
	"github.com/Ajaydeep123/TradeOpx/internal/models"
	"github.com/Ajaydeep123/TradeOpx/internal/transport"
)

// respondWith runs a fake engine that answers the next queued request with the
// given payload bytes (or, if nil, echoes a canned success response). It
// answers exactly one request so that a stale responder from an earlier call
// cannot steal a later test's request off the shared queue.
func respondWith(ctx context.Context, t *testing.T, tr *transport.Inmem, payload []byte, delay time.Duration) {
	t.Helper()
	go func() {
		raw, err := tr.Dequeue(ctx)
		if err != nil {
			return
		}
		var env models.RequestEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return
		}
		body := payload
		if body == nil {
			body = []byte(`{"type":"` + env.Type + `_response","data":{"success":true}}`)
		}
		if delay > 0 {
			time.Sleep(delay)
		}
		_ = tr.Publish(ctx, transport.TopicResponses, env.ID, body)
	}()
}

func newTestCorrelator(t *testing.T, tr *transport.Inmem, timeout time.Duration) (*Correlator, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	c := New(tr, tr, timeout, zap.NewNop())
	require.NoError(t, c.Start(ctx))
	return c, ctx
}

func TestSendAndAwait_Success(t *testing.T) {
	tr := transport.NewInmem()
	c, ctx := newTestCorrelator(t, tr, 5*time.Second)
	respondWith(ctx, t, tr, nil, 0)

	resp, err := c.SendAndAwait(ctx, "get_all_markets", struct{}{})
	require.NoError(t, err)

	var env models.ResponseEnvelope
	require.NoError(t, json.Unmarshal(resp, &env))
	assert.Equal(t, "get_all_markets_response", env.Type)
}

func TestSendAndAwait_Timeout(t *testing.T) {
	tr := transport.NewInmem()
	c, ctx := newTestCorrelator(t, tr, 50*time.Millisecond)
	// No responder: the request sits in the queue forever.

	_, err := c.SendAndAwait(ctx, "get_me", struct{}{})
	require.Error(t, err)
	assert.Equal(t, errs.KindTimeout, errs.KindOf(err))
	assert.Contains(t, err.Error(), "get_me")
}

func TestSendAndAwait_LateResponseDropped(t *testing.T) {
	tr := transport.NewInmem()
	c, ctx := newTestCorrelator(t, tr, 30*time.Millisecond)
	respondWith(ctx, t, tr, nil, 150*time.Millisecond)

	_, err := c.SendAndAwait(ctx, "buy", struct{}{})
	assert.Equal(t, errs.KindTimeout, errs.KindOf(err))

	// The late response lands after the waiter is gone; it must be a no-op
	// and must not affect a fresh request.
	time.Sleep(200 * time.Millisecond)

	respondWith(ctx, t, tr, nil, 0)
	resp, err := c.SendAndAwait(ctx, "sell", struct{}{})
	require.NoError(t, err)
	var env models.ResponseEnvelope
	require.NoError(t, json.Unmarshal(resp, &env))
	assert.Equal(t, "sell_response", env.Type)
}

func TestSendAndAwait_UnparseableResponse(t *testing.T) {
	tr := transport.NewInmem()
	c, ctx := newTestCorrelator(t, tr, 5*time.Second)
	respondWith(ctx, t, tr, []byte(`{not json`), 0)

	resp, err := c.SendAndAwait(ctx, "get_me", struct{}{})
	require.NoError(t, err, "a parse failure resolves the waiter, it is not dropped")

	var payload struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp, &payload))
	assert.Equal(t, "Couldn't parse the response", payload.Error)
}

type failingQueue struct{}

func (failingQueue) Enqueue(context.Context, []byte) error {
	return errs.New(errs.KindTransport, "broker unavailable")
}

func (failingQueue) Dequeue(context.Context) ([]byte, error) {
	return nil, errs.New(errs.KindTransport, "broker unavailable")
}

func TestSendAndAwait_EnqueueFailure(t *testing.T) {
	tr := transport.NewInmem()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	c := New(failingQueue{}, tr, 5*time.Second, zap.NewNop())
	require.NoError(t, c.Start(ctx))

	start := time.Now()
	_, err := c.SendAndAwait(ctx, "signup", struct{}{})
	assert.Equal(t, errs.KindTransport, errs.KindOf(err))
	assert.Less(t, time.Since(start), time.Second, "send failure surfaces immediately, not via timeout")
}

func TestResolve_AtMostOnce(t *testing.T) {
	tr := transport.NewInmem()
	c, ctx := newTestCorrelator(t, tr, 5*time.Second)

	// Responder publishes the same correlated response twice; the second
	// must find no waiter and be dropped.
	go func() {
		raw, err := tr.Dequeue(ctx)
		if err != nil {
			return
		}
		var env models.RequestEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return
		}
		body := []byte(`{"type":"get_me_response","data":{"success":true}}`)
		_ = tr.Publish(ctx, transport.TopicResponses, env.ID, body)
		_ = tr.Publish(ctx, transport.TopicResponses, env.ID, body)
	}()

	_, err := c.SendAndAwait(ctx, "get_me", struct{}{})
	require.NoError(t, err)

	// Give the duplicate time to flow through the subscriber.
	time.Sleep(50 * time.Millisecond)
}
