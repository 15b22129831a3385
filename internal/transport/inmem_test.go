package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ajaydeep123/TradeOpx/internal/errs"
)

func TestQueueRoundTrip(t *testing.T) {
	tr := NewInmem()
	ctx := context.Background()

	require.NoError(t, tr.Enqueue(ctx, []byte("first")))
	require.NoError(t, tr.Enqueue(ctx, []byte("second")))

	v, err := tr.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("first"), v)
	v, err = tr.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), v)
}

func TestDequeueHonorsContext(t *testing.T) {
	tr := NewInmem()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := tr.Dequeue(ctx)
	require.Error(t, err)
	assert.Equal(t, errs.KindTransport, errs.KindOf(err))
}

func TestEnqueueFullQueue(t *testing.T) {
	tr := NewInmem()
	ctx := context.Background()

	for i := 0; i < inmemQueueDepth; i++ {
		require.NoError(t, tr.Enqueue(ctx, []byte("x")))
	}
	err := tr.Enqueue(ctx, []byte("overflow"))
	require.Error(t, err)
	assert.Equal(t, errs.KindTransport, errs.KindOf(err))
}

func TestPublishFansOutToTopicSubscribers(t *testing.T) {
	tr := NewInmem()
	ctx := context.Background()

	a, err := tr.Subscribe(ctx, "updates")
	require.NoError(t, err)
	b, err := tr.Subscribe(ctx, "updates")
	require.NoError(t, err)
	other, err := tr.Subscribe(ctx, "elsewhere")
	require.NoError(t, err)

	require.NoError(t, tr.Publish(ctx, "updates", "k1", []byte("v1")))

	for _, ch := range []<-chan Message{a, b} {
		select {
		case msg := <-ch:
			assert.Equal(t, "updates", msg.Topic)
			assert.Equal(t, "k1", msg.Key)
			assert.Equal(t, []byte("v1"), msg.Value)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the message")
		}
	}

	select {
	case <-other:
		t.Fatal("subscriber on another topic received the message")
	default:
	}
}
