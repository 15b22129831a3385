package book

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ajaydeep123/TradeOpx/internal/errs"
	"github.com/Ajaydeep123/TradeOpx/internal/models"
)

const symbol = "IND-WC-2027"

func newOrder(id, userID string, side models.Side, qty, price int64, ts time.Time) *models.Order {
	return &models.Order{
		ID:           id,
		UserID:       userID,
		MarketSymbol: symbol,
		Side:         side,
		Quantity:     qty,
		RemainingQty: qty,
		Price:        price,
		Status:       models.OrderPending,
		Timestamp:    ts,
	}
}

func TestPlaceBuy_NoMatchRests(t *testing.T) {
	b := New()

	order := newOrder("o1", "alice", models.SideYes, 10, 4, time.Now())
	fills := b.PlaceBuy(order)

	assert.Empty(t, fills)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, int64(10), order.RemainingQty)

	buys, _ := b.UserOrders(symbol, "alice")
	require.Len(t, buys, 1)
}

func TestMatch_PriceTimePriority(t *testing.T) {
	b := New()
	now := time.Now()

	// Three resting sells: priority must be price first (3 beats 4), then
	// time within a level (s1 before s2).
	s1 := newOrder("s1", "ann", models.SideYes, 5, 4, now.Add(-2*time.Second))
	s2 := newOrder("s2", "bob", models.SideYes, 5, 4, now.Add(-time.Second))
	s3 := newOrder("s3", "cat", models.SideYes, 5, 3, now)
	b.PlaceSell(s1)
	b.PlaceSell(s2)
	b.PlaceSell(s3)

	taker := newOrder("b1", "dan", models.SideYes, 8, 4, now)
	fills := b.PlaceBuy(taker)

	require.Len(t, fills, 2)
	assert.Equal(t, "s3", fills[0].Maker.ID)
	assert.Equal(t, int64(5), fills[0].Quantity)
	assert.Equal(t, int64(3), fills[0].Price) // maker's price
	assert.Equal(t, "s1", fills[1].Maker.ID)
	assert.Equal(t, int64(3), fills[1].Quantity)
	assert.Equal(t, int64(4), fills[1].Price)

	assert.Equal(t, models.OrderFilled, taker.Status)
	assert.Equal(t, models.OrderFilled, s3.Status)
	assert.Equal(t, models.OrderPartiallyFilled, s1.Status)
	assert.Equal(t, int64(2), s1.RemainingQty)
	assert.Equal(t, models.OrderPending, s2.Status)
}

func TestMatch_SideIsolation(t *testing.T) {
	b := New()

	b.PlaceSell(newOrder("s1", "ann", models.SideNo, 5, 4, time.Now()))
	taker := newOrder("b1", "bob", models.SideYes, 5, 4, time.Now())
	fills := b.PlaceBuy(taker)

	assert.Empty(t, fills)
	assert.Equal(t, int64(5), taker.RemainingQty)
}

func TestMatch_SellTakerAgainstRestingBuys(t *testing.T) {
	b := New()
	now := time.Now()

	b.PlaceBuy(newOrder("b1", "ann", models.SideYes, 5, 6, now.Add(-time.Second)))
	b.PlaceBuy(newOrder("b2", "bob", models.SideYes, 5, 5, now))

	taker := newOrder("s1", "cat", models.SideYes, 7, 5, now)
	fills := b.PlaceSell(taker)

	// Highest resting buy first, at the maker's price.
	require.Len(t, fills, 2)
	assert.Equal(t, "b1", fills[0].Maker.ID)
	assert.Equal(t, int64(6), fills[0].Price)
	assert.Equal(t, int64(5), fills[0].Quantity)
	assert.Equal(t, "b2", fills[1].Maker.ID)
	assert.Equal(t, int64(2), fills[1].Quantity)
	assert.False(t, fills[0].TakerIsBuyer)
	assert.Equal(t, models.OrderFilled, taker.Status)
}

func TestMatch_RemainingQtyMonotonic(t *testing.T) {
	b := New()
	now := time.Now()

	maker := newOrder("s1", "ann", models.SideYes, 10, 4, now)
	b.PlaceSell(maker)

	last := maker.RemainingQty
	for i := 0; i < 3; i++ {
		b.PlaceBuy(newOrder("b", "bob", models.SideYes, 2, 4, now))
		assert.LessOrEqual(t, maker.RemainingQty, last)
		last = maker.RemainingQty
	}
	assert.Equal(t, int64(4), maker.RemainingQty)
	assert.Equal(t, models.OrderPartiallyFilled, maker.Status)
}

func TestTrades_RecordedPerFill(t *testing.T) {
	b := New()
	now := time.Now()

	b.PlaceSell(newOrder("s1", "seller", models.SideYes, 5, 4, now))
	b.PlaceBuy(newOrder("b1", "buyer", models.SideYes, 5, 4, now))

	trades := b.Trades(symbol)
	require.Len(t, trades, 1)
	assert.Equal(t, "buyer", trades[0].Buyer)
	assert.Equal(t, "seller", trades[0].Seller)
	assert.Equal(t, int64(5), trades[0].Quantity)
	assert.Equal(t, int64(4), trades[0].Price)
	assert.Equal(t, symbol, trades[0].MarketSymbol)
}

func TestCancel(t *testing.T) {
	b := New()
	now := time.Now()

	order := newOrder("b1", "alice", models.SideYes, 10, 4, now)
	b.PlaceBuy(order)

	// Wrong owner.
	_, err := b.CancelBuy(symbol, "b1", "mallory")
	assert.Equal(t, errs.KindUnauthorized, errs.KindOf(err))

	cancelled, err := b.CancelBuy(symbol, "b1", "alice")
	require.NoError(t, err)
	assert.Equal(t, models.OrderCancelled, cancelled.Status)

	// Cancelling twice fails.
	_, err = b.CancelBuy(symbol, "b1", "alice")
	assert.Equal(t, errs.KindState, errs.KindOf(err))

	// Unknown order.
	_, err = b.CancelBuy(symbol, "nope", "alice")
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestCancel_FilledOrderRejected(t *testing.T) {
	b := New()
	now := time.Now()

	maker := newOrder("s1", "ann", models.SideYes, 5, 4, now)
	b.PlaceSell(maker)
	b.PlaceBuy(newOrder("b1", "bob", models.SideYes, 5, 4, now))
	require.Equal(t, models.OrderFilled, maker.Status)

	_, err := b.CancelSell(symbol, "s1", "ann")
	assert.Equal(t, errs.KindState, errs.KindOf(err))
}

func TestCancelledOrdersExcludedFromMatching(t *testing.T) {
	b := New()
	now := time.Now()

	b.PlaceSell(newOrder("s1", "ann", models.SideYes, 5, 4, now))
	_, err := b.CancelSell(symbol, "s1", "ann")
	require.NoError(t, err)

	taker := newOrder("b1", "bob", models.SideYes, 5, 4, now)
	fills := b.PlaceBuy(taker)
	assert.Empty(t, fills)
}

func TestDepth_SellSideOnly(t *testing.T) {
	b := New()
	now := time.Now()

	b.PlaceSell(newOrder("s1", "ann", models.SideYes, 5, 4, now))
	b.PlaceSell(newOrder("s2", "bob", models.SideYes, 3, 4, now))
	b.PlaceSell(newOrder("s3", "cat", models.SideNo, 7, 6, now))
	// Resting buys do not contribute to displayed depth.
	b.PlaceBuy(newOrder("b1", "dan", models.SideYes, 9, 2, now))

	snap := b.Depth(symbol)
	assert.Equal(t, int64(8), snap.YesOrderBook[4].Quantity)
	assert.Equal(t, int64(7), snap.NoOrderBook[6].Quantity)
	assert.Len(t, snap.YesOrderBook, 1)
	assert.Len(t, snap.NoOrderBook, 1)
}

func TestDepth_ExcludesTerminalOrders(t *testing.T) {
	b := New()
	now := time.Now()

	b.PlaceSell(newOrder("s1", "ann", models.SideYes, 5, 4, now))
	b.PlaceSell(newOrder("s2", "bob", models.SideYes, 3, 5, now))
	_, err := b.CancelSell(symbol, "s2", "bob")
	require.NoError(t, err)
	b.PlaceBuy(newOrder("b1", "cat", models.SideYes, 5, 4, now)) // fills s1

	snap := b.Depth(symbol)
	assert.Empty(t, snap.YesOrderBook)
}

func TestCancelAllResting(t *testing.T) {
	b := New()
	now := time.Now()

	b.PlaceBuy(newOrder("b1", "ann", models.SideYes, 5, 4, now))
	b.PlaceSell(newOrder("s1", "bob", models.SideNo, 5, 6, now))
	filled := newOrder("s2", "cat", models.SideYes, 5, 4, now)
	b.PlaceSell(filled)
	b.PlaceBuy(newOrder("b2", "dan", models.SideYes, 5, 4, now)) // fills s2

	buys, sells := b.CancelAllResting(symbol)
	assert.Len(t, buys, 1)
	assert.Len(t, sells, 1)
	assert.Equal(t, models.OrderFilled, filled.Status) // untouched
	for _, o := range append(buys, sells...) {
		assert.Equal(t, models.OrderCancelled, o.Status)
	}
}
