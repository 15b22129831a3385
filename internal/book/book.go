// Package book keeps the per-market order collections, runs price-time-priority
// matching, and records the append-only trade log. Orders are mutated in place
// and never removed; cancelled and filled orders stay behind for history but are
// skipped by matching and by the depth view.
package book

import (
	"sort"
	"time"

	"github.com/Ajaydeep123/TradeOpx/internal/errs"
	"github.com/Ajaydeep123/TradeOpx/internal/models"
)

// Fill is one match between a taker and a resting maker order. Price is always
// the maker's price.
type Fill struct {
	Maker        *models.Order
	Taker        *models.Order
	Quantity     int64
	Price        int64
	TakerIsBuyer bool
}

// Book manages buy and sell order queues per market symbol.
type Book struct {
	buyOrders  map[string][]*models.Order
	sellOrders map[string][]*models.Order
	trades     map[string][]models.Trade
}

func New() *Book {
	return &Book{
		buyOrders:  make(map[string][]*models.Order),
		sellOrders: make(map[string][]*models.Order),
		trades:     make(map[string][]models.Trade),
	}
}

// PlaceBuy matches a buy order against resting sells of the same outcome, then
// rests any remainder in the buy queue. The caller must have locked the buyer's
// cash before calling.
func (b *Book) PlaceBuy(order *models.Order) []Fill {
	fills := b.match(order, true)
	b.buyOrders[order.MarketSymbol] = append(b.buyOrders[order.MarketSymbol], order)
	sortBuys(b.buyOrders[order.MarketSymbol])
	return fills
}

// PlaceSell is the sell-side counterpart of PlaceBuy. The caller must have
// locked the seller's stock first.
func (b *Book) PlaceSell(order *models.Order) []Fill {
	fills := b.match(order, false)
	b.sellOrders[order.MarketSymbol] = append(b.sellOrders[order.MarketSymbol], order)
	sortSells(b.sellOrders[order.MarketSymbol])
	return fills
}

// match walks the opposite queue in price-time order and consumes eligible
// resting orders of the same outcome until the taker is filled.
func (b *Book) match(taker *models.Order, takerIsBuyer bool) []Fill {
	var fills []Fill

	queue := b.sellOrders[taker.MarketSymbol]
	if !takerIsBuyer {
		queue = b.buyOrders[taker.MarketSymbol]
	}

	for _, maker := range queue {
		if taker.RemainingQty <= 0 {
			break
		}
		if maker.Side != taker.Side || maker.Status.Terminal() || maker.RemainingQty <= 0 {
			continue
		}
		if takerIsBuyer && maker.Price > taker.Price {
			continue
		}
		if !takerIsBuyer && maker.Price < taker.Price {
			continue
		}

		qty := min64(taker.RemainingQty, maker.RemainingQty)
		taker.RemainingQty -= qty
		maker.RemainingQty -= qty
		setFillStatus(taker)
		setFillStatus(maker)

		fills = append(fills, Fill{
			Maker:        maker,
			Taker:        taker,
			Quantity:     qty,
			Price:        maker.Price,
			TakerIsBuyer: takerIsBuyer,
		})

		buyer, seller := taker.UserID, maker.UserID
		if !takerIsBuyer {
			buyer, seller = maker.UserID, taker.UserID
		}
		b.trades[taker.MarketSymbol] = append(b.trades[taker.MarketSymbol], models.Trade{
			Buyer:        buyer,
			Seller:       seller,
			Quantity:     qty,
			Price:        maker.Price,
			MarketSymbol: taker.MarketSymbol,
			Timestamp:    time.Now(),
		})
	}

	return fills
}

func setFillStatus(o *models.Order) {
	if o.RemainingQty == 0 {
		o.Status = models.OrderFilled
	} else if o.RemainingQty < o.Quantity {
		o.Status = models.OrderPartiallyFilled
	}
}

// CancelBuy cancels a caller-owned resting buy order. The caller refunds the
// remaining locked cash.
func (b *Book) CancelBuy(symbol, orderID, userID string) (*models.Order, error) {
	return cancel(b.buyOrders[symbol], symbol, orderID, userID)
}

// CancelSell cancels a caller-owned resting sell order. The caller releases the
// remaining locked stock.
func (b *Book) CancelSell(symbol, orderID, userID string) (*models.Order, error) {
	return cancel(b.sellOrders[symbol], symbol, orderID, userID)
}

func cancel(queue []*models.Order, symbol, orderID, userID string) (*models.Order, error) {
	for _, o := range queue {
		if o.ID != orderID {
			continue
		}
		if o.UserID != userID {
			return nil, errs.New(errs.KindUnauthorized, "order %s does not belong to caller", orderID)
		}
		if o.Status == models.OrderFilled {
			return nil, errs.New(errs.KindState, "order %s is already filled", orderID)
		}
		if o.Status == models.OrderCancelled {
			return nil, errs.New(errs.KindState, "order %s is already cancelled", orderID)
		}
		o.Status = models.OrderCancelled
		return o, nil
	}
	return nil, errs.New(errs.KindNotFound, "order %s not found in market %s", orderID, symbol)
}

// CancelAllResting cancels every non-terminal order in both queues of a market
// and returns them (buys, sells) so the caller can release the reserved value.
// Used when a market resolves.
func (b *Book) CancelAllResting(symbol string) (buys, sells []*models.Order) {
	for _, o := range b.buyOrders[symbol] {
		if !o.Status.Terminal() {
			o.Status = models.OrderCancelled
			buys = append(buys, o)
		}
	}
	for _, o := range b.sellOrders[symbol] {
		if !o.Status.Terminal() {
			o.Status = models.OrderCancelled
			sells = append(sells, o)
		}
	}
	return buys, sells
}

// Depth builds the displayed depth for a market from the resting sell orders:
// YES sells feed yesOrderBook and NO sells feed noOrderBook. Resting buys are
// not displayed. Recomputed on every call, never cached.
func (b *Book) Depth(symbol string) models.BookSnapshot {
	snap := models.BookSnapshot{
		YesOrderBook: make(models.OrderBook),
		NoOrderBook:  make(models.OrderBook),
	}
	for _, o := range b.sellOrders[symbol] {
		if o.Status.Terminal() || o.RemainingQty <= 0 {
			continue
		}
		side := snap.YesOrderBook
		if o.Side == models.SideNo {
			side = snap.NoOrderBook
		}
		level := side[o.Price]
		level.Quantity += o.RemainingQty
		side[o.Price] = level
	}
	return snap
}

// UserOrders returns the caller's orders in a market, from both queues.
func (b *Book) UserOrders(symbol, userID string) (buys, sells []*models.Order) {
	for _, o := range b.buyOrders[symbol] {
		if o.UserID == userID {
			buys = append(buys, o)
		}
	}
	for _, o := range b.sellOrders[symbol] {
		if o.UserID == userID {
			sells = append(sells, o)
		}
	}
	return buys, sells
}

// Trades returns the append-only trade history for a market.
func (b *Book) Trades(symbol string) []models.Trade {
	return b.trades[symbol]
}

// Buy orders sort highest price first, then earliest; sells lowest price first,
// then earliest. Terminal orders stay in the slices and sort with the rest.
func sortBuys(orders []*models.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].Price == orders[j].Price {
			return orders[i].Timestamp.Before(orders[j].Timestamp)
		}
		return orders[i].Price > orders[j].Price
	})
}

func sortSells(orders []*models.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].Price == orders[j].Price {
			return orders[i].Timestamp.Before(orders[j].Timestamp)
		}
		return orders[i].Price < orders[j].Price
	})
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
