package models

import "time"

// Price domain: integer prices strictly between 0 and PriceMax. A YES share and a
// NO share of the same market together are always worth PriceMax.
const PriceMax = 10

// Cash is held in paise. Onramp amounts arrive in rupees and are scaled on credit;
// order and mint costs are scaled the same way so every cash movement is in paise.
const PaisePerRupee = 100

// Upper bounds on user-supplied sizes. Every cost is a product of a price
// (< PriceMax), a quantity or rupee amount, and PaisePerRupee; these caps keep
// those products far below the int64 range so cost arithmetic cannot wrap.
const (
	MaxOrderQuantity = 1_000_000_000
	MaxOnrampRupees  = 1_000_000_000
)

// Side is one of the two binary outcomes of a market.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Opposite returns the other outcome.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

type MarketStatus string

const (
	MarketActive   MarketStatus = "ACTIVE"
	MarketClosed   MarketStatus = "CLOSED"
	MarketResolved MarketStatus = "RESOLVED"
)

type OrderStatus string

const (
	OrderPending         OrderStatus = "PENDING"
	OrderPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderFilled          OrderStatus = "FILLED"
	OrderCancelled       OrderStatus = "CANCELLED"
)

// Terminal reports whether no further transitions are allowed from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderFilled || s == OrderCancelled
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Position is a user's holding of one outcome of one market. Quantity is owned and
// tradable; Locked is reserved by resting sell orders.
type Position struct {
	Quantity int64 `json:"quantity"`
	Locked   int64 `json:"locked"`
}

// CashBalance is cash in paise, split into available and locked buckets.
type CashBalance struct {
	Available int64 `json:"available"`
	Locked    int64 `json:"locked"`
}

// Balance is the full per-user balance: cash plus per-market per-side positions.
type Balance struct {
	Cash   CashBalance                   `json:"inr"`
	Stocks map[string]map[Side]*Position `json:"stocks"`
}

// NewBalance returns an empty balance with an initialized stock map.
func NewBalance() *Balance {
	return &Balance{Stocks: make(map[string]map[Side]*Position)}
}

// Position returns the position for symbol/side, or nil if none exists.
func (b *Balance) Position(symbol string, side Side) *Position {
	m, ok := b.Stocks[symbol]
	if !ok {
		return nil
	}
	return m[side]
}

// EnsurePosition returns the position for symbol/side, creating it if absent.
func (b *Balance) EnsurePosition(symbol string, side Side) *Position {
	m, ok := b.Stocks[symbol]
	if !ok {
		m = make(map[Side]*Position)
		b.Stocks[symbol] = m
	}
	p, ok := m[side]
	if !ok {
		p = &Position{}
		m[side] = p
	}
	return p
}

// User is a registered account. Balances are owned by the engine and mutated only
// inside its dispatch loop.
type User struct {
	ID           string   `json:"id"`
	Username     string   `json:"username"`
	Email        string   `json:"email"`
	PasswordHash string   `json:"-"`
	Role         Role     `json:"role"`
	Balance      *Balance `json:"balance"`
}

// Category groups markets. Immutable once created.
type Category struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

// Market is a binary prediction market.
type Market struct {
	ID              string       `json:"id"`
	Symbol          string       `json:"symbol"`
	Description     string       `json:"description"`
	EndTime         time.Time    `json:"endTime"`
	SourceOfTruth   string       `json:"sourceOfTruth"`
	CategoryID      string       `json:"categoryId"`
	CategoryTitle   string       `json:"categoryTitle"`
	Status          MarketStatus `json:"status"`
	LastYesPrice    int64        `json:"lastYesPrice"`
	LastNoPrice     int64        `json:"lastNoPrice"`
	TotalVolume     int64        `json:"totalVolume"`
	ResolvedOutcome Side         `json:"resolvedOutcome,omitempty"`
	CreatedBy       string       `json:"createdBy"`
	Timestamp       time.Time    `json:"timestamp"`
}

// Order is a resting or historical buy/sell order. Orders are appended on
// placement and mutated in place; they are never removed from their collection.
type Order struct {
	ID           string      `json:"id"`
	UserID       string      `json:"userId"`
	MarketSymbol string      `json:"marketSymbol"`
	Side         Side        `json:"side"`
	Quantity     int64       `json:"quantity"`
	RemainingQty int64       `json:"remainingQty"`
	Price        int64       `json:"price"`
	Status       OrderStatus `json:"status"`
	Timestamp    time.Time   `json:"timestamp"`
}

// Trade is one fill event, recorded append-only per market.
type Trade struct {
	Buyer        string    `json:"buyer"`
	Seller       string    `json:"seller"`
	Quantity     int64     `json:"quantity"`
	Price        int64     `json:"price"`
	MarketSymbol string    `json:"marketSymbol"`
	Timestamp    time.Time `json:"timestamp"`
}

// PriceLevel is aggregated resting quantity at one price.
type PriceLevel struct {
	Quantity int64 `json:"quantity"`
}

// OrderBook is the derived depth view for one side of a market: price -> quantity.
type OrderBook map[int64]PriceLevel
