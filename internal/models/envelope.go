package models

import (
	"encoding/json"
	"time"
)

// Closed set of request types carried on the inbound queue.
const (
	ReqSignup              = "signup"
	ReqSignin              = "signin"
	ReqGetMe               = "get_me"
	ReqGetAllMarkets       = "get_all_markets"
	ReqGetMarket           = "get_market"
	ReqGetAllCategories    = "get_all_categories"
	ReqCreateMarket        = "create_market"
	ReqCreateCategory      = "create_category"
	ReqOnrampINR           = "onramp_inr"
	ReqBuy                 = "buy"
	ReqSell                = "sell"
	ReqGetOrderbook        = "get_orderbook"
	ReqMint                = "mint"
	ReqCancelBuyOrder      = "cancel_buy_order"
	ReqCancelSellOrder     = "cancel_sell_order"
	ReqGetUserMarketOrders = "get_user_market_orders"
	ReqGetMarketTrades     = "get_market_trades"
	ReqCloseMarket         = "close_market"
	ReqResolveMarket       = "resolve_market"
)

// RequestEnvelope is one inbound queue item. ID is the correlation id echoed on
// the response; Payload is decoded by the handler selected by Type.
type RequestEnvelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ResponseEnvelope is one outbound bus item, published keyed by the request id.
type ResponseEnvelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Ack is the common result shape embedded in every response payload.
type Ack struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Request payloads. Field names follow the wire shapes the gateway forwards.

type SignupPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type SigninPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type TokenPayload struct {
	Token string `json:"token"`
}

type GetMarketPayload struct {
	MarketSymbol string `json:"marketSymbol"`
}

type CreateMarketPayload struct {
	Token         string    `json:"token"`
	Symbol        string    `json:"symbol"`
	EndTime       time.Time `json:"endTime"`
	Description   string    `json:"description"`
	SourceOfTruth string    `json:"sourceOfTruth"`
	CategoryTitle string    `json:"categoryTitle"`
}

type CreateCategoryPayload struct {
	Token       string `json:"token"`
	Title       string `json:"title"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

type OnrampPayload struct {
	Token  string `json:"token"`
	Amount int64  `json:"amount"`
}

// OrderPayload is shared by buy and sell. StockType is the outcome side.
type OrderPayload struct {
	Token     string `json:"token"`
	Symbol    string `json:"symbol"`
	Quantity  int64  `json:"quantity"`
	Price     int64  `json:"price"`
	StockType Side   `json:"stockType"`
}

type GetOrderbookPayload struct {
	Token  string `json:"token"`
	Symbol string `json:"symbol"`
}

type MintPayload struct {
	Token    string `json:"token"`
	Symbol   string `json:"symbol"`
	Quantity int64  `json:"quantity"`
	Price    int64  `json:"price"`
}

type CancelOrderPayload struct {
	Token        string `json:"token"`
	OrderID      string `json:"orderId"`
	MarketSymbol string `json:"marketSymbol"`
}

// MarketScopedPayload serves get_user_market_orders and get_market_trades.
type MarketScopedPayload struct {
	Token        string `json:"token"`
	MarketSymbol string `json:"marketSymbol"`
}

type CloseMarketPayload struct {
	Token  string `json:"token"`
	Symbol string `json:"symbol"`
}

type ResolveMarketPayload struct {
	Token   string `json:"token"`
	Symbol  string `json:"symbol"`
	Outcome Side   `json:"outcome"`
}

// BookSnapshot is the two-sided depth view published with orderbook deltas.
type BookSnapshot struct {
	YesOrderBook OrderBook `json:"yesOrderBook"`
	NoOrderBook  OrderBook `json:"noOrderBook"`
}

// OrderbookDelta is the market-data message published after any book mutation.
type OrderbookDelta struct {
	Success      bool         `json:"success"`
	MarketSymbol string       `json:"marketSymbol"`
	Data         BookSnapshot `json:"data"`
}
