// Package engine is the authoritative matching/ledger process. A single
// goroutine consumes the request queue and fully resolves one request before
// the next begins; every piece of shared state (users, markets, books,
// balances) is mutated only inside that loop.
package engine

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/Ajaydeep123/TradeOpx/internal/auth"
	"github.com/Ajaydeep123/TradeOpx/internal/book"
	"github.com/Ajaydeep123/TradeOpx/internal/errs"
	"github.com/Ajaydeep123/TradeOpx/internal/market"
	"github.com/Ajaydeep123/TradeOpx/internal/models"
	"github.com/Ajaydeep123/TradeOpx/internal/transport"
)

type Engine struct {
	auth  *auth.Service
	dir   *market.Directory
	book  *book.Book
	queue transport.Queue
	bus   transport.Bus
	log   *zap.Logger

	users           map[string]*models.User
	usersByEmail    map[string]*models.User
	usersByUsername map[string]*models.User
}

// New builds an engine with empty state. Construct a fresh engine per test;
// there is no ambient singleton.
func New(authSvc *auth.Service, queue transport.Queue, bus transport.Bus, log *zap.Logger) *Engine {
	return &Engine{
		auth:            authSvc,
		dir:             market.NewDirectory(),
		book:            book.New(),
		queue:           queue,
		bus:             bus,
		log:             log,
		users:           make(map[string]*models.User),
		usersByEmail:    make(map[string]*models.User),
		usersByUsername: make(map[string]*models.User),
	}
}

// Run consumes the request queue until ctx is cancelled. It must be the only
// goroutine calling ProcessRequest.
func (e *Engine) Run(ctx context.Context) {
	e.log.Info("engine started")
	for {
		raw, err := e.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				e.log.Info("engine stopping")
				return
			}
			e.log.Error("failed to dequeue request", zap.Error(err))
			continue
		}

		var env models.RequestEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			// No correlation id to respond to; all we can do is log.
			e.log.Error("malformed request envelope", zap.Error(err))
			continue
		}
		e.ProcessRequest(ctx, env)
	}
}

// ProcessRequest dispatches one envelope and publishes exactly one correlated
// response. Handler failures of any kind are mapped into the response; they
// never propagate past this boundary.
func (e *Engine) ProcessRequest(ctx context.Context, env models.RequestEnvelope) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("handler panicked", zap.String("type", env.Type), zap.Any("panic", r))
			e.respondErr(ctx, env, errs.New(errs.KindInternal, "internal error"))
		}
	}()

	data, err := e.dispatch(ctx, env)
	if err != nil {
		e.respondErr(ctx, env, err)
		return
	}
	e.respond(ctx, env, data)
}

func (e *Engine) dispatch(ctx context.Context, env models.RequestEnvelope) (any, error) {
	switch env.Type {
	case models.ReqSignup:
		return e.handleSignup(env.Payload)
	case models.ReqSignin:
		return e.handleSignin(env.Payload)
	case models.ReqGetMe:
		return e.handleGetMe(env.Payload)
	case models.ReqGetAllMarkets:
		return e.handleGetAllMarkets()
	case models.ReqGetMarket:
		return e.handleGetMarket(env.Payload)
	case models.ReqGetAllCategories:
		return e.handleGetAllCategories()
	case models.ReqCreateMarket:
		return e.handleCreateMarket(env.Payload)
	case models.ReqCreateCategory:
		return e.handleCreateCategory(env.Payload)
	case models.ReqOnrampINR:
		return e.handleOnramp(env.Payload)
	case models.ReqBuy:
		return e.handleBuy(ctx, env.Payload)
	case models.ReqSell:
		return e.handleSell(ctx, env.Payload)
	case models.ReqGetOrderbook:
		return e.handleGetOrderbook(env.Payload)
	case models.ReqMint:
		return e.handleMint(env.Payload)
	case models.ReqCancelBuyOrder:
		return e.handleCancelBuy(ctx, env.Payload)
	case models.ReqCancelSellOrder:
		return e.handleCancelSell(ctx, env.Payload)
	case models.ReqGetUserMarketOrders:
		return e.handleGetUserOrders(env.Payload)
	case models.ReqGetMarketTrades:
		return e.handleGetMarketTrades(env.Payload)
	case models.ReqCloseMarket:
		return e.handleCloseMarket(ctx, env.Payload)
	case models.ReqResolveMarket:
		return e.handleResolveMarket(ctx, env.Payload)
	default:
		return nil, errs.New(errs.KindUnsupported, "unsupported request type: %s", env.Type)
	}
}

// respond publishes the correlated success response. A publish failure is the
// one error the engine cannot mask; it is logged and the loop moves on.
func (e *Engine) respond(ctx context.Context, env models.RequestEnvelope, data any) {
	payload, err := json.Marshal(models.ResponseEnvelope{
		Type: env.Type + "_response",
		Data: data,
	})
	if err != nil {
		e.log.Error("failed to encode response", zap.String("type", env.Type), zap.Error(err))
		return
	}
	if err := e.bus.Publish(ctx, transport.TopicResponses, env.ID, payload); err != nil {
		e.log.Error("failed to publish response", zap.String("id", env.ID), zap.Error(err))
	}
}

func (e *Engine) respondErr(ctx context.Context, env models.RequestEnvelope, err error) {
	e.log.Warn("request failed",
		zap.String("type", env.Type),
		zap.String("kind", string(errs.KindOf(err))),
		zap.Error(err))
	e.respond(ctx, env, models.Ack{
		Success: false,
		Message: err.Error(),
		Error:   string(errs.KindOf(err)),
	})
}

// authUser verifies a bearer token and re-resolves the user against the live
// table; a valid token for an unknown id fails.
func (e *Engine) authUser(token string) (*models.User, error) {
	if token == "" {
		return nil, errs.New(errs.KindAuth, "missing token")
	}
	id, err := e.auth.Verify(token)
	if err != nil {
		return nil, err
	}
	user, ok := e.users[id]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "user not found")
	}
	return user, nil
}

func (e *Engine) authAdmin(token string) (*models.User, error) {
	user, err := e.authUser(token)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(string(user.Role), string(models.RoleAdmin)) {
		return nil, errs.New(errs.KindUnauthorized, "admin access required")
	}
	return user, nil
}

// publishBookDelta pushes the recomputed depth for a market onto the
// market-data bus after any book mutation.
func (e *Engine) publishBookDelta(ctx context.Context, symbol string) {
	payload, err := json.Marshal(models.ResponseEnvelope{
		Type: "orderbook_update",
		Data: models.OrderbookDelta{
			Success:      true,
			MarketSymbol: symbol,
			Data:         e.book.Depth(symbol),
		},
	})
	if err != nil {
		e.log.Error("failed to encode orderbook delta", zap.Error(err))
		return
	}
	if err := e.bus.Publish(ctx, transport.TopicOrderbookUpdates, symbol, payload); err != nil {
		e.log.Error("failed to publish orderbook delta", zap.String("market", symbol), zap.Error(err))
	}
}

// publishMarketUpdate pushes the market's current state (prices, volume,
// status) for notifier consumers.
func (e *Engine) publishMarketUpdate(ctx context.Context, m *models.Market) {
	payload, err := json.Marshal(models.ResponseEnvelope{
		Type: "market_update",
		Data: struct {
			Success      bool           `json:"success"`
			MarketSymbol string         `json:"marketSymbol"`
			Data         *models.Market `json:"data"`
		}{true, m.Symbol, m},
	})
	if err != nil {
		e.log.Error("failed to encode market update", zap.Error(err))
		return
	}
	if err := e.bus.Publish(ctx, transport.TopicMarketUpdates, m.Symbol, payload); err != nil {
		e.log.Error("failed to publish market update", zap.String("market", m.Symbol), zap.Error(err))
	}
}
