package engine

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ajaydeep123/TradeOpx/internal/book"
	"github.com/Ajaydeep123/TradeOpx/internal/errs"
	"github.com/Ajaydeep123/TradeOpx/internal/ledger"
	"github.com/Ajaydeep123/TradeOpx/internal/models"
)

// Response payloads. Each embeds the common Ack and adds type-specific fields.

type SignupResponse struct {
	models.Ack
	User *models.User `json:"user"`
}

type SigninResponse struct {
	models.Ack
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type UserResponse struct {
	models.Ack
	User *models.User `json:"user"`
}

type MarketResponse struct {
	models.Ack
	Market *models.Market `json:"market"`
}

type MarketsResponse struct {
	models.Ack
	Markets []*models.Market `json:"markets"`
}

type CategoryResponse struct {
	models.Ack
	Category *models.Category `json:"category"`
}

type CategoriesResponse struct {
	models.Ack
	Categories []*models.Category `json:"categories"`
}

type BalanceResponse struct {
	models.Ack
	Balance *models.Balance `json:"balance"`
}

type OrderResponse struct {
	models.Ack
	Order *models.Order `json:"order"`
}

type OrderbookResponse struct {
	models.Ack
	MarketSymbol string              `json:"marketSymbol"`
	Data         models.BookSnapshot `json:"data"`
}

type UserOrdersResponse struct {
	models.Ack
	BuyOrders  []*models.Order `json:"buyOrders"`
	SellOrders []*models.Order `json:"sellOrders"`
}

type TradesResponse struct {
	models.Ack
	Trades []models.Trade `json:"trades"`
}

func ok(msg string) models.Ack {
	return models.Ack{Success: true, Message: msg}
}

func decode[T any](raw json.RawMessage) (T, error) {
	var p T
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, errs.Wrap(errs.KindValidation, err, "malformed payload")
	}
	return p, nil
}

func (e *Engine) handleSignup(raw json.RawMessage) (any, error) {
	p, err := decode[models.SignupPayload](raw)
	if err != nil {
		return nil, err
	}
	if len(p.Username) < 3 {
		return nil, errs.New(errs.KindValidation, "username must be at least 3 characters")
	}
	if !strings.Contains(p.Email, "@") {
		return nil, errs.New(errs.KindValidation, "invalid email address")
	}
	if len(p.Password) < 8 {
		return nil, errs.New(errs.KindValidation, "password must be at least 8 characters")
	}
	role := models.Role(strings.ToLower(p.Role))
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, errs.New(errs.KindValidation, "role must be user or admin")
	}
	if _, exists := e.usersByUsername[p.Username]; exists {
		return nil, errs.New(errs.KindState, "username %q is taken", p.Username)
	}
	if _, exists := e.usersByEmail[p.Email]; exists {
		return nil, errs.New(errs.KindState, "email %q is already registered", p.Email)
	}

	hash, err := e.auth.HashPassword(p.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		ID:           uuid.NewString(),
		Username:     p.Username,
		Email:        p.Email,
		PasswordHash: hash,
		Role:         role,
		Balance:      models.NewBalance(),
	}
	e.users[user.ID] = user
	e.usersByEmail[user.Email] = user
	e.usersByUsername[user.Username] = user

	e.log.Info("user created", zap.String("user", user.ID), zap.String("role", string(role)))
	return SignupResponse{Ack: ok("user created"), User: user}, nil
}

func (e *Engine) handleSignin(raw json.RawMessage) (any, error) {
	p, err := decode[models.SigninPayload](raw)
	if err != nil {
		return nil, err
	}
	user, found := e.usersByEmail[p.Email]
	if !found {
		return nil, errs.New(errs.KindAuth, "invalid credentials")
	}
	if err := e.auth.CheckPassword(user.PasswordHash, p.Password); err != nil {
		return nil, err
	}
	token, err := e.auth.Sign(user.ID)
	if err != nil {
		return nil, err
	}
	return SigninResponse{Ack: ok("signed in"), Token: token, User: user}, nil
}

func (e *Engine) handleGetMe(raw json.RawMessage) (any, error) {
	p, err := decode[models.TokenPayload](raw)
	if err != nil {
		return nil, err
	}
	user, err := e.authUser(p.Token)
	if err != nil {
		return nil, err
	}
	return UserResponse{Ack: ok(""), User: user}, nil
}

func (e *Engine) handleGetAllMarkets() (any, error) {
	return MarketsResponse{Ack: ok(""), Markets: e.dir.ListMarkets()}, nil
}

func (e *Engine) handleGetMarket(raw json.RawMessage) (any, error) {
	p, err := decode[models.GetMarketPayload](raw)
	if err != nil {
		return nil, err
	}
	m, err := e.dir.GetMarket(p.MarketSymbol)
	if err != nil {
		return nil, err
	}
	return MarketResponse{Ack: ok(""), Market: m}, nil
}

func (e *Engine) handleGetAllCategories() (any, error) {
	return CategoriesResponse{Ack: ok(""), Categories: e.dir.ListCategories()}, nil
}

func (e *Engine) handleCreateCategory(raw json.RawMessage) (any, error) {
	p, err := decode[models.CreateCategoryPayload](raw)
	if err != nil {
		return nil, err
	}
	if _, err := e.authAdmin(p.Token); err != nil {
		return nil, err
	}
	c, err := e.dir.CreateCategory(p.Title, p.Icon, p.Description)
	if err != nil {
		return nil, err
	}
	return CategoryResponse{Ack: ok("category created"), Category: c}, nil
}

func (e *Engine) handleCreateMarket(raw json.RawMessage) (any, error) {
	p, err := decode[models.CreateMarketPayload](raw)
	if err != nil {
		return nil, err
	}
	admin, err := e.authAdmin(p.Token)
	if err != nil {
		return nil, err
	}
	m, err := e.dir.CreateMarket(p.Symbol, p.EndTime, p.Description, p.SourceOfTruth, p.CategoryTitle, admin.ID)
	if err != nil {
		return nil, err
	}
	return MarketResponse{Ack: ok("market created"), Market: m}, nil
}

func (e *Engine) handleOnramp(raw json.RawMessage) (any, error) {
	p, err := decode[models.OnrampPayload](raw)
	if err != nil {
		return nil, err
	}
	user, err := e.authUser(p.Token)
	if err != nil {
		return nil, err
	}
	if p.Amount <= 0 || p.Amount > models.MaxOnrampRupees {
		return nil, errs.New(errs.KindValidation, "onramp amount must be between 1 and %d rupees", models.MaxOnrampRupees)
	}
	if err := ledger.CreditCash(user.Balance, p.Amount*models.PaisePerRupee); err != nil {
		return nil, err
	}
	return BalanceResponse{Ack: ok("onramp successful"), Balance: user.Balance}, nil
}

// handleMint creates equal quantities of YES and NO shares. The cost,
// 2 x quantity x price in paise, is spent outright rather than held locked; at
// the seeded midpoint price that equals the full redemption value per unit.
func (e *Engine) handleMint(raw json.RawMessage) (any, error) {
	p, err := decode[models.MintPayload](raw)
	if err != nil {
		return nil, err
	}
	admin, err := e.authAdmin(p.Token)
	if err != nil {
		return nil, err
	}
	if _, err := e.dir.GetActiveMarket(p.Symbol); err != nil {
		return nil, err
	}
	if p.Quantity <= 0 || p.Quantity > models.MaxOrderQuantity {
		return nil, errs.New(errs.KindValidation, "mint quantity must be between 1 and %d", models.MaxOrderQuantity)
	}
	if p.Price <= 0 || p.Price >= models.PriceMax {
		return nil, errs.New(errs.KindValidation, "price must be between 0 and %d", models.PriceMax)
	}

	cost := 2 * p.Quantity * p.Price * models.PaisePerRupee
	if err := ledger.SpendAvailableCash(admin.Balance, cost); err != nil {
		return nil, err
	}
	_ = ledger.CreditStock(admin.Balance, p.Symbol, models.SideYes, p.Quantity)
	_ = ledger.CreditStock(admin.Balance, p.Symbol, models.SideNo, p.Quantity)

	e.log.Info("minted supply",
		zap.String("market", p.Symbol),
		zap.Int64("quantity", p.Quantity),
		zap.Int64("cost", cost))
	return BalanceResponse{Ack: ok("mint successful"), Balance: admin.Balance}, nil
}

func validateOrderInput(p models.OrderPayload) error {
	if p.Symbol == "" {
		return errs.New(errs.KindValidation, "market symbol is required")
	}
	if !p.StockType.Valid() {
		return errs.New(errs.KindValidation, "stockType must be YES or NO")
	}
	if p.Quantity <= 0 || p.Quantity > models.MaxOrderQuantity {
		return errs.New(errs.KindValidation, "quantity must be between 1 and %d", models.MaxOrderQuantity)
	}
	if p.Price <= 0 || p.Price >= models.PriceMax {
		return errs.New(errs.KindValidation, "price must be between 0 and %d", models.PriceMax)
	}
	return nil
}

func (e *Engine) handleBuy(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decode[models.OrderPayload](raw)
	if err != nil {
		return nil, err
	}
	user, err := e.authUser(p.Token)
	if err != nil {
		return nil, err
	}
	m, err := e.dir.GetActiveMarket(p.Symbol)
	if err != nil {
		return nil, err
	}
	if err := validateOrderInput(p); err != nil {
		return nil, err
	}

	// Reserve the full limit cost up front; price-improved fills refund the
	// difference during settlement.
	cost := p.Price * p.Quantity * models.PaisePerRupee
	if err := ledger.LockCash(user.Balance, cost); err != nil {
		return nil, err
	}

	order := e.newOrder(user.ID, p)
	fills := e.book.PlaceBuy(order)
	e.applyFills(m, fills)

	e.publishBookDelta(ctx, p.Symbol)
	if len(fills) > 0 {
		e.publishMarketUpdate(ctx, m)
	}
	return OrderResponse{Ack: ok("buy order placed"), Order: order}, nil
}

func (e *Engine) handleSell(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decode[models.OrderPayload](raw)
	if err != nil {
		return nil, err
	}
	user, err := e.authUser(p.Token)
	if err != nil {
		return nil, err
	}
	m, err := e.dir.GetActiveMarket(p.Symbol)
	if err != nil {
		return nil, err
	}
	if err := validateOrderInput(p); err != nil {
		return nil, err
	}

	if err := ledger.LockStock(user.Balance, p.Symbol, p.StockType, p.Quantity); err != nil {
		return nil, err
	}

	order := e.newOrder(user.ID, p)
	fills := e.book.PlaceSell(order)
	e.applyFills(m, fills)

	e.publishBookDelta(ctx, p.Symbol)
	if len(fills) > 0 {
		e.publishMarketUpdate(ctx, m)
	}
	return OrderResponse{Ack: ok("sell order placed"), Order: order}, nil
}

func (e *Engine) newOrder(userID string, p models.OrderPayload) *models.Order {
	return &models.Order{
		ID:           uuid.NewString(),
		UserID:       userID,
		MarketSymbol: p.Symbol,
		Side:         p.StockType,
		Quantity:     p.Quantity,
		RemainingQty: p.Quantity,
		Price:        p.Price,
		Status:       models.OrderPending,
		Timestamp:    time.Now(),
	}
}

// applyFills settles cash and stock for each fill and updates the market's
// last prices and volume. Reservations made at placement guarantee the
// transfers cannot fail; a failure here indicates corrupted state.
func (e *Engine) applyFills(m *models.Market, fills []book.Fill) {
	for _, f := range fills {
		if err := e.settleFill(m, f); err != nil {
			e.log.Error("fill settlement failed",
				zap.String("market", m.Symbol),
				zap.Int64("quantity", f.Quantity),
				zap.Error(err))
		}
	}
}

func (e *Engine) settleFill(m *models.Market, f book.Fill) error {
	buyerID, sellerID := f.Taker.UserID, f.Maker.UserID
	buyLimit := f.Taker.Price
	if !f.TakerIsBuyer {
		buyerID, sellerID = f.Maker.UserID, f.Taker.UserID
		buyLimit = f.Maker.Price
	}
	buyer, buyerOK := e.users[buyerID]
	seller, sellerOK := e.users[sellerID]
	if !buyerOK || !sellerOK {
		return errs.New(errs.KindInternal, "fill references unknown user")
	}

	cost := f.Price * f.Quantity * models.PaisePerRupee
	locked := buyLimit * f.Quantity * models.PaisePerRupee

	if err := ledger.SpendLockedCash(buyer.Balance, cost); err != nil {
		return err
	}
	if locked > cost {
		if err := ledger.ReleaseCash(buyer.Balance, locked-cost); err != nil {
			return err
		}
	}
	if err := ledger.CreditCash(seller.Balance, cost); err != nil {
		return err
	}
	if err := ledger.SpendLockedStock(seller.Balance, m.Symbol, f.Taker.Side, f.Quantity); err != nil {
		return err
	}
	if err := ledger.CreditStock(buyer.Balance, m.Symbol, f.Taker.Side, f.Quantity); err != nil {
		return err
	}

	if f.Taker.Side == models.SideYes {
		m.LastYesPrice = f.Price
		m.LastNoPrice = models.PriceMax - f.Price
	} else {
		m.LastNoPrice = f.Price
		m.LastYesPrice = models.PriceMax - f.Price
	}
	m.TotalVolume += f.Quantity
	return nil
}

func (e *Engine) handleGetOrderbook(raw json.RawMessage) (any, error) {
	p, err := decode[models.GetOrderbookPayload](raw)
	if err != nil {
		return nil, err
	}
	if _, err := e.authUser(p.Token); err != nil {
		return nil, err
	}
	if _, err := e.dir.GetMarket(p.Symbol); err != nil {
		return nil, err
	}
	return OrderbookResponse{
		Ack:          ok(""),
		MarketSymbol: p.Symbol,
		Data:         e.book.Depth(p.Symbol),
	}, nil
}

func (e *Engine) handleCancelBuy(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decode[models.CancelOrderPayload](raw)
	if err != nil {
		return nil, err
	}
	user, err := e.authUser(p.Token)
	if err != nil {
		return nil, err
	}
	if _, err := e.dir.GetActiveMarket(p.MarketSymbol); err != nil {
		return nil, err
	}
	order, err := e.book.CancelBuy(p.MarketSymbol, p.OrderID, user.ID)
	if err != nil {
		return nil, err
	}
	refund := order.Price * order.RemainingQty * models.PaisePerRupee
	if refund > 0 {
		if err := ledger.ReleaseCash(user.Balance, refund); err != nil {
			return nil, err
		}
	}
	e.publishBookDelta(ctx, p.MarketSymbol)
	return OrderResponse{Ack: ok("buy order cancelled"), Order: order}, nil
}

func (e *Engine) handleCancelSell(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decode[models.CancelOrderPayload](raw)
	if err != nil {
		return nil, err
	}
	user, err := e.authUser(p.Token)
	if err != nil {
		return nil, err
	}
	if _, err := e.dir.GetMarket(p.MarketSymbol); err != nil {
		return nil, err
	}
	order, err := e.book.CancelSell(p.MarketSymbol, p.OrderID, user.ID)
	if err != nil {
		return nil, err
	}
	if order.RemainingQty > 0 {
		if err := ledger.ReleaseStock(user.Balance, p.MarketSymbol, order.Side, order.RemainingQty); err != nil {
			return nil, err
		}
	}
	e.publishBookDelta(ctx, p.MarketSymbol)
	return OrderResponse{Ack: ok("sell order cancelled"), Order: order}, nil
}

func (e *Engine) handleGetUserOrders(raw json.RawMessage) (any, error) {
	p, err := decode[models.MarketScopedPayload](raw)
	if err != nil {
		return nil, err
	}
	user, err := e.authUser(p.Token)
	if err != nil {
		return nil, err
	}
	if _, err := e.dir.GetMarket(p.MarketSymbol); err != nil {
		return nil, err
	}
	buys, sells := e.book.UserOrders(p.MarketSymbol, user.ID)
	return UserOrdersResponse{Ack: ok(""), BuyOrders: buys, SellOrders: sells}, nil
}

func (e *Engine) handleGetMarketTrades(raw json.RawMessage) (any, error) {
	p, err := decode[models.MarketScopedPayload](raw)
	if err != nil {
		return nil, err
	}
	if _, err := e.authUser(p.Token); err != nil {
		return nil, err
	}
	if _, err := e.dir.GetMarket(p.MarketSymbol); err != nil {
		return nil, err
	}
	return TradesResponse{Ack: ok(""), Trades: e.book.Trades(p.MarketSymbol)}, nil
}

func (e *Engine) handleCloseMarket(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decode[models.CloseMarketPayload](raw)
	if err != nil {
		return nil, err
	}
	if _, err := e.authAdmin(p.Token); err != nil {
		return nil, err
	}
	m, err := e.dir.CloseMarket(p.Symbol)
	if err != nil {
		return nil, err
	}
	e.publishMarketUpdate(ctx, m)
	return MarketResponse{Ack: ok("market closed"), Market: m}, nil
}

// handleResolveMarket settles a closed market: cancels every resting order with
// a full refund, pays each winning share the full price-domain value, and
// clears both positions.
func (e *Engine) handleResolveMarket(ctx context.Context, raw json.RawMessage) (any, error) {
	p, err := decode[models.ResolveMarketPayload](raw)
	if err != nil {
		return nil, err
	}
	if _, err := e.authAdmin(p.Token); err != nil {
		return nil, err
	}
	if !p.Outcome.Valid() {
		return nil, errs.New(errs.KindValidation, "outcome must be YES or NO")
	}
	m, err := e.dir.GetMarket(p.Symbol)
	if err != nil {
		return nil, err
	}
	if m.Status != models.MarketClosed {
		return nil, errs.New(errs.KindState, "market %q is %s, not CLOSED", p.Symbol, m.Status)
	}

	buys, sells := e.book.CancelAllResting(p.Symbol)
	for _, o := range buys {
		if o.RemainingQty > 0 {
			if holder, found := e.users[o.UserID]; found {
				_ = ledger.ReleaseCash(holder.Balance, o.Price*o.RemainingQty*models.PaisePerRupee)
			}
		}
	}
	for _, o := range sells {
		if o.RemainingQty > 0 {
			if holder, found := e.users[o.UserID]; found {
				_ = ledger.ReleaseStock(holder.Balance, p.Symbol, o.Side, o.RemainingQty)
			}
		}
	}

	m, err = e.dir.ResolveMarket(p.Symbol, p.Outcome)
	if err != nil {
		return nil, err
	}

	for _, u := range e.users {
		if pos := u.Balance.Position(p.Symbol, p.Outcome); pos != nil && pos.Quantity > 0 {
			_ = ledger.CreditCash(u.Balance, pos.Quantity*models.PriceMax*models.PaisePerRupee)
		}
		for _, side := range []models.Side{models.SideYes, models.SideNo} {
			if pos := u.Balance.Position(p.Symbol, side); pos != nil {
				pos.Quantity = 0
				pos.Locked = 0
			}
		}
	}

	e.publishBookDelta(ctx, p.Symbol)
	e.publishMarketUpdate(ctx, m)
	e.log.Info("market resolved", zap.String("market", p.Symbol), zap.String("outcome", string(p.Outcome)))
	return MarketResponse{Ack: ok("market resolved"), Market: m}, nil
}
