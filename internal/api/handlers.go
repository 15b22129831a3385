// Package api is the HTTP gateway. It validates request shape, forwards typed
// requests through the correlator, and maps engine responses onto HTTP status
// codes. All domain decisions happen in the engine.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Ajaydeep123/TradeOpx/internal/correlator"
	"github.com/Ajaydeep123/TradeOpx/internal/errs"
	"github.com/Ajaydeep123/TradeOpx/internal/models"
)

const authCookie = "authToken"

type ctxKey string

const tokenKey ctxKey = "token"

type Handler struct {
	Correlator *correlator.Correlator
	Log        *zap.Logger
}

func NewHandler(c *correlator.Correlator, log *zap.Logger) *Handler {
	return &Handler{Correlator: c, Log: log}
}

// Routes mounts all gateway endpoints.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/signup", h.Signup)
	r.Post("/signin", h.Signin)
	r.Get("/markets", h.GetMarkets)
	r.Get("/markets/{symbol}", h.GetMarket)
	r.Get("/categories", h.GetCategories)

	r.Group(func(r chi.Router) {
		r.Use(h.AuthMiddleware)
		r.Get("/me", h.GetMe)
		r.Post("/onramp", h.Onramp)
		r.Post("/order/buy", h.Buy)
		r.Post("/order/sell", h.Sell)
		r.Post("/order/cancel/buy", h.CancelBuy)
		r.Post("/order/cancel/sell", h.CancelSell)
		r.Get("/orderbook/{symbol}", h.GetOrderbook)
		r.Get("/orders/{symbol}", h.GetUserOrders)
		r.Get("/trades/{symbol}", h.GetMarketTrades)

		r.Post("/admin/category", h.CreateCategory)
		r.Post("/admin/market", h.CreateMarket)
		r.Post("/admin/mint", h.Mint)
		r.Post("/admin/market/{symbol}/close", h.CloseMarket)
		r.Post("/admin/market/{symbol}/resolve", h.ResolveMarket)
	})

	return r
}

// AuthMiddleware propagates the bearer token from the auth cookie. Token
// verification happens in the engine; the gateway only requires presence.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookie)
		if err != nil || cookie.Value == "" {
			writeError(w, http.StatusForbidden, "unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), tokenKey, cookie.Value)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func tokenFrom(r *http.Request) string {
	token, _ := r.Context().Value(tokenKey).(string)
	return token
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Username) < 3 || len(req.Username) > 255 {
		writeError(w, http.StatusBadRequest, "username must be 3-255 characters")
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	if len(req.Password) < 8 || len(req.Password) > 255 {
		writeError(w, http.StatusBadRequest, "password must be 8-255 characters")
		return
	}
	role := strings.ToLower(req.Role)
	if role != string(models.RoleUser) && role != string(models.RoleAdmin) {
		writeError(w, http.StatusBadRequest, "role must be user or admin")
		return
	}
	h.forward(w, r, models.ReqSignup, req, http.StatusCreated)
}

func (h *Handler) Signin(w http.ResponseWriter, r *http.Request) {
	var req models.SigninPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password required")
		return
	}

	resp, err := h.Correlator.SendAndAwait(r.Context(), models.ReqSignin, req)
	if err != nil {
		h.writeTransportError(w, err)
		return
	}
	data, status := splitResponse(resp, http.StatusOK)
	if status == http.StatusOK {
		// Extract the token for the auth cookie.
		var payload struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(data, &payload); err == nil && payload.Token != "" {
			http.SetCookie(w, &http.Cookie{
				Name:     authCookie,
				Value:    payload.Token,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
				Expires:  time.Now().Add(24 * time.Hour),
			})
		}
	}
	writeRaw(w, status, data)
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, models.ReqGetMe, models.TokenPayload{Token: tokenFrom(r)}, http.StatusOK)
}

func (h *Handler) GetMarkets(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, models.ReqGetAllMarkets, struct{}{}, http.StatusOK)
}

func (h *Handler) GetMarket(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if !validSymbol(symbol) {
		writeError(w, http.StatusBadRequest, "invalid market symbol")
		return
	}
	h.forward(w, r, models.ReqGetMarket, models.GetMarketPayload{MarketSymbol: symbol}, http.StatusOK)
}

func (h *Handler) GetCategories(w http.ResponseWriter, r *http.Request) {
	h.forward(w, r, models.ReqGetAllCategories, struct{}{}, http.StatusOK)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCategoryPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title required")
		return
	}
	req.Token = tokenFrom(r)
	h.forward(w, r, models.ReqCreateCategory, req, http.StatusCreated)
}

func (h *Handler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req models.CreateMarketPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validSymbol(req.Symbol) {
		writeError(w, http.StatusBadRequest, "invalid market symbol")
		return
	}
	if req.CategoryTitle == "" {
		writeError(w, http.StatusBadRequest, "categoryTitle required")
		return
	}
	if req.EndTime.Before(time.Now()) {
		writeError(w, http.StatusBadRequest, "endTime must be in the future")
		return
	}
	req.Token = tokenFrom(r)
	h.forward(w, r, models.ReqCreateMarket, req, http.StatusCreated)
}

func (h *Handler) Onramp(w http.ResponseWriter, r *http.Request) {
	var req models.OnrampPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Amount <= 0 || req.Amount > models.MaxOnrampRupees {
		writeError(w, http.StatusBadRequest, "amount out of range")
		return
	}
	req.Token = tokenFrom(r)
	h.forward(w, r, models.ReqOnrampINR, req, http.StatusOK)
}

func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	h.placeOrder(w, r, models.ReqBuy)
}

func (h *Handler) Sell(w http.ResponseWriter, r *http.Request) {
	h.placeOrder(w, r, models.ReqSell)
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request, reqType string) {
	var req models.OrderPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validSymbol(req.Symbol) {
		writeError(w, http.StatusBadRequest, "invalid market symbol")
		return
	}
	if !req.StockType.Valid() {
		writeError(w, http.StatusBadRequest, "stockType must be YES or NO")
		return
	}
	if req.Quantity <= 0 || req.Quantity > models.MaxOrderQuantity {
		writeError(w, http.StatusBadRequest, "quantity out of range")
		return
	}
	if req.Price <= 0 || req.Price >= models.PriceMax {
		writeError(w, http.StatusBadRequest, "price must be between 0 and 10")
		return
	}
	req.Token = tokenFrom(r)
	h.forward(w, r, reqType, req, http.StatusCreated)
}

func (h *Handler) Mint(w http.ResponseWriter, r *http.Request) {
	var req models.MintPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validSymbol(req.Symbol) {
		writeError(w, http.StatusBadRequest, "invalid market symbol")
		return
	}
	if req.Quantity <= 0 || req.Quantity > models.MaxOrderQuantity {
		writeError(w, http.StatusBadRequest, "quantity out of range")
		return
	}
	if req.Price <= 0 || req.Price >= models.PriceMax {
		writeError(w, http.StatusBadRequest, "price must be between 0 and 10")
		return
	}
	req.Token = tokenFrom(r)
	h.forward(w, r, models.ReqMint, req, http.StatusOK)
}

func (h *Handler) CancelBuy(w http.ResponseWriter, r *http.Request) {
	h.cancelOrder(w, r, models.ReqCancelBuyOrder)
}

func (h *Handler) CancelSell(w http.ResponseWriter, r *http.Request) {
	h.cancelOrder(w, r, models.ReqCancelSellOrder)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request, reqType string) {
	var req models.CancelOrderPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.OrderID == "" || !validSymbol(req.MarketSymbol) {
		writeError(w, http.StatusBadRequest, "orderId and marketSymbol required")
		return
	}
	req.Token = tokenFrom(r)
	h.forward(w, r, reqType, req, http.StatusOK)
}

func (h *Handler) GetOrderbook(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if !validSymbol(symbol) {
		writeError(w, http.StatusBadRequest, "invalid market symbol")
		return
	}
	h.forward(w, r, models.ReqGetOrderbook, models.GetOrderbookPayload{
		Token:  tokenFrom(r),
		Symbol: symbol,
	}, http.StatusOK)
}

func (h *Handler) GetUserOrders(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if !validSymbol(symbol) {
		writeError(w, http.StatusBadRequest, "invalid market symbol")
		return
	}
	h.forward(w, r, models.ReqGetUserMarketOrders, models.MarketScopedPayload{
		Token:        tokenFrom(r),
		MarketSymbol: symbol,
	}, http.StatusOK)
}

func (h *Handler) GetMarketTrades(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if !validSymbol(symbol) {
		writeError(w, http.StatusBadRequest, "invalid market symbol")
		return
	}
	h.forward(w, r, models.ReqGetMarketTrades, models.MarketScopedPayload{
		Token:        tokenFrom(r),
		MarketSymbol: symbol,
	}, http.StatusOK)
}

func (h *Handler) CloseMarket(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if !validSymbol(symbol) {
		writeError(w, http.StatusBadRequest, "invalid market symbol")
		return
	}
	h.forward(w, r, models.ReqCloseMarket, models.CloseMarketPayload{
		Token:  tokenFrom(r),
		Symbol: symbol,
	}, http.StatusOK)
}

func (h *Handler) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if !validSymbol(symbol) {
		writeError(w, http.StatusBadRequest, "invalid market symbol")
		return
	}
	var req struct {
		Outcome models.Side `json:"outcome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Outcome.Valid() {
		writeError(w, http.StatusBadRequest, "outcome must be YES or NO")
		return
	}
	h.forward(w, r, models.ReqResolveMarket, models.ResolveMarketPayload{
		Token:   tokenFrom(r),
		Symbol:  symbol,
		Outcome: req.Outcome,
	}, http.StatusOK)
}

// forward sends one typed request through the correlator and relays the
// engine's response, translating the result into an HTTP status.
func (h *Handler) forward(w http.ResponseWriter, r *http.Request, reqType string, payload any, successStatus int) {
	resp, err := h.Correlator.SendAndAwait(r.Context(), reqType, payload)
	if err != nil {
		h.writeTransportError(w, err)
		return
	}
	data, status := splitResponse(resp, successStatus)
	writeRaw(w, status, data)
}

func (h *Handler) writeTransportError(w http.ResponseWriter, err error) {
	var tagged *errs.Error
	if errors.As(err, &tagged) && tagged.Kind == errs.KindTimeout {
		h.Log.Warn("request timed out", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, "request timed out")
		return
	}
	h.Log.Error("failed to reach engine", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}

// splitResponse unwraps a response envelope and picks the HTTP status from the
// engine's success flag and error kind.
func splitResponse(raw json.RawMessage, successStatus int) (json.RawMessage, int) {
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || env.Data == nil {
		return raw, http.StatusInternalServerError
	}
	var ack models.Ack
	if err := json.Unmarshal(env.Data, &ack); err != nil {
		return env.Data, http.StatusInternalServerError
	}
	if ack.Success {
		return env.Data, successStatus
	}
	return env.Data, statusFor(errs.Kind(ack.Error))
}

func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation, errs.KindUnsupported:
		return http.StatusBadRequest
	case errs.KindAuth:
		return http.StatusUnauthorized
	case errs.KindUnauthorized:
		return http.StatusForbidden
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindState, errs.KindInsufficientBalance:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func validSymbol(symbol string) bool {
	return symbol != "" && len(symbol) <= 64
}

func writeRaw(w http.ResponseWriter, status int, data json.RawMessage) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": msg,
	})
}
