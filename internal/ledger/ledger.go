// Package ledger holds the invariant-preserving mutators over a user's balance.
// Every mutator runs inside the engine's single dispatch goroutine; none of them
// may leave a balance with a negative available or locked bucket.
package ledger

import (
	"github.com/Ajaydeep123/TradeOpx/internal/errs"
	"github.com/Ajaydeep123/TradeOpx/internal/models"
)

// CreditCash increases available cash (onramp, settlement receipts, refund of a
// winning payout). Amount is in paise.
func CreditCash(b *models.Balance, amount int64) error {
	if amount <= 0 {
		return errs.New(errs.KindValidation, "credit amount must be positive")
	}
	b.Cash.Available += amount
	return nil
}

// LockCash moves amount from available to locked.
func LockCash(b *models.Balance, amount int64) error {
	if amount <= 0 {
		return errs.New(errs.KindValidation, "lock amount must be positive")
	}
	if b.Cash.Available < amount {
		return errs.New(errs.KindInsufficientBalance, "insufficient balance: need %d, have %d", amount, b.Cash.Available)
	}
	b.Cash.Available -= amount
	b.Cash.Locked += amount
	return nil
}

// ReleaseCash moves amount from locked back to available (cancellation refund,
// maker-price improvement refund).
func ReleaseCash(b *models.Balance, amount int64) error {
	if amount <= 0 {
		return errs.New(errs.KindValidation, "release amount must be positive")
	}
	if b.Cash.Locked < amount {
		return errs.New(errs.KindState, "cannot release %d paise, only %d locked", amount, b.Cash.Locked)
	}
	b.Cash.Locked -= amount
	b.Cash.Available += amount
	return nil
}

// SpendLockedCash removes amount from the locked bucket. The value leaves this
// balance entirely; the caller credits the counterparty.
func SpendLockedCash(b *models.Balance, amount int64) error {
	if amount <= 0 {
		return errs.New(errs.KindValidation, "spend amount must be positive")
	}
	if b.Cash.Locked < amount {
		return errs.New(errs.KindState, "cannot spend %d paise, only %d locked", amount, b.Cash.Locked)
	}
	b.Cash.Locked -= amount
	return nil
}

// SpendAvailableCash removes amount from available cash without a prior lock.
// Used by minting, which consumes cash in exchange for a YES/NO share pair.
func SpendAvailableCash(b *models.Balance, amount int64) error {
	if amount <= 0 {
		return errs.New(errs.KindValidation, "spend amount must be positive")
	}
	if b.Cash.Available < amount {
		return errs.New(errs.KindInsufficientBalance, "insufficient balance: need %d, have %d", amount, b.Cash.Available)
	}
	b.Cash.Available -= amount
	return nil
}

// LockStock reserves qty units of a position for a resting sell order.
func LockStock(b *models.Balance, symbol string, side models.Side, qty int64) error {
	if qty <= 0 {
		return errs.New(errs.KindValidation, "lock quantity must be positive")
	}
	p := b.Position(symbol, side)
	if p == nil {
		return errs.New(errs.KindNotFound, "no %s position in market %s", side, symbol)
	}
	if p.Quantity < qty {
		return errs.New(errs.KindInsufficientBalance, "insufficient %s stock in %s: need %d, have %d", side, symbol, qty, p.Quantity)
	}
	p.Quantity -= qty
	p.Locked += qty
	return nil
}

// ReleaseStock returns qty locked units to the tradable quantity.
func ReleaseStock(b *models.Balance, symbol string, side models.Side, qty int64) error {
	if qty <= 0 {
		return errs.New(errs.KindValidation, "release quantity must be positive")
	}
	p := b.Position(symbol, side)
	if p == nil {
		return errs.New(errs.KindNotFound, "no %s position in market %s", side, symbol)
	}
	if p.Locked < qty {
		return errs.New(errs.KindState, "cannot release %d units, only %d locked", qty, p.Locked)
	}
	p.Locked -= qty
	p.Quantity += qty
	return nil
}

// SpendLockedStock removes qty locked units; the shares move to a counterparty.
func SpendLockedStock(b *models.Balance, symbol string, side models.Side, qty int64) error {
	if qty <= 0 {
		return errs.New(errs.KindValidation, "spend quantity must be positive")
	}
	p := b.Position(symbol, side)
	if p == nil {
		return errs.New(errs.KindNotFound, "no %s position in market %s", side, symbol)
	}
	if p.Locked < qty {
		return errs.New(errs.KindState, "cannot spend %d units, only %d locked", qty, p.Locked)
	}
	p.Locked -= qty
	return nil
}

// CreditStock adds qty tradable units, creating the position if needed (mint,
// fill delivery).
func CreditStock(b *models.Balance, symbol string, side models.Side, qty int64) error {
	if qty <= 0 {
		return errs.New(errs.KindValidation, "credit quantity must be positive")
	}
	b.EnsurePosition(symbol, side).Quantity += qty
	return nil
}
