package paper

import (
	"fmt"

	"github.com/joripage/makerbot/pkg/venue"
	"github.com/shopspring/decimal"
)

// RiskRule vets an order before it locks funds. Rejections wrap
// venue.ErrOrderRejected.
type RiskRule interface {
	Check(req *venue.LimitOrderRequest, book *venue.Snapshot) error
}

func reject(format string, args ...any) error {
	return fmt.Errorf("%w: %s", venue.ErrOrderRejected, fmt.Sprintf(format, args...))
}

// TickSizeRule requires prices on the quote increment and amounts on the
// base increment.
type TickSizeRule struct {
	market venue.Market
}

func (r TickSizeRule) Check(req *venue.LimitOrderRequest, _ *venue.Snapshot) error {
	if step := r.market.MinTradeIncrementB; step.IsPositive() && !req.Price.Mod(step).IsZero() {
		return reject("price %s is not a multiple of %s", req.Price, step)
	}
	if step := r.market.MinTradeIncrement; step.IsPositive() && !req.Amount.Mod(step).IsZero() {
		return reject("amount %s is not a multiple of %s", req.Amount, step)
	}
	return nil
}

// MinSizeRule requires an order value of at least MinTradeSizeB.
type MinSizeRule struct {
	market venue.Market
}

func (r MinSizeRule) Check(req *venue.LimitOrderRequest, _ *venue.Snapshot) error {
	if value := req.Price.Mul(req.Amount); value.LessThan(r.market.MinTradeSizeB) {
		return reject("order value %s is below %s", value, r.market.MinTradeSizeB)
	}
	return nil
}

func NewTickSizeRule(m venue.Market) TickSizeRule { return TickSizeRule{market: m} }

func NewMinSizeRule(m venue.Market) MinSizeRule { return MinSizeRule{market: m} }

// LimitPriceRule rejects prices more than pct percent away from the mid of
// the current book. A book missing a side is not checked.
type LimitPriceRule struct {
	pct decimal.Decimal
}

func (r LimitPriceRule) Check(req *venue.LimitOrderRequest, book *venue.Snapshot) error {
	if book == nil || len(book.Asks) == 0 || len(book.Bids) == 0 {
		return nil
	}
	mid := book.Asks[0].Price.Add(book.Bids[len(book.Bids)-1].Price).Div(decimal.NewFromInt(2))
	band := mid.Mul(r.pct).Div(decimal.NewFromInt(100))
	ceil, floor := mid.Add(band), mid.Sub(band)
	if req.Price.GreaterThan(ceil) || req.Price.LessThan(floor) {
		return reject("price %s is outside [%s, %s]", req.Price, floor, ceil)
	}
	return nil
}

func NewLimitPriceRule(pct decimal.Decimal) LimitPriceRule {
	return LimitPriceRule{pct: pct}
}

func defaultRules(m venue.Market) []RiskRule {
	return []RiskRule{NewTickSizeRule(m), NewMinSizeRule(m)}
}
