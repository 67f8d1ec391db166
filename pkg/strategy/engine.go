// Package strategy decides, for one tick of market data and account orders,
// which orders to cancel and place. It holds no state between ticks.
package strategy

import (
	"fmt"

	"github.com/joripage/makerbot/pkg/numeric"
	"github.com/joripage/makerbot/pkg/order"
	"github.com/joripage/makerbot/pkg/series"
	"github.com/joripage/makerbot/pkg/venue"
	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

// Settings are the strategy knobs of one market.
type Settings struct {
	MaxFundsInFlight  decimal.Decimal
	MaxFundsInOrder   decimal.Decimal
	MaxDropPercentage int
	StablePrice       decimal.Decimal
	BuyDownInterval   decimal.Decimal
	Straddle          decimal.Decimal
}

// Tick is everything one evaluation looks at.
type Tick struct {
	Series series.Series
	Frame  series.Frame
	Orders []order.Order
	// Available is the free balance of the quote asset.
	Available decimal.Decimal
}

type Engine struct {
	settings Settings
	market   *venue.Market
}

func NewEngine(settings Settings, market *venue.Market) *Engine {
	return &Engine{settings: settings, market: market}
}

// Evaluate runs the buy-leg state machine: place a scrum buy when there is
// none, split a filled buy into its paired sell and a fresh buy, and move an
// unfilled buy that is no longer competitive.
func (e *Engine) Evaluate(t Tick) (Decision, error) {
	sells := order.ActiveSells(t.Orders)
	buy, err := LastBuy(t.Orders)
	if err != nil {
		return Decision{}, err
	}

	maxAmount := decimal.Min(e.MaxOrderFunds(t.Orders), t.Available)
	if maxAmount.LessThan(e.market.MinTradeSizeB) {
		return Decision{Wait: WaitFunds, Reason: ReasonNoFunds}, nil
	}

	ok, err := e.ShouldPlaceBuy(t.Series)
	if err != nil {
		return Decision{}, err
	}
	if !ok {
		return Decision{Reason: ReasonNotBuying}, nil
	}

	// a buy that left the book without trading has nothing left to manage
	if buy != nil && !buy.IsActive() && !buy.Filled().IsPositive() {
		buy = nil
	}

	if len(sells) == 0 {
		d, err := e.scrumBuy(t, buy, maxAmount)
		d.Wait = WaitPlaced
		return d, err
	}
	return e.makeMarket(t, sells, buy, maxAmount)
}

func (e *Engine) scrumBuy(t Tick, buy *order.Order, maxAmount decimal.Decimal) (Decision, error) {
	next, ok, err := e.nextBuy(t, maxAmount)
	if err != nil || !ok {
		return Decision{Reason: ReasonNoSignal}, err
	}

	switch {
	case buy == nil:
		return Decision{Actions: []Action{place(next, "", ReasonScrumBuy)}, Reason: ReasonScrumBuy}, nil
	case buy.Filled().IsPositive():
		return e.splitFilled(*buy, next)
	case !e.IsTopBid(*buy, t.Frame):
		return Decision{
			Actions: []Action{
				cancel(*buy, ReasonNotTopBid),
				place(next, buy.ID(), ReasonNotTopBid),
			},
			Reason: ReasonNotTopBid,
		}, nil
	}
	return Decision{Reason: ReasonHold}, nil
}

func (e *Engine) makeMarket(t Tick, sells []order.Order, buy *order.Order, maxAmount decimal.Decimal) (Decision, error) {
	if buy == nil {
		next, ok, err := e.nextBuy(t, maxAmount)
		if err != nil || !ok {
			return Decision{Reason: ReasonNoSignal}, err
		}
		return Decision{Actions: []Action{place(next, "", ReasonScrumBuy)}, Wait: WaitPlaced, Reason: ReasonScrumBuy}, nil
	}

	if buy.Filled().IsPositive() {
		next, ok, err := e.nextBuy(t, maxAmount)
		if err != nil || !ok {
			return Decision{Reason: ReasonNoSignal}, err
		}
		return e.splitFilled(*buy, next)
	}

	if !e.ShouldRebuy(sells, *buy) || e.IsTopBid(*buy, t.Frame) {
		return Decision{Reason: ReasonHold}, nil
	}

	price, ok, err := e.BuyPrice(t.Frame)
	if err != nil || !ok {
		return Decision{Reason: ReasonNoSignal}, err
	}
	next, err := order.New(price, buy.Amount(), order.Buy)
	if err != nil {
		return Decision{}, err
	}
	if next, err = next.ConstrainPrice(e.market); err != nil {
		return Decision{}, err
	}
	return Decision{
		Actions: []Action{
			cancel(*buy, ReasonRebuy),
			place(next, buy.ID(), ReasonRebuy),
		},
		Reason: ReasonRebuy,
	}, nil
}

// splitFilled cancels what is left of buy, sells the filled part one
// straddle above next and places next. A filled part worth less than
// MinTradeSizeB is left unsold since the venue would reject it.
func (e *Engine) splitFilled(buy, next order.Order) (Decision, error) {
	filled := buy.Filled()
	paired, err := next.Replace(order.WithAmount(filled), order.WithAmountRemaining(filled))
	if err != nil {
		return Decision{}, err
	}
	sell, err := e.CorrespondingSell(paired)
	if err != nil {
		return Decision{}, err
	}

	var actions []Action
	if buy.IsActive() {
		actions = append(actions, cancel(buy, ReasonBuyFilled))
	}
	if !sell.Value().LessThan(e.market.MinTradeSizeB) {
		actions = append(actions, place(sell, "", ReasonPairSell))
	}
	actions = append(actions, place(next, buy.ID(), ReasonBuyFilled))
	return Decision{Actions: actions, Reason: ReasonBuyFilled}, nil
}

// nextBuy is GetBuyOrder constrained to the market and to maxAmount worth
// of quote funds. It reports false when the result would be empty.
func (e *Engine) nextBuy(t Tick, maxAmount decimal.Decimal) (order.Order, bool, error) {
	buy, ok, err := e.GetBuyOrder(t.Series, t.Frame)
	if err != nil || !ok {
		return order.Order{}, false, err
	}
	if buy, err = buy.ConstrainPrice(e.market); err != nil {
		return order.Order{}, false, err
	}
	// maxAmount is quote funds, the amount cap is in base
	buy, err = buy.ConstrainAmount(e.market, numeric.Div(maxAmount, buy.Price()))
	if err != nil {
		return order.Order{}, false, err
	}
	buy, err = buy.Replace(order.WithAmountRemaining(buy.Amount()))
	if err != nil {
		return order.Order{}, false, err
	}
	if !buy.Amount().IsPositive() {
		return order.Order{}, false, nil
	}
	return buy, true, nil
}

// ShouldPlaceBuy fails with ErrMarketCondition when the latest mid price is
// below StablePrice * (100 - MaxDropPercentage) / 100, and otherwise reports
// whether the market is buying. A book missing a side is not buying.
func (e *Engine) ShouldPlaceBuy(s series.Series) (bool, error) {
	last := s.Latest()
	if last == nil {
		return false, nil
	}
	mid, ok := series.Mid(last.Top())
	if !ok {
		return false, nil
	}
	floor := e.DropFloor()
	if mid.LessThan(floor) {
		return false, fmt.Errorf("%w: mid price %s is below max drop floor %s", ErrMarketCondition, mid, floor)
	}
	return s.IsBuying(), nil
}

// DropFloor is the lowest fair value the strategy keeps buying at.
func (e *Engine) DropFloor() decimal.Decimal {
	pct := hundred.Sub(decimal.NewFromInt(int64(e.settings.MaxDropPercentage)))
	return numeric.Div(numeric.Reduce(e.settings.StablePrice.Mul(pct)), hundred)
}

// BuyPrice is the latest microprice less BuyDownInterval.
func (e *Engine) BuyPrice(f series.Frame) (decimal.Decimal, bool, error) {
	row, ok := f.Latest()
	if !ok || !row.Micro.Valid {
		return decimal.Zero, false, nil
	}
	price := numeric.Reduce(row.Micro.Decimal.Sub(e.settings.BuyDownInterval))
	if !price.IsPositive() {
		return decimal.Zero, false, &numeric.ValidationError{Field: "price", Value: price, Reason: "must be positive"}
	}
	return price, true, nil
}

// GetBuyOrder prices a buy at BuyPrice and sizes it from the ask side,
// capped at MaxFundsInOrder worth of base asset.
func (e *Engine) GetBuyOrder(s series.Series, f series.Frame) (order.Order, bool, error) {
	price, ok, err := e.BuyPrice(f)
	if err != nil || !ok {
		return order.Order{}, false, err
	}
	maxQty := numeric.Div(e.settings.MaxFundsInOrder, price)
	amount, ok := s.SizeForSide(order.Buy, maxQty)
	if !ok {
		return order.Order{}, false, nil
	}
	buy, err := order.New(price, amount, order.Buy)
	if err != nil {
		return order.Order{}, false, err
	}
	return buy, true, nil
}

// CorrespondingSell mirrors buy one straddle higher.
func (e *Engine) CorrespondingSell(buy order.Order) (order.Order, error) {
	sell, err := buy.Replace(
		order.WithPrice(numeric.Reduce(buy.Price().Add(e.settings.Straddle))),
		order.WithSide(order.Sell),
	)
	if err != nil {
		return buy, err
	}
	return sell.ConstrainPrice(e.market)
}

// ShouldRebuy reports whether the gap between the lowest sell and buy is
// wider than Straddle + BuyDownInterval.
func (e *Engine) ShouldRebuy(sells []order.Order, buy order.Order) bool {
	low := order.Lowest(sells)
	if low == nil {
		return false
	}
	gap := low.Price().Sub(buy.Price())
	return gap.GreaterThan(e.settings.Straddle.Add(e.settings.BuyDownInterval))
}

// MaxOrderFunds halves the exposure still allowed: one half for the buy,
// the other for the sell it turns into.
func (e *Engine) MaxOrderFunds(orders []order.Order) decimal.Decimal {
	free := numeric.Reduce(e.settings.MaxFundsInFlight.Sub(order.FundsInOpenOrders(orders)))
	return numeric.Div(free, two)
}

// IsTopBid reports whether buy sits at the latest best bid.
func (e *Engine) IsTopBid(buy order.Order, f series.Frame) bool {
	row, ok := f.Latest()
	if !ok || !row.BidPrice.Valid {
		return false
	}
	return numeric.IsEqual(buy.Price(), row.BidPrice.Decimal)
}

// LastBuy returns the most recently placed buy, or nil when there is none.
// More than one OPEN or PENDING buy is an ErrStrategyInvariant.
func LastBuy(orders []order.Order) (*order.Order, error) {
	buys := order.BySide(orders, order.Buy)
	active := 0
	for _, o := range buys {
		if o.IsActive() {
			active++
		}
	}
	if active > 1 {
		return nil, fmt.Errorf("%w: %d active buy orders", ErrStrategyInvariant, active)
	}
	return order.Latest(buys), nil
}
