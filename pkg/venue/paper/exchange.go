package paper

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/joripage/makerbot/pkg/clock"
	"github.com/joripage/makerbot/pkg/logging"
	"github.com/joripage/makerbot/pkg/order"
	"github.com/joripage/makerbot/pkg/venue"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SessionTTL is how long a paper login stays valid.
const SessionTTL = 24 * time.Hour

// Exchange is an in-memory venue. The market book comes from a BookSource;
// the account's own orders rest in a price-time book, fill against the
// market's liquidity and are merged into the book the bot sees.
type Exchange struct {
	mu sync.Mutex

	clk      clock.Clock
	market   venue.Market
	source   BookSource
	interval time.Duration

	updateID int64
	lastStep time.Time
	asks     []venue.PriceLevel // best first
	bids     []venue.PriceLevel // best first

	book     *restingBook
	orders   map[string]*restingOrder
	placed   []*restingOrder
	seq      int64
	balances map[string]*venue.Balance
	rules    []RiskRule
}

type Option func(*Exchange)

// WithStepInterval sets the minimum clock time between two book steps.
// Zero steps the source on every GetOrderBook.
func WithStepInterval(d time.Duration) Option {
	return func(e *Exchange) {
		e.interval = d
	}
}

// WithRiskRules adds placement checks on top of the tick size and minimum
// size rules every exchange applies.
func WithRiskRules(rules ...RiskRule) Option {
	return func(e *Exchange) {
		e.rules = append(e.rules, rules...)
	}
}

// WithBalance credits asset with amount.
func WithBalance(asset string, amount decimal.Decimal) Option {
	return func(e *Exchange) {
		e.balance(asset).Available = amount
	}
}

func New(market venue.Market, source BookSource, clk clock.Clock, opts ...Option) *Exchange {
	e := &Exchange{
		clk:      clk,
		market:   market,
		source:   source,
		book:     newRestingBook(),
		orders:   make(map[string]*restingOrder),
		balances: make(map[string]*venue.Balance),
		rules:    defaultRules(market),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FromConfig builds an exchange for marketName, replaying ReplayFile when set
// and generating a random walk otherwise.
func FromConfig(cfg Config, marketName string, clk clock.Clock) (*Exchange, error) {
	p, err := cfg.parse(marketName)
	if err != nil {
		return nil, err
	}

	var source BookSource
	if cfg.ReplayFile != "" {
		replay, err := OpenReplay(cfg.ReplayFile)
		if err != nil {
			return nil, err
		}
		source = replay
	} else {
		source = NewRandomWalk(p.walk)
	}

	opts := []Option{WithStepInterval(p.interval)}
	if p.priceBand.Valid {
		opts = append(opts, WithRiskRules(NewLimitPriceRule(p.priceBand.Decimal)))
	}
	for asset, amount := range p.balances {
		opts = append(opts, WithBalance(asset, amount))
	}
	return New(p.market, source, clk, opts...), nil
}

func venueErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", venue.ErrVenue, op, err)
}

func (e *Exchange) checkMarket(symbol string) error {
	if symbol != e.market.Name {
		return fmt.Errorf("%w: %q", venue.ErrUnknownMarket, symbol)
	}
	return nil
}

func (e *Exchange) balance(asset string) *venue.Balance {
	b, ok := e.balances[asset]
	if !ok {
		b = &venue.Balance{Asset: asset}
		e.balances[asset] = b
	}
	return b
}

func (e *Exchange) Login(ctx context.Context, user, secret string, extra map[string]string) (*venue.Session, error) {
	if user == "" || secret == "" {
		return nil, venueErr("login", fmt.Errorf("missing credentials"))
	}
	return &venue.Session{Account: user, ExpiresAt: e.clk.Now().Add(SessionTTL)}, nil
}

func (e *Exchange) GetMarket(ctx context.Context, symbol string) (*venue.Market, error) {
	if err := e.checkMarket(symbol); err != nil {
		return nil, venueErr("get market", err)
	}
	m := e.market
	return &m, nil
}

func (e *Exchange) GetOrderBook(ctx context.Context, symbol string) (*venue.Snapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkMarket(symbol); err != nil {
		return nil, venueErr("get order book", err)
	}
	if e.updateID == 0 || e.clk.Now().Sub(e.lastStep) >= e.interval {
		if err := e.step(ctx); err != nil {
			return nil, venueErr("get order book", err)
		}
	}
	return e.snapshot(), nil
}

// step pulls the next market book and fills resting orders that it crosses.
func (e *Exchange) step(ctx context.Context) error {
	asks, bids, err := e.source.Next(ctx)
	if err != nil {
		return err
	}
	e.asks = slices.Clone(asks)
	e.bids = slices.Clone(bids)
	slices.Reverse(e.bids)
	e.updateID++
	e.lastStep = e.clk.Now()

	for _, side := range []order.Side{order.Buy, order.Sell} {
		counter := e.counter(side)
		for {
			o := e.book.best(side)
			if o == nil || len(counter) == 0 || !crosses(side, o.price, counter[0].Price) {
				break
			}
			filled := take(o, counter)
			if filled.IsZero() {
				break
			}
			e.settle(ctx, o, filled)
			if o.remaining.IsPositive() {
				break
			}
		}
		e.prune(side)
	}
	return nil
}

func (e *Exchange) counter(side order.Side) []venue.PriceLevel {
	if side == order.Buy {
		return e.asks
	}
	return e.bids
}

// prune drops market levels emptied by fills.
func (e *Exchange) prune(side order.Side) {
	keep := func(l venue.PriceLevel) bool { return !l.Amount.IsPositive() }
	if side == order.Buy {
		e.asks = slices.DeleteFunc(e.asks, keep)
	} else {
		e.bids = slices.DeleteFunc(e.bids, keep)
	}
}

// settle books a fill of qty at the order's limit price.
func (e *Exchange) settle(ctx context.Context, o *restingOrder, qty decimal.Decimal) {
	base := e.balance(e.market.BaseAsset())
	quote := e.balance(e.market.QuoteAsset())
	value := qty.Mul(o.price)
	if o.side == order.Buy {
		quote.Locked = quote.Locked.Sub(value)
		base.Available = base.Available.Add(qty)
	} else {
		base.Locked = base.Locked.Sub(qty)
		quote.Available = quote.Available.Add(value)
	}
	if !o.remaining.IsPositive() {
		o.status = order.StatusFilled
		e.book.remove(o)
	}
	logging.GetLogger(ctx).Debug(ctx, "paper fill",
		zap.String("order_id", o.id),
		zap.String("side", string(o.side)),
		zap.String("price", o.price.String()),
		zap.String("qty", qty.String()),
		zap.String("status", string(o.status)))
}

// release returns the funds still locked by o's remaining amount.
func (e *Exchange) release(o *restingOrder) {
	if o.side == order.Buy {
		quote := e.balance(e.market.QuoteAsset())
		value := o.remaining.Mul(o.price)
		quote.Locked = quote.Locked.Sub(value)
		quote.Available = quote.Available.Add(value)
		return
	}
	base := e.balance(e.market.BaseAsset())
	base.Locked = base.Locked.Sub(o.remaining)
	base.Available = base.Available.Add(o.remaining)
}

func (e *Exchange) snapshot() *venue.Snapshot {
	asks := mergeLevels(e.asks, e.book.levels(order.Sell))
	bids := mergeLevels(e.bids, e.book.levels(order.Buy))
	slices.SortFunc(asks, func(a, b venue.PriceLevel) int { return a.Price.Cmp(b.Price) })
	slices.SortFunc(bids, func(a, b venue.PriceLevel) int { return a.Price.Cmp(b.Price) })
	return &venue.Snapshot{
		Market:   e.market.Name,
		UpdateID: e.updateID,
		Asks:     asks,
		Bids:     bids,
	}
}

func mergeLevels(market, own []venue.PriceLevel) []venue.PriceLevel {
	out := slices.Clone(market)
	for _, l := range own {
		idx := slices.IndexFunc(out, func(m venue.PriceLevel) bool { return m.Price.Equal(l.Price) })
		if idx < 0 {
			out = append(out, l)
			continue
		}
		out[idx].Amount = out[idx].Amount.Add(l.Amount)
	}
	return out
}

func (e *Exchange) PlaceLimitOrder(ctx context.Context, req *venue.LimitOrderRequest) (*venue.PlacedOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkMarket(req.Market); err != nil {
		return nil, venueErr("place order", err)
	}
	side, err := order.ParseSide(req.Side)
	if err != nil {
		return nil, venueErr("place order", err)
	}
	policy := order.GoodTilCancelled
	if req.CancellationPolicy != "" {
		policy, err = order.ParseCancellationPolicy(req.CancellationPolicy)
		if err != nil {
			return nil, venueErr("place order", err)
		}
	}
	if !req.Price.IsPositive() || !req.Amount.IsPositive() {
		return nil, venueErr("place order", fmt.Errorf("price %s and amount %s must be positive", req.Price, req.Amount))
	}
	book := e.snapshot()
	for _, rule := range e.rules {
		if err := rule.Check(req, book); err != nil {
			return nil, venueErr("place order", err)
		}
	}

	o := &restingOrder{
		side:      side,
		price:     req.Price,
		amount:    req.Amount,
		remaining: req.Amount,
		policy:    policy,
		status:    order.StatusOpen,
		placedAt:  e.clk.Now(),
	}
	counter := e.counter(side)
	crossing := len(counter) > 0 && crosses(side, o.price, counter[0].Price)
	if crossing && !req.AllowTaker {
		return nil, venueErr("place order", fmt.Errorf("maker-only order at %s would take liquidity", o.price))
	}
	if err := e.lock(o); err != nil {
		return nil, venueErr("place order", err)
	}

	e.seq++
	o.id = strconv.FormatInt(e.seq, 10)
	e.orders[o.id] = o
	e.placed = append(e.placed, o)

	if policy == order.FillOrKill && available(o, counter).LessThan(o.amount) {
		e.release(o)
		o.status = order.StatusCancelled
		return &venue.PlacedOrder{ID: o.id, Status: string(o.status)}, nil
	}

	if crossing {
		if filled := take(o, counter); filled.IsPositive() {
			e.settle(ctx, o, filled)
			e.prune(side)
		}
	}
	if o.remaining.IsPositive() {
		if policy == order.ImmediateOrCancel {
			e.release(o)
			o.status = order.StatusCancelled
		} else {
			e.book.add(o)
		}
	}

	return &venue.PlacedOrder{ID: o.id, Status: string(o.status)}, nil
}

// lock reserves the funds o needs: quote for a buy, base for a sell.
func (e *Exchange) lock(o *restingOrder) error {
	asset, need := e.market.QuoteAsset(), o.amount.Mul(o.price)
	if o.side == order.Sell {
		asset, need = e.market.BaseAsset(), o.amount
	}
	b := e.balance(asset)
	if b.Available.LessThan(need) {
		return fmt.Errorf("%w: need %s %s, have %s", venue.ErrInsufficientFunds, need, asset, b.Available)
	}
	b.Available = b.Available.Sub(need)
	b.Locked = b.Locked.Add(need)
	return nil
}

func (e *Exchange) CancelOrder(ctx context.Context, id, symbol string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkMarket(symbol); err != nil {
		return venueErr("cancel order", err)
	}
	o, ok := e.orders[id]
	if !ok {
		return venueErr("cancel order", fmt.Errorf("%w: %s", venue.ErrOrderNotFound, id))
	}
	if !o.status.Active() {
		return venueErr("cancel order", fmt.Errorf("%w: %s is %s", venue.ErrNotCancellable, id, o.status))
	}
	e.book.remove(o)
	e.release(o)
	o.status = order.StatusCancelled
	return nil
}

func (e *Exchange) ListAccountOrders(ctx context.Context, symbol string, statuses []string, rangeStart time.Time) ([]venue.RawOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.checkMarket(symbol); err != nil {
		return nil, venueErr("list orders", err)
	}
	var out []venue.RawOrder
	for _, o := range e.placed {
		if len(statuses) > 0 && !slices.Contains(statuses, string(o.status)) {
			continue
		}
		if o.placedAt.Before(rangeStart) {
			continue
		}
		out = append(out, o.raw(e.market.Name))
	}
	return out, nil
}

func (e *Exchange) GetAccountBalance(ctx context.Context, asset string) (*venue.Balance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	b := *e.balance(asset)
	return &b, nil
}
