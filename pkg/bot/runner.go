// Package bot runs the market-making control loop for one market.
package bot

import (
	"context"
	"errors"
	"time"

	"github.com/joripage/makerbot/config"
	"github.com/joripage/makerbot/pkg/clock"
	"github.com/joripage/makerbot/pkg/journal"
	"github.com/joripage/makerbot/pkg/logging"
	"github.com/joripage/makerbot/pkg/metrics"
	"github.com/joripage/makerbot/pkg/order"
	"github.com/joripage/makerbot/pkg/retry"
	"github.com/joripage/makerbot/pkg/series"
	"github.com/joripage/makerbot/pkg/statestore"
	"github.com/joripage/makerbot/pkg/strategy"
	"github.com/joripage/makerbot/pkg/venue"
	"go.uber.org/zap"
)

const (
	// CleanupTimeout bounds the cancel of the resting buy on shutdown.
	CleanupTimeout = 10 * time.Second

	bandWindow = 20
	bandWidth  = 2.0
)

// accountStatuses are the order states the engine needs to see.
var accountStatuses = []string{
	string(order.StatusOpen),
	string(order.StatusPending),
	string(order.StatusFilled),
}

// Runner owns the loop state of one market: the series, the last book
// update id and the venue handles. It is not safe for concurrent use.
type Runner struct {
	settings config.Settings
	creds    config.Credentials
	client   venue.Client
	clk      clock.Clock

	journal   *journal.Journal
	state     statestore.Store
	metrics   *metrics.Metrics
	retryOpts []retry.Option

	market   *venue.Market
	engine   *strategy.Engine
	series   series.Series
	updateID int64
	start    time.Time
}

type Option func(*Runner)

func WithJournal(j *journal.Journal) Option {
	return func(r *Runner) { r.journal = j }
}

func WithStateStore(s statestore.Store) Option {
	return func(r *Runner) { r.state = s }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithRetry overrides the retry budget of venue calls.
func WithRetry(opts ...retry.Option) Option {
	return func(r *Runner) { r.retryOpts = append(r.retryOpts, opts...) }
}

func New(settings config.Settings, creds config.Credentials, client venue.Client, clk clock.Clock, opts ...Option) *Runner {
	r := &Runner{
		settings: settings,
		creds:    creds,
		client:   client,
		clk:      clk,
		series:   series.Empty(),
		updateID: -1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run logs in, loads the market, bootstraps the series and then ticks until
// ctx is done or a fatal error occurs. The resting buy is cancelled on the
// way out in both cases. Run returns nil when stopped through ctx.
func (r *Runner) Run(ctx context.Context) error {
	logger := logging.GetLogger(ctx)

	if err := r.Setup(ctx); err != nil {
		return r.stopped(ctx, err)
	}
	defer r.cleanup(ctx)

	var err error
	r.series, err = series.Bootstrap(ctx, r.client, r.clk, r.settings.Bootstrap())
	if err != nil {
		return r.stopped(ctx, err)
	}
	logger.Info(ctx, "market making started",
		zap.String("market", r.settings.Market),
		zap.Int("series_length", r.series.Len()))

	for {
		wait, err := r.Tick(ctx)
		if err != nil {
			return r.stopped(ctx, err)
		}
		if err := clock.Sleep(ctx, r.clk, wait); err != nil {
			return r.stopped(ctx, err)
		}
	}
}

// stopped turns a cancelled ctx into a clean exit and records fatal errors.
func (r *Runner) stopped(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		logging.GetLogger(ctx).Info(ctx, "market making stopped")
		return nil
	}
	if r.metrics != nil {
		r.metrics.Fatal(classify(err))
	}
	logging.GetLogger(ctx).Error(ctx, "market making aborted", zap.Error(err))
	return err
}

// Setup logs in and loads the market. Run calls it; tests that drive Tick
// directly call it first.
func (r *Runner) Setup(ctx context.Context) error {
	session, err := retry.Do(ctx, func(ctx context.Context) (*venue.Session, error) {
		return r.client.Login(ctx, r.creds.Login, r.creds.Secret, nil)
	}, r.retryOptions(ctx, "login")...)
	if err != nil {
		return err
	}

	market, err := retry.Do(ctx, func(ctx context.Context) (*venue.Market, error) {
		return r.client.GetMarket(ctx, r.settings.Market)
	}, r.retryOptions(ctx, "get_market")...)
	if err != nil {
		return err
	}

	r.market = market
	r.engine = strategy.NewEngine(r.settings.Strategy(), market)
	r.start = r.clk.Now()

	logging.GetLogger(ctx).Info(ctx, "session opened",
		zap.String("account", session.Account),
		zap.Time("expires_at", session.ExpiresAt),
		zap.String("market", market.Name),
		zap.String("env", r.settings.Env))
	return nil
}

// Tick runs one iteration and returns how long to wait before the next.
// A book with an unchanged update id is skipped.
func (r *Runner) Tick(ctx context.Context) (time.Duration, error) {
	tickID, ctx := logging.NewTickID(ctx)
	logger := logging.GetLogger(ctx)

	snap, err := retry.Do(ctx, func(ctx context.Context) (*venue.Snapshot, error) {
		return r.client.GetOrderBook(ctx, r.market.Name)
	}, r.retryOptions(ctx, "get_order_book")...)
	if err != nil {
		return 0, err
	}
	if snap.UpdateID == r.updateID {
		if r.metrics != nil {
			r.metrics.Skip("unchanged_book")
		}
		return series.PollInterval, nil
	}
	r.updateID = snap.UpdateID
	r.series = r.series.UpdateAt(snap, r.settings.MaxObsSize, r.clk.Now())
	frame := r.series.DeriveAnalytics()

	orders, err := r.accountOrders(ctx)
	if err != nil {
		return 0, err
	}
	balance, err := retry.Do(ctx, func(ctx context.Context) (*venue.Balance, error) {
		return r.client.GetAccountBalance(ctx, r.market.QuoteAsset())
	}, r.retryOptions(ctx, "get_account_balance")...)
	if err != nil {
		return 0, err
	}

	decision, err := r.engine.Evaluate(strategy.Tick{
		Series:    r.series,
		Frame:     frame,
		Orders:    orders,
		Available: balance.Available,
	})
	if err != nil {
		return 0, err
	}

	logger.Debug(ctx, "tick evaluated",
		zap.Int64("update_id", snap.UpdateID),
		zap.Int("orders", len(orders)),
		zap.String("available", balance.Available.String()),
		zap.String("reason", string(decision.Reason)),
		zap.Int("actions", len(decision.Actions)),
		zap.Stringer("wait", decision.Wait))

	buyID, err := r.execute(ctx, tickID, decision)
	if err != nil {
		return 0, err
	}
	r.publish(ctx, frame, orders, decision, buyID)

	if wait := decision.Wait.Duration(); wait > 0 {
		return wait, nil
	}
	return series.PollInterval, nil
}

func (r *Runner) accountOrders(ctx context.Context) ([]order.Order, error) {
	raw, err := retry.Do(ctx, func(ctx context.Context) ([]venue.RawOrder, error) {
		return r.client.ListAccountOrders(ctx, r.market.Name, accountStatuses, r.start)
	}, r.retryOptions(ctx, "list_account_orders")...)
	if err != nil {
		return nil, err
	}

	orders := make([]order.Order, 0, len(raw))
	for _, ro := range raw {
		o, err := order.FromVenue(ro)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// Series returns the current order book series.
func (r *Runner) Series() series.Series {
	return r.series
}
