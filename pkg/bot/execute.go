package bot

import (
	"context"
	"errors"
	"time"

	"github.com/joripage/makerbot/pkg/journal/model"
	"github.com/joripage/makerbot/pkg/logging"
	"github.com/joripage/makerbot/pkg/numeric"
	"github.com/joripage/makerbot/pkg/order"
	"github.com/joripage/makerbot/pkg/retry"
	"github.com/joripage/makerbot/pkg/series"
	"github.com/joripage/makerbot/pkg/statestore"
	"github.com/joripage/makerbot/pkg/strategy"
	"github.com/joripage/makerbot/pkg/venue"
	"go.uber.org/zap"
)

// execute performs the decision's actions in order and returns the id of
// the buy left resting, if any.
func (r *Runner) execute(ctx context.Context, tickID string, d strategy.Decision) (string, error) {
	buyID := ""
	for _, a := range d.Actions {
		switch a.Kind {
		case strategy.ActionCancel:
			if err := r.cancel(ctx, a.Order.ID()); err != nil {
				return buyID, err
			}
			r.record(ctx, tickID, a, a.Order.ID())

		case strategy.ActionPlace:
			placed, err := r.place(ctx, a.Order)
			if err != nil {
				return buyID, err
			}
			if a.Order.Side() == order.Buy {
				buyID = placed.ID
			}
			r.record(ctx, tickID, a, placed.ID)
		}
	}
	return buyID, nil
}

func (r *Runner) place(ctx context.Context, o order.Order) (*venue.PlacedOrder, error) {
	req := &venue.LimitOrderRequest{
		Market:             r.market.Name,
		Amount:             o.Amount(),
		Side:               string(o.Side()),
		CancellationPolicy: string(o.CancellationPolicy()),
		Price:              o.Price(),
		AllowTaker:         o.AllowTaker(),
	}
	placed, err := retry.Do(ctx, func(ctx context.Context) (*venue.PlacedOrder, error) {
		return r.client.PlaceLimitOrder(ctx, req)
	}, r.retryOptions(ctx, "place_limit_order")...)
	if err != nil {
		return nil, err
	}
	logging.GetLogger(ctx).Info(ctx, "order placed",
		zap.String("order_id", placed.ID),
		zap.String("status", placed.Status),
		zap.String("side", req.Side),
		zap.String("price", req.Price.String()),
		zap.String("amount", req.Amount.String()))
	return placed, nil
}

func (r *Runner) cancel(ctx context.Context, id string) error {
	err := retry.Run(ctx, func(ctx context.Context) error {
		return r.client.CancelOrder(ctx, id, r.market.Name)
	}, r.retryOptions(ctx, "cancel_order")...)
	if err != nil {
		return err
	}
	logging.GetLogger(ctx).Info(ctx, "order cancelled", zap.String("order_id", id))
	return nil
}

func (r *Runner) record(ctx context.Context, tickID string, a strategy.Action, orderID string) {
	if r.metrics != nil {
		r.metrics.Action(string(a.Kind), string(a.Order.Side()))
	}
	if r.journal == nil {
		return
	}

	kind := model.KindPlace
	if a.Kind == strategy.ActionCancel {
		kind = model.KindCancel
	}
	ev := model.NewActionEvent(tickID, r.market.Name, kind, orderID, r.clk.Now())
	ev.ReplacedOrderID = a.Replaces
	ev.Side = string(a.Order.Side())
	ev.Price = a.Order.Price()
	ev.Amount = a.Order.Amount()
	ev.Reason = string(a.Reason)
	r.journal.Record(ctx, ev)
}

func (r *Runner) publish(ctx context.Context, frame series.Frame, orders []order.Order, d strategy.Decision, buyID string) {
	row, _ := frame.Latest()

	if r.metrics != nil {
		r.metrics.Tick()
		r.metrics.SeriesLength(r.series.Len())
		if row.Mid.Valid && row.Micro.Valid {
			r.metrics.Prices(row.Mid.Decimal.InexactFloat64(), row.Micro.Decimal.InexactFloat64())
		}
	}
	if r.state == nil {
		return
	}

	if buyID == "" {
		buyID = restingBuyID(orders, d)
	}
	var band series.Band
	if bands := frame.BollingerBands(bandWindow, bandWidth); len(bands) > 0 {
		band = bands[len(bands)-1]
	}
	st := statestore.Status{
		Market:      r.market.Name,
		Mid:         row.Mid,
		Micro:       row.Micro,
		Imbalance:   row.Imbalance,
		Buying:      r.series.IsBuying(),
		Band:        band,
		BuyOrderID:  buyID,
		ActiveSells: len(order.ActiveSells(orders)),
		Reason:      string(d.Reason),
		UpdatedAt:   r.clk.Now(),
	}
	if err := r.state.Publish(ctx, st); err != nil {
		logging.GetLogger(ctx).Warn(ctx, "status publish failed", zap.Error(err))
	}
}

// restingBuyID is the active buy the decision left alone.
func restingBuyID(orders []order.Order, d strategy.Decision) string {
	buy, err := strategy.LastBuy(orders)
	if err != nil || buy == nil || !buy.IsActive() {
		return ""
	}
	for _, a := range d.Actions {
		if a.Kind == strategy.ActionCancel && a.Order.ID() == buy.ID() {
			return ""
		}
	}
	return buy.ID()
}

// cleanup cancels every active buy. Failures are logged and dropped: the
// loop is already stopping and its own error wins.
func (r *Runner) cleanup(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), CleanupTimeout)
	defer cancel()
	logger := logging.GetLogger(ctx)

	raw, err := r.client.ListAccountOrders(ctx, r.market.Name,
		[]string{string(order.StatusOpen), string(order.StatusPending)}, r.start)
	if err != nil {
		logger.Warn(ctx, "cleanup: listing orders failed", zap.Error(err))
		return
	}
	for _, ro := range raw {
		if ro.BuyOrSell != string(order.Buy) {
			continue
		}
		if err := r.client.CancelOrder(ctx, ro.ID, r.market.Name); err != nil {
			logger.Warn(ctx, "cleanup: cancel failed", zap.String("order_id", ro.ID), zap.Error(err))
			continue
		}
		logger.Info(ctx, "cleanup: buy cancelled", zap.String("order_id", ro.ID))
	}
}

// permanent reports errors that retrying cannot fix.
func permanent(err error) bool {
	return errors.Is(err, numeric.ErrValidation) ||
		errors.Is(err, strategy.ErrStrategyInvariant) ||
		errors.Is(err, strategy.ErrMarketCondition) ||
		errors.Is(err, venue.ErrUnknownMarket) ||
		errors.Is(err, venue.ErrOrderRejected) ||
		errors.Is(err, venue.ErrInsufficientFunds) ||
		errors.Is(err, venue.ErrNotCancellable) ||
		errors.Is(err, venue.ErrOrderNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func (r *Runner) retryOptions(ctx context.Context, op string) []retry.Option {
	opts := []retry.Option{
		retry.Permanent(permanent),
		retry.Notify(func(err error, attempt int, next time.Duration) {
			if r.metrics != nil {
				r.metrics.Retry(op)
			}
			logging.GetLogger(ctx).Warn(ctx, "venue call failed, retrying",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("next", next),
				zap.Error(err))
		}),
	}
	return append(opts, r.retryOpts...)
}

// classify names the error class for the fatal error counter.
func classify(err error) string {
	switch {
	case errors.Is(err, strategy.ErrMarketCondition):
		return "market_condition"
	case errors.Is(err, strategy.ErrStrategyInvariant):
		return "strategy_invariant"
	case errors.Is(err, numeric.ErrValidation):
		return "validation"
	case errors.Is(err, venue.ErrVenue):
		return "venue"
	}
	return "other"
}
