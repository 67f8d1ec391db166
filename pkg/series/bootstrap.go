package series

import (
	"context"
	"time"

	"github.com/joripage/makerbot/pkg/clock"
	"github.com/joripage/makerbot/pkg/logging"
	"github.com/joripage/makerbot/pkg/venue"
	"go.uber.org/zap"
)

// PollInterval is the pause between book fetches, kept to respect venue rate limits.
const PollInterval = 100 * time.Millisecond

type BootstrapConfig struct {
	Market           string
	MinHistoryPoints int
	MaxLoadingTime   time.Duration
	MaxObsSize       int
}

// Bootstrap fetches books until MinHistoryPoints records are collected or
// MaxLoadingTime has elapsed, and returns what it has. Fetch errors are
// logged and retried on the next poll. Only books with a new update id are
// recorded. The error is non-nil only when ctx is done.
func Bootstrap(ctx context.Context, client venue.Client, clk clock.Clock, cfg BootstrapConfig) (Series, error) {
	logger := logging.GetLogger(ctx)
	obs := Empty()
	updateID := int64(-1)
	start := clk.Now()

	for obs.Len() < cfg.MinHistoryPoints && clk.Now().Sub(start) < cfg.MaxLoadingTime {
		snap, err := client.GetOrderBook(ctx, cfg.Market)
		switch {
		case err != nil:
			logger.Debug(ctx, "bootstrap: order book fetch failed", zap.Error(err))
		case snap.UpdateID != updateID:
			obs = obs.UpdateAt(snap, cfg.MaxObsSize, clk.Now())
			updateID = snap.UpdateID
		}

		if err := clock.Sleep(ctx, clk, PollInterval); err != nil {
			return obs, err
		}
	}

	logger.Info(ctx, "bootstrap finished",
		zap.Int("points", obs.Len()),
		zap.Int("target", cfg.MinHistoryPoints),
		zap.Duration("elapsed", clk.Now().Sub(start)))
	return obs, nil
}
