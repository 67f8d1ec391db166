package statestore

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/joripage/makerbot/pkg/series"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "makerbot:ETH_USDC", NewRedisStore(nil, "", time.Minute).Key("ETH_USDC"))
	assert.Equal(t, "bots:ETH_USDC", NewRedisStore(nil, "bots", 0).Key("ETH_USDC"))
}

func TestFields(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	st := Status{
		Market:      "ETH_USDC",
		Mid:         decimal.NewNullDecimal(decimal.RequireFromString("100.5")),
		Micro:       decimal.NewNullDecimal(decimal.RequireFromString("100.75")),
		Buying:      true,
		Band:        series.Band{SMA: 100, Upper: 102.5, Lower: 97.5, Valid: true},
		BuyOrderID:  "7",
		ActiveSells: 2,
		Reason:      "hold",
		UpdatedAt:   ts,
	}

	got := fields(st)
	assert.Equal(t, "100.5", got["mid"])
	assert.Equal(t, "100.75", got["micro"])
	assert.Equal(t, "", got["imbalance"])
	assert.Equal(t, "true", got["buying"])
	assert.Equal(t, "100", got["bb_sma"])
	assert.Equal(t, "102.5", got["bb_upper"])
	assert.Equal(t, "97.5", got["bb_lower"])
	assert.Equal(t, "7", got["buy_order_id"])
	assert.Equal(t, "2", got["active_sells"])
	assert.Equal(t, "hold", got["reason"])
	assert.Equal(t, "2024-03-01T12:00:00Z", got["updated_at"])
}

func TestFieldsInvalidBand(t *testing.T) {
	got := fields(Status{Band: series.Band{SMA: 1, Valid: false}})
	assert.Equal(t, "", got["bb_sma"])
	assert.Equal(t, "false", got["buying"])
}
