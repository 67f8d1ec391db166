package strategy

import (
	"testing"
	"time"

	"github.com/joripage/makerbot/pkg/order"
	"github.com/joripage/makerbot/pkg/series"
	"github.com/joripage/makerbot/pkg/venue"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func testMarket() *venue.Market {
	return &venue.Market{
		Name:               "ETH_USDC",
		MinTradeIncrement:  dec("0.0001"),
		MinTradeIncrementB: dec("0.01"),
		MinTradeSizeB:      dec("1"),
	}
}

func testEngine() *Engine {
	return NewEngine(Settings{
		MaxFundsInFlight:  dec("1000"),
		MaxFundsInOrder:   dec("200"),
		MaxDropPercentage: 50,
		StablePrice:       dec("100"),
		BuyDownInterval:   dec("0.5"),
		Straddle:          dec("2"),
	}, testMarket())
}

func snapshot(askPx, askQty, bidPx, bidQty string) *venue.Snapshot {
	return &venue.Snapshot{
		Asks: []venue.PriceLevel{{Price: dec(askPx), Amount: dec(askQty)}},
		Bids: []venue.PriceLevel{{Price: dec(bidPx), Amount: dec(bidQty)}},
	}
}

func tickFor(snap *venue.Snapshot, orders ...order.Order) Tick {
	s := series.Empty()
	start := time.Unix(1_700_000_000, 0)
	for i := 0; i < 3; i++ {
		s = s.UpdateAt(snap, 100, start.Add(time.Duration(i)*time.Second))
	}
	return Tick{Series: s, Frame: s.DeriveAnalytics(), Orders: orders, Available: dec("1000")}
}

func mustOrder(t *testing.T, price, amount string, side order.Side, fields ...order.Field) order.Order {
	t.Helper()
	o, err := order.New(price, amount, side, fields...)
	require.NoError(t, err)
	return o
}

func TestShouldRebuy(t *testing.T) {
	e := NewEngine(Settings{Straddle: dec("2"), BuyDownInterval: dec("0.5")}, testMarket())
	buy := mustOrder(t, "100", "1", order.Buy)

	assert.True(t, e.ShouldRebuy([]order.Order{mustOrder(t, "103", "1", order.Sell), mustOrder(t, "104", "1", order.Sell)}, buy))
	assert.False(t, e.ShouldRebuy([]order.Order{mustOrder(t, "102.5", "1", order.Sell)}, buy))
	assert.False(t, e.ShouldRebuy(nil, buy))
}

func TestMaxOrderFunds(t *testing.T) {
	e := testEngine()
	orders := []order.Order{
		mustOrder(t, "100", "2", order.Sell, order.WithStatus(order.StatusOpen)),
		mustOrder(t, "100", "5", order.Buy, order.WithStatus(order.StatusFilled), order.WithAmountRemaining("0")),
	}
	assertDec(t, "400", e.MaxOrderFunds(orders))
	assertDec(t, "500", e.MaxOrderFunds(nil))
}

func TestLastBuy(t *testing.T) {
	t0 := time.Unix(100, 0)
	older := mustOrder(t, "99", "1", order.Buy, order.WithID("1"), order.WithStatus(order.StatusFilled), order.WithPlacedAt(t0))
	newer := mustOrder(t, "98", "1", order.Buy, order.WithID("2"), order.WithStatus(order.StatusOpen), order.WithPlacedAt(t0.Add(time.Second)))
	sell := mustOrder(t, "101", "1", order.Sell, order.WithID("3"), order.WithPlacedAt(t0.Add(time.Hour)))

	got, err := LastBuy([]order.Order{newer, sell, older})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "2", got.ID())

	got, err = LastBuy([]order.Order{sell})
	require.NoError(t, err)
	assert.Nil(t, got)

	second := mustOrder(t, "97", "1", order.Buy, order.WithID("4"), order.WithStatus(order.StatusPending))
	_, err = LastBuy([]order.Order{newer, second})
	assert.ErrorIs(t, err, ErrStrategyInvariant)
}

func TestShouldPlaceBuy(t *testing.T) {
	e := testEngine()

	ok, err := e.ShouldPlaceBuy(tickFor(snapshot("100", "5", "98", "15")).Series)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.ShouldPlaceBuy(tickFor(snapshot("100", "15", "98", "5")).Series)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = e.ShouldPlaceBuy(tickFor(snapshot("41", "5", "39", "15")).Series)
	assert.ErrorIs(t, err, ErrMarketCondition)

	ok, err = e.ShouldPlaceBuy(series.Empty())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetBuyOrderAndCorrespondingSell(t *testing.T) {
	e := testEngine()
	tick := tickFor(snapshot("100", "5", "98", "15"))

	buy, ok, err := e.GetBuyOrder(tick.Series, tick.Frame)
	require.NoError(t, err)
	require.True(t, ok)
	assertDec(t, "99", buy.Price())
	// 200 / 99 floored to eight significant digits, below the 5 resting at the ask
	assertDec(t, "2.0202020", buy.Amount())
	assert.Equal(t, order.Buy, buy.Side())

	sell, err := e.CorrespondingSell(buy)
	require.NoError(t, err)
	assertDec(t, "101", sell.Price())
	assert.Equal(t, order.Sell, sell.Side())
	assertDec(t, "2.0202020", sell.Amount())
}

func TestEvaluate(t *testing.T) {
	e := testEngine()
	t0 := time.Unix(100, 0)
	buyingBook := snapshot("100", "5", "98", "15")
	spreadBook := snapshot("101", "5", "99", "15")

	t.Run("places scrum buy without orders", func(t *testing.T) {
		d, err := e.Evaluate(tickFor(buyingBook))
		require.NoError(t, err)
		assert.Equal(t, WaitPlaced, d.Wait)
		require.Len(t, d.Actions, 1)
		a := d.Actions[0]
		assert.Equal(t, ActionPlace, a.Kind)
		assert.Equal(t, ReasonScrumBuy, a.Reason)
		assertDec(t, "99", a.Order.Price())
		assertDec(t, "2.0202", a.Order.Amount())
		assertDec(t, "2.0202", a.Order.AmountRemaining())
	})

	t.Run("holds a buy at the top bid", func(t *testing.T) {
		buy := mustOrder(t, "99", "1", order.Buy, order.WithID("7"), order.WithStatus(order.StatusOpen), order.WithPlacedAt(t0))
		d, err := e.Evaluate(tickFor(snapshot("100", "5", "99", "15"), buy))
		require.NoError(t, err)
		assert.Empty(t, d.Actions)
		assert.Equal(t, ReasonHold, d.Reason)
		assert.Equal(t, WaitPlaced, d.Wait)
	})

	t.Run("moves a buy that is no longer top bid", func(t *testing.T) {
		buy := mustOrder(t, "97", "1", order.Buy, order.WithID("7"), order.WithStatus(order.StatusOpen), order.WithPlacedAt(t0))
		d, err := e.Evaluate(tickFor(buyingBook, buy))
		require.NoError(t, err)
		require.Len(t, d.Actions, 2)
		assert.Equal(t, ActionCancel, d.Actions[0].Kind)
		assert.Equal(t, "7", d.Actions[0].Order.ID())
		assert.Equal(t, ActionPlace, d.Actions[1].Kind)
		assert.Equal(t, "7", d.Actions[1].Replaces)
		assertDec(t, "99", d.Actions[1].Order.Price())
	})

	t.Run("splits a partially filled scrum buy", func(t *testing.T) {
		buy := mustOrder(t, "99", "2", order.Buy, order.WithID("7"), order.WithStatus(order.StatusOpen),
			order.WithAmountRemaining("0.5"), order.WithPlacedAt(t0))
		d, err := e.Evaluate(tickFor(buyingBook, buy))
		require.NoError(t, err)
		assert.Equal(t, WaitPlaced, d.Wait)
		require.Len(t, d.Actions, 3)

		assert.Equal(t, ActionCancel, d.Actions[0].Kind)
		sell := d.Actions[1].Order
		assert.Equal(t, order.Sell, sell.Side())
		assertDec(t, "101", sell.Price())
		assertDec(t, "1.5", sell.Amount())
		next := d.Actions[2].Order
		assert.Equal(t, order.Buy, next.Side())
		assertDec(t, "99", next.Price())
		assert.Equal(t, "7", d.Actions[2].Replaces)
	})

	t.Run("leaves a dust fill unsold", func(t *testing.T) {
		buy := mustOrder(t, "99", "2", order.Buy, order.WithID("7"), order.WithStatus(order.StatusOpen),
			order.WithAmountRemaining("1.9999"), order.WithPlacedAt(t0))
		d, err := e.Evaluate(tickFor(buyingBook, buy))
		require.NoError(t, err)
		require.Len(t, d.Actions, 2)
		assert.Equal(t, ActionCancel, d.Actions[0].Kind)
		assert.Equal(t, "7", d.Actions[0].Order.ID())
		for _, a := range d.Actions {
			assert.NotEqual(t, ReasonPairSell, a.Reason)
			assert.Equal(t, order.Buy, a.Order.Side())
		}
		assert.Equal(t, "7", d.Actions[1].Replaces)
	})

	t.Run("caps the buy at available quote funds", func(t *testing.T) {
		tick := tickFor(buyingBook)
		tick.Available = dec("100")
		d, err := e.Evaluate(tick)
		require.NoError(t, err)
		require.Len(t, d.Actions, 1)
		buy := d.Actions[0].Order
		assertDec(t, "99", buy.Price())
		assertDec(t, "1.0101", buy.Amount())
		assert.True(t, buy.Value().LessThanOrEqual(tick.Available))
	})

	t.Run("rebuys when the straddle is too wide", func(t *testing.T) {
		buy := mustOrder(t, "98", "1", order.Buy, order.WithID("7"), order.WithStatus(order.StatusOpen), order.WithPlacedAt(t0))
		sell := mustOrder(t, "103", "1", order.Sell, order.WithID("6"), order.WithStatus(order.StatusOpen), order.WithPlacedAt(t0))
		d, err := e.Evaluate(tickFor(spreadBook, buy, sell))
		require.NoError(t, err)
		assert.Equal(t, WaitNone, d.Wait)
		assert.Equal(t, ReasonRebuy, d.Reason)
		require.Len(t, d.Actions, 2)
		assert.Equal(t, "7", d.Actions[0].Order.ID())
		next := d.Actions[1].Order
		assertDec(t, "100", next.Price())
		assertDec(t, "1", next.Amount())
	})

	t.Run("keeps the buy when the straddle is tight", func(t *testing.T) {
		buy := mustOrder(t, "98", "1", order.Buy, order.WithID("7"), order.WithStatus(order.StatusOpen), order.WithPlacedAt(t0))
		sell := mustOrder(t, "100", "1", order.Sell, order.WithID("6"), order.WithStatus(order.StatusOpen), order.WithPlacedAt(t0))
		d, err := e.Evaluate(tickFor(spreadBook, buy, sell))
		require.NoError(t, err)
		assert.Empty(t, d.Actions)
	})

	t.Run("pairs a filled buy while market making", func(t *testing.T) {
		buy := mustOrder(t, "98", "1", order.Buy, order.WithID("7"), order.WithStatus(order.StatusFilled),
			order.WithAmountRemaining("0"), order.WithPlacedAt(t0))
		sell := mustOrder(t, "103", "1", order.Sell, order.WithID("6"), order.WithStatus(order.StatusOpen), order.WithPlacedAt(t0))
		d, err := e.Evaluate(tickFor(spreadBook, buy, sell))
		require.NoError(t, err)
		require.Len(t, d.Actions, 2, "a filled buy is not cancelled")
		assertDec(t, "102", d.Actions[0].Order.Price())
		assertDec(t, "1", d.Actions[0].Order.Amount())
		assertDec(t, "100", d.Actions[1].Order.Price())
		assertDec(t, "2", d.Actions[1].Order.Amount())
	})

	t.Run("waits for funds", func(t *testing.T) {
		tick := tickFor(buyingBook)
		tick.Available = dec("0.5")
		d, err := e.Evaluate(tick)
		require.NoError(t, err)
		assert.Equal(t, WaitFunds, d.Wait)
		assert.Equal(t, PauseFunds, d.Wait.Duration())
		assert.Empty(t, d.Actions)
	})

	t.Run("skips when the market is not buying", func(t *testing.T) {
		d, err := e.Evaluate(tickFor(snapshot("100", "15", "98", "5")))
		require.NoError(t, err)
		assert.Equal(t, ReasonNotBuying, d.Reason)
		assert.Equal(t, WaitNone, d.Wait)
	})

	t.Run("fails on two active buys", func(t *testing.T) {
		a := mustOrder(t, "98", "1", order.Buy, order.WithID("1"), order.WithStatus(order.StatusOpen))
		b := mustOrder(t, "97", "1", order.Buy, order.WithID("2"), order.WithStatus(order.StatusOpen))
		_, err := e.Evaluate(tickFor(buyingBook, a, b))
		assert.ErrorIs(t, err, ErrStrategyInvariant)
	})

	t.Run("fails below the drop floor", func(t *testing.T) {
		_, err := e.Evaluate(tickFor(snapshot("41", "5", "39", "15")))
		assert.ErrorIs(t, err, ErrMarketCondition)
	})
}
