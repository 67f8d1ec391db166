package series

import (
	"time"

	"github.com/joripage/makerbot/pkg/numeric"
	"github.com/joripage/makerbot/pkg/order"
	"github.com/shopspring/decimal"
)

// SignalWindow is how far back IsBuying and SizeForSide look.
const SignalWindow = 15 * time.Second

var half = decimal.New(5, -1)

// Row holds the top of book of one record and the values derived from it.
type Row struct {
	Time      time.Time
	AskPrice  decimal.NullDecimal
	AskQty    decimal.NullDecimal
	BidPrice  decimal.NullDecimal
	BidQty    decimal.NullDecimal
	Imbalance decimal.NullDecimal
	Mid       decimal.NullDecimal
	Micro     decimal.NullDecimal
}

// Frame is the per-record analytics of a series, oldest first.
type Frame struct {
	Rows []Row
}

func (f Frame) Len() int {
	return len(f.Rows)
}

// Latest returns the newest row.
func (f Frame) Latest() (Row, bool) {
	if len(f.Rows) == 0 {
		return Row{}, false
	}
	return f.Rows[len(f.Rows)-1], true
}

// DeriveAnalytics computes mid, imbalance and microprice for every record.
func (s Series) DeriveAnalytics() Frame {
	rows := make([]Row, len(s.records))
	for i, r := range s.records {
		rows[i] = deriveRow(r)
	}
	return Frame{Rows: rows}
}

func deriveRow(r *Record) Row {
	top := r.Top()
	row := Row{
		Time:     r.t,
		AskPrice: top.AskPrice,
		AskQty:   top.AskQty,
		BidPrice: top.BidPrice,
		BidQty:   top.BidQty,
	}
	if mid, ok := Mid(top); ok {
		row.Mid = valid(mid)
	}
	if !top.AskQty.Valid || !top.BidQty.Valid {
		return row
	}
	imb, ok := imbalance(top.AskQty.Decimal, top.BidQty.Decimal)
	if !ok {
		return row
	}
	row.Imbalance = valid(imb)
	if top.AskPrice.Valid && top.BidPrice.Valid {
		micro := top.AskPrice.Decimal.Mul(imb).Add(top.BidPrice.Decimal.Mul(decimal.NewFromInt(1).Sub(imb)))
		row.Micro = valid(numeric.Reduce(micro))
	}
	return row
}

// Mid is the average of the best ask and best bid prices.
func Mid(top Level) (decimal.Decimal, bool) {
	if !top.AskPrice.Valid || !top.BidPrice.Valid {
		return decimal.Zero, false
	}
	return numeric.Div(top.AskPrice.Decimal.Add(top.BidPrice.Decimal), decimal.NewFromInt(2)), true
}

// imbalance is bidQty / (bidQty + askQty).
func imbalance(askQty, bidQty decimal.Decimal) (decimal.Decimal, bool) {
	total := askQty.Add(bidQty)
	if !total.IsPositive() {
		return decimal.Zero, false
	}
	return numeric.Div(bidQty, total), true
}

// topQty returns the valid quantities of the two best levels on one side.
func topQty(r *Record, ask bool) []decimal.Decimal {
	var out []decimal.Decimal
	for i := 0; i < 2; i++ {
		q := r.levels[i].BidQty
		if ask {
			q = r.levels[i].AskQty
		}
		if q.Valid {
			out = append(out, q.Decimal)
		}
	}
	return out
}

// IsBuying reports whether the median top-2 imbalance over the last
// SignalWindow exceeds one half. Records missing either side are skipped.
func (s Series) IsBuying() bool {
	var imbalances []decimal.Decimal
	for _, r := range s.Window(SignalWindow) {
		askAvg, ok := numeric.Mean(topQty(r, true))
		if !ok {
			continue
		}
		bidAvg, ok := numeric.Mean(topQty(r, false))
		if !ok {
			continue
		}
		if imb, ok := imbalance(askAvg, bidAvg); ok {
			imbalances = append(imbalances, imb)
		}
	}
	med, ok := numeric.Median(imbalances)
	return ok && med.GreaterThan(half)
}

// SizeForSide sizes an order for side from the top-2 quantities resting on
// the opposite side over the last SignalWindow, capped at maxQty. It returns
// false when the window holds no quantities for that side.
func (s Series) SizeForSide(side order.Side, maxQty decimal.Decimal) (decimal.Decimal, bool) {
	var qty []decimal.Decimal
	for _, r := range s.Window(SignalWindow) {
		qty = append(qty, topQty(r, side == order.Buy)...)
	}
	avg, ok := numeric.Mean(qty)
	if !ok {
		return decimal.Zero, false
	}
	return decimal.Min(avg, maxQty), true
}
