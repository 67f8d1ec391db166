// Package series keeps a bounded history of order book snapshots and derives
// price and liquidity signals from it.
package series

import (
	"slices"
	"time"

	"github.com/joripage/makerbot/pkg/venue"
	"github.com/shopspring/decimal"
)

// Depth is the number of price levels kept per side in each snapshot.
const Depth = 25

// Level is one row of a snapshot. Index 0 holds the best ask and the best bid.
// Missing levels are left invalid rather than zero.
type Level struct {
	AskPrice decimal.NullDecimal
	AskQty   decimal.NullDecimal
	BidPrice decimal.NullDecimal
	BidQty   decimal.NullDecimal
}

// Record is one timestamped snapshot.
type Record struct {
	t      time.Time
	levels [Depth]Level
}

func (r *Record) Time() time.Time      { return r.t }
func (r *Record) Level(i int) Level    { return r.levels[i] }
func (r *Record) Levels() [Depth]Level { return r.levels }
func (r *Record) Top() Level           { return r.levels[0] }

// Series is an immutable, time-ordered window of records. Update returns a
// new Series and leaves the receiver untouched; records are shared between
// series and never modified.
type Series struct {
	records []*Record
}

// Empty returns a series with no records.
func Empty() Series {
	return Series{}
}

func (s Series) Len() int {
	return len(s.records)
}

// Times returns the timestamps of all records, oldest first.
func (s Series) Times() []time.Time {
	out := make([]time.Time, len(s.records))
	for i, r := range s.records {
		out[i] = r.t
	}
	return out
}

func (s Series) At(i int) *Record {
	return s.records[i]
}

// Latest returns the newest record, or nil when the series is empty.
func (s Series) Latest() *Record {
	if len(s.records) == 0 {
		return nil
	}
	return s.records[len(s.records)-1]
}

// Update appends snap stamped with the current time.
func (s Series) Update(snap *venue.Snapshot, maxObsSize int) Series {
	return s.UpdateAt(snap, maxObsSize, time.Now())
}

// UpdateAt appends snap stamped at ts and drops the oldest records beyond
// maxObsSize. A ts not after the last record is moved to 1ns past it.
func (s Series) UpdateAt(snap *venue.Snapshot, maxObsSize int, ts time.Time) Series {
	if maxObsSize < 1 {
		maxObsSize = 1
	}
	if last := s.Latest(); last != nil && !ts.After(last.t) {
		ts = last.t.Add(time.Nanosecond)
	}

	rec := &Record{t: ts}
	for i, ask := range snap.Asks {
		if i == Depth {
			break
		}
		rec.levels[i].AskPrice = valid(ask.Price)
		rec.levels[i].AskQty = valid(ask.Amount)
	}
	// bids arrive worst first; flip them so the best bid sits next to the best ask
	for i := 0; i < len(snap.Bids) && i < Depth; i++ {
		bid := snap.Bids[len(snap.Bids)-1-i]
		rec.levels[i].BidPrice = valid(bid.Price)
		rec.levels[i].BidQty = valid(bid.Amount)
	}

	keep := s.records
	if len(keep)+1 > maxObsSize {
		keep = keep[len(keep)+1-maxObsSize:]
	}
	records := make([]*Record, 0, len(keep)+1)
	records = append(records, keep...)
	records = append(records, rec)
	return Series{records: records}
}

// Window returns the records newer than span before the latest record.
func (s Series) Window(span time.Duration) []*Record {
	last := s.Latest()
	if last == nil {
		return nil
	}
	cutoff := last.t.Add(-span)
	i := len(s.records) - 1
	for i > 0 && s.records[i-1].t.After(cutoff) {
		i--
	}
	return slices.Clone(s.records[i:])
}

func valid(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
