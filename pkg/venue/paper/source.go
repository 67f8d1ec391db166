package paper

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/joripage/makerbot/pkg/numeric"
	"github.com/joripage/makerbot/pkg/venue"
	"github.com/shopspring/decimal"
)

// BookSource produces the market's order book, one step per call.
// Asks are ascending and bids are ascending with the best bid last.
type BookSource interface {
	Next(ctx context.Context) (asks, bids []venue.PriceLevel, err error)
}

// RandomWalk generates a book around a mid price that moves by at most Step
// per call.
type RandomWalk struct {
	rnd         *rand.Rand
	mid         decimal.Decimal
	spread      decimal.Decimal
	step        decimal.Decimal
	tick        decimal.Decimal
	lot         decimal.Decimal
	levelAmount decimal.Decimal
	depth       int
}

type RandomWalkConfig struct {
	Seed        uint64
	StartPrice  decimal.Decimal
	Spread      decimal.Decimal
	Step        decimal.Decimal
	Tick        decimal.Decimal
	Lot         decimal.Decimal
	LevelAmount decimal.Decimal
	Depth       int
}

func NewRandomWalk(cfg RandomWalkConfig) *RandomWalk {
	return &RandomWalk{
		rnd:         rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
		mid:         cfg.StartPrice,
		spread:      cfg.Spread,
		step:        cfg.Step,
		tick:        cfg.Tick,
		lot:         cfg.Lot,
		levelAmount: cfg.LevelAmount,
		depth:       cfg.Depth,
	}
}

func (w *RandomWalk) Next(ctx context.Context) ([]venue.PriceLevel, []venue.PriceLevel, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	move := w.step.Mul(decimal.NewFromFloat(w.rnd.Float64()*2 - 1))
	floor := w.spread.Add(w.tick.Mul(decimal.NewFromInt(int64(w.depth))))
	w.mid = decimal.Max(numeric.QuantizeFloor(w.mid.Add(move), w.tick), floor)

	half := w.spread.Div(decimal.NewFromInt(2))
	bestAsk := numeric.QuantizeFloor(w.mid.Add(half), w.tick)
	if !bestAsk.GreaterThan(w.mid) {
		bestAsk = bestAsk.Add(w.tick)
	}
	bestBid := numeric.QuantizeFloor(bestAsk.Sub(w.spread), w.tick)

	asks := make([]venue.PriceLevel, 0, w.depth)
	bids := make([]venue.PriceLevel, 0, w.depth)
	for i := 0; i < w.depth; i++ {
		offset := w.tick.Mul(decimal.NewFromInt(int64(i)))
		asks = append(asks, venue.PriceLevel{Price: bestAsk.Add(offset), Amount: w.amount()})
		if bidPx := bestBid.Sub(offset); bidPx.IsPositive() {
			bids = append(bids, venue.PriceLevel{Price: bidPx, Amount: w.amount()})
		}
	}
	// venue order: best bid last
	for i, j := 0, len(bids)-1; i < j; i, j = i+1, j-1 {
		bids[i], bids[j] = bids[j], bids[i]
	}
	return asks, bids, nil
}

func (w *RandomWalk) amount() decimal.Decimal {
	a := w.levelAmount.Mul(decimal.NewFromFloat(0.5 + w.rnd.Float64()))
	a = numeric.QuantizeFloor(a, w.lot)
	if !a.IsPositive() {
		return w.lot
	}
	return a
}

// Replay cycles through recorded snapshots, one JSON object per line.
type Replay struct {
	frames []venue.Snapshot
	pos    int
}

func NewReplay(r io.Reader) (*Replay, error) {
	var frames []venue.Snapshot
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var snap venue.Snapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return nil, fmt.Errorf("replay line %d: %w", line, err)
		}
		frames = append(frames, snap)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("replay: %w", venue.ErrNoBook)
	}
	return &Replay{frames: frames}, nil
}

func OpenReplay(path string) (*Replay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewReplay(f)
}

func (r *Replay) Next(ctx context.Context) ([]venue.PriceLevel, []venue.PriceLevel, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	snap := r.frames[r.pos]
	r.pos = (r.pos + 1) % len(r.frames)
	return snap.Asks, snap.Bids, nil
}
