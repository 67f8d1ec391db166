package paper

import (
	"fmt"
	"time"

	"github.com/joripage/makerbot/pkg/numeric"
	"github.com/joripage/makerbot/pkg/venue"
	"github.com/shopspring/decimal"
)

// Config is the `paper:` section of the bot configuration.
type Config struct {
	MinTradeIncrement  string            `yaml:"min_trade_increment"`
	MinTradeIncrementB string            `yaml:"min_trade_increment_b"`
	MinTradeSizeB      string            `yaml:"min_trade_size_b"`
	StartPrice         string            `yaml:"start_price"`
	Spread             string            `yaml:"spread"`
	Step               string            `yaml:"step"`
	LevelAmount        string            `yaml:"level_amount"`
	Depth              int               `yaml:"depth"`
	Seed               uint64            `yaml:"seed"`
	StepIntervalMs     int               `yaml:"step_interval_ms"`
	ReplayFile         string            `yaml:"replay_file"`
	PriceBandPct       string            `yaml:"price_band_pct"`
	Balances           map[string]string `yaml:"balances"`
}

func DefaultConfig() Config {
	return Config{
		MinTradeIncrement:  "0.0001",
		MinTradeIncrementB: "0.01",
		MinTradeSizeB:      "1",
		StartPrice:         "100",
		Spread:             "0.2",
		Step:               "0.05",
		LevelAmount:        "1",
		Depth:              25,
		Seed:               1,
		StepIntervalMs:     1000,
	}
}

// withDefaults fills unset fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	set := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	set(&c.MinTradeIncrement, d.MinTradeIncrement)
	set(&c.MinTradeIncrementB, d.MinTradeIncrementB)
	set(&c.MinTradeSizeB, d.MinTradeSizeB)
	set(&c.StartPrice, d.StartPrice)
	set(&c.Spread, d.Spread)
	set(&c.Step, d.Step)
	set(&c.LevelAmount, d.LevelAmount)
	if c.Depth <= 0 {
		c.Depth = d.Depth
	}
	if c.StepIntervalMs < 0 {
		c.StepIntervalMs = 0
	}
	return c
}

type parsed struct {
	market    venue.Market
	walk      RandomWalkConfig
	interval  time.Duration
	balances  map[string]decimal.Decimal
	priceBand decimal.NullDecimal
}

func (c Config) parse(marketName string) (*parsed, error) {
	c = c.withDefaults()
	p := &parsed{
		market:   venue.Market{Name: marketName},
		walk:     RandomWalkConfig{Seed: c.Seed, Depth: c.Depth},
		interval: time.Duration(c.StepIntervalMs) * time.Millisecond,
		balances: make(map[string]decimal.Decimal),
	}
	fields := []struct {
		key string
		raw string
		dst *decimal.Decimal
	}{
		{"paper.min_trade_increment", c.MinTradeIncrement, &p.market.MinTradeIncrement},
		{"paper.min_trade_increment_b", c.MinTradeIncrementB, &p.market.MinTradeIncrementB},
		{"paper.min_trade_size_b", c.MinTradeSizeB, &p.market.MinTradeSizeB},
		{"paper.start_price", c.StartPrice, &p.walk.StartPrice},
		{"paper.spread", c.Spread, &p.walk.Spread},
		{"paper.step", c.Step, &p.walk.Step},
		{"paper.level_amount", c.LevelAmount, &p.walk.LevelAmount},
	}
	for _, f := range fields {
		d, err := numeric.ParsePositiveDecimal(f.raw, f.key)
		if err != nil {
			return nil, err
		}
		*f.dst = d
	}
	if c.PriceBandPct != "" {
		pct, err := numeric.ParsePositiveDecimal(c.PriceBandPct, "paper.price_band_pct")
		if err != nil {
			return nil, err
		}
		p.priceBand = decimal.NewNullDecimal(pct)
	}
	p.walk.Tick = p.market.MinTradeIncrementB
	p.walk.Lot = p.market.MinTradeIncrement

	if len(c.Balances) == 0 {
		p.balances[p.market.QuoteAsset()] = decimal.NewFromInt(10000)
	}
	for asset, amount := range c.Balances {
		d, err := numeric.ParsePositiveDecimal(amount, fmt.Sprintf("paper.balances.%s", asset))
		if err != nil {
			return nil, err
		}
		p.balances[asset] = d
	}
	return p, nil
}
