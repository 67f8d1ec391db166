package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/joripage/makerbot/pkg/logging"
	"github.com/joripage/makerbot/pkg/numeric"
	"github.com/joripage/makerbot/pkg/series"
	"github.com/joripage/makerbot/pkg/strategy"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Settings are the per-market bot settings after merging defaults with the
// market section.
type Settings struct {
	Market            string
	Env               string
	MaxFundsInFlight  decimal.Decimal
	MaxFundsInOrder   decimal.Decimal
	MaxDropPercentage int
	MinHistoryPoints  int
	MaxLoadingTime    int // seconds
	MaxObsSize        int
	StablePrice       decimal.Decimal
	BuyDownInterval   decimal.Decimal
	Straddle          decimal.Decimal
	LogToFile         string
	LogLevel          logging.LogLevel
}

var yesWords = []string{"y", "Y", "yes", "Yes", "YES"}

// LogsToFile reports whether log_to_file asks for the log file.
func (s Settings) LogsToFile() bool {
	return slices.Contains(yesWords, s.LogToFile)
}

func (s Settings) Strategy() strategy.Settings {
	return strategy.Settings{
		MaxFundsInFlight:  s.MaxFundsInFlight,
		MaxFundsInOrder:   s.MaxFundsInOrder,
		MaxDropPercentage: s.MaxDropPercentage,
		StablePrice:       s.StablePrice,
		BuyDownInterval:   s.BuyDownInterval,
		Straddle:          s.Straddle,
	}
}

func (s Settings) Bootstrap() series.BootstrapConfig {
	return series.BootstrapConfig{
		Market:           s.Market,
		MinHistoryPoints: s.MinHistoryPoints,
		MaxLoadingTime:   time.Duration(s.MaxLoadingTime) * time.Second,
		MaxObsSize:       s.MaxObsSize,
	}
}

type decodeFunc func(key string, n *yaml.Node, s *Settings) error

type setting struct {
	key    string
	decode decodeFunc
}

// settingTypes lists every required key with its parser.
var settingTypes = []setting{
	{"env", text(func(s *Settings) *string { return &s.Env })},
	{"max_funds_in_flight", decimalValue(func(s *Settings) *decimal.Decimal { return &s.MaxFundsInFlight })},
	{"max_funds_in_order", decimalValue(func(s *Settings) *decimal.Decimal { return &s.MaxFundsInOrder })},
	{"max_drop_percentage", integer(func(s *Settings) *int { return &s.MaxDropPercentage })},
	{"min_history_points", integer(func(s *Settings) *int { return &s.MinHistoryPoints })},
	{"max_loading_time", integer(func(s *Settings) *int { return &s.MaxLoadingTime })},
	{"max_obs_size", integer(func(s *Settings) *int { return &s.MaxObsSize })},
	{"stable_price", decimalValue(func(s *Settings) *decimal.Decimal { return &s.StablePrice })},
	{"buy_down_interval", decimalValue(func(s *Settings) *decimal.Decimal { return &s.BuyDownInterval })},
	{"straddle", decimalValue(func(s *Settings) *decimal.Decimal { return &s.Straddle })},
	{"log_to_file", text(func(s *Settings) *string { return &s.LogToFile })},
	{"log_level", logLevel},
}

func scalar(n *yaml.Node) (string, error) {
	if n.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("expected a single value at line %d", n.Line)
	}
	return n.Value, nil
}

func text(field func(*Settings) *string) decodeFunc {
	return func(_ string, n *yaml.Node, s *Settings) error {
		v, err := scalar(n)
		if err != nil {
			return err
		}
		*field(s) = v
		return nil
	}
}

func integer(field func(*Settings) *int) decodeFunc {
	return func(_ string, n *yaml.Node, s *Settings) error {
		if _, err := scalar(n); err != nil {
			return err
		}
		var v int
		if err := n.Decode(&v); err != nil {
			return fmt.Errorf("should be an integer: %w", err)
		}
		*field(s) = v
		return nil
	}
}

func decimalValue(field func(*Settings) *decimal.Decimal) decodeFunc {
	return func(key string, n *yaml.Node, s *Settings) error {
		v, err := scalar(n)
		if err != nil {
			return err
		}
		d, err := numeric.ParsePositiveDecimal(v, key)
		if err != nil {
			return err
		}
		*field(s) = d
		return nil
	}
}

func logLevel(_ string, n *yaml.Node, s *Settings) error {
	v, err := scalar(n)
	if err != nil {
		return err
	}
	lvl, err := logging.ParseLevel(v)
	if err != nil {
		return err
	}
	s.LogLevel = lvl
	return nil
}

// resolveSettings merges the market section over defaults and decodes every
// required key.
func resolveSettings(defaults map[string]yaml.Node, markets map[string]map[string]yaml.Node, market string) (Settings, error) {
	section, ok := markets[market]
	if !ok {
		return Settings{}, &ConfigError{Key: "markets." + market, Err: errMissing}
	}

	merged := make(map[string]yaml.Node, len(defaults)+len(section))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range section {
		merged[k] = v
	}

	s := Settings{Market: market}
	for _, st := range settingTypes {
		n, ok := merged[st.key]
		if !ok {
			return Settings{}, &ConfigError{Key: st.key, Err: errMissing}
		}
		if err := st.decode(st.key, &n, &s); err != nil {
			return Settings{}, &ConfigError{Key: st.key, Err: err}
		}
	}
	return s, validate(s)
}

func validate(s Settings) error {
	checks := []struct {
		key string
		ok  bool
		msg string
	}{
		{"max_obs_size", s.MaxObsSize > 0, "must be greater than 0"},
		{"max_drop_percentage", s.MaxDropPercentage >= 0 && s.MaxDropPercentage <= 100, "must be between 0 and 100"},
		{"min_history_points", s.MinHistoryPoints >= 0, "must not be negative"},
		{"max_loading_time", s.MaxLoadingTime >= 0, "must not be negative"},
	}
	for _, c := range checks {
		if !c.ok {
			return &ConfigError{Key: c.key, Err: fmt.Errorf("%w: %s", errRange, c.msg)}
		}
	}
	return nil
}
