package strategy

import "errors"

var (
	// ErrStrategyInvariant marks order bookkeeping the engine cannot act on safely.
	ErrStrategyInvariant = errors.New("strategy invariant violated")
	// ErrMarketCondition marks a fair value below the configured drop floor.
	ErrMarketCondition = errors.New("market condition")
)
