package order

import "github.com/joripage/makerbot/pkg/numeric"

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Opposite returns the counter side.
func (s Side) Opposite() Side {
	switch s {
	case Buy:
		return Sell
	case Sell:
		return Buy
	}
	return s
}

type Type string

const (
	TypeLimit      Type = "LIMIT"
	TypeMarket     Type = "MARKET"
	TypeStopLimit  Type = "STOP_LIMIT"
	TypeStopMarket Type = "STOP_MARKET"
)

type Status string

const (
	StatusCancelled Status = "CANCELLED"
	StatusFilled    Status = "FILLED"
	StatusOpen      Status = "OPEN"
	StatusPending   Status = "PENDING"
)

// Active reports whether an order with this status can still trade.
func (s Status) Active() bool {
	switch s {
	case StatusOpen, StatusPending:
		return true
	case StatusCancelled, StatusFilled:
		return false
	}
	return false
}

type CancellationPolicy string

const (
	FillOrKill        CancellationPolicy = "FILL_OR_KILL"
	GoodTilCancelled  CancellationPolicy = "GOOD_TIL_CANCELLED"
	GoodTilTime       CancellationPolicy = "GOOD_TIL_TIME"
	ImmediateOrCancel CancellationPolicy = "IMMEDIATE_OR_CANCEL"
)

// UnsetID marks an order that has not been accepted by the venue yet.
const UnsetID = "-1"

var (
	sides    = []Side{Buy, Sell}
	types    = []Type{TypeLimit, TypeMarket, TypeStopLimit, TypeStopMarket}
	statuses = []Status{StatusCancelled, StatusFilled, StatusOpen, StatusPending}
	policies = []CancellationPolicy{FillOrKill, GoodTilCancelled, GoodTilTime, ImmediateOrCancel}
)

// ParseSide accepts a side name in any case.
func ParseSide(s string) (Side, error) {
	return numeric.ParseEnum(s, "side", sides...)
}

// ParseCancellationPolicy accepts a policy name in any case.
func ParseCancellationPolicy(s string) (CancellationPolicy, error) {
	return numeric.ParseEnum(s, "cancellation_policy", policies...)
}
