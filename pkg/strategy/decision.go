package strategy

import (
	"time"

	"github.com/joripage/makerbot/pkg/order"
)

// PausePlaced and PauseFunds are how long the loop waits after placing a
// scrum buy and when no funds are available.
const (
	PausePlaced = 5 * time.Second
	PauseFunds  = 5 * time.Second
)

type ActionKind string

const (
	ActionPlace  ActionKind = "PLACE"
	ActionCancel ActionKind = "CANCEL"
)

type Reason string

const (
	ReasonScrumBuy  Reason = "scrum_buy"
	ReasonBuyFilled Reason = "buy_filled"
	ReasonPairSell  Reason = "pair_sell"
	ReasonNotTopBid Reason = "not_top_bid"
	ReasonRebuy     Reason = "rebuy"
	ReasonNoFunds   Reason = "no_funds"
	ReasonNotBuying Reason = "not_buying"
	ReasonNoSignal  Reason = "no_signal"
	ReasonHold      Reason = "hold"
)

// Action is one venue call the loop must make, in order.
// Replaces names the buy a new buy takes over from.
type Action struct {
	Kind     ActionKind
	Order    order.Order
	Replaces string
	Reason   Reason
}

type Wait int

const (
	WaitNone Wait = iota
	WaitPlaced
	WaitFunds
)

func (w Wait) Duration() time.Duration {
	switch w {
	case WaitPlaced:
		return PausePlaced
	case WaitFunds:
		return PauseFunds
	}
	return 0
}

func (w Wait) String() string {
	switch w {
	case WaitPlaced:
		return "placed"
	case WaitFunds:
		return "funds"
	}
	return "none"
}

// Decision is the outcome of one evaluation.
type Decision struct {
	Actions []Action
	Wait    Wait
	Reason  Reason
}

func place(o order.Order, replaces string, reason Reason) Action {
	return Action{Kind: ActionPlace, Order: o, Replaces: replaces, Reason: reason}
}

func cancel(o order.Order, reason Reason) Action {
	return Action{Kind: ActionCancel, Order: o, Reason: reason}
}
