package venue

import "errors"

// ErrVenue marks transient failures of venue calls. They are retried by the caller.
var ErrVenue = errors.New("venue error")

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotCancellable    = errors.New("order is not cancellable")
	ErrUnknownMarket     = errors.New("unknown market")
	ErrNoBook            = errors.New("order book unavailable")
	ErrOrderRejected     = errors.New("order rejected")
)
