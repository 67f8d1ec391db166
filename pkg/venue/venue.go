package venue

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Client is the set of venue operations the bot needs. Implementations wrap
// transport failures with ErrVenue.
type Client interface {
	Login(ctx context.Context, user, secret string, extra map[string]string) (*Session, error)
	GetMarket(ctx context.Context, symbol string) (*Market, error)
	GetOrderBook(ctx context.Context, symbol string) (*Snapshot, error)
	PlaceLimitOrder(ctx context.Context, req *LimitOrderRequest) (*PlacedOrder, error)
	CancelOrder(ctx context.Context, id, symbol string) error
	ListAccountOrders(ctx context.Context, symbol string, statuses []string, rangeStart time.Time) ([]RawOrder, error)
	GetAccountBalance(ctx context.Context, asset string) (*Balance, error)
}

type Session struct {
	Account   string
	ExpiresAt time.Time
}

// Market carries the trading granularity of a pair. Names are "<base>_<quote>".
type Market struct {
	Name               string
	MinTradeIncrement  decimal.Decimal // amount step, base asset
	MinTradeIncrementB decimal.Decimal // price step, quote asset
	MinTradeSizeB      decimal.Decimal // minimum order value, quote asset
}

// BaseAsset returns the part of the market name before "_".
func (m *Market) BaseAsset() string {
	base, _, _ := strings.Cut(m.Name, "_")
	return base
}

// QuoteAsset returns the part of the market name after "_".
func (m *Market) QuoteAsset() string {
	_, quote, _ := strings.Cut(m.Name, "_")
	return quote
}

type PriceLevel struct {
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
}

// Snapshot is an order book in venue order: asks ascending from the best ask,
// bids ascending so the best bid is the last element.
type Snapshot struct {
	Market   string       `json:"market"`
	UpdateID int64        `json:"update_id"`
	Asks     []PriceLevel `json:"asks"`
	Bids     []PriceLevel `json:"bids"`
}

type LimitOrderRequest struct {
	Market             string
	Amount             decimal.Decimal
	Side               string
	CancellationPolicy string
	Price              decimal.Decimal
	AllowTaker         bool
}

type PlacedOrder struct {
	ID     string
	Status string
}

// RawOrder is an account order as reported by the venue, before validation.
type RawOrder struct {
	ID                 string
	Market             string
	LimitPrice         string
	Amount             string
	AmountRemaining    string
	BuyOrSell          string
	Type               string
	CancellationPolicy string
	Status             string
	PlacedAt           time.Time
}

type Balance struct {
	Asset     string
	Available decimal.Decimal
	Locked    decimal.Decimal
}
