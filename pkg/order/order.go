package order

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joripage/makerbot/pkg/numeric"
	"github.com/joripage/makerbot/pkg/venue"
	"github.com/shopspring/decimal"
)

// Order is an immutable, validated order. Use New, FromVenue or Replace to
// obtain one; the zero value is not a valid order.
type Order struct {
	price              decimal.Decimal
	amount             decimal.Decimal
	side               Side
	amountRemaining    decimal.Decimal
	id                 string
	typ                Type
	cancellationPolicy CancellationPolicy
	allowTaker         bool
	placedAt           time.Time
	status             Status
}

// Field sets and validates one order field.
type Field func(o *Order) error

func WithPrice(value any) Field {
	return func(o *Order) error {
		d, err := numeric.ParsePositiveDecimal(value, "price")
		if err != nil {
			return err
		}
		o.price = d
		return nil
	}
}

func WithAmount(value any) Field {
	return func(o *Order) error {
		d, err := numeric.ParsePositiveDecimal(value, "amount")
		if err != nil {
			return err
		}
		o.amount = d
		return nil
	}
}

func WithAmountRemaining(value any) Field {
	return func(o *Order) error {
		d, err := numeric.ParsePositiveDecimal(value, "amount_remaining")
		if err != nil {
			return err
		}
		o.amountRemaining = d
		return nil
	}
}

func WithSide(side Side) Field {
	return func(o *Order) error {
		s, err := numeric.ParseEnum(string(side), "side", sides...)
		if err != nil {
			return err
		}
		o.side = s
		return nil
	}
}

// WithID accepts a non-negative integer or the UnsetID sentinel.
func WithID(id string) Field {
	return func(o *Order) error {
		n, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
		if err != nil || n < -1 {
			return &numeric.ValidationError{Field: "id", Value: id, Reason: "must be a non-negative integer"}
		}
		o.id = strconv.FormatInt(n, 10)
		return nil
	}
}

func WithType(typ Type) Field {
	return func(o *Order) error {
		t, err := numeric.ParseEnum(string(typ), "type", types...)
		if err != nil {
			return err
		}
		o.typ = t
		return nil
	}
}

func WithCancellationPolicy(policy CancellationPolicy) Field {
	return func(o *Order) error {
		p, err := numeric.ParseEnum(string(policy), "cancellation_policy", policies...)
		if err != nil {
			return err
		}
		o.cancellationPolicy = p
		return nil
	}
}

func WithAllowTaker(allow bool) Field {
	return func(o *Order) error {
		o.allowTaker = allow
		return nil
	}
}

func WithPlacedAt(ts time.Time) Field {
	return func(o *Order) error {
		o.placedAt = ts
		return nil
	}
}

func WithStatus(status Status) Field {
	return func(o *Order) error {
		s, err := numeric.ParseEnum(string(status), "status", statuses...)
		if err != nil {
			return err
		}
		o.status = s
		return nil
	}
}

// New builds a GOOD_TIL_CANCELLED taker-allowed LIMIT order in PENDING status.
// amountRemaining starts equal to amount unless a WithAmountRemaining field is given.
func New(price, amount any, side Side, fields ...Field) (Order, error) {
	o := Order{
		id:                 UnsetID,
		typ:                TypeLimit,
		cancellationPolicy: GoodTilCancelled,
		allowTaker:         true,
		status:             StatusPending,
	}
	for _, f := range []Field{WithPrice(price), WithAmount(amount), WithSide(side)} {
		if err := f(&o); err != nil {
			return Order{}, err
		}
	}
	o.amountRemaining = o.amount
	for _, f := range fields {
		if err := f(&o); err != nil {
			return Order{}, err
		}
	}
	return o, nil
}

// Replace returns a copy with the given fields updated. o is left untouched.
func (o Order) Replace(fields ...Field) (Order, error) {
	next := o
	for _, f := range fields {
		if err := f(&next); err != nil {
			return o, err
		}
	}
	return next, nil
}

// ConstrainPrice floors the price to the market price increment.
func (o Order) ConstrainPrice(m *venue.Market) (Order, error) {
	return o.Replace(WithPrice(numeric.QuantizeFloor(o.price, m.MinTradeIncrementB)))
}

// ConstrainAmount caps the amount at maxAmount and floors it to the market amount increment.
func (o Order) ConstrainAmount(m *venue.Market, maxAmount decimal.Decimal) (Order, error) {
	amt := decimal.Min(o.amount, maxAmount)
	return o.Replace(WithAmount(numeric.QuantizeFloor(amt, m.MinTradeIncrement)))
}

// Constrain applies ConstrainPrice then ConstrainAmount.
func (o Order) Constrain(m *venue.Market, maxAmount decimal.Decimal) (Order, error) {
	priced, err := o.ConstrainPrice(m)
	if err != nil {
		return o, err
	}
	return priced.ConstrainAmount(m, maxAmount)
}

// FromVenue validates a venue account order.
func FromVenue(raw venue.RawOrder) (Order, error) {
	o, err := New(raw.LimitPrice, raw.Amount, Side(raw.BuyOrSell),
		WithAmountRemaining(raw.AmountRemaining),
		WithID(raw.ID),
		WithType(Type(raw.Type)),
		WithCancellationPolicy(CancellationPolicy(raw.CancellationPolicy)),
		WithPlacedAt(raw.PlacedAt),
		WithStatus(Status(raw.Status)),
	)
	if err != nil {
		return Order{}, fmt.Errorf("map venue order %s: %w", raw.ID, err)
	}
	return o, nil
}

func (o Order) Price() decimal.Decimal                 { return o.price }
func (o Order) Amount() decimal.Decimal                { return o.amount }
func (o Order) Side() Side                             { return o.side }
func (o Order) AmountRemaining() decimal.Decimal       { return o.amountRemaining }
func (o Order) ID() string                             { return o.id }
func (o Order) Type() Type                             { return o.typ }
func (o Order) CancellationPolicy() CancellationPolicy { return o.cancellationPolicy }
func (o Order) AllowTaker() bool                       { return o.allowTaker }
func (o Order) PlacedAt() time.Time                    { return o.placedAt }
func (o Order) Status() Status                         { return o.status }

// Filled is the executed part of the order.
func (o Order) Filled() decimal.Decimal {
	return o.amount.Sub(o.amountRemaining)
}

// Value is amount times price in quote funds.
func (o Order) Value() decimal.Decimal {
	return o.amount.Mul(o.price)
}

func (o Order) IsActive() bool {
	return o.status.Active()
}

func (o Order) String() string {
	return fmt.Sprintf("%s %s %s@%s remaining=%s id=%s", o.status, o.side, o.amount, o.price, o.amountRemaining, o.id)
}
