package order

import (
	"slices"

	"github.com/shopspring/decimal"
)

// BySide keeps the orders on side, preserving order.
func BySide(orders []Order, side Side) []Order {
	var out []Order
	for _, o := range orders {
		if o.side == side {
			out = append(out, o)
		}
	}
	return out
}

// ActiveSells returns the OPEN and PENDING sell orders.
func ActiveSells(orders []Order) []Order {
	var out []Order
	for _, o := range BySide(orders, Sell) {
		if o.IsActive() {
			out = append(out, o)
		}
	}
	return out
}

// Lowest returns the order with the lowest price, or nil for an empty list.
func Lowest(orders []Order) *Order {
	if len(orders) == 0 {
		return nil
	}
	low := slices.MinFunc(orders, func(a, b Order) int { return a.price.Cmp(b.price) })
	return &low
}

// Latest returns the most recently placed order, or nil for an empty list.
// Ties go to the order listed last.
func Latest(orders []Order) *Order {
	if len(orders) == 0 {
		return nil
	}
	last := orders[0]
	for _, o := range orders[1:] {
		if !o.placedAt.Before(last.placedAt) {
			last = o
		}
	}
	return &last
}

// FundsInOpenOrders sums remaining amount times price over OPEN orders.
func FundsInOpenOrders(orders []Order) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		if o.status == StatusOpen {
			total = total.Add(o.amountRemaining.Mul(o.price))
		}
	}
	return total
}
