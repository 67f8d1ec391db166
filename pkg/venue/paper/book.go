package paper

import (
	"container/heap"
	"time"

	"github.com/gammazero/deque"
	"github.com/joripage/makerbot/pkg/order"
	"github.com/joripage/makerbot/pkg/venue"
	"github.com/shopspring/decimal"
)

type restingOrder struct {
	id        string
	side      order.Side
	price     decimal.Decimal
	amount    decimal.Decimal
	remaining decimal.Decimal
	policy    order.CancellationPolicy
	status    order.Status
	placedAt  time.Time
}

func (o *restingOrder) raw(market string) venue.RawOrder {
	return venue.RawOrder{
		ID:                 o.id,
		Market:             market,
		LimitPrice:         o.price.String(),
		Amount:             o.amount.String(),
		AmountRemaining:    o.remaining.String(),
		BuyOrSell:          string(o.side),
		Type:               string(order.TypeLimit),
		CancellationPolicy: string(o.policy),
		Status:             string(o.status),
		PlacedAt:           o.placedAt,
	}
}

// restingBook holds the account's own resting orders, FIFO per price level.
type restingBook struct {
	buyOrders  map[string]*deque.Deque[*restingOrder]
	sellOrders map[string]*deque.Deque[*restingOrder]

	buyHeap  *PriceHeap
	sellHeap *PriceHeap
}

func newRestingBook() *restingBook {
	return &restingBook{
		buyOrders:  make(map[string]*deque.Deque[*restingOrder]),
		sellOrders: make(map[string]*deque.Deque[*restingOrder]),
		buyHeap:    NewPriceHeap(func(i, j decimal.Decimal) bool { return i.GreaterThan(j) }), // Max-heap
		sellHeap:   NewPriceHeap(func(i, j decimal.Decimal) bool { return i.LessThan(j) }),    // Min-heap
	}
}

func (b *restingBook) side(s order.Side) (map[string]*deque.Deque[*restingOrder], *PriceHeap) {
	if s == order.Buy {
		return b.buyOrders, b.buyHeap
	}
	return b.sellOrders, b.sellHeap
}

func (b *restingBook) add(o *restingOrder) {
	book, priceHeap := b.side(o.side)
	key := priceKey(o.price)
	if book[key] == nil {
		book[key] = &deque.Deque[*restingOrder]{}
	}
	if book[key].Len() == 0 {
		heap.Push(priceHeap, o.price)
	}
	book[key].PushBack(o)
}

// remove drops o from its level. Empty levels are pruned lazily by best.
func (b *restingBook) remove(o *restingOrder) bool {
	book, _ := b.side(o.side)
	q := book[priceKey(o.price)]
	if q == nil {
		return false
	}
	idx := q.Index(func(x *restingOrder) bool { return x == o })
	if idx < 0 {
		return false
	}
	q.Remove(idx)
	return true
}

// best returns the first order in time priority at the best price of side.
func (b *restingBook) best(s order.Side) *restingOrder {
	book, priceHeap := b.side(s)
	for {
		bestPrice, ok := priceHeap.Peek()
		if !ok {
			return nil
		}
		q := book[priceKey(bestPrice)]
		if q == nil || q.Len() == 0 {
			heap.Pop(priceHeap)
			delete(book, priceKey(bestPrice))
			continue
		}
		return q.Front()
	}
}

// levels aggregates the remaining amount of side per price.
func (b *restingBook) levels(s order.Side) []venue.PriceLevel {
	book, _ := b.side(s)
	var out []venue.PriceLevel
	for _, q := range book {
		total := decimal.Zero
		for i := 0; i < q.Len(); i++ {
			total = total.Add(q.At(i).remaining)
		}
		if total.IsPositive() {
			out = append(out, venue.PriceLevel{Price: q.Front().price, Amount: total})
		}
	}
	return out
}

// crosses reports whether an order of side at price trades against level.
func crosses(side order.Side, price, level decimal.Decimal) bool {
	if side == order.Buy {
		return price.GreaterThanOrEqual(level)
	}
	return price.LessThanOrEqual(level)
}

// take fills o against counter, best level first, consuming the liquidity it
// uses. It returns the filled amount.
func take(o *restingOrder, counter []venue.PriceLevel) decimal.Decimal {
	filled := decimal.Zero
	for i := range counter {
		if !o.remaining.IsPositive() {
			break
		}
		lvl := &counter[i]
		if !crosses(o.side, o.price, lvl.Price) {
			break
		}
		if !lvl.Amount.IsPositive() {
			continue
		}
		matchQty := decimal.Min(o.remaining, lvl.Amount)
		lvl.Amount = lvl.Amount.Sub(matchQty)
		o.remaining = o.remaining.Sub(matchQty)
		filled = filled.Add(matchQty)
	}
	return filled
}

// available sums the liquidity o could take from counter.
func available(o *restingOrder, counter []venue.PriceLevel) decimal.Decimal {
	total := decimal.Zero
	for _, lvl := range counter {
		if !crosses(o.side, o.price, lvl.Price) {
			break
		}
		total = total.Add(lvl.Amount)
	}
	return total
}
