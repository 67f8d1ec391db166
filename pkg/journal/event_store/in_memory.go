package eventstore

import (
	"sync"

	"github.com/joripage/makerbot/pkg/journal/model"
)

// InMemoryEventStore keeps every event per order and the chain of buys each
// rebuy replaced.
type InMemoryEventStore struct {
	mu       sync.RWMutex
	orders   map[string][]*model.ActionEvent
	replaced map[string]string // OrderID -> ReplacedOrderID
}

func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		orders:   make(map[string][]*model.ActionEvent),
		replaced: make(map[string]string),
	}
}

func (s *InMemoryEventStore) AddEvent(ev *model.ActionEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orders[ev.OrderID] = append(s.orders[ev.OrderID], ev)
	s.trackReplaceChain(ev.OrderID, ev.ReplacedOrderID)
}

// TrackReplaceChain links orderID to the order it replaced.
func (s *InMemoryEventStore) TrackReplaceChain(orderID, replacedOrderID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.trackReplaceChain(orderID, replacedOrderID)
}

func (s *InMemoryEventStore) trackReplaceChain(orderID, replacedOrderID string) {
	if replacedOrderID != "" && replacedOrderID != orderID {
		s.replaced[orderID] = replacedOrderID
	}
}

func (s *InMemoryEventStore) GetReplacedOrderID(orderID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.replaced[orderID]
}

func (s *InMemoryEventStore) Events(orderID string) []*model.ActionEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.ActionEvent, len(s.orders[orderID]))
	copy(out, s.orders[orderID])
	return out
}

// ReconstructChain walks backward from orderID through every buy it replaced.
func (s *InMemoryEventStore) ReconstructChain(orderID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var chain []string
	seen := make(map[string]bool)
	curr := orderID
	for curr != "" && !seen[curr] {
		seen[curr] = true
		chain = append(chain, curr)
		curr = s.replaced[curr]
	}
	return chain
}
