package eventstore

import "github.com/joripage/makerbot/pkg/journal/model"

type EventStore interface {
	AddEvent(ev *model.ActionEvent)
	TrackReplaceChain(orderID, replacedOrderID string)
	GetReplacedOrderID(orderID string) string
	Events(orderID string) []*model.ActionEvent
	ReconstructChain(orderID string) []string
}
