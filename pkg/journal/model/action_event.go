package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ActionKind string

const (
	KindPlace  ActionKind = "PLACE"
	KindCancel ActionKind = "CANCEL"
)

// ActionEvent records one order action the bot executed on the venue.
type ActionEvent struct {
	EventID         string          `gorm:"column:event_id;primaryKey" json:"event_id"`
	TickID          string          `gorm:"column:tick_id" json:"tick_id"`
	Market          string          `gorm:"column:market" json:"market"`
	Kind            ActionKind      `gorm:"column:kind" json:"kind"`
	OrderID         string          `gorm:"column:order_id" json:"order_id"`
	ReplacedOrderID string          `gorm:"column:replaced_order_id" json:"replaced_order_id,omitempty"`
	Side            string          `gorm:"column:side" json:"side"`
	Price           decimal.Decimal `gorm:"column:price;type:numeric" json:"price"`
	Amount          decimal.Decimal `gorm:"column:amount;type:numeric" json:"amount"`
	Reason          string          `gorm:"column:reason" json:"reason"`
	Timestamp       time.Time       `gorm:"column:ts" json:"ts"`
}

func (ActionEvent) TableName() string {
	return "action_events"
}

func NewActionEvent(tickID, market string, kind ActionKind, orderID string, ts time.Time) *ActionEvent {
	return &ActionEvent{
		EventID:   uuid.NewString(),
		TickID:    tickID,
		Market:    market,
		Kind:      kind,
		OrderID:   orderID,
		Timestamp: ts,
	}
}
