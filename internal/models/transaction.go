package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Transaction struct {
	OrderID      string          `json:"order_id"`
	CustomerName string          `json:"name"`
	Phone        string          `json:"phone"`
	Email        string          `json:"email"`
	Amount       decimal.Decimal `json:"amount"`
	PaymentID    *string         `json:"payment_id"`
	Status       StatusType      `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
	SettledAt    *time.Time      `json:"settled_at,omitempty"`
}

type StatusType string

const (
	StatusPending StatusType = "PENDING"
	StatusSuccess StatusType = "SUCCESS"
	StatusFailed  StatusType = "FAILED"
)

func (s StatusType) Valid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave s.
func (s StatusType) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// CanTransition reports whether from -> to is a legal lifecycle step.
// Re-applying the stored terminal status is allowed and is a no-op.
func CanTransition(from, to StatusType) bool {
	if from == StatusPending {
		return to.Terminal()
	}
	return from.Terminal() && from == to
}

// SettlementEvent is a gateway outcome delivered over a queue instead of the
// HTTP callback.
type SettlementEvent struct {
	OrderID   string          `json:"order_id"`
	PaymentID string          `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
	Name      string          `json:"name"`
	Phone     string          `json:"phone"`
	Email     string          `json:"email"`
	Status    StatusType      `json:"status"`
}

// TransactionEvent is published after every PENDING -> terminal flip.
type TransactionEvent struct {
	EventType string          `json:"event_type"`
	OrderID   string          `json:"order_id"`
	PaymentID string          `json:"payment_id,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Status    StatusType      `json:"status"`
	SettledAt time.Time       `json:"settled_at"`
}
