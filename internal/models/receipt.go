package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Receipt struct {
	OrderID      string          `json:"order_id"`
	PaymentID    string          `json:"payment_id"`
	CustomerName string          `json:"name"`
	Phone        string          `json:"phone"`
	Email        string          `json:"email"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Status       StatusType      `json:"status"`
	PaidAt       time.Time       `json:"paid_at"`
}

// NewReceipt builds a receipt from stored transaction data only.
func NewReceipt(tx *Transaction, currency string) *Receipt {
	r := &Receipt{
		OrderID:      tx.OrderID,
		CustomerName: tx.CustomerName,
		Phone:        tx.Phone,
		Email:        tx.Email,
		Amount:       tx.Amount,
		Currency:     currency,
		Status:       tx.Status,
		PaidAt:       tx.CreatedAt,
	}
	if tx.PaymentID != nil {
		r.PaymentID = *tx.PaymentID
	}
	if tx.SettledAt != nil {
		r.PaidAt = *tx.SettledAt
	}
	return r
}

const (
	ChannelReceipt = "receipt"
	ChannelEmail   = "email"
	ChannelSMS     = "sms"
)

type ChannelResult struct {
	Channel string `json:"channel"`
	Skipped bool   `json:"skipped,omitempty"`
	Err     error  `json:"-"`
}

func (c ChannelResult) OK() bool {
	return c.Err == nil
}

func (c ChannelResult) Status() string {
	switch {
	case c.Skipped:
		return "skipped"
	case c.Err != nil:
		return "error"
	}
	return "success"
}

// DispatchReport records the outcome of each notification channel.
type DispatchReport struct {
	OrderID    string
	ReceiptURL string
	Receipt    ChannelResult
	Email      ChannelResult
	SMS        ChannelResult
}

func (r *DispatchReport) Channels() []ChannelResult {
	return []ChannelResult{r.Receipt, r.Email, r.SMS}
}

func (r *DispatchReport) Failed() []string {
	var failed []string
	for _, c := range r.Channels() {
		if c.Err != nil {
			failed = append(failed, c.Channel)
		}
	}
	return failed
}
