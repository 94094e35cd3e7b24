package gateway

import (
	"context"

	"github.com/shopspring/decimal"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks . Client

// Client creates payment orders at an external gateway.
type Client interface {
	CreateOrder(ctx context.Context, details OrderDetails) (*Order, error)
}

type OrderDetails struct {
	Name     string
	Phone    string
	Email    string
	Amount   decimal.Decimal
	Currency string
}

// Order is the gateway's answer: its order ID and the session reference the
// client hands to the checkout SDK.
type Order struct {
	OrderID          string `json:"order_id"`
	SessionReference string `json:"payment_session_id"`
}
