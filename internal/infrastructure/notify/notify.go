package notify

import (
	"context"

	"github.com/honeynil/PaymentServiceTochka/internal/models"
)

//go:generate mockgen -destination=mocks/mock_notify.go -package=mocks . ReceiptRenderer,Mailer,SMSSender

type ReceiptRenderer interface {
	Render(r *models.Receipt) ([]byte, error)
}

// Mailer sends the receipt email. attachment may be nil.
type Mailer interface {
	SendReceipt(ctx context.Context, r *models.Receipt, attachment []byte) error
}

type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}

// ReceiptFileName is the name under which a receipt PDF is stored and attached.
func ReceiptFileName(orderID string) string {
	return "receipt_" + orderID + ".pdf"
}
