package storage

import "context"

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks . ReceiptStore

// ReceiptStore persists a rendered receipt and returns a URL the customer
// can open.
type ReceiptStore interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}
