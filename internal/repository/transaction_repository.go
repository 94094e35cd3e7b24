package repository

import (
	"context"

	"github.com/honeynil/PaymentServiceTochka/internal/models"
)

//go:generate mockgen -destination=mocks/mock_transaction_repository.go -package=mocks . TransactionRepository

type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	GetByOrderID(ctx context.Context, orderID string) (*models.Transaction, error)
	List(ctx context.Context) ([]models.Transaction, error)
	// TransitionFromPending atomically moves a PENDING transaction to status.
	// changed is true only for the call that performed the flip; otherwise the
	// stored record is returned untouched.
	TransitionFromPending(ctx context.Context, orderID string, status models.StatusType, paymentID string) (tx *models.Transaction, changed bool, err error)
}
