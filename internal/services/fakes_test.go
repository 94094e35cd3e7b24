package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/honeynil/PaymentServiceTochka/internal/models"
	pkgerrors "github.com/honeynil/PaymentServiceTochka/pkg/errors"
	"github.com/shopspring/decimal"
)

// memTransactionRepo mirrors the conditional UPDATE of the Postgres
// repository under a mutex.
type memTransactionRepo struct {
	mu  sync.Mutex
	txs map[string]*models.Transaction
}

func newMemTransactionRepo() *memTransactionRepo {
	return &memTransactionRepo{txs: map[string]*models.Transaction{}}
}

func (m *memTransactionRepo) seedPending(orderID string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs[orderID] = &models.Transaction{
		OrderID:      orderID,
		CustomerName: "Asha",
		Phone:        "9999999999",
		Email:        "asha@example.com",
		Amount:       decimal.NewFromInt(amount),
		Status:       models.StatusPending,
		CreatedAt:    time.Now(),
	}
}

func (m *memTransactionRepo) Create(ctx context.Context, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.txs[tx.OrderID]; ok {
		return pkgerrors.ErrTransactionExists
	}
	c := *tx
	c.CreatedAt = time.Now()
	m.txs[tx.OrderID] = &c
	return nil
}

func (m *memTransactionRepo) GetByOrderID(ctx context.Context, orderID string) (*models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[orderID]
	if !ok {
		return nil, pkgerrors.ErrTransactionNotFound
	}
	c := *tx
	return &c, nil
}

func (m *memTransactionRepo) List(ctx context.Context) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Transaction, 0, len(m.txs))
	for _, tx := range m.txs {
		out = append(out, *tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memTransactionRepo) TransitionFromPending(ctx context.Context, orderID string, status models.StatusType, paymentID string) (*models.Transaction, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.txs[orderID]
	if !ok {
		return nil, false, pkgerrors.ErrTransactionNotFound
	}
	if tx.Status != models.StatusPending {
		c := *tx
		return &c, false, nil
	}
	now := time.Now()
	tx.Status = status
	if paymentID != "" {
		pid := paymentID
		tx.PaymentID = &pid
	}
	tx.SettledAt = &now
	c := *tx
	return &c, true, nil
}

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []string
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, tx *models.Transaction) *models.DispatchReport {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, tx.OrderID)
	return &models.DispatchReport{OrderID: tx.OrderID}
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}
