package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	kafkamocks "github.com/honeynil/PaymentServiceTochka/internal/infrastructure/kafka/mocks"
	redismocks "github.com/honeynil/PaymentServiceTochka/internal/infrastructure/redis/mocks"
	"github.com/honeynil/PaymentServiceTochka/internal/models"
	repositorymocks "github.com/honeynil/PaymentServiceTochka/internal/repository/mocks"
	pkgerrors "github.com/honeynil/PaymentServiceTochka/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecon(repo *memTransactionRepo, d *recordingDispatcher) *reconciliationService {
	return NewReconciliationService(repo, nil, nil, d, ReconciliationConfig{
		Currency:        "INR",
		DispatchTimeout: time.Second,
	})
}

func successReq(orderID string) SettlementRequest {
	return SettlementRequest{
		OrderID:   orderID,
		PaymentID: "pay_1",
		Amount:    decimal.NewFromInt(500),
		Name:      "Asha",
		Phone:     "9999999999",
		Email:     "asha@example.com",
	}
}

func TestReconciliationService_ReportSuccess(t *testing.T) {
	ctx := context.Background()

	t.Run("first callback settles and dispatches once", func(t *testing.T) {
		repo := newMemTransactionRepo()
		repo.seedPending("order_1", 500)
		d := &recordingDispatcher{}
		svc := newRecon(repo, d)

		receipt, err := svc.ReportSuccess(ctx, successReq("order_1"))
		require.NoError(t, err)
		svc.Wait()

		assert.Equal(t, "order_1", receipt.OrderID)
		assert.Equal(t, "pay_1", receipt.PaymentID)
		assert.True(t, receipt.Amount.Equal(decimal.NewFromInt(500)))
		assert.Equal(t, "INR", receipt.Currency)
		assert.Equal(t, models.StatusSuccess, receipt.Status)

		stored, err := repo.GetByOrderID(ctx, "order_1")
		require.NoError(t, err)
		assert.Equal(t, models.StatusSuccess, stored.Status)
		require.NotNil(t, stored.PaymentID)
		assert.Equal(t, "pay_1", *stored.PaymentID)
		assert.Equal(t, 1, d.count())

		again, err := svc.ReportSuccess(ctx, successReq("order_1"))
		require.NoError(t, err)
		svc.Wait()
		assert.Equal(t, receipt.PaymentID, again.PaymentID)
		assert.Equal(t, 1, d.count())
	})

	t.Run("concurrent duplicates dispatch exactly once", func(t *testing.T) {
		repo := newMemTransactionRepo()
		repo.seedPending("order_1", 500)
		d := &recordingDispatcher{}
		svc := newRecon(repo, d)

		const callers = 25
		var wg sync.WaitGroup
		errs := make(chan error, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.ReportSuccess(ctx, successReq("order_1"))
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		svc.Wait()

		for err := range errs {
			assert.NoError(t, err)
		}
		assert.Equal(t, 1, d.count())
	})

	t.Run("unknown order creates nothing", func(t *testing.T) {
		repo := newMemTransactionRepo()
		d := &recordingDispatcher{}
		svc := newRecon(repo, d)

		receipt, err := svc.ReportSuccess(ctx, successReq("ghost"))
		svc.Wait()
		assert.Nil(t, receipt)
		assert.ErrorIs(t, err, pkgerrors.ErrUnknownOrder)
		_, err = repo.GetByOrderID(ctx, "ghost")
		assert.ErrorIs(t, err, pkgerrors.ErrTransactionNotFound)
		assert.Zero(t, d.count())
	})

	t.Run("failed is sticky", func(t *testing.T) {
		repo := newMemTransactionRepo()
		repo.seedPending("order_1", 500)
		d := &recordingDispatcher{}
		svc := newRecon(repo, d)

		_, err := svc.ReportFailure(ctx, SettlementRequest{OrderID: "order_1"})
		require.NoError(t, err)

		_, err = svc.ReportSuccess(ctx, successReq("order_1"))
		svc.Wait()
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidTransition)

		stored, _ := repo.GetByOrderID(ctx, "order_1")
		assert.Equal(t, models.StatusFailed, stored.Status)
		assert.Zero(t, d.count())
	})

	t.Run("amount mismatch keeps stored amount", func(t *testing.T) {
		repo := newMemTransactionRepo()
		repo.seedPending("order_1", 500)
		svc := newRecon(repo, &recordingDispatcher{})

		req := successReq("order_1")
		req.Amount = decimal.NewFromInt(1)
		receipt, err := svc.ReportSuccess(ctx, req)
		svc.Wait()
		require.NoError(t, err)
		assert.True(t, receipt.Amount.Equal(decimal.NewFromInt(500)))
	})

	t.Run("missing order id", func(t *testing.T) {
		svc := newRecon(newMemTransactionRepo(), &recordingDispatcher{})
		_, err := svc.ReportSuccess(ctx, SettlementRequest{})
		assert.ErrorIs(t, err, pkgerrors.ErrInvalidInput)
	})
}

func TestReconciliationService_ReportFailure(t *testing.T) {
	ctx := context.Background()
	repo := newMemTransactionRepo()
	repo.seedPending("order_1", 500)
	d := &recordingDispatcher{}
	svc := newRecon(repo, d)

	tx, err := svc.ReportFailure(ctx, SettlementRequest{OrderID: "order_1"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, tx.Status)

	tx, err = svc.ReportFailure(ctx, SettlementRequest{OrderID: "order_1"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, tx.Status)
	svc.Wait()
	assert.Zero(t, d.count())
}

func TestReconciliationService_SuccessIsFinal(t *testing.T) {
	ctx := context.Background()
	repo := newMemTransactionRepo()
	repo.seedPending("order_1", 500)
	svc := newRecon(repo, &recordingDispatcher{})

	_, err := svc.ReportSuccess(ctx, successReq("order_1"))
	require.NoError(t, err)
	_, err = svc.ReportFailure(ctx, SettlementRequest{OrderID: "order_1"})
	svc.Wait()
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidTransition)
}

func TestReconciliationService_PublishesAndInvalidates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := newMemTransactionRepo()
	repo.seedPending("order_1", 500)
	redisClient := redismocks.NewMockRedisClient(ctrl)
	producer := kafkamocks.NewMockKafkaProducer(ctrl)
	svc := NewReconciliationService(repo, redisClient, producer, &recordingDispatcher{}, ReconciliationConfig{
		EventsTopic:     "transactions",
		Currency:        "INR",
		DispatchTimeout: time.Second,
	})

	redisClient.EXPECT().Del(gomock.Any(), transactionsCacheKey).Return(nil).Times(1)
	producer.EXPECT().Send(gomock.Any(), "transactions", "order_1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _, _ string, value []byte) error {
			var event models.TransactionEvent
			require.NoError(t, json.Unmarshal(value, &event))
			assert.Equal(t, "transaction_success", event.EventType)
			assert.Equal(t, "pay_1", event.PaymentID)
			assert.Equal(t, models.StatusSuccess, event.Status)
			return nil
		}).Times(1)

	_, err := svc.ReportSuccess(context.Background(), successReq("order_1"))
	require.NoError(t, err)
	_, err = svc.ReportSuccess(context.Background(), successReq("order_1"))
	require.NoError(t, err)
	svc.Wait()
}

func TestReconciliationService_DispatchOutlivesRequest(t *testing.T) {
	repo := newMemTransactionRepo()
	repo.seedPending("order_1", 500)
	d := &recordingDispatcher{}
	svc := newRecon(repo, d)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := svc.ReportSuccess(ctx, successReq("order_1"))
	require.NoError(t, err)
	cancel()
	svc.Wait()
	assert.Equal(t, 1, d.count())
}

func TestReconciliationService_StoreError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := repositorymocks.NewMockTransactionRepository(ctrl)
	repo.EXPECT().TransitionFromPending(gomock.Any(), "order_1", models.StatusSuccess, "pay_1").
		Return(nil, false, errors.New("connection reset"))
	svc := NewReconciliationService(repo, nil, nil, nil, ReconciliationConfig{})

	_, err := svc.ReportSuccess(context.Background(), successReq("order_1"))
	assert.ErrorIs(t, err, pkgerrors.ErrPersistenceFailure)
}

func TestReconciliationService_Settle(t *testing.T) {
	ctx := context.Background()
	repo := newMemTransactionRepo()
	repo.seedPending("order_1", 500)
	repo.seedPending("order_2", 120)
	d := &recordingDispatcher{}
	svc := newRecon(repo, d)

	require.NoError(t, svc.Settle(ctx, models.SettlementEvent{OrderID: "order_1", PaymentID: "pay_1", Status: models.StatusSuccess}))
	require.NoError(t, svc.Settle(ctx, models.SettlementEvent{OrderID: "order_2", Status: models.StatusFailed}))
	err := svc.Settle(ctx, models.SettlementEvent{OrderID: "order_1", Status: models.StatusPending})
	assert.ErrorIs(t, err, pkgerrors.ErrInvalidTransactionStatus)
	assert.ErrorIs(t, svc.Settle(ctx, models.SettlementEvent{OrderID: "ghost", Status: models.StatusSuccess}), pkgerrors.ErrUnknownOrder)
	svc.Wait()

	first, _ := repo.GetByOrderID(ctx, "order_1")
	second, _ := repo.GetByOrderID(ctx, "order_2")
	assert.Equal(t, models.StatusSuccess, first.Status)
	assert.Equal(t, models.StatusFailed, second.Status)
	assert.Equal(t, 1, d.count())
}

type panickingDispatcher struct {
	calls int
}

func (d *panickingDispatcher) Dispatch(ctx context.Context, tx *models.Transaction) *models.DispatchReport {
	d.calls++
	panic("mailer exploded")
}

func TestReconciliationService_DispatchPanicIsContained(t *testing.T) {
	repo := newMemTransactionRepo()
	repo.seedPending("order_1", 500)
	d := &panickingDispatcher{}
	svc := NewReconciliationService(repo, nil, nil, d, ReconciliationConfig{Currency: "INR", DispatchTimeout: time.Second})

	receipt, err := svc.ReportSuccess(context.Background(), successReq("order_1"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, receipt.Status)

	svc.Wait()
	assert.Equal(t, 1, d.calls)

	stored, err := repo.GetByOrderID(context.Background(), "order_1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, stored.Status)
}
