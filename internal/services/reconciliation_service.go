package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/honeynil/PaymentServiceTochka/internal/infrastructure/kafka"
	"github.com/honeynil/PaymentServiceTochka/internal/infrastructure/observability"
	"github.com/honeynil/PaymentServiceTochka/internal/infrastructure/redis"
	"github.com/honeynil/PaymentServiceTochka/internal/models"
	"github.com/honeynil/PaymentServiceTochka/internal/repository"
	pkgerrors "github.com/honeynil/PaymentServiceTochka/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type ReconciliationService interface {
	ReportSuccess(ctx context.Context, req SettlementRequest) (*models.Receipt, error)
	ReportFailure(ctx context.Context, req SettlementRequest) (*models.Transaction, error)
	Settle(ctx context.Context, event models.SettlementEvent) error
	Wait()
}

// Dispatcher delivers post-payment notifications.
type Dispatcher interface {
	Dispatch(ctx context.Context, tx *models.Transaction) *models.DispatchReport
}

type SettlementRequest struct {
	OrderID   string          `json:"order_id"`
	PaymentID string          `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
	Name      string          `json:"name"`
	Phone     string          `json:"phone"`
	Email     string          `json:"email"`
}

type ReconciliationConfig struct {
	EventsTopic     string
	Currency        string
	DispatchTimeout time.Duration
}

type reconciliationService struct {
	repo        repository.TransactionRepository
	redisClient redis.RedisClient
	producer    kafka.KafkaProducer
	dispatcher  Dispatcher
	cfg         ReconciliationConfig
	wg          sync.WaitGroup
}

func NewReconciliationService(
	repo repository.TransactionRepository,
	redisClient redis.RedisClient,
	producer kafka.KafkaProducer,
	dispatcher Dispatcher,
	cfg ReconciliationConfig,
) *reconciliationService {
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 30 * time.Second
	}
	return &reconciliationService{
		repo:        repo,
		redisClient: redisClient,
		producer:    producer,
		dispatcher:  dispatcher,
		cfg:         cfg,
	}
}

func (s *reconciliationService) ReportSuccess(ctx context.Context, req SettlementRequest) (*models.Receipt, error) {
	tx, err := s.settle(ctx, req, models.StatusSuccess)
	if err != nil {
		return nil, err
	}
	return models.NewReceipt(tx, s.cfg.Currency), nil
}

func (s *reconciliationService) ReportFailure(ctx context.Context, req SettlementRequest) (*models.Transaction, error) {
	return s.settle(ctx, req, models.StatusFailed)
}

// Settle applies a queue-delivered gateway outcome.
func (s *reconciliationService) Settle(ctx context.Context, event models.SettlementEvent) error {
	req := SettlementRequest{
		OrderID:   event.OrderID,
		PaymentID: event.PaymentID,
		Amount:    event.Amount,
		Name:      event.Name,
		Phone:     event.Phone,
		Email:     event.Email,
	}
	switch event.Status {
	case models.StatusSuccess:
		_, err := s.ReportSuccess(ctx, req)
		return err
	case models.StatusFailed:
		_, err := s.ReportFailure(ctx, req)
		return err
	}
	return fmt.Errorf("%w: %q", pkgerrors.ErrInvalidTransactionStatus, event.Status)
}

// Wait blocks until every background dispatch started so far has finished.
func (s *reconciliationService) Wait() {
	s.wg.Wait()
}

func (s *reconciliationService) settle(ctx context.Context, req SettlementRequest, status models.StatusType) (tx *models.Transaction, err error) {
	ctx, span := otel.Tracer("reconciliation-service").Start(ctx, "Settle")
	outcome := "applied"
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		observability.SettlementTransitions.WithLabelValues(string(status), outcome).Inc()
		span.End()
	}()

	req.OrderID = strings.TrimSpace(req.OrderID)
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	span.SetAttributes(
		attribute.String("order_id", req.OrderID),
		attribute.String("status", string(status)),
	)
	if req.OrderID == "" {
		outcome = "invalid"
		return nil, fmt.Errorf("%w: order_id is required", pkgerrors.ErrInvalidInput)
	}

	tx, changed, err := s.repo.TransitionFromPending(ctx, req.OrderID, status, req.PaymentID)
	if errors.Is(err, pkgerrors.ErrTransactionNotFound) {
		outcome = "unknown_order"
		slog.Warn("callback for unknown order", "order_id", req.OrderID, "status", status)
		return nil, fmt.Errorf("%w: %s", pkgerrors.ErrUnknownOrder, req.OrderID)
	}
	if err != nil {
		outcome = "error"
		slog.Error("failed to apply settlement", "order_id", req.OrderID, "status", status, "error", err)
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrPersistenceFailure, err)
	}

	if !changed {
		if tx.Status != status {
			outcome = "conflict"
			slog.Warn("settlement conflicts with stored status",
				"order_id", req.OrderID,
				"stored_status", tx.Status,
				"requested_status", status)
			return nil, fmt.Errorf("%w: order %s is %s", pkgerrors.ErrInvalidTransition, req.OrderID, tx.Status)
		}
		outcome = "duplicate"
		slog.Info("duplicate settlement ignored", "order_id", req.OrderID, "status", status)
		return tx, nil
	}

	if !req.Amount.IsZero() && !req.Amount.Equal(tx.Amount) {
		slog.Warn("callback amount differs from stored amount",
			"order_id", req.OrderID,
			"callback_amount", req.Amount.String(),
			"stored_amount", tx.Amount.String())
	}

	invalidateTransactions(ctx, s.redisClient)
	s.afterTransition(ctx, tx)

	slog.Info("transaction settled",
		"order_id", tx.OrderID,
		"status", tx.Status)
	return tx, nil
}

// afterTransition publishes the status event and, for SUCCESS, dispatches
// notifications. It runs detached from the caller's cancellation.
func (s *reconciliationService) afterTransition(parent context.Context, tx *models.Transaction) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				slog.Error("post-settlement work panicked",
					"order_id", tx.OrderID,
					"status", tx.Status,
					"panic", p)
			}
		}()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.cfg.DispatchTimeout)
		defer cancel()

		s.publish(ctx, tx)

		if tx.Status != models.StatusSuccess || s.dispatcher == nil {
			return
		}
		report := s.dispatcher.Dispatch(ctx, tx)
		if failed := report.Failed(); len(failed) > 0 {
			slog.Warn("notification dispatch incomplete",
				"order_id", tx.OrderID,
				"failed_channels", failed)
		}
	}()
}

func (s *reconciliationService) publish(ctx context.Context, tx *models.Transaction) {
	if s.producer == nil || s.cfg.EventsTopic == "" {
		return
	}
	event := models.TransactionEvent{
		EventType: "transaction_" + strings.ToLower(string(tx.Status)),
		OrderID:   tx.OrderID,
		Amount:    tx.Amount,
		Status:    tx.Status,
		SettledAt: time.Now().UTC(),
	}
	if tx.PaymentID != nil {
		event.PaymentID = *tx.PaymentID
	}
	if tx.SettledAt != nil {
		event.SettledAt = *tx.SettledAt
	}
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal transaction event", "order_id", tx.OrderID, "error", err)
		return
	}
	if err := s.producer.Send(ctx, s.cfg.EventsTopic, tx.OrderID, data); err != nil {
		slog.Error("failed to publish transaction event", "order_id", tx.OrderID, "error", err)
	}
}
