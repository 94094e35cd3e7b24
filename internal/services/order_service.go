package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/honeynil/PaymentServiceTochka/internal/infrastructure/gateway"
	"github.com/honeynil/PaymentServiceTochka/internal/infrastructure/redis"
	"github.com/honeynil/PaymentServiceTochka/internal/models"
	"github.com/honeynil/PaymentServiceTochka/internal/repository"
	pkgerrors "github.com/honeynil/PaymentServiceTochka/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type OrderService interface {
	CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)
}

type OrderRequest struct {
	Name   string          `json:"name"`
	Phone  string          `json:"phone"`
	Email  string          `json:"email"`
	Amount decimal.Decimal `json:"amount"`
}

type OrderResult struct {
	SessionReference string `json:"session_reference"`
	OrderID          string `json:"order_id"`
}

type orderService struct {
	gateway     gateway.Client
	repo        repository.TransactionRepository
	redisClient redis.RedisClient
	currency    string
}

func NewOrderService(gw gateway.Client, repo repository.TransactionRepository, redisClient redis.RedisClient, currency string) *orderService {
	return &orderService{
		gateway:     gw,
		repo:        repo,
		redisClient: redisClient,
		currency:    currency,
	}
}

func (r *OrderRequest) normalize() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Email = strings.TrimSpace(r.Email)
	switch {
	case r.Name == "":
		return fmt.Errorf("%w: name is required", pkgerrors.ErrInvalidInput)
	case r.Phone == "":
		return fmt.Errorf("%w: phone is required", pkgerrors.ErrInvalidInput)
	case r.Email == "":
		return fmt.Errorf("%w: email is required", pkgerrors.ErrInvalidInput)
	case !r.Amount.IsPositive():
		return fmt.Errorf("%w: amount must be positive", pkgerrors.ErrInvalidInput)
	}
	return nil
}

// CreateOrder registers the order with the gateway and records it as
// PENDING. When the gateway accepted the order but the local write failed,
// the result is returned together with an ErrPersistenceFailure so the
// customer can still pay.
func (s *orderService) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	ctx, span := otel.Tracer("order-service").Start(ctx, "CreateOrder")
	defer span.End()

	if err := req.normalize(); err != nil {
		span.SetStatus(codes.Error, "invalid input")
		return nil, err
	}

	order, err := s.gateway.CreateOrder(ctx, gateway.OrderDetails{
		Name:     req.Name,
		Phone:    req.Phone,
		Email:    req.Email,
		Amount:   req.Amount,
		Currency: s.currency,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "gateway failed")
		slog.Error("gateway order creation failed", "error", err)
		if !errors.Is(err, pkgerrors.ErrGatewayUnavailable) {
			err = fmt.Errorf("%w: %v", pkgerrors.ErrGatewayUnavailable, err)
		}
		return nil, err
	}
	span.SetAttributes(attribute.String("order_id", order.OrderID))

	result := &OrderResult{SessionReference: order.SessionReference, OrderID: order.OrderID}

	tx := &models.Transaction{
		OrderID:      order.OrderID,
		CustomerName: req.Name,
		Phone:        req.Phone,
		Email:        req.Email,
		Amount:       req.Amount,
		Status:       models.StatusPending,
	}
	if err := s.repo.Create(ctx, tx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		slog.Error("gateway order accepted but not recorded",
			"order_id", order.OrderID,
			"error", err)
		return result, fmt.Errorf("%w: %v", pkgerrors.ErrPersistenceFailure, err)
	}

	invalidateTransactions(ctx, s.redisClient)

	slog.Info("order created",
		"order_id", order.OrderID,
		"amount", req.Amount.String())
	return result, nil
}
