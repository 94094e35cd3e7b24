package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/honeynil/PaymentServiceTochka/internal/infrastructure/observability"
	pkgerrors "github.com/honeynil/PaymentServiceTochka/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type CashfreeConfig struct {
	BaseURL    string
	AppID      string
	Secret     string
	APIVersion string
	ReturnURL  string
	Timeout    time.Duration
}

type CashfreeClient struct {
	cfg  CashfreeConfig
	http *http.Client
}

func NewCashfreeClient(cfg CashfreeConfig) *CashfreeClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &CashfreeClient{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

type customerDetails struct {
	CustomerID    string `json:"customer_id"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	CustomerName  string `json:"customer_name"`
}

type orderMeta struct {
	ReturnURL string `json:"return_url,omitempty"`
}

type createOrderRequest struct {
	OrderAmount     json.Number     `json:"order_amount"`
	OrderCurrency   string          `json:"order_currency"`
	CustomerDetails customerDetails `json:"customer_details"`
	OrderMeta       *orderMeta      `json:"order_meta,omitempty"`
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// CreateOrder registers an order with Cashfree PG. Every failure, including
// a 2xx body without an order ID, wraps ErrGatewayUnavailable.
func (c *CashfreeClient) CreateOrder(ctx context.Context, details OrderDetails) (order *Order, err error) {
	ctx, span := otel.Tracer("gateway").Start(ctx, "CashfreeCreateOrder")
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.GatewayRequests.WithLabelValues(status).Inc()
		span.End()
	}()

	body := createOrderRequest{
		OrderAmount:   json.Number(details.Amount.StringFixed(2)),
		OrderCurrency: details.Currency,
		CustomerDetails: customerDetails{
			CustomerID:    details.Phone + "_cust",
			CustomerEmail: details.Email,
			CustomerPhone: details.Phone,
			CustomerName:  details.Name,
		},
	}
	if c.cfg.ReturnURL != "" {
		body.OrderMeta = &orderMeta{ReturnURL: c.cfg.ReturnURL}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal order: %v", pkgerrors.ErrGatewayUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", pkgerrors.ErrGatewayUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-version", c.cfg.APIVersion)
	req.Header.Set("x-client-id", c.cfg.AppID)
	req.Header.Set("x-client-secret", c.cfg.Secret)

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Error("gateway request failed", "error", err)
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", pkgerrors.ErrGatewayUnavailable, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		slog.Error("gateway rejected order", "status", resp.StatusCode, "code", eb.Code, "message", eb.Message)
		return nil, fmt.Errorf("%w: status %d: %s", pkgerrors.ErrGatewayUnavailable, resp.StatusCode, eb.Message)
	}

	order = &Order{}
	if err = json.Unmarshal(raw, order); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", pkgerrors.ErrGatewayUnavailable, err)
	}
	if order.OrderID == "" || order.SessionReference == "" {
		err = fmt.Errorf("%w: response missing order_id or payment_session_id", pkgerrors.ErrGatewayUnavailable)
		return nil, err
	}

	slog.Info("gateway order created", "order_id", order.OrderID)
	return order, nil
}
