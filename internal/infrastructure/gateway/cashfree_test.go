package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	pkgerrors "github.com/honeynil/PaymentServiceTochka/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *CashfreeClient {
	return NewCashfreeClient(CashfreeConfig{
		BaseURL:    url,
		AppID:      "app",
		Secret:     "shh",
		APIVersion: "2022-09-01",
		ReturnURL:  "https://shop.example/success?order_id={order_id}",
		Timeout:    time.Second,
	})
}

var details = OrderDetails{
	Name:     "Asha",
	Phone:    "9999999999",
	Email:    "asha@example.com",
	Amount:   decimal.NewFromInt(500),
	Currency: "INR",
}

func TestCashfreeClient_CreateOrder(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/orders", r.URL.Path)
			assert.Equal(t, "app", r.Header.Get("x-client-id"))
			assert.Equal(t, "shh", r.Header.Get("x-client-secret"))
			assert.Equal(t, "2022-09-01", r.Header.Get("x-api-version"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "INR", body["order_currency"])
			assert.Equal(t, float64(500), body["order_amount"])
			customer := body["customer_details"].(map[string]any)
			assert.Equal(t, "9999999999_cust", customer["customer_id"])

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"order_id":"order_1","payment_session_id":"session_abc","order_status":"ACTIVE"}`))
		}))
		defer srv.Close()

		order, err := newTestClient(srv.URL).CreateOrder(context.Background(), details)
		require.NoError(t, err)
		assert.Equal(t, "order_1", order.OrderID)
		assert.Equal(t, "session_abc", order.SessionReference)
	})

	t.Run("Rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"authentication Failed","code":"request_failed"}`))
		}))
		defer srv.Close()

		order, err := newTestClient(srv.URL).CreateOrder(context.Background(), details)
		assert.Nil(t, order)
		assert.ErrorIs(t, err, pkgerrors.ErrGatewayUnavailable)
		assert.Contains(t, err.Error(), "authentication Failed")
	})

	t.Run("MissingSession", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"order_id":"order_1"}`))
		}))
		defer srv.Close()

		_, err := newTestClient(srv.URL).CreateOrder(context.Background(), details)
		assert.ErrorIs(t, err, pkgerrors.ErrGatewayUnavailable)
	})

	t.Run("Unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := newTestClient(url).CreateOrder(context.Background(), details)
		assert.ErrorIs(t, err, pkgerrors.ErrGatewayUnavailable)
	})
}
