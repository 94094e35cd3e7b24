package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/honeynil/PaymentServiceTochka/internal/infrastructure/auth"
	"github.com/honeynil/PaymentServiceTochka/internal/infrastructure/observability"
	"github.com/honeynil/PaymentServiceTochka/internal/models"
	service "github.com/honeynil/PaymentServiceTochka/internal/services"
	pkgerrors "github.com/honeynil/PaymentServiceTochka/pkg/errors"
)

const maxBodyBytes = 1 << 20

// Guard wraps a handler with a role requirement.
type Guard interface {
	Require(required models.Role) func(http.Handler) http.Handler
}

type Handler struct {
	orders    service.OrderService
	recon     service.ReconciliationService
	auth      service.AuthService
	reports   service.ReportService
	callbacks *auth.CallbackVerifier
}

func NewHandler(
	orders service.OrderService,
	recon service.ReconciliationService,
	authSvc service.AuthService,
	reports service.ReportService,
	callbacks *auth.CallbackVerifier,
) *Handler {
	return &Handler{
		orders:    orders,
		recon:     recon,
		auth:      authSvc,
		reports:   reports,
		callbacks: callbacks,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pkgerrors.ErrInvalidInput),
		errors.Is(err, pkgerrors.ErrInvalidRole),
		errors.Is(err, pkgerrors.ErrInvalidTransactionStatus):
		return http.StatusBadRequest
	case errors.Is(err, pkgerrors.ErrMissingCredential),
		errors.Is(err, pkgerrors.ErrUnauthorized),
		errors.Is(err, pkgerrors.ErrInvalidCredentials),
		errors.Is(err, pkgerrors.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, pkgerrors.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, pkgerrors.ErrUnknownOrder),
		errors.Is(err, pkgerrors.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, pkgerrors.ErrUserAlreadyExists),
		errors.Is(err, pkgerrors.ErrInvalidTransition),
		errors.Is(err, pkgerrors.ErrTransactionExists):
		return http.StatusConflict
	case errors.Is(err, pkgerrors.ErrGatewayUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		observability.WithContext(r.Context()).Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal error"
	}
	h.writeJSON(w, status, errorResponse{Error: msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed body: %v", pkgerrors.ErrInvalidInput, err)
	}
	return nil
}

// RegisterPublicRoutes mounts the unauthenticated endpoints. orderLimit, when
// non-nil, wraps order creation.
func (h *Handler) RegisterPublicRoutes(r *mux.Router, orderLimit mux.MiddlewareFunc) {
	var createOrder http.Handler = http.HandlerFunc(h.CreateOrder)
	if orderLimit != nil {
		createOrder = orderLimit(createOrder)
	}
	r.Handle("/orders", createOrder).Methods(http.MethodPost)
	r.HandleFunc("/orders/callback", h.PaymentCallback).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
}

func (h *Handler) RegisterProtectedRoutes(r *mux.Router, guard Guard) {
	r.Handle("/transactions", guard.Require(models.RoleNone)(http.HandlerFunc(h.ListTransactions))).Methods(http.MethodGet)
	r.Handle("/principals", guard.Require(models.RoleSuperadmin)(http.HandlerFunc(h.ListPrincipals))).Methods(http.MethodGet)
	r.Handle("/auth/users", guard.Require(models.RoleSuperadmin)(http.HandlerFunc(h.CreatePrincipal))).Methods(http.MethodPost)
	r.Handle("/principals/{email}/role", guard.Require(models.RoleSuperadmin)(http.HandlerFunc(h.UpdateRole))).Methods(http.MethodPatch)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req service.OrderRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.orders.CreateOrder(r.Context(), req)
	if err != nil {
		// The gateway already holds the order; the customer can still pay.
		if errors.Is(err, pkgerrors.ErrPersistenceFailure) && res != nil {
			observability.WithContext(r.Context()).Error("order not recorded locally", "order_id", res.OrderID, "error", err)
			h.writeJSON(w, http.StatusOK, res)
			return
		}
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

type callbackRequest struct {
	service.SettlementRequest
	Status string `json:"status"`
}

type callbackResponse struct {
	Status    models.StatusType `json:"status"`
	OrderID   string            `json:"order_id"`
	PaymentID string            `json:"payment_id,omitempty"`
	Amount    string            `json:"amount,omitempty"`
}

// PaymentCallback reconciles a gateway outcome. Missing status means SUCCESS.
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", pkgerrors.ErrInvalidInput, err))
		return
	}
	if err := h.callbacks.Verify(r.Header.Get(auth.TimestampHeader), r.Header.Get(auth.SignatureHeader), body); err != nil {
		observability.WithContext(r.Context()).Warn("callback signature rejected", "remote_addr", r.RemoteAddr)
		h.writeError(w, r, err)
		return
	}

	var req callbackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: malformed body: %v", pkgerrors.ErrInvalidInput, err))
		return
	}

	status := models.StatusType(strings.ToUpper(strings.TrimSpace(req.Status)))
	if status == "" {
		status = models.StatusSuccess
	}

	switch status {
	case models.StatusSuccess:
		receipt, err := h.recon.ReportSuccess(r.Context(), req.SettlementRequest)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, callbackResponse{
			Status:    receipt.Status,
			OrderID:   receipt.OrderID,
			PaymentID: receipt.PaymentID,
			Amount:    receipt.Amount.StringFixed(2),
		})
	case models.StatusFailed:
		tx, err := h.recon.ReportFailure(r.Context(), req.SettlementRequest)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		h.writeJSON(w, http.StatusOK, callbackResponse{Status: tx.Status, OrderID: tx.OrderID})
	default:
		h.writeError(w, r, fmt.Errorf("%w: %q", pkgerrors.ErrInvalidTransactionStatus, req.Status))
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) CreatePrincipal(w http.ResponseWriter, r *http.Request) {
	var req service.CreatePrincipalRequest
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.auth.CreatePrincipal(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if identity, ok := auth.IdentityFromContext(r.Context()); ok {
		observability.WithContext(r.Context()).Info("principal provisioned", "by", identity.PrincipalID, "principal_id", p.ID, "role", p.Role)
	}
	h.writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role string `json:"role"`
	}
	if err := decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	p, err := h.auth.UpdateRole(r.Context(), mux.Vars(r)["email"], req.Role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, p)
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.reports.ListTransactions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, txs)
}

func (h *Handler) ListPrincipals(w http.ResponseWriter, r *http.Request) {
	principals, err := h.auth.ListPrincipals(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, principals)
}
