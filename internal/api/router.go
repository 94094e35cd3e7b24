package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/honeynil/PaymentServiceTochka/internal/handler"
	"github.com/honeynil/PaymentServiceTochka/internal/infrastructure/auth"
	"github.com/honeynil/PaymentServiceTochka/internal/infrastructure/observability"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

func init() {
	prometheus.MustRegister(RequestCounter, RequestDuration)
}

const requestIDHeader = "X-Request-ID"

type RouterConfig struct {
	AllowedOrigins []string
	// ReceiptDir is served under /receipts/ when set.
	ReceiptDir string
	Metrics    http.Handler
	OrderLimit *RateLimiter
}

func SetupRouter(h *handler.Handler, guard handler.Guard, cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware, metricsMiddleware)

	var orderLimit mux.MiddlewareFunc
	if cfg.OrderLimit != nil {
		orderLimit = cfg.OrderLimit.Middleware
	}
	h.RegisterPublicRoutes(r, orderLimit)
	h.RegisterProtectedRoutes(r, guard)

	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics).Methods(http.MethodGet)
	}
	if cfg.ReceiptDir != "" {
		r.PathPrefix("/receipts/").Handler(http.StripPrefix("/receipts/", http.FileServer(http.Dir(cfg.ReceiptDir)))).Methods(http.MethodGet)
	}

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", requestIDHeader, auth.SignatureHeader, auth.TimestampHeader}),
		handlers.ExposedHeaders([]string{requestIDHeader}),
	)
	return cors(r)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := observability.ContextWithLogger(r.Context(), slog.With("request_id", id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// metricsMiddleware labels by route template so path parameters do not
// explode label cardinality.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		endpoint := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}

		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		RequestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(recorder.status)).Inc()
		RequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

// statusRecorder для захвата статуса ответа
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
