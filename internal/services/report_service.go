package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/honeynil/PaymentServiceTochka/internal/infrastructure/redis"
	"github.com/honeynil/PaymentServiceTochka/internal/models"
	"github.com/honeynil/PaymentServiceTochka/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type ReportService interface {
	ListTransactions(ctx context.Context) ([]models.Transaction, error)
}

type reportService struct {
	repo        repository.TransactionRepository
	redisClient redis.RedisClient
	cacheTTL    time.Duration
}

func NewReportService(repo repository.TransactionRepository, redisClient redis.RedisClient, cacheTTL time.Duration) *reportService {
	return &reportService{repo: repo, redisClient: redisClient, cacheTTL: cacheTTL}
}

// ListTransactions returns all transactions newest first, served from Redis
// when a cached copy exists.
func (s *reportService) ListTransactions(ctx context.Context) ([]models.Transaction, error) {
	ctx, span := otel.Tracer("report-service").Start(ctx, "ListTransactions")
	defer span.End()

	if s.redisClient != nil {
		cached, err := s.redisClient.Get(ctx, transactionsCacheKey)
		switch {
		case err == nil:
			var txs []models.Transaction
			if err := json.Unmarshal([]byte(cached), &txs); err == nil {
				span.SetAttributes(attribute.Bool("cache_hit", true))
				return txs, nil
			}
			slog.Warn("discarding corrupt transactions cache")
		case !errors.Is(err, redis.ErrKeyNotFound):
			slog.Warn("transactions cache unavailable", "error", err)
		}
	}

	txs, err := s.repo.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, err
	}

	if s.redisClient != nil && s.cacheTTL > 0 {
		data, err := json.Marshal(txs)
		if err == nil {
			err = s.redisClient.Set(ctx, transactionsCacheKey, string(data), s.cacheTTL)
		}
		if err != nil {
			slog.Warn("failed to cache transactions", "error", err)
		}
	}
	return txs, nil
}
