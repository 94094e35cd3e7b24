package service

import (
	"context"
	"log/slog"

	"github.com/honeynil/PaymentServiceTochka/internal/infrastructure/redis"
)

const transactionsCacheKey = "transactions:list"

// invalidateTransactions drops the cached transaction list. A failed delete
// only leaves a stale list until the TTL expires.
func invalidateTransactions(ctx context.Context, client redis.RedisClient) {
	if client == nil {
		return
	}
	if err := client.Del(ctx, transactionsCacheKey); err != nil {
		slog.Warn("failed to invalidate transactions cache", "error", err)
	}
}
