package api

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/honeynil/PaymentServiceTochka/internal/infrastructure/redis"
)

// RateLimiter is a fixed-window request limiter keyed by client IP. Redis
// errors let the request through.
type RateLimiter struct {
	redisClient redis.RedisClient
	limit       int
	window      time.Duration
	prefix      string
	trusted     []*net.IPNet
	now         func() time.Time
}

// NewRateLimiter builds a limiter. trustedProxies lists IPs or CIDRs whose
// X-Forwarded-For header is believed; entries that do not parse are skipped.
func NewRateLimiter(redisClient redis.RedisClient, prefix string, limit int, window time.Duration, trustedProxies []string) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
		limit:       limit,
		window:      window,
		prefix:      prefix,
		trusted:     parseTrustedProxies(trustedProxies),
		now:         time.Now,
	}
}

func parseTrustedProxies(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			ip := net.ParseIP(entry)
			if ip == nil {
				slog.Warn("ignoring invalid trusted proxy", "entry", entry)
				continue
			}
			bits := 8 * net.IPv4len
			if ip.To4() == nil {
				bits = 8 * net.IPv6len
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, ipnet, err := net.ParseCIDR(entry)
		if err != nil {
			slog.Warn("ignoring invalid trusted proxy", "entry", entry, "error", err)
			continue
		}
		nets = append(nets, ipnet)
	}
	return nets
}

func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l == nil || l.redisClient == nil || l.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		windowStart := l.now().Truncate(l.window)
		key := fmt.Sprintf("ratelimit:%s:%s:%d", l.prefix, l.clientIP(r), windowStart.Unix())

		count, err := l.redisClient.Incr(r.Context(), key)
		if err != nil {
			slog.Warn("rate limiter unavailable, allowing request", "key", key, "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if count == 1 {
			if err := l.redisClient.Expire(r.Context(), key, l.window); err != nil {
				slog.Warn("failed to set rate limit window", "key", key, "error", err)
			}
		}

		remaining := int64(l.limit) - count
		if remaining < 0 {
			remaining = 0
		}
		reset := windowStart.Add(l.window)
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if count > int64(l.limit) {
			retry := int(reset.Sub(l.now()).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error":"too many requests"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP honours X-Forwarded-For only when the peer is a trusted proxy.
func (l *RateLimiter) clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if !l.isTrusted(net.ParseIP(host)) {
		return host
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return host
}

func (l *RateLimiter) isTrusted(ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, n := range l.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
