package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"github.com/mercadoforte/backend-caixa/internal/common"
	"github.com/mercadoforte/backend-caixa/internal/tenant"
)

// NewRedisStore keeps counters in Redis so every API replica shares them.
func NewRedisStore(rdb *redis.Client) (limiter.Store, error) {
	return limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "caixa:ratelimit"})
}

// New builds a limiter from a formatted rate such as "600-M".
func New(store limiter.Store, formatted string) (*limiter.Limiter, error) {
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return nil, fmt.Errorf("ratelimit: parse %q: %w", formatted, err)
	}
	return limiter.New(store, rate), nil
}

// Handler enforces the limit before delegating to the next handler.
type Handler struct {
	Limiter *limiter.Limiter
	Key     func(*http.Request) string
}

// Middleware sets X-RateLimit-* headers and answers 429 once the key is
// exhausted. Store failures let the request through.
func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Limiter == nil {
		return next
	}
	keyFn := h.Key
	if keyFn == nil {
		keyFn = OperatorKey
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lc, err := h.Limiter.Get(r.Context(), keyFn(r))
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("rate limit store unavailable")
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.FormatInt(lc.Limit, 10))
		headers.Set("X-RateLimit-Remaining", strconv.FormatInt(lc.Remaining, 10))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(lc.Reset, 10))

		if lc.Reached {
			retryAfter := time.Until(time.Unix(lc.Reset, 0))
			if retryAfter < 0 {
				retryAfter = 0
			}
			headers.Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// OperatorKey limits per business and operator, falling back to the client IP
// for requests that carry no operator.
func OperatorKey(r *http.Request) string {
	business, _ := tenant.From(r.Context())
	if op, ok := common.UserID(r.Context()); ok {
		return strings.Join([]string{business, "op", op}, ":")
	}
	return strings.Join([]string{business, "ip", common.ClientIP(r)}, ":")
}
