// Package middleware - общие HTTP middleware для веб-обработчиков.
package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	maxLimiters = 10000
	limiterIdle = 10 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter ограничивает частоту запросов с одного адреса.
type RateLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewRateLimiter создаёт ограничитель частоты запросов.
func NewRateLimiter(perSecond float64, burst int, log logrus.FieldLogger) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(perSecond),
		burst:    burst,
		log:      log,
		now:      time.Now,
	}
}

// getLimiter возвращает ограничитель для адреса клиента.
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entry, exists := rl.limiters[key]
	if !exists {
		if len(rl.limiters) >= maxLimiters {
			rl.pruneLocked(now)
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

func (rl *RateLimiter) pruneLocked(now time.Time) {
	for key, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > limiterIdle {
			delete(rl.limiters, key)
		}
	}
}

// Handler ограничивает только POST: страницы открываются и после превышения лимита.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}

		key := clientAddr(r)
		if !rl.getLimiter(key).Allow() {
			rl.log.WithFields(logrus.Fields{
				"key":    key,
				"path":   r.URL.Path,
				"method": r.Method,
			}).Warn("rate limit exceeded")

			w.Header().Set("Retry-After", "1")
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
