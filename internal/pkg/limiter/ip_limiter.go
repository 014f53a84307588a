/*
Package limiter provides token-bucket rate limiting keyed by client IP address.

Each IP gets its own rate.Limiter; a background sweeper drops limiters whose
bucket has refilled so idle clients do not accumulate in memory.
*/
package limiter

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"signalhub/internal/pkg/errs"
	"signalhub/internal/pkg/logx"
	"signalhub/internal/pkg/resp"
)

// sweepInterval is how often idle limiters are removed.
const sweepInterval = 3 * time.Minute

// IPRateLimiter implements a rate limiter based on client IP addresses.
type IPRateLimiter struct {
	mu     sync.Mutex
	limits map[string]*rate.Limiter

	r rate.Limit
	b int
}

// NewIPRateLimiter creates a limiter allowing r events per second with burst b per IP.
// The idle sweeper runs until ctx is cancelled.
func NewIPRateLimiter(ctx context.Context, r rate.Limit, b int) *IPRateLimiter {
	i := &IPRateLimiter{
		limits: make(map[string]*rate.Limiter),
		r:      r,
		b:      b,
	}

	go i.sweepLoop(ctx)

	return i
}

// GetLimiter returns the limiter for ip, creating it on first use.
func (i *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	i.mu.Lock()
	defer i.mu.Unlock()

	limiter, exists := i.limits[ip]
	if !exists {
		limiter = rate.NewLimiter(i.r, i.b)
		i.limits[ip] = limiter
	}

	return limiter
}

// Allow reports whether one more event from ip fits the budget.
func (i *IPRateLimiter) Allow(ip string) bool {
	return i.GetLimiter(ip).Allow()
}

// Len returns the number of tracked IPs.
func (i *IPRateLimiter) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.limits)
}

// sweep removes limiters whose bucket is full again, i.e. IPs that have been idle.
func (i *IPRateLimiter) sweep(now time.Time) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	removed := 0
	for ip, limiter := range i.limits {
		if limiter.TokensAt(now) >= float64(limiter.Burst()) {
			delete(i.limits, ip)
			removed++
		}
	}
	return removed
}

func (i *IPRateLimiter) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			removed := i.sweep(now)
			logx.Debug("Rate limiter sweep finished", "removed", removed, "remaining", i.Len())
		}
	}
}

// ClientIP extracts the host part of r.RemoteAddr.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}

	if ip == "" {
		ip = "unknown_ip"
	}

	return ip
}

// Middleware rejects requests over the per-IP budget with 429 Too Many Requests.
func (i *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)

		if !i.Allow(ip) {
			logx.Warn("Request rejected: rate limit exceeded.", "ip", logx.AnonymizeIP(ip))
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		next.ServeHTTP(w, r)
	})
}
