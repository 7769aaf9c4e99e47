package server

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

// limiterIdleTTL is how long a client's bucket survives without requests.
const limiterIdleTTL = 10 * time.Minute

// ipRateLimiter keeps one token bucket per client address. Idle buckets expire.
type ipRateLimiter struct {
	mu       sync.Mutex
	limiters *ttlcache.Cache[string, *rate.Limiter]
	rps      rate.Limit
	burst    int
}

func newIPRateLimiter(rps float64, burst int) *ipRateLimiter {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *rate.Limiter](limiterIdleTTL),
	)
	go cache.Start()
	return &ipRateLimiter{
		limiters: cache,
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (l *ipRateLimiter) allow(key string) bool {
	l.mu.Lock()
	var limiter *rate.Limiter
	if item := l.limiters.Get(key); item != nil {
		limiter = item.Value()
	} else {
		limiter = rate.NewLimiter(l.rps, l.burst)
		l.limiters.Set(key, limiter, ttlcache.DefaultTTL)
	}
	l.mu.Unlock()
	return limiter.Allow()
}

func (l *ipRateLimiter) close() {
	l.limiters.Stop()
}
