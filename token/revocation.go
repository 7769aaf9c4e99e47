package token

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Denylist records session tokens revoked by logout until their natural expiry.
type Denylist interface {
	RevokedChecker
	Revoke(rawToken string, exp time.Time)
}

// InMemoryDenylist is a ttlcache-backed Denylist keyed by token hash.
type InMemoryDenylist struct {
	cache *ttlcache.Cache[string, struct{}]
	now   func() time.Time
}

type DenylistOption func(*InMemoryDenylist)

// WithDenylistClock sets the clock revocation lifetimes are measured against.
// It should match the Validator's clock.
func WithDenylistClock(now func() time.Time) DenylistOption {
	return func(d *InMemoryDenylist) {
		d.now = now
	}
}

// NewInMemoryDenylist creates the denylist and starts its cleanup loop.
func NewInMemoryDenylist(opts ...DenylistOption) *InMemoryDenylist {
	d := &InMemoryDenylist{
		cache: ttlcache.New(
			ttlcache.WithDisableTouchOnHit[string, struct{}](),
		),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	go d.cache.Start()
	return d
}

// Revoke denylists rawToken until exp. Tokens already past exp are ignored.
func (d *InMemoryDenylist) Revoke(rawToken string, exp time.Time) {
	ttl := exp.Sub(d.now())
	if ttl <= 0 {
		return
	}
	d.cache.Set(hashToken(rawToken), struct{}{}, ttl)
}

func (d *InMemoryDenylist) IsRevoked(rawToken string) bool {
	return d.cache.Get(hashToken(rawToken)) != nil
}

// Len returns the number of revoked, unexpired tokens.
func (d *InMemoryDenylist) Len() int {
	return d.cache.Len()
}

// Close stops the cleanup loop.
func (d *InMemoryDenylist) Close() error {
	d.cache.Stop()
	return nil
}

func hashToken(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return hex.EncodeToString(sum[:])
}
