package authflowrepo

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	apperrors "github.com/jrsteele09/smartgreen-auth/internal/errors"
)

// InMemoryRepo keeps authorization requests in a ttlcache. Entries are evicted
// by the cache's cleanup loop once their TTL passes.
type InMemoryRepo struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, AuthorizationRequest]
	now   func() time.Time
}

type InMemoryOption func(*InMemoryRepo)

// WithClock overrides the clock used for expiry checks.
func WithClock(now func() time.Time) InMemoryOption {
	return func(r *InMemoryRepo) {
		r.now = now
	}
}

// NewInMemoryRepo creates the repo and starts the cache's cleanup loop. Call Close to stop it.
func NewInMemoryRepo(opts ...InMemoryOption) *InMemoryRepo {
	r := &InMemoryRepo{
		cache: ttlcache.New(
			ttlcache.WithDisableTouchOnHit[string, AuthorizationRequest](),
		),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.cache.Start()
	return r
}

// Save stores a copy of req until req.ExpiresAt.
func (r *InMemoryRepo) Save(_ context.Context, req *AuthorizationRequest) error {
	if req == nil {
		return errors.New("authorization request cannot be nil")
	}
	if req.State == "" {
		return errors.New("state cannot be empty")
	}
	ttl := req.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return errors.New("authorization request already expired")
	}

	stored := *req
	stored.Scopes = append([]string(nil), req.Scopes...)
	r.cache.Set(req.State, stored, ttl)
	return nil
}

// Consume returns the request for state and removes it.
func (r *InMemoryRepo) Consume(_ context.Context, state string) (*AuthorizationRequest, error) {
	if state == "" {
		return nil, apperrors.ErrStateNotFound
	}

	r.mu.Lock()
	item := r.cache.Get(state)
	if item != nil {
		r.cache.Delete(state)
	}
	r.mu.Unlock()

	if item == nil {
		return nil, apperrors.ErrStateNotFound
	}
	req := item.Value()
	if req.IsExpired(r.now()) {
		return nil, apperrors.Wrapf(apperrors.ErrStateNotFound, "state expired at %s", req.ExpiresAt.Format(time.RFC3339))
	}
	return &req, nil
}

// Len returns the number of pending requests.
func (r *InMemoryRepo) Len() int {
	return r.cache.Len()
}

// Close stops the cleanup loop.
func (r *InMemoryRepo) Close() error {
	r.cache.Stop()
	return nil
}
