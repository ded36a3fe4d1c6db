package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"
)

// ErrInvalidKey indicates an unknown or revoked API key.
var ErrInvalidKey = errors.New("invalid api key")

// KeyRecord is a stored API key grant.
type KeyRecord struct {
	KeyHash  string
	ClinicID string
	UserID   string
	Role     string
}

// KeyStore looks up API key grants by hash.
type KeyStore interface {
	LookupKey(ctx context.Context, keyHash string) (*KeyRecord, error)
}

// HashKey returns the stored form of an API key.
func HashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Resolver turns API keys into callers, caching results for a TTL.
type Resolver struct {
	store KeyStore
	ttl   time.Duration
	now   func() time.Time

	mu    sync.RWMutex
	cache map[string]cachedCaller
}

type cachedCaller struct {
	caller    Caller
	expiresAt time.Time
}

// NewResolver creates a resolver. A zero ttl disables caching.
func NewResolver(store KeyStore, ttl time.Duration) *Resolver {
	return &Resolver{
		store: store,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[string]cachedCaller),
	}
}

// Resolve returns the caller for an API key.
func (r *Resolver) Resolve(ctx context.Context, key string) (Caller, error) {
	if key == "" {
		return Caller{}, ErrInvalidKey
	}
	hash := HashKey(key)

	r.mu.RLock()
	entry, ok := r.cache[hash]
	r.mu.RUnlock()
	if ok && r.now().Before(entry.expiresAt) {
		return entry.caller, nil
	}

	rec, err := r.store.LookupKey(ctx, hash)
	if err != nil {
		return Caller{}, ErrInvalidKey
	}
	role, err := ParseRole(rec.Role)
	if err != nil {
		return Caller{}, err
	}
	c := Caller{UserID: rec.UserID, ClinicID: rec.ClinicID, Role: role}

	if r.ttl > 0 {
		r.mu.Lock()
		r.cache[hash] = cachedCaller{caller: c, expiresAt: r.now().Add(r.ttl)}
		r.mu.Unlock()
	}
	return c, nil
}

// Invalidate drops every cached caller.
func (r *Resolver) Invalidate() {
	r.mu.Lock()
	r.cache = make(map[string]cachedCaller)
	r.mu.Unlock()
}
