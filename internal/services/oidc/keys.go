package oidc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"golang.org/x/sync/singleflight"
)

const (
	keySetTTL = time.Hour
	// minKeySetRefresh throttles refetches triggered by tokens that fail
	// verification, so a stream of forged tokens cannot hammer the IdP.
	minKeySetRefresh = time.Minute
	maxKeySetBytes   = 1 << 20
)

type fetchedSet struct {
	keys    jwk.Set
	fetched time.Time
}

// KeyCache holds provider signing keys by JWKS URL. Concurrent misses for
// one URL share a single fetch.
type KeyCache struct {
	http  *http.Client
	now   func() time.Time
	group singleflight.Group

	mu   sync.Mutex
	sets map[string]fetchedSet
}

func NewKeyCache(httpClient *http.Client) *KeyCache {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &KeyCache{http: httpClient, now: time.Now, sets: make(map[string]fetchedSet)}
}

// Get returns the key set at jwksURL, fetching it when absent or stale.
func (c *KeyCache) Get(ctx context.Context, jwksURL string) (jwk.Set, error) {
	if s, ok := c.cached(jwksURL); ok && c.now().Sub(s.fetched) < keySetTTL {
		return s.keys, nil
	}
	return c.load(ctx, jwksURL)
}

// Refresh refetches jwksURL after a provider may have rotated its keys.
// It reports false without fetching when the set is younger than
// minKeySetRefresh.
func (c *KeyCache) Refresh(ctx context.Context, jwksURL string) (jwk.Set, bool, error) {
	if s, ok := c.cached(jwksURL); ok && c.now().Sub(s.fetched) < minKeySetRefresh {
		return s.keys, false, nil
	}
	keys, err := c.load(ctx, jwksURL)
	return keys, err == nil, err
}

func (c *KeyCache) cached(jwksURL string) (fetchedSet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sets[jwksURL]
	return s, ok
}

func (c *KeyCache) load(ctx context.Context, jwksURL string) (jwk.Set, error) {
	v, err, _ := c.group.Do(jwksURL, func() (any, error) {
		keys, err := c.fetch(ctx, jwksURL)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.sets[jwksURL] = fetchedSet{keys: keys, fetched: c.now()}
		c.mu.Unlock()
		return keys, nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching JWKS: %w", err)
	}
	return v.(jwk.Set), nil
}

func (c *KeyCache) fetch(ctx context.Context, jwksURL string) (jwk.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("JWKS endpoint returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxKeySetBytes))
	if err != nil {
		return nil, err
	}
	return jwk.Parse(body)
}
