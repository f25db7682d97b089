package auth

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

var errUnknownKey = errors.New("unknown signing key")

// JWKSKeySource fetches RSA verification keys from an identity provider's
// published JSON Web Key Set. The whole set is cached for ttl and refetched
// when it expires; if that refetch fails the last good set stays in use. An
// unknown kid triggers at most one extra refetch per refreshInterval.
type JWKSKeySource struct {
	url     string
	client  *http.Client
	cache   *ttlcache.Cache[string, keySet]
	limiter *rate.Limiter

	mu    sync.Mutex
	stale keySet
}

type keySet map[string]*rsa.PublicKey

const (
	refreshInterval = time.Minute
	keySetItem      = "jwks"
)

// NewJWKSKeySource returns a key source for url. A nil client uses http.DefaultClient.
func NewJWKSKeySource(url string, client *http.Client, ttl time.Duration) *JWKSKeySource {
	if client == nil {
		client = http.DefaultClient
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JWKSKeySource{
		url:    url,
		client: client,
		cache: ttlcache.New[string, keySet](
			ttlcache.WithTTL[string, keySet](ttl),
			ttlcache.WithDisableTouchOnHit[string, keySet](),
		),
		limiter: rate.NewLimiter(rate.Every(refreshInterval), 1),
	}
}

func (s *JWKSKeySource) Methods() []string {
	return []string{"RS256", "RS384", "RS512"}
}

func (s *JWKSKeySource) Key(ctx context.Context, token *jwt.Token) (any, error) {
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("%w: token has no kid", errUnknownKey)
	}

	set, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	if k, ok := set[kid]; ok {
		return k, nil
	}

	set, err = s.refetch(ctx)
	if err != nil {
		return nil, err
	}
	if k, ok := set[kid]; ok {
		return k, nil
	}
	return nil, fmt.Errorf("%w: %s", errUnknownKey, kid)
}

// current returns the cached set, fetching it when the cache entry has
// expired. Expiry-driven fetches are not rate limited.
func (s *JWKSKeySource) current(ctx context.Context) (keySet, error) {
	if item := s.cache.Get(keySetItem); item != nil {
		return item.Value(), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if item := s.cache.Get(keySetItem); item != nil {
		return item.Value(), nil
	}
	set, err := s.fetch(ctx)
	if err != nil {
		if s.stale == nil {
			return nil, err
		}
		// Serve the last good set and retry after refreshInterval.
		s.cache.Set(keySetItem, s.stale, refreshInterval)
		return s.stale, nil
	}
	s.store(set)
	return set, nil
}

// refetch reloads the set for an unknown kid. A throttled call returns the
// set already held.
func (s *JWKSKeySource) refetch(ctx context.Context) (keySet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.limiter.Allow() {
		return s.stale, nil
	}
	set, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	s.store(set)
	return set, nil
}

func (s *JWKSKeySource) store(set keySet) {
	s.stale = set
	s.cache.Set(keySetItem, set, ttlcache.DefaultTTL)
}

type jwkSet struct {
	Keys []jwk `json:"keys"`
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	Use string `json:"use"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (s *JWKSKeySource) fetch(ctx context.Context) (keySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build jwks request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch jwks: unexpected status %d", resp.StatusCode)
	}

	var doc jwkSet
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode jwks: %w", err)
	}

	set := make(keySet, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Kty != "RSA" || k.Kid == "" || (k.Use != "" && k.Use != "sig") {
			continue
		}
		pub, err := parseRSAKey(k.N, k.E)
		if err != nil {
			continue
		}
		set[k.Kid] = pub
	}
	return set, nil
}

func parseRSAKey(n, e string) (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(n)
	if err != nil {
		return nil, fmt.Errorf("decode modulus: %w", err)
	}
	eb, err := base64.RawURLEncoding.DecodeString(e)
	if err != nil {
		return nil, fmt.Errorf("decode exponent: %w", err)
	}
	exp := new(big.Int).SetBytes(eb)
	if !exp.IsInt64() || exp.Int64() < 3 || exp.Int64() > 1<<31-1 {
		return nil, errors.New("unsupported exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: int(exp.Int64())}, nil
}
