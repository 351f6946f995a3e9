package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"order-ledger/internal/domain"

	"github.com/go-redis/redis/v8"
)

// Resolver exchanges an opaque session token for the submitterRef that
// gets stamped on every order. Any failure to obtain a ref is reported
// as ErrIdentityNotReady so callers retry instead of treating it as bad
// input.
type Resolver struct {
	baseURL     string
	httpClient  *http.Client
	redisClient *redis.Client
}

func NewResolver(baseURL string, timeout time.Duration) *Resolver {
	return &Resolver{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (r *Resolver) SetRedisClient(client *redis.Client) {
	r.redisClient = client
}

type sessionInfo struct {
	Ref string `json:"ref"`
}

func (r *Resolver) Resolve(ctx context.Context, sessionToken string) (string, error) {
	if sessionToken == "" {
		return "", domain.ErrIdentityNotReady
	}

	cacheKey := "session:" + sessionToken

	if r.redisClient != nil {
		cached, err := r.redisClient.Get(ctx, cacheKey).Result()
		if err == nil && cached != "" {
			return cached, nil
		}
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/sessions/%s", r.baseURL, sessionToken), nil)
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrIdentityNotReady, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: identity service returned status %d", domain.ErrIdentityNotReady, resp.StatusCode)
	}

	var info sessionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrIdentityNotReady, err)
	}
	if info.Ref == "" {
		return "", domain.ErrIdentityNotReady
	}

	if r.redisClient != nil {
		r.redisClient.Set(ctx, cacheKey, info.Ref, time.Minute)
	}

	return info.Ref, nil
}
