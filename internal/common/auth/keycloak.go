package auth

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"birdwatch-support/internal/common/errors"
	httpclient "birdwatch-support/internal/common/http"
)

const (
	introspectTimeout = 10 * time.Second
	// defaultCacheTTL bounds how long an active introspection result is reused.
	defaultCacheTTL = 30 * time.Second
)

// TokenInfo is the subset of the introspection response the app reads.
type TokenInfo struct {
	Active   bool   `json:"active"`
	ClientID string `json:"client_id,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Exp      int64  `json:"exp,omitempty"`
	Sub      string `json:"sub,omitempty"`
}

type cachedToken struct {
	info    TokenInfo
	expires time.Time
}

// KeycloakClient resolves bearer tokens from the mobile app through the
// realm's introspection endpoint. Active results are cached per token until
// the token expires or the cache TTL passes, whichever is first.
type KeycloakClient struct {
	endpoint     string
	clientID     string
	clientSecret string
	http         *httpclient.Client
	cacheTTL     time.Duration
	now          func() time.Time

	mu    sync.Mutex
	cache map[[sha256.Size]byte]cachedToken
}

func NewKeycloakClient(baseURL, realm, clientID, clientSecret string) *KeycloakClient {
	return &KeycloakClient{
		endpoint: fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token/introspect",
			strings.TrimSuffix(baseURL, "/"), url.PathEscape(realm)),
		clientID:     clientID,
		clientSecret: clientSecret,
		http:         httpclient.NewClient(introspectTimeout),
		cacheTTL:     defaultCacheTTL,
		now:          time.Now,
		cache:        make(map[[sha256.Size]byte]cachedToken),
	}
}

// ValidateToken returns the token's claims, or an AuthenticationError for an
// inactive token. Keycloak 5xx responses are retryable.
func (k *KeycloakClient) ValidateToken(ctx context.Context, token string) (*TokenInfo, error) {
	key := sha256.Sum256([]byte(token))
	if info, ok := k.cached(key); ok {
		return &info, nil
	}

	info, err := k.introspect(ctx, token)
	if err != nil {
		return nil, err
	}
	k.store(key, *info)
	return info, nil
}

func (k *KeycloakClient) introspect(ctx context.Context, token string) (*TokenInfo, error) {
	form := url.Values{
		"token":           {token},
		"token_type_hint": {"access_token"},
		"client_id":       {k.clientID},
		"client_secret":   {k.clientSecret},
	}
	req, err := http.NewRequest(http.MethodPost, k.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("create introspection request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := k.http.DoWithContext(ctx, req)
	if err != nil {
		return nil, errors.NewExternalServiceError("keycloak", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, errors.NewExternalServiceError("keycloak", fmt.Errorf("introspection returned status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, errors.NewAuthenticationError(fmt.Sprintf("introspection returned status %d", resp.StatusCode))
	}

	var info TokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errors.NewInternalError(fmt.Errorf("decode introspection response: %w", err))
	}
	if !info.Active {
		return nil, errors.NewAuthenticationError("token is expired, revoked or malformed")
	}
	return &info, nil
}

func (k *KeycloakClient) cached(key [sha256.Size]byte) (TokenInfo, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry, ok := k.cache[key]
	if !ok {
		return TokenInfo{}, false
	}
	if !k.now().Before(entry.expires) {
		delete(k.cache, key)
		return TokenInfo{}, false
	}
	return entry.info, true
}

func (k *KeycloakClient) store(key [sha256.Size]byte, info TokenInfo) {
	now := k.now()
	expires := now.Add(k.cacheTTL)
	if info.Exp > 0 {
		if exp := time.Unix(info.Exp, 0); exp.Before(expires) {
			expires = exp
		}
	}
	if !now.Before(expires) {
		return
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	for kk, entry := range k.cache {
		if !now.Before(entry.expires) {
			delete(k.cache, kk)
		}
	}
	k.cache[key] = cachedToken{info: info, expires: expires}
}
