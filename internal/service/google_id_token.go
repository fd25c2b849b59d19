package service

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const (
	googleJWKSURL       = "https://www.googleapis.com/oauth2/v3/certs"
	defaultJWKSLifetime = time.Hour

	// minJWKSRefetchInterval bounds refetches caused by unknown kids while
	// the cached set is still valid
	minJWKSRefetchInterval = time.Minute
)

var googleIssuers = map[string]bool{
	"accounts.google.com":         true,
	"https://accounts.google.com": true,
}

// IDTokenVerifier checks a Google ID token posted by a browser client
type IDTokenVerifier interface {
	Verify(ctx context.Context, idToken string) (*Claims, error)
}

type googleIDTokenClaims struct {
	Email         string      `json:"email"`
	EmailVerified interface{} `json:"email_verified"`
	Name          string      `json:"name"`
	Picture       string      `json:"picture"`
	jwt.RegisteredClaims
}

// check applies the rules the signature alone does not cover
func (c *googleIDTokenClaims) check(clientID string, now time.Time) error {
	switch {
	case strings.TrimSpace(c.Subject) == "":
		return fmt.Errorf("%w: sub claim is empty", ErrGoogleTokenVerificationFailed)
	case !googleIssuers[c.Issuer]:
		return fmt.Errorf("%w: unexpected issuer %q", ErrGoogleTokenVerificationFailed, c.Issuer)
	case !c.VerifyAudience(clientID, true):
		return fmt.Errorf("%w: token was issued for another client", ErrGoogleTokenVerificationFailed)
	case c.ExpiresAt == nil:
		return fmt.Errorf("%w: exp claim is missing", ErrGoogleTokenVerificationFailed)
	case !now.Before(c.ExpiresAt.Time):
		return fmt.Errorf("%w: token has expired", ErrGoogleTokenVerificationFailed)
	}
	return nil
}

type googleJWKSet struct {
	Keys []googleJWK `json:"keys"`
}

type googleJWK struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

// jwksCache holds the signing keys until the provider's max-age runs out
type jwksCache struct {
	mu          sync.RWMutex
	keys        map[string]*rsa.PublicKey
	expires     time.Time
	lastAttempt time.Time
}

func (c *jwksCache) lookup(kid string, now time.Time) (*rsa.PublicKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if now.After(c.expires) {
		return nil, false
	}
	key, ok := c.keys[kid]
	return key, ok
}

// claimRefresh reports whether a fetch may start now and records the attempt.
// An expired or empty set can always be refetched.
func (c *jwksCache) claimRefresh(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !now.After(c.expires) && now.Sub(c.lastAttempt) < minJWKSRefetchInterval {
		return false
	}
	c.lastAttempt = now
	return true
}

func (c *jwksCache) replace(keys map[string]*rsa.PublicKey, expires time.Time) {
	c.mu.Lock()
	c.keys = keys
	c.expires = expires
	c.mu.Unlock()
}

// GoogleIDTokenVerifier validates RS256 ID tokens against Google's JWKS.
// The audience must equal the configured client id.
type GoogleIDTokenVerifier struct {
	clientID   string
	jwksURL    string
	httpClient *http.Client
	now        func() time.Time
	cache      jwksCache
}

func NewGoogleIDTokenVerifier(clientID, jwksURL string, timeout time.Duration) (*GoogleIDTokenVerifier, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, fmt.Errorf("google client id is required")
	}
	if jwksURL == "" {
		jwksURL = googleJWKSURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoogleIDTokenVerifier{
		clientID:   clientID,
		jwksURL:    jwksURL,
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}, nil
}

func (v *GoogleIDTokenVerifier) Verify(ctx context.Context, idToken string) (*Claims, error) {
	raw := strings.TrimSpace(idToken)
	if raw == "" {
		return nil, fmt.Errorf("%w: no token supplied", ErrGoogleTokenVerificationFailed)
	}

	var claims googleIDTokenClaims
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	_, err := parser.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		kid, _ := t.Header["kid"].(string)
		kid = strings.TrimSpace(kid)
		if kid == "" {
			return nil, fmt.Errorf("%w: token header has no kid", ErrGoogleTokenVerificationFailed)
		}
		return v.publicKey(ctx, kid)
	})
	if err != nil {
		// an unreachable JWKS endpoint is not the token's fault
		var te *TransportError
		if errors.As(err, &te) {
			return nil, te
		}
		return nil, fmt.Errorf("%w: %v", ErrGoogleTokenVerificationFailed, err)
	}
	if err := claims.check(v.clientID, v.now()); err != nil {
		return nil, err
	}

	verified, known := parseGoogleEmailVerifiedClaim(claims.EmailVerified)
	if claims.EmailVerified != nil && !known {
		return nil, fmt.Errorf("%w: email_verified has an unexpected value", ErrGoogleTokenVerificationFailed)
	}

	return &Claims{
		Subject:       strings.TrimSpace(claims.Subject),
		Email:         normalizeEmail(claims.Email),
		EmailVerified: verified,
		Name:          strings.TrimSpace(claims.Name),
		Picture:       strings.TrimSpace(claims.Picture),
	}, nil
}

// publicKey serves from the cache. A miss refetches the key set, at most
// once per minJWKSRefetchInterval while the cached set is valid.
func (v *GoogleIDTokenVerifier) publicKey(ctx context.Context, kid string) (*rsa.PublicKey, error) {
	if key, ok := v.cache.lookup(kid, v.now()); ok {
		return key, nil
	}
	if !v.cache.claimRefresh(v.now()) {
		return nil, fmt.Errorf("%w: signing key %q is not published", ErrGoogleTokenVerificationFailed, kid)
	}
	if err := v.refreshJWKS(ctx); err != nil {
		return nil, err
	}
	if key, ok := v.cache.lookup(kid, v.now()); ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: signing key %q is not published", ErrGoogleTokenVerificationFailed, kid)
}

func (v *GoogleIDTokenVerifier) refreshJWKS(ctx context.Context) error {
	const op = "jwks"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build jwks request: %w", err)
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &ProviderError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var set googleJWKSet
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("malformed jwks response: %w", err)}
	}
	keys := rsaKeysByID(set)
	if len(keys) == 0 {
		return fmt.Errorf("%w: key set contains no RSA keys", ErrGoogleTokenVerificationFailed)
	}

	lifetime := parseJWKSMaxAge(resp.Header.Get("Cache-Control"))
	if lifetime == 0 {
		lifetime = defaultJWKSLifetime
	}
	v.cache.replace(keys, v.now().Add(lifetime))
	return nil
}

// rsaKeysByID skips entries that are not RSA or do not decode
func rsaKeysByID(set googleJWKSet) map[string]*rsa.PublicKey {
	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, jwk := range set.Keys {
		if jwk.Kty != "RSA" || strings.TrimSpace(jwk.Kid) == "" {
			continue
		}
		if pub, err := parseRSAPublicKey(jwk); err == nil {
			keys[jwk.Kid] = pub
		}
	}
	return keys
}

func parseRSAPublicKey(jwk googleJWK) (*rsa.PublicKey, error) {
	modulus, err := base64.RawURLEncoding.DecodeString(jwk.N)
	if err != nil {
		return nil, fmt.Errorf("modulus: %w", err)
	}
	exponent, err := base64.RawURLEncoding.DecodeString(jwk.E)
	if err != nil {
		return nil, fmt.Errorf("exponent: %w", err)
	}

	n := new(big.Int).SetBytes(modulus)
	e := new(big.Int).SetBytes(exponent)
	if n.Sign() <= 0 || !e.IsInt64() || e.Int64() <= 1 || e.Int64() > 1<<31-1 {
		return nil, fmt.Errorf("jwk %q is not a usable RSA key", jwk.Kid)
	}
	return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
}

// parseJWKSMaxAge reads max-age from Cache-Control, floored at one minute.
// Zero means the header carried no usable value.
func parseJWKSMaxAge(cacheControl string) time.Duration {
	for _, directive := range strings.Split(cacheControl, ",") {
		name, value, found := strings.Cut(strings.TrimSpace(directive), "=")
		if !found || !strings.EqualFold(name, "max-age") {
			continue
		}
		seconds, err := strconv.Atoi(value)
		if err != nil || seconds < 0 {
			return 0
		}
		return max(time.Duration(seconds)*time.Second, time.Minute)
	}
	return 0
}
