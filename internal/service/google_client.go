package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/yourusername/complaint-tracker/internal/config"
)

const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

	// provider error bodies are kept for logs only
	maxProviderBody = 64 << 10
)

// googleScopes must include an email-disclosing scope
var googleScopes = []string{"openid", "email", "profile"}

// IdentityProvider is the outbound half of the authorization-code flow.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*TokenResponse, error)
	FetchClaims(ctx context.Context, accessToken string) (*Claims, error)
}

// TokenResponse is the token endpoint payload. Only AccessToken is required.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
}

// Claims are the normalized identity assertions of the provider.
type Claims struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// GoogleClient talks to Google's token and userinfo endpoints. It never
// retries: a failed call is reported to the caller as is.
type GoogleClient struct {
	oauth       *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

// NewGoogleClient builds a client from the OAuth registration
func NewGoogleClient(cfg config.GoogleOAuthConfig) (*GoogleClient, error) {
	if strings.TrimSpace(cfg.ClientID) == "" {
		return nil, fmt.Errorf("google client id is required")
	}
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, fmt.Errorf("google client secret is required")
	}
	if strings.TrimSpace(cfg.RedirectURI) == "" {
		return nil, fmt.Errorf("google redirect uri is required")
	}

	endpoint := endpoints.Google
	endpoint.AuthURL = googleAuthURL
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	userInfoURL := googleUserInfoURL
	if cfg.UserInfoURL != "" {
		userInfoURL = cfg.UserInfoURL
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &GoogleClient{
		oauth: &oauth2.Config{
			ClientID:     strings.TrimSpace(cfg.ClientID),
			ClientSecret: strings.TrimSpace(cfg.ClientSecret),
			RedirectURL:  strings.TrimSpace(cfg.RedirectURI),
			Endpoint:     endpoint,
			Scopes:       googleScopes,
		},
		userInfoURL: userInfoURL,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

// ClientID returns the registered client id
func (c *GoogleClient) ClientID() string {
	return c.oauth.ClientID
}

// AuthCodeURL returns the consent page URL. The prompt forces Google to show
// the account chooser even when a single account is signed in.
func (c *GoogleClient) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(
		state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "select_account consent"),
	)
}

// ExchangeCode trades an authorization code for tokens
func (c *GoogleClient) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	const op = "token exchange"

	values := url.Values{}
	values.Set("code", code)
	values.Set("client_id", c.oauth.ClientID)
	values.Set("client_secret", c.oauth.ClientSecret)
	values.Set("redirect_uri", c.oauth.RedirectURL)
	values.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.oauth.Endpoint.TokenURL, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create google token exchange request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var token TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("malformed token response: %w", err)}
	}
	if token.AccessToken == "" {
		return nil, &ProviderError{Op: op, StatusCode: resp.StatusCode, Reason: "access_token missing from response"}
	}
	return &token, nil
}

// FetchClaims reads the userinfo document with a bearer token
func (c *GoogleClient) FetchClaims(ctx context.Context, accessToken string) (*Claims, error) {
	const op = "userinfo"

	if strings.TrimSpace(accessToken) == "" {
		return nil, &ProviderError{Op: op, Reason: "empty access token"}
	}

	client := &http.Client{
		Timeout: c.httpClient.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   c.httpClient.Transport,
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create google userinfo request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderBody))
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("malformed userinfo response: %w", err)}
	}
	return normalizeClaims(raw), nil
}

// normalizeClaims folds the raw JSON claims into typed values so that
// callers never deal with provider encoding quirks.
func normalizeClaims(raw map[string]interface{}) *Claims {
	verified, _ := parseGoogleEmailVerifiedClaim(raw["email_verified"])
	return &Claims{
		Subject:       claimString(raw, "sub"),
		Email:         normalizeEmail(claimString(raw, "email")),
		EmailVerified: verified,
		Name:          claimString(raw, "name"),
		Picture:       claimString(raw, "picture"),
	}
}

func claimString(raw map[string]interface{}, key string) string {
	switch v := raw[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// parseGoogleEmailVerifiedClaim accepts a JSON boolean or the strings
// "true"/"false" in any case. The second result is false for anything else.
func parseGoogleEmailVerifiedClaim(v interface{}) (bool, bool) {
	switch val := v.(type) {
	case bool:
		return val, true
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true":
			return true, true
		case "false":
			return false, true
		default:
			return false, false
		}
	default:
		return false, false
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
