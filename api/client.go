package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/honganh1206/stargazer/preview"
)

const DefaultBaseURL = "http://localhost:11436"

// TokenSource hands out the bearer token for authenticated calls.
// *credential.Store satisfies it.
type TokenSource interface {
	BearerToken() (string, error)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	tokens     TokenSource
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout bounds each request without touching a client passed to WithHTTPClient.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		tokens:     tokens,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

type loginRequest struct {
	Code string `json:"code"`
}

type LoginResult struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Login exchanges an OAuth authorization code for an access token. It does
// not store the token.
func (c *Client) Login(ctx context.Context, provider, code string) (*LoginResult, error) {
	var result LoginResult
	path := "/api/auth/oauth/" + url.PathEscape(provider)
	if err := c.doRequest(ctx, http.MethodPost, path, loginRequest{Code: code}, &result, false); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListPreviews fetches the baseline list of chat previews for the current user.
func (c *Client) ListPreviews(ctx context.Context) ([]preview.Preview, error) {
	var previews []preview.Preview
	if err := c.doRequest(ctx, http.MethodGet, "/api/chat/previews", nil, &previews, true); err != nil {
		return nil, err
	}
	return previews, nil
}
