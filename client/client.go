// Package client is a typed SDK for the admitflow HTTP API.
//
// Every response is decoded into a single Envelope type and every failure is
// normalised into an *APIError.
package client

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/admitflow/core"
)

const (
	apiPrefix       = "/v1"
	DefaultCacheTTL = 30 * time.Second
)

// Envelope mirrors the server's response shape with a typed payload.
type Envelope[T any] struct {
	Success    bool              `json:"success"`
	Data       T                 `json:"data"`
	Pagination *core.PageMeta    `json:"pagination"`
	Message    string            `json:"message"`
	Errors     map[string]string `json:"errors"`
}

// Page is one page of a listing.
type Page[T any] struct {
	Items []T
	Meta  core.PageMeta
}

type Client struct {
	baseURL string
	rest    *rest.Client
	cache   *Cache

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.rest = &rest.Client{HTTPClient: hc} }
}

func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithCache(cache *Cache) Option {
	return func(c *Client) { c.cache = cache }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		rest:    &rest.Client{HTTPClient: http.DefaultClient},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = NewCache(DefaultCacheTTL)
	}
	return c
}

func (c *Client) Cache() *Cache { return c.cache }

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	c.cache.Invalidate() // another user may see other leads
}

func (c *Client) headers() map[string]string {
	h := map[string]string{
		"Accept":       "application/json",
		"Content-Type": "application/json",
	}
	if token := c.Token(); token != "" {
		h["Authorization"] = "Bearer " + token
	}
	return h
}

// do sends one request and decodes its envelope.
func do[T any](ctx context.Context, c *Client, method rest.Method, path string, query map[string]string, body interface{}) (Envelope[T], error) {
	var env Envelope[T]

	req := rest.Request{
		Method:      method,
		BaseURL:     c.baseURL + apiPrefix + path,
		Headers:     c.headers(),
		QueryParams: query,
	}
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return env, errors.Wrap(err, "encoding request body")
		}
		req.Body = data
	}

	res, err := c.rest.SendWithContext(ctx, req)
	if err != nil {
		return env, errors.Wrapf(err, "%s %s", method, path)
	}
	if res.StatusCode == http.StatusNoContent {
		return Envelope[T]{Success: true}, nil
	}

	decodeErr := sonic.UnmarshalString(res.Body, &env)
	if res.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: res.StatusCode}
		if decodeErr == nil {
			apiErr.Message = env.Message
			apiErr.Fields = env.Errors
		}
		return env, apiErr
	}
	if decodeErr != nil {
		return env, errors.Wrapf(decodeErr, "decoding %s %s response", method, path)
	}
	return env, nil
}
