// Package api is the authenticated REST helper used by the realtime layer.
package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/pelusa-v/pelusa-live/internal/protocol"
	"github.com/pelusa-v/pelusa-live/internal/session"
)

var ErrUnexpectedStatus = errors.New("api: unexpected status")

const defaultTimeout = 10 * time.Second

type Client struct {
	baseURL  string
	sessions session.Provider
	http     *fasthttp.Client
	timeout  time.Duration
	logger   *zap.Logger
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithHTTPClient(h *fasthttp.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(baseURL string, sessions session.Provider, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		sessions: sessions,
		http: &fasthttp.Client{
			Name:                "pelusa-live",
			MaxIdleConnDuration: 90 * time.Second,
		},
		timeout: defaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Post sends an authenticated POST and returns the response body on 2xx.
func (c *Client) Post(ctx context.Context, path string, body []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, ok := c.sessions.Current()
	if !ok {
		return nil, session.ErrNoSession
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+s.Token)
	req.Header.SetContentType("application/json")
	if len(body) > 0 {
		req.SetBody(body)
	}

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = c.http.DoDeadline(req, resp, deadline)
	} else {
		err = c.http.DoTimeout(req, resp, c.timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("POST %s: %w %d", path, ErrUnexpectedStatus, status)
	}
	return append([]byte(nil), resp.Body()...), nil
}

// Heartbeat refreshes the caller's last-seen time.
func (c *Client) Heartbeat(ctx context.Context) error {
	if _, err := c.Post(ctx, protocol.HeartbeatPath, nil); err != nil {
		return err
	}
	c.logger.Debug("heartbeat delivered")
	return nil
}
