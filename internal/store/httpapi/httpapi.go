// Package httpapi is a store backend for a REST resource of transactions:
// GET base (optionally with date_gte/date_lte), POST base, PUT base/{id} and
// DELETE base/{id}, all exchanging JSON records.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cashbook/internal/core"
	"cashbook/internal/store"
)

var _ store.Backend = (*Client)(nil)

// maxBody caps how much of a response is read.
const maxBody = 8 << 20

type Client struct {
	base string
	http *http.Client
}

// New creates a client for the resource at baseURL. A zero timeout means the
// default of 15 seconds.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return NewWithHTTPClient(baseURL, newHTTPClient(timeout))
}

// NewWithHTTPClient is New with a caller-provided http.Client.
func NewWithHTTPClient(baseURL string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("api base url must be http or https, got %q", baseURL)
	}
	if hc == nil {
		hc = newHTTPClient(15 * time.Second)
	}
	return &Client{base: strings.TrimRight(u.String(), "/"), http: hc}, nil
}

func newHTTPClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   5,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

func (c *Client) Create(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	var out core.Transaction
	if err := c.do(ctx, http.MethodPost, c.base, t, &out); err != nil {
		return core.Transaction{}, err
	}
	return out, nil
}

func (c *Client) Update(ctx context.Context, id core.ID, t core.Transaction) (core.Transaction, error) {
	t.ID = id
	var out core.Transaction
	if err := c.do(ctx, http.MethodPut, c.itemURL(id), t, &out); err != nil {
		return core.Transaction{}, err
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, id core.ID) error {
	return c.do(ctx, http.MethodDelete, c.itemURL(id), nil, nil)
}

// List passes the range through as date_gte/date_lte query parameters.
func (c *Client) List(ctx context.Context, r *store.DateRange) ([]core.Transaction, error) {
	target := c.base
	if !r.IsZero() {
		q := url.Values{}
		if r.From.Valid() {
			q.Set("date_gte", r.From.String())
		}
		if r.To.Valid() {
			q.Set("date_lte", r.To.String())
		}
		target += "?" + q.Encode()
	}
	var out []core.Transaction
	if err := c.do(ctx, http.MethodGet, target, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) itemURL(id core.ID) string {
	return c.base + "/" + url.PathEscape(id.String())
}

// StatusError is a non-success response from the resource.
type StatusError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: API error: %d", e.Method, e.URL, e.Status)
}

func (e *StatusError) Is(target error) bool {
	return target == store.ErrNotFound && e.Status == http.StatusNotFound
}

func (c *Client) do(ctx context.Context, method, target string, in any, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Method: method, URL: target, Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		if out != nil && method == http.MethodGet {
			return fmt.Errorf("%w: empty response body", store.ErrDecode)
		}
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", store.ErrDecode, method, target, err)
	}
	return nil
}
