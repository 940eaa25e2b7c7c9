// Package apiclient calls the order endpoints of the HTTP API on behalf of one
// actor. It backs the runner terminal client.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"campusrunner/internal/domain"
)

// APIError is a non-2xx response. Code and Message come from the error body.
type APIError struct {
	Status        int                `json:"-"`
	Code          string             `json:"error"`
	Message       string             `json:"message"`
	CurrentStatus domain.OrderStatus `json:"currentStatus,omitempty"`
}

func (e *APIError) Error() string {
	if e.CurrentStatus != "" {
		return fmt.Sprintf("api %d %s: %s (current %s)", e.Status, e.Code, e.Message, e.CurrentStatus)
	}
	return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type ordersResponse struct {
	Orders []domain.Order `json:"orders"`
}

// TransitionResult mirrors the API response for an applied transition.
type TransitionResult struct {
	Order    domain.Order         `json:"order"`
	Warnings []string             `json:"warnings,omitempty"`
	Next     []domain.OrderStatus `json:"next"`
}

// OrdersForActor satisfies ordersync.Fetcher.
func (c *Client) OrdersForActor(ctx context.Context, actor domain.User) ([]domain.Order, error) {
	var out ordersResponse
	if err := c.do(ctx, actor, http.MethodGet, "/v1/orders", nil, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

// ListAvailable returns pending orders nobody has accepted yet.
func (c *Client) ListAvailable(ctx context.Context, actor domain.User) ([]domain.Order, error) {
	var out ordersResponse
	if err := c.do(ctx, actor, http.MethodGet, "/v1/orders/available", nil, &out); err != nil {
		return nil, err
	}
	return out.Orders, nil
}

// Transition asks to move orderID from the state the caller last saw to to.
func (c *Client) Transition(ctx context.Context, actor domain.User, orderID string, from, to domain.OrderStatus) (*TransitionResult, error) {
	body := map[string]domain.OrderStatus{"from": from, "to": to}
	var out TransitionResult
	if err := c.do(ctx, actor, http.MethodPost, "/v1/orders/"+url.PathEscape(orderID)+"/transitions", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, actor domain.User, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-User-ID", actor.ID)
	req.Header.Set("X-User-Role", string(actor.Role))

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
		if apiErr.Code == "" {
			apiErr.Code = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
