package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/tableside/internal/ir"
)

// DefaultTimeout bounds every request when no http.Client is supplied.
const DefaultTimeout = 15 * time.Second

// maxBodySize caps how much of a response body is read.
const maxBodySize = 4 << 20

// Client talks to the restaurant REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// New creates a client for the API rooted at baseURL (e.g. "http://localhost:8000/api").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// FetchMenu returns the catalog. GET /menu/
func (c *Client) FetchMenu(ctx context.Context) ([]ir.MenuItem, error) {
	var items []wireMenuItem
	if err := c.do(ctx, http.MethodGet, "/menu/", "", nil, &items); err != nil {
		return nil, err
	}
	out := make([]ir.MenuItem, 0, len(items))
	for _, it := range items {
		out = append(out, it.toIR())
	}
	return out, nil
}

// ListOrders returns every order visible to the token. GET /orders/
func (c *Client) ListOrders(ctx context.Context, token string) ([]ir.Order, error) {
	var orders []wireOrder
	if err := c.do(ctx, http.MethodGet, "/orders/", token, nil, &orders); err != nil {
		return nil, err
	}
	return ordersToIR(orders), nil
}

// CurrentOrders returns a customer's orders. GET /orders/current/?phone=&include_paid=
//
// The backend answers either with a single order or with {"all_orders": [...]};
// both shapes are returned as a list. An empty object means no orders.
func (c *Client) CurrentOrders(ctx context.Context, token, phone string, includePaid bool) ([]ir.Order, error) {
	q := url.Values{}
	q.Set("phone", phone)
	q.Set("include_paid", strconv.FormatBool(includePaid))

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/orders/current/?"+q.Encode(), token, nil, &raw); err != nil {
		return nil, err
	}
	return decodeCurrentOrders(raw)
}

func decodeCurrentOrders(raw json.RawMessage) ([]ir.Order, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []ir.Order{}, nil
	}

	if raw[0] == '[' {
		var list []wireOrder
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decode current orders: %w", err)
		}
		return ordersToIR(list), nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode current orders: %w", err)
	}
	if all, ok := fields["all_orders"]; ok {
		var list []wireOrder
		if err := json.Unmarshal(all, &list); err != nil {
			return nil, fmt.Errorf("decode current orders: all_orders: %w", err)
		}
		return ordersToIR(list), nil
	}
	if _, ok := fields["id"]; !ok {
		return []ir.Order{}, nil
	}
	var single wireOrder
	if err := json.Unmarshal(raw, &single); err != nil {
		return nil, fmt.Errorf("decode current orders: %w", err)
	}
	return []ir.Order{single.toIR()}, nil
}

// CreateOrder submits a new order. POST /orders/
//
// If the backend answers without a body the submitted order is returned.
func (c *Client) CreateOrder(ctx context.Context, token string, order ir.Order) (ir.Order, error) {
	if order.Items == nil {
		order.Items = []ir.CartItem{}
	}
	var created *wireOrder
	if err := c.do(ctx, http.MethodPost, "/orders/", token, order, &created); err != nil {
		return ir.Order{}, err
	}
	if created == nil || created.ID == "" {
		return order, nil
	}
	return created.toIR(), nil
}

// PatchOrder applies a single-field update. PATCH /orders/{id}/
func (c *Client) PatchOrder(ctx context.Context, token, id string, patch OrderPatch) (ir.Order, error) {
	var updated *wireOrder
	path := "/orders/" + url.PathEscape(id) + "/"
	if err := c.do(ctx, http.MethodPatch, path, token, patch, &updated); err != nil {
		return ir.Order{}, err
	}
	if updated == nil {
		return ir.Order{ID: id}, nil
	}
	return updated.toIR(), nil
}

// RegisterCustomer asks the backend to send an OTP. POST /auth/customer/register/
func (c *Client) RegisterCustomer(ctx context.Context, phone, email string) error {
	body := map[string]string{"phone": phone, "email": email}
	return c.do(ctx, http.MethodPost, "/auth/customer/register/", "", body, nil)
}

type tokenResponse struct {
	Token string `json:"token"`
}

// VerifyCustomer exchanges an OTP for a token. POST /auth/customer/verify/
func (c *Client) VerifyCustomer(ctx context.Context, otp, email string) (string, error) {
	var resp tokenResponse
	body := map[string]string{"otp": otp, "email": email}
	if err := c.do(ctx, http.MethodPost, "/auth/customer/verify/", "", body, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("verify customer: response carried no token")
	}
	return resp.Token, nil
}

// StaffLogin exchanges staff credentials for a token. POST /auth/staff/login/
func (c *Client) StaffLogin(ctx context.Context, username, password string) (string, error) {
	var resp tokenResponse
	body := map[string]string{"username": username, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/staff/login/", "", body, &resp); err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("staff login: response carried no token")
	}
	return resp.Token, nil
}

// do performs one request. in is JSON-encoded when non-nil; out is decoded
// from a non-empty 2xx body when non-nil.
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s %s: build request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			Method:     method,
			Path:       stripQuery(path),
			StatusCode: resp.StatusCode,
			Message:    extractMessage(data),
		}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

func stripQuery(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i]
	}
	return path
}
