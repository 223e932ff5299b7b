// Package sync mirrors cart store mutations to the remote cart API and
// reconciles the local store against server snapshots. The server is
// authoritative for unit prices and currency; the local store stays
// authoritative for line existence and quantity until a round-trip lands.
package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ServerLine is one authoritative line item as the backend reports it.
type ServerLine struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Currency  string `json:"currency"`
	LineTotal int64  `json:"line_total"`
}

// ServerSnapshot is the backend's view of the whole cart, returned by every
// call so the client can reconcile after any mutation.
type ServerSnapshot struct {
	ID       string       `json:"id"`
	Items    []ServerLine `json:"items"`
	Subtotal int64        `json:"subtotal"`
	Currency string       `json:"currency"`
}

// APIError is a non-success response from the cart backend.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("cart api: status %d: %s", e.StatusCode, e.Body)
}

// Client speaks the remote cart API: GET /cart, POST /cart/items,
// PATCH /cart/items/{id}, DELETE /cart/items/{id}, DELETE /cart. Mutating
// calls carry the anti-forgery token as both the csrftoken cookie and the
// X-CSRFToken header, the way the storefront does.
type Client struct {
	base  string
	csrf  string
	httpc *http.Client
}

func NewClient(baseURL, csrfToken string, httpc *http.Client) *Client {
	if httpc == nil {
		httpc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		base:  strings.TrimRight(baseURL, "/"),
		csrf:  csrfToken,
		httpc: httpc,
	}
}

// FetchCart is idempotent and safe to retry; it is how truth is
// re-established after any failed mutation.
func (c *Client) FetchCart(ctx context.Context) (ServerSnapshot, error) {
	return c.do(ctx, http.MethodGet, "/cart", nil)
}

func (c *Client) AddItem(ctx context.Context, productID string, quantity int) (ServerSnapshot, error) {
	return c.do(ctx, http.MethodPost, "/cart/items", map[string]any{
		"product_id": productID,
		"quantity":   quantity,
	})
}

func (c *Client) UpdateItem(ctx context.Context, lineID string, quantity int) (ServerSnapshot, error) {
	return c.do(ctx, http.MethodPatch, "/cart/items/"+lineID, map[string]any{
		"quantity": quantity,
	})
}

func (c *Client) RemoveItem(ctx context.Context, lineID string) (ServerSnapshot, error) {
	return c.do(ctx, http.MethodDelete, "/cart/items/"+lineID, nil)
}

func (c *Client) ClearCart(ctx context.Context) (ServerSnapshot, error) {
	return c.do(ctx, http.MethodDelete, "/cart", nil)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (ServerSnapshot, error) {
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return ServerSnapshot{}, fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return ServerSnapshot{}, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("X-CSRFToken", c.csrf)
		req.AddCookie(&http.Cookie{Name: "csrftoken", Value: c.csrf})
	}

	res, err := c.httpc.Do(req)
	if err != nil {
		return ServerSnapshot{}, fmt.Errorf("cart api: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return ServerSnapshot{}, &APIError{StatusCode: res.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	var snap ServerSnapshot
	if err := json.NewDecoder(res.Body).Decode(&snap); err != nil {
		return ServerSnapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}
