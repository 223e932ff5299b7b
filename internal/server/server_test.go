package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	cartapp "github.com/poshpearl/poshcart/internal/cart/app"
	cartdomain "github.com/poshpearl/poshcart/internal/cart/domain"
	cartsync "github.com/poshpearl/poshcart/internal/cart/sync"
	catalogapp "github.com/poshpearl/poshcart/internal/catalog/app"
	"github.com/gin-gonic/gin"
	"github.com/poshpearl/poshcart/pkg/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testClient struct {
	t     *testing.T
	srv   *httptest.Server
	httpc *http.Client
	token string
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	catalog := catalogapp.NewService(storage.NewMemory(), log)
	carts := NewCartManager(catalog, storage.NewMemory(), log)
	return newTestClientWith(t, catalog, carts)
}

func newTestClientWith(t *testing.T, catalog *catalogapp.Service, carts *CartManager) *testClient {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := httptest.NewServer(New(catalog, carts, log, "2347041087502").Router())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	tc := &testClient{t: t, srv: srv, httpc: &http.Client{Jar: jar}}

	// First contact issues session and csrf cookies.
	res, err := tc.httpc.Get(srv.URL + "/api/cart")
	if err != nil {
		t.Fatalf("bootstrap GET: %v", err)
	}
	res.Body.Close()
	u, _ := url.Parse(srv.URL)
	for _, c := range jar.Cookies(u) {
		if c.Name == "csrftoken" {
			tc.token = c.Value
		}
	}
	if tc.token == "" {
		t.Fatal("no csrftoken cookie issued")
	}
	return tc
}

func (tc *testClient) do(method, path string, body any, withCSRF bool) (*http.Response, []byte) {
	tc.t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.srv.URL+path, rdr)
	if err != nil {
		tc.t.Fatalf("request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if withCSRF {
		req.Header.Set("X-CSRFToken", tc.token)
	}
	res, err := tc.httpc.Do(req)
	if err != nil {
		tc.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer res.Body.Close()
	raw, _ := io.ReadAll(res.Body)
	return res, raw
}

func decodeCart(t *testing.T, raw []byte) cartOut {
	t.Helper()
	var out cartOut
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode cart: %v\n%s", err, raw)
	}
	return out
}

func TestCSRFRequired(t *testing.T) {
	tc := newTestClient(t)
	res, _ := tc.do(http.MethodPost, "/api/cart/items", map[string]any{"product_id": "mode-classic"}, false)
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", res.StatusCode)
	}
}

func TestAddAndGetCart(t *testing.T) {
	tc := newTestClient(t)

	res, raw := tc.do(http.MethodPost, "/api/cart/items",
		map[string]any{"product_id": "mode-classic", "quantity": 2}, true)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", res.StatusCode, raw)
	}
	cart := decodeCart(t, raw)
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 2 {
		t.Fatalf("cart = %+v", cart)
	}
	if cart.Subtotal != 170000 || cart.Currency != "NGN" {
		t.Fatalf("subtotal = %d %s", cart.Subtotal, cart.Currency)
	}
	if cart.Items[0].ID == "" || cart.Items[0].ID == cart.Items[0].ProductID {
		t.Fatalf("expected a minted line id, got %q", cart.Items[0].ID)
	}

	// Same session sees the same cart on a plain GET.
	res, raw = tc.do(http.MethodGet, "/api/cart", nil, false)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if again := decodeCart(t, raw); len(again.Items) != 1 || again.Items[0].ID != cart.Items[0].ID {
		t.Fatalf("cart not stable across requests: %+v", again)
	}
}

func TestAddUnknownProduct(t *testing.T) {
	tc := newTestClient(t)
	res, _ := tc.do(http.MethodPost, "/api/cart/items", map[string]any{"product_id": "ghost"}, true)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", res.StatusCode)
	}
}

func TestAddZeroQuantity(t *testing.T) {
	tc := newTestClient(t)
	res, _ := tc.do(http.MethodPost, "/api/cart/items",
		map[string]any{"product_id": "mode-classic", "quantity": 0}, true)
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.StatusCode)
	}
}

func TestPatchQuantity(t *testing.T) {
	tc := newTestClient(t)
	_, raw := tc.do(http.MethodPost, "/api/cart/items",
		map[string]any{"product_id": "outdoor-keypad", "quantity": 1}, true)
	lineID := decodeCart(t, raw).Items[0].ID

	t.Run("positive overwrites", func(t *testing.T) {
		res, raw := tc.do(http.MethodPatch, "/api/cart/items/"+lineID, map[string]any{"quantity": 5}, true)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", res.StatusCode)
		}
		if cart := decodeCart(t, raw); cart.Items[0].Quantity != 5 {
			t.Fatalf("cart = %+v", cart)
		}
	})

	t.Run("zero deletes the line", func(t *testing.T) {
		res, raw := tc.do(http.MethodPatch, "/api/cart/items/"+lineID, map[string]any{"quantity": 0}, true)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", res.StatusCode)
		}
		if cart := decodeCart(t, raw); len(cart.Items) != 0 {
			t.Fatalf("line survived: %+v", cart)
		}
	})

	t.Run("unknown line id -> 404", func(t *testing.T) {
		res, _ := tc.do(http.MethodPatch, "/api/cart/items/nope", map[string]any{"quantity": 1}, true)
		if res.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %d", res.StatusCode)
		}
	})
}

func TestDeleteLineAndClear(t *testing.T) {
	tc := newTestClient(t)
	_, raw := tc.do(http.MethodPost, "/api/cart/items",
		map[string]any{"product_id": "mode-classic", "quantity": 1}, true)
	lineID := decodeCart(t, raw).Items[0].ID
	_, _ = tc.do(http.MethodPost, "/api/cart/items",
		map[string]any{"product_id": "battery-pack", "quantity": 2}, true)

	res, raw := tc.do(http.MethodDelete, "/api/cart/items/"+lineID, nil, true)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", res.StatusCode)
	}
	if cart := decodeCart(t, raw); len(cart.Items) != 1 || cart.Items[0].ProductID != "battery-pack" {
		t.Fatalf("cart = %+v", cart)
	}

	res, _ = tc.do(http.MethodDelete, "/api/cart/items/"+lineID, nil, true)
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("double delete status = %d, want 404", res.StatusCode)
	}

	res, raw = tc.do(http.MethodDelete, "/api/cart", nil, true)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("clear status = %d", res.StatusCode)
	}
	if cart := decodeCart(t, raw); len(cart.Items) != 0 || cart.Subtotal != 0 {
		t.Fatalf("cart not empty: %+v", cart)
	}
}

func TestProducts(t *testing.T) {
	tc := newTestClient(t)

	t.Run("list with query", func(t *testing.T) {
		res, raw := tc.do(http.MethodGet, "/api/products?q=lock", nil, false)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", res.StatusCode)
		}
		var out []productOut
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(out) != 2 {
			t.Fatalf("expected 2 lock products, got %d", len(out))
		}
		if out[0].PriceLabel != "₦85,000" {
			t.Fatalf("price label = %q", out[0].PriceLabel)
		}
	})

	t.Run("create then conflict", func(t *testing.T) {
		body := map[string]any{"title": "Door Sensor Kit", "price": 4500}
		res, _ := tc.do(http.MethodPost, "/api/products", body, true)
		if res.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d", res.StatusCode)
		}
		res, _ = tc.do(http.MethodPost, "/api/products", body, true)
		if res.StatusCode != http.StatusConflict {
			t.Fatalf("duplicate status = %d, want 409", res.StatusCode)
		}
	})
}

func TestCheckout(t *testing.T) {
	tc := newTestClient(t)

	t.Run("empty cart -> 400", func(t *testing.T) {
		res, _ := tc.do(http.MethodPost, "/api/checkout", nil, true)
		if res.StatusCode != http.StatusBadRequest {
			t.Fatalf("status = %d", res.StatusCode)
		}
	})

	t.Run("handoff composed and cart cleared", func(t *testing.T) {
		_, _ = tc.do(http.MethodPost, "/api/cart/items",
			map[string]any{"product_id": "mode-classic", "quantity": 2}, true)
		res, raw := tc.do(http.MethodPost, "/api/checkout", nil, true)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("status = %d: %s", res.StatusCode, raw)
		}
		var out struct {
			Summary     string `json:"summary"`
			WhatsAppURL string `json:"whatsapp_url"`
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !strings.Contains(out.Summary, "Total: ₦170,000") {
			t.Fatalf("summary:\n%s", out.Summary)
		}
		if !strings.HasPrefix(out.WhatsAppURL, "https://wa.me/2347041087502?text=") {
			t.Fatalf("url = %q", out.WhatsAppURL)
		}

		_, raw = tc.do(http.MethodGet, "/api/cart", nil, false)
		if cart := decodeCart(t, raw); len(cart.Items) != 0 {
			t.Fatalf("cart not cleared after checkout: %+v", cart)
		}
	})
}

func TestHTTPStatusFromErr(t *testing.T) {
	t.Run("duplicate id -> 409", func(t *testing.T) {
		status, code, _ := httpStatusFromErr(catalogapp.ErrDuplicateID)
		if status != http.StatusConflict || code != "DUPLICATE_ID" {
			t.Fatalf("got (%d,%s)", status, code)
		}
	})
	t.Run("not found -> 404", func(t *testing.T) {
		status, code, _ := httpStatusFromErr(catalogapp.ErrNotFound)
		if status != http.StatusNotFound || code != "NOT_FOUND" {
			t.Fatalf("got (%d,%s)", status, code)
		}
	})
	t.Run("invalid quantity -> 400", func(t *testing.T) {
		status, code, _ := httpStatusFromErr(cartdomain.ErrInvalidQuantity)
		if status != http.StatusBadRequest || code != "INVALID_ARGUMENT" {
			t.Fatalf("got (%d,%s)", status, code)
		}
	})
	t.Run("anything else -> 500", func(t *testing.T) {
		status, code, _ := httpStatusFromErr(errors.New("boom"))
		if status != http.StatusInternalServerError || code != "INTERNAL" {
			t.Fatalf("got (%d,%s)", status, code)
		}
	})
}

// fakeUpstream is a slow remote cart API: slow enough that every mirror call
// is still in flight when the local handler has already returned.
type fakeUpstream struct {
	mu   sync.Mutex
	qty  map[string]int
	hits []string
}

func (u *fakeUpstream) cartJSON() []byte {
	type line struct {
		ID        string `json:"id"`
		ProductID string `json:"product_id"`
		Name      string `json:"name"`
		Quantity  int    `json:"quantity"`
		UnitPrice int64  `json:"unit_price"`
		Currency  string `json:"currency"`
		LineTotal int64  `json:"line_total"`
	}
	out := struct {
		ID       string `json:"id"`
		Items    []line `json:"items"`
		Subtotal int64  `json:"subtotal"`
		Currency string `json:"currency"`
	}{ID: "up-cart", Items: []line{}, Currency: "NGN"}
	for id, q := range u.qty {
		l := line{
			ID: "U-" + id, ProductID: id, Name: id,
			Quantity: q, UnitPrice: 90000, Currency: "NGN",
			LineTotal: 90000 * int64(q),
		}
		out.Items = append(out.Items, l)
		out.Subtotal += l.LineTotal
	}
	raw, _ := json.Marshal(out)
	return raw
}

func (u *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	time.Sleep(50 * time.Millisecond)
	u.mu.Lock()
	defer u.mu.Unlock()
	u.hits = append(u.hits, r.Method+" "+r.URL.Path)
	if r.Method == http.MethodPost && r.URL.Path == "/cart/items" {
		var in struct {
			ProductID string `json:"product_id"`
			Quantity  int    `json:"quantity"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		u.qty[in.ProductID] += in.Quantity
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(u.cartJSON())
}

func TestEdgeModeMirrorsUpstream(t *testing.T) {
	upstream := &fakeUpstream{qty: make(map[string]int)}
	up := httptest.NewServer(upstream)
	defer up.Close()

	var noticeMu sync.Mutex
	var notices []string

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	catalog := catalogapp.NewService(storage.NewMemory(), log)
	carts := NewCartManager(catalog, storage.NewMemory(), log).
		WithSync(func(cart *cartapp.Service) *cartsync.Service {
			client := cartsync.NewClient(up.URL, "tok", nil)
			notify := cartapp.NotifierFunc(func(msg string) {
				noticeMu.Lock()
				notices = append(notices, msg)
				noticeMu.Unlock()
			})
			return cartsync.NewService(client, cart, notify, log)
		})
	tc := newTestClientWith(t, catalog, carts)

	res, raw := tc.do(http.MethodPost, "/api/cart/items",
		map[string]any{"product_id": "mode-classic", "quantity": 2}, true)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", res.StatusCode, raw)
	}
	carts.Drain()

	noticeMu.Lock()
	failed := len(notices)
	noticeMu.Unlock()
	if failed != 0 {
		t.Fatalf("mirror failed: %v", notices)
	}

	upstream.mu.Lock()
	got := upstream.qty["mode-classic"]
	var sawPost bool
	for _, h := range upstream.hits {
		if h == "POST /cart/items" {
			sawPost = true
		}
	}
	upstream.mu.Unlock()
	if !sawPost || got != 2 {
		t.Fatalf("upstream not mirrored: qty=%d hits=%v", got, upstream.hits)
	}

	// The upstream price is authoritative once the mirror lands.
	_, raw = tc.do(http.MethodGet, "/api/cart", nil, false)
	cart := decodeCart(t, raw)
	if len(cart.Items) != 1 || cart.Items[0].UnitPrice != 90000 {
		t.Fatalf("upstream price not reconciled: %+v", cart.Items)
	}
}
