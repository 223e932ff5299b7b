package server

import (
	"context"
	"log/slog"
	"sync"

	cartapp "github.com/poshpearl/poshcart/internal/cart/app"
	cartsync "github.com/poshpearl/poshcart/internal/cart/sync"
	catalogapp "github.com/poshpearl/poshcart/internal/catalog/app"
	"github.com/google/uuid"
	"github.com/poshpearl/poshcart/pkg/storage"
)

// sessionCart is one visitor's cart plus the line-id aliases the REST API
// exposes for PATCH/DELETE. Line ids are minted per product on first add and
// live as long as the process; clients recover them from any GET /cart.
type sessionCart struct {
	id   string
	svc  *cartapp.Service
	sync *cartsync.Service // nil in local-only mode

	mu        sync.Mutex
	lineIDs   map[string]string // product id -> line id
	productOf map[string]string // line id -> product id
}

func (c *sessionCart) lineID(productID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.lineIDs[productID]; ok {
		return id
	}
	id := uuid.NewString()
	c.lineIDs[productID] = id
	c.productOf[id] = productID
	return id
}

func (c *sessionCart) productID(lineID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.productOf[lineID]
	return p, ok
}

// CartManager hands out one cart store per session key, each persisting
// under its own namespace of the shared storage backend.
type CartManager struct {
	catalog *catalogapp.Service
	store   storage.Store
	log     *slog.Logger

	mu      sync.Mutex
	carts   map[string]*sessionCart
	newSync func(*cartapp.Service) *cartsync.Service
}

func NewCartManager(catalog *catalogapp.Service, store storage.Store, log *slog.Logger) *CartManager {
	return &CartManager{
		catalog: catalog,
		store:   store,
		log:     log,
		carts:   make(map[string]*sessionCart),
	}
}

// WithSync installs a factory wiring each new cart to an upstream cart API.
// Used when this instance runs as an edge mirroring to a central service.
func (m *CartManager) WithSync(f func(*cartapp.Service) *cartsync.Service) *CartManager {
	m.newSync = f
	return m
}

func (m *CartManager) GetOrCreate(ctx context.Context, sessionKey string) *sessionCart {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.carts[sessionKey]; ok {
		return c
	}
	c := &sessionCart{
		id:        uuid.NewString(),
		svc:       cartapp.NewService(m.catalog, m.store, m.log, cartapp.StorageKey+":"+sessionKey),
		lineIDs:   make(map[string]string),
		productOf: make(map[string]string),
	}
	if m.newSync != nil {
		c.sync = m.newSync(c.svc)
		c.svc.SetSyncer(c.sync)
		c.sync.Fetch(ctx)
	}
	m.carts[sessionKey] = c
	return c
}

// Drain waits for every cart's in-flight mirror calls to finish. Called on
// shutdown, after the HTTP server has stopped accepting requests.
func (m *CartManager) Drain() {
	m.mu.Lock()
	carts := make([]*sessionCart, 0, len(m.carts))
	for _, c := range m.carts {
		carts = append(carts, c)
	}
	m.mu.Unlock()

	for _, c := range carts {
		if c.sync != nil {
			c.sync.Wait()
		}
	}
}
