package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/poshpearl/poshcart/internal/cart/domain"
	catalogdomain "github.com/poshpearl/poshcart/internal/catalog/domain"
	"github.com/poshpearl/poshcart/pkg/storage"
)

var ErrInvalidProductID = errors.New("product id required")

// StorageKey is the default namespace the cart line mapping persists under.
const StorageKey = "posh_cart_v1"

const defaultCurrency = "NGN"

// Service is the cart store: the single source of truth for the mapping of
// product id to quantity. Every mutation persists before it is considered
// committed, then mirrors to the syncer (if any) and notifies subscribers
// with a fresh snapshot. Storage loss degrades to an empty in-memory cart;
// nothing here is fatal.
type Service struct {
	catalog CatalogReader
	store   storage.Store
	log     *slog.Logger
	key     string

	mu     sync.Mutex
	loaded bool
	lines  map[string]int
	// version counts committed local mutations; the sync service uses it
	// to tell pending local edits from server-confirmed state.
	version uint64
	// serverPrices overrides catalog pricing once the remote backend has
	// confirmed a line; the server is authoritative for price/currency.
	serverPrices map[string]catalogdomain.Money
	degraded     bool

	subsMu sync.RWMutex
	subs   []Subscriber
	syncer Syncer
}

func NewService(catalog CatalogReader, store storage.Store, log *slog.Logger, key string) *Service {
	if key == "" {
		key = StorageKey
	}
	return &Service{
		catalog:      catalog,
		store:        store,
		log:          log,
		key:          key,
		serverPrices: make(map[string]catalogdomain.Money),
	}
}

// Subscribe registers a projection; it is immediately usable and will be
// called after every committed mutation.
func (s *Service) Subscribe(sub Subscriber) {
	s.subsMu.Lock()
	s.subs = append(s.subs, sub)
	s.subsMu.Unlock()
}

// SetSyncer attaches the remote mirror. Pass nil for local-only mode.
func (s *Service) SetSyncer(sy Syncer) {
	s.subsMu.Lock()
	s.syncer = sy
	s.subsMu.Unlock()
}

// AddToCart creates the line with the given quantity, or increments an
// existing line by it. Quantities below 1 are rejected.
func (s *Service) AddToCart(ctx context.Context, productID string, quantity int) error {
	if strings.TrimSpace(productID) == "" {
		return ErrInvalidProductID
	}
	if quantity < 1 {
		return domain.ErrInvalidQuantity
	}

	s.mu.Lock()
	s.ensureLoadedLocked(ctx)
	s.lines[productID] += quantity
	v := s.commitLocked(ctx)
	s.mu.Unlock()

	s.mirror(func(sy Syncer) { sy.AddItem(ctx, productID, quantity, v) })
	s.notify(ctx)
	return nil
}

// SetQuantity overwrites the line's quantity. Zero or negative is
// equivalent to RemoveItem.
func (s *Service) SetQuantity(ctx context.Context, productID string, quantity int) error {
	if strings.TrimSpace(productID) == "" {
		return ErrInvalidProductID
	}
	if quantity <= 0 {
		return s.RemoveItem(ctx, productID)
	}

	s.mu.Lock()
	s.ensureLoadedLocked(ctx)
	s.lines[productID] = quantity
	v := s.commitLocked(ctx)
	s.mu.Unlock()

	s.mirror(func(sy Syncer) { sy.SetQuantity(ctx, productID, quantity, v) })
	s.notify(ctx)
	return nil
}

// RemoveItem deletes the line. Removing an absent line is a no-op, not an
// error, and does not re-notify.
func (s *Service) RemoveItem(ctx context.Context, productID string) error {
	s.mu.Lock()
	s.ensureLoadedLocked(ctx)
	if _, ok := s.lines[productID]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.lines, productID)
	v := s.commitLocked(ctx)
	s.mu.Unlock()

	s.mirror(func(sy Syncer) { sy.RemoveItem(ctx, productID, v) })
	s.notify(ctx)
	return nil
}

// Clear empties the cart, used after checkout confirmation or an explicit
// user action.
func (s *Service) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.ensureLoadedLocked(ctx)
	s.lines = make(map[string]int)
	v := s.commitLocked(ctx)
	s.mu.Unlock()

	s.mirror(func(sy Syncer) { sy.Clear(ctx, v) })
	s.notify(ctx)
	return nil
}

// Snapshot computes the immutable view every projection renders from.
func (s *Service) Snapshot(ctx context.Context) domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)
	return s.snapshotLocked(ctx)
}

// Lines returns the raw line mapping in product-id order.
func (s *Service) Lines(ctx context.Context) []domain.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)

	out := make([]domain.Line, 0, len(s.lines))
	for _, id := range s.sortedIDsLocked() {
		out = append(out, domain.Line{ProductID: id, Quantity: s.lines[id]})
	}
	return out
}

// Version returns the count of committed local mutations.
func (s *Service) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// ReconcileServer applies a server cart snapshot. Prices and currency are
// always taken from the server; quantities are only adopted when no local
// mutation landed after baseVersion, so an in-flight local edit is never
// clobbered by a slow response.
func (s *Service) ReconcileServer(ctx context.Context, lines map[string]int, prices map[string]catalogdomain.Money, baseVersion uint64) {
	s.mu.Lock()
	s.ensureLoadedLocked(ctx)
	// Rebuilt wholesale: a line the server dropped must not keep its old
	// server price over the current catalog price.
	next := make(map[string]catalogdomain.Money, len(prices))
	for id, m := range prices {
		next[id] = m
	}
	s.serverPrices = next
	if s.version == baseVersion {
		next := make(map[string]int, len(lines))
		for id, qty := range lines {
			if qty > 0 {
				next[id] = qty
			}
		}
		s.lines = next
		s.persistLocked(ctx)
	}
	s.mu.Unlock()

	s.notify(ctx)
}

func (s *Service) ensureLoadedLocked(ctx context.Context) {
	if s.loaded {
		return
	}
	s.loaded = true
	s.lines = make(map[string]int)

	raw, err := s.store.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		s.warnStorageLocked("cart read failed", err)
		return
	}

	var saved map[string]int
	if err := json.Unmarshal(raw, &saved); err != nil {
		s.log.Warn("cart blob corrupt, starting empty", slog.Any("err", err))
		return
	}
	for id, qty := range saved {
		if id != "" && qty > 0 {
			s.lines[id] = qty
		}
	}
}

func (s *Service) commitLocked(ctx context.Context) uint64 {
	s.version++
	s.persistLocked(ctx)
	return s.version
}

func (s *Service) persistLocked(ctx context.Context) {
	raw, err := json.Marshal(s.lines)
	if err != nil {
		s.warnStorageLocked("cart marshal failed", err)
		return
	}
	if err := s.store.Set(ctx, s.key, raw); err != nil {
		s.warnStorageLocked("cart write failed", err)
	}
}

func (s *Service) warnStorageLocked(msg string, err error) {
	if s.degraded {
		return
	}
	s.degraded = true
	s.log.Warn(msg+", continuing in-memory", slog.Any("err", err))
}

func (s *Service) sortedIDsLocked() []string {
	ids := make([]string, 0, len(s.lines))
	for id := range s.lines {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Service) snapshotLocked(ctx context.Context) domain.Snapshot {
	snap := domain.Snapshot{Currency: defaultCurrency}
	for _, id := range s.sortedIDsLocked() {
		qty := s.lines[id]
		line := domain.SnapshotLine{
			ProductID: id,
			Title:     id,
			Quantity:  qty,
			Currency:  defaultCurrency,
		}

		if m, ok := s.serverPrices[id]; ok {
			line.UnitPrice = m.Amount
			line.Currency = m.Currency
			if p, err := s.catalog.Get(ctx, id); err == nil {
				line.Title = p.Title
			}
		} else if p, err := s.catalog.Get(ctx, id); err == nil {
			line.Title = p.Title
			line.UnitPrice = p.Price.Amount
			line.Currency = p.Price.Currency
		}
		// Unknown products stay in the cart with a zero price; the user
		// can still remove them.
		if line.Currency == "" {
			line.Currency = defaultCurrency
		}

		line.LineTotal = line.UnitPrice * int64(qty)
		line.PriceLabel = catalogdomain.Money{Currency: line.Currency, Amount: line.UnitPrice}.Label()

		snap.Lines = append(snap.Lines, line)
		snap.ItemCount += qty
		snap.Subtotal += line.LineTotal
	}
	if len(snap.Lines) > 0 {
		snap.Currency = snap.Lines[0].Currency
	}
	return snap
}

func (s *Service) notify(ctx context.Context) {
	snap := s.Snapshot(ctx)

	s.subsMu.RLock()
	subs := make([]Subscriber, len(s.subs))
	copy(subs, s.subs)
	s.subsMu.RUnlock()

	for _, sub := range subs {
		sub.CartChanged(snap)
	}
}

func (s *Service) mirror(call func(Syncer)) {
	s.subsMu.RLock()
	sy := s.syncer
	s.subsMu.RUnlock()
	if sy != nil {
		call(sy)
	}
}
