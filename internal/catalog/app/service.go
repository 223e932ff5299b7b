package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/poshpearl/poshcart/internal/catalog/domain"
	"github.com/poshpearl/poshcart/pkg/storage"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("product not found")
	ErrDuplicateID  = errors.New("product with this id already exists")
)

// StorageKey is the namespace the persisted catalog override lives under.
const StorageKey = "posh_products_v1"

// Service is the catalog store. It merges, lowest to highest precedence:
// the built-in defaults, the persisted override blob, and any externally
// supplied snapshot applied through ApplySnapshot. Order is deterministic:
// defaults first, then appended ids in insertion order.
type Service struct {
	store storage.Store
	log   *slog.Logger

	mu       sync.RWMutex
	loaded   bool
	products []domain.Product
	index    map[string]int
	degraded bool
}

func NewService(store storage.Store, log *slog.Logger) *Service {
	return &Service{store: store, log: log}
}

// Load materializes the merged catalog. A missing or corrupt persisted blob
// degrades to the defaults rather than failing; the cart must never be
// blocked on catalog state.
func (s *Service) Load(ctx context.Context) ([]domain.Product, error) {
	s.mu.Lock()
	s.ensureLoadedLocked(ctx)
	out := s.copyLocked()
	s.mu.Unlock()
	return out, nil
}

func (s *Service) ensureLoadedLocked(ctx context.Context) {
	if s.loaded {
		return
	}
	s.loaded = true
	s.products = nil
	s.index = make(map[string]int)
	for _, p := range Defaults() {
		s.upsertLocked(p)
	}

	raw, err := s.store.Get(ctx, StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		return
	}
	if err != nil {
		s.warnStorageLocked("catalog read failed", err)
		return
	}

	var saved []domain.Product
	if err := json.Unmarshal(raw, &saved); err != nil {
		s.log.Warn("catalog blob corrupt, using defaults", slog.Any("err", err))
		return
	}
	// Saved entries replace defaults wholesale by id.
	for _, p := range saved {
		if p.ID == "" {
			continue
		}
		s.upsertLocked(p)
	}
}

func (s *Service) upsertLocked(p domain.Product) {
	if i, ok := s.index[p.ID]; ok {
		s.products[i] = p
		return
	}
	s.index[p.ID] = len(s.products)
	s.products = append(s.products, p)
}

func (s *Service) copyLocked() []domain.Product {
	out := make([]domain.Product, len(s.products))
	copy(out, s.products)
	return out
}

// ApplySnapshot merges an externally sourced catalog snapshot (scraped page
// data or a remote endpoint) into the store: existing records are merged
// shallowly by id, new ids are appended. The merged set is persisted.
func (s *Service) ApplySnapshot(ctx context.Context, snap []domain.Product) ([]domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)

	for _, p := range snap {
		if p.ID == "" {
			continue
		}
		if i, ok := s.index[p.ID]; ok {
			s.products[i] = s.products[i].Merge(p)
		} else {
			s.upsertLocked(p)
		}
	}
	s.persistLocked(ctx)
	return s.copyLocked(), nil
}

// AddProduct appends a new product and persists. The id may be omitted, in
// which case it is derived from the title.
func (s *Service) AddProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	p.Title = strings.TrimSpace(p.Title)
	if p.ID == "" {
		p.ID = Slugify(p.Title)
	}
	if p.ID == "" || p.Title == "" {
		return domain.Product{}, ErrInvalidInput
	}
	if p.Price.Amount < 0 {
		return domain.Product{}, ErrInvalidInput
	}
	if p.Stock == "" {
		p.Stock = domain.StatusInStock
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)

	if _, ok := s.index[p.ID]; ok {
		return domain.Product{}, ErrDuplicateID
	}
	s.upsertLocked(p)
	s.persistLocked(ctx)
	return p, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Product{}, ErrInvalidInput
	}

	s.mu.Lock()
	s.ensureLoadedLocked(ctx)
	i, ok := s.index[id]
	var p domain.Product
	if ok {
		p = s.products[i]
	}
	s.mu.Unlock()

	if !ok {
		return domain.Product{}, ErrNotFound
	}
	return p, nil
}

// List returns products whose id, title or category contains the query,
// case-insensitively. An empty query returns everything.
func (s *Service) List(ctx context.Context, query string) ([]domain.Product, error) {
	q := strings.ToLower(strings.TrimSpace(query))

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoadedLocked(ctx)

	if q == "" {
		return s.copyLocked(), nil
	}
	var out []domain.Product
	for _, p := range s.products {
		if strings.Contains(strings.ToLower(p.ID), q) ||
			strings.Contains(strings.ToLower(p.Title), q) ||
			strings.Contains(strings.ToLower(p.Category), q) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Service) persistLocked(ctx context.Context) {
	raw, err := json.Marshal(s.products)
	if err != nil {
		s.warnStorageLocked("catalog marshal failed", err)
		return
	}
	if err := s.store.Set(ctx, StorageKey, raw); err != nil {
		s.warnStorageLocked("catalog write failed", err)
	}
}

// warnStorageLocked logs the first storage failure and then goes quiet; the
// catalog keeps serving from memory.
func (s *Service) warnStorageLocked(msg string, err error) {
	if s.degraded {
		return
	}
	s.degraded = true
	s.log.Warn(msg+", continuing in-memory", slog.Any("err", err))
}
