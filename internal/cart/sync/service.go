package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/poshpearl/poshcart/internal/cart/app"
	catalogdomain "github.com/poshpearl/poshcart/internal/catalog/domain"
)

// localCart is the slice of the cart store the sync service needs:
// a mutation counter to tell pending edits from confirmed state, and the
// reconcile entry point.
type localCart interface {
	Version() uint64
	ReconcileServer(ctx context.Context, lines map[string]int, prices map[string]catalogdomain.Money, baseVersion uint64)
}

// Service implements app.Syncer. Mutations are mirrored asynchronously;
// failures are reported through the notifier and the local optimistic state
// is left standing, to be reconciled by the next successful fetch. Every
// outbound call carries a send-order sequence stamp and responses arriving
// out of order are discarded, so a slow early response can never overwrite
// a newer one.
type Service struct {
	client *Client
	cart   localCart
	notify app.Notifier
	log    *slog.Logger

	wg sync.WaitGroup

	mu          sync.Mutex
	lineIDs     map[string]string // product id -> server line id
	nextSeq     uint64
	lastApplied uint64
}

func NewService(client *Client, cart localCart, notify app.Notifier, log *slog.Logger) *Service {
	if notify == nil {
		notify = app.NotifierFunc(func(string) {})
	}
	return &Service{
		client:  client,
		cart:    cart,
		notify:  notify,
		log:     log,
		lineIDs: make(map[string]string),
	}
}

// Fetch pulls the authoritative snapshot, typically once at startup.
func (s *Service) Fetch(ctx context.Context) {
	s.dispatch(ctx, "fetch cart", s.cart.Version(), func(ctx context.Context) (ServerSnapshot, error) {
		return s.client.FetchCart(ctx)
	})
}

func (s *Service) AddItem(ctx context.Context, productID string, quantity int, version uint64) {
	s.dispatch(ctx, "add "+productID, version, func(ctx context.Context) (ServerSnapshot, error) {
		return s.client.AddItem(ctx, productID, quantity)
	})
}

func (s *Service) SetQuantity(ctx context.Context, productID string, quantity int, version uint64) {
	s.dispatch(ctx, "update "+productID, version, func(ctx context.Context) (ServerSnapshot, error) {
		lineID, _, err := s.resolveLine(ctx, productID)
		if err != nil {
			return ServerSnapshot{}, err
		}
		if lineID == "" {
			// Never reached the server; creating it with the absolute
			// quantity matches the intended end state.
			return s.client.AddItem(ctx, productID, quantity)
		}
		return s.client.UpdateItem(ctx, lineID, quantity)
	})
}

func (s *Service) RemoveItem(ctx context.Context, productID string, version uint64) {
	s.dispatch(ctx, "remove "+productID, version, func(ctx context.Context) (ServerSnapshot, error) {
		lineID, snap, err := s.resolveLine(ctx, productID)
		if err != nil {
			return ServerSnapshot{}, err
		}
		if lineID == "" {
			// Already absent server-side.
			return snap, nil
		}
		return s.client.RemoveItem(ctx, lineID)
	})
}

func (s *Service) Clear(ctx context.Context, version uint64) {
	s.dispatch(ctx, "clear cart", version, func(ctx context.Context) (ServerSnapshot, error) {
		return s.client.ClearCart(ctx)
	})
}

// Wait blocks until all in-flight mirror calls have finished. Used on
// shutdown and in tests.
func (s *Service) Wait() {
	s.wg.Wait()
}

// dispatch stamps the call with its send-order sequence, then runs it off
// the caller's goroutine so mutations stay responsive. base is the cart
// version the call was issued at. The call is detached from the caller's
// cancellation: a mirror must outlive the request handler that triggered
// it, and in-flight calls are never cancelled, only superseded.
func (s *Service) dispatch(ctx context.Context, op string, base uint64, call func(context.Context) (ServerSnapshot, error)) {
	s.mu.Lock()
	s.nextSeq++
	seq := s.nextSeq
	s.mu.Unlock()
	ctx = context.WithoutCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		snap, err := call(ctx)
		if err != nil {
			s.log.Warn("cart sync failed", slog.String("op", op), slog.Any("err", err))
			s.notify.Notify(fmt.Sprintf("Could not sync cart (%s); your cart is saved on this device.", op))
			return
		}
		s.apply(ctx, snap, seq, base)
	}()
}

// resolveLine maps a product id to the server's line id, refreshing the
// mapping with a fetch when the line is not yet known locally. An empty
// line id with a nil error means the product has no line server-side.
func (s *Service) resolveLine(ctx context.Context, productID string) (string, ServerSnapshot, error) {
	s.mu.Lock()
	id, ok := s.lineIDs[productID]
	s.mu.Unlock()
	if ok {
		return id, ServerSnapshot{}, nil
	}

	snap, err := s.client.FetchCart(ctx)
	if err != nil {
		return "", ServerSnapshot{}, err
	}
	s.rememberLines(snap)
	for _, it := range snap.Items {
		if it.ProductID == productID {
			return it.ID, snap, nil
		}
	}
	return "", snap, nil
}

func (s *Service) rememberLines(snap ServerSnapshot) {
	s.mu.Lock()
	for _, it := range snap.Items {
		s.lineIDs[it.ProductID] = it.ID
	}
	s.mu.Unlock()
}

func (s *Service) apply(ctx context.Context, snap ServerSnapshot, seq, base uint64) {
	s.mu.Lock()
	if seq < s.lastApplied {
		s.mu.Unlock()
		s.log.Debug("dropping stale sync response", slog.Uint64("seq", seq))
		return
	}
	s.lastApplied = seq
	s.lineIDs = make(map[string]string, len(snap.Items))
	for _, it := range snap.Items {
		s.lineIDs[it.ProductID] = it.ID
	}
	s.mu.Unlock()

	lines := make(map[string]int, len(snap.Items))
	prices := make(map[string]catalogdomain.Money, len(snap.Items))
	for _, it := range snap.Items {
		lines[it.ProductID] = it.Quantity
		prices[it.ProductID] = catalogdomain.Money{Currency: it.Currency, Amount: it.UnitPrice}
	}
	s.cart.ReconcileServer(ctx, lines, prices, base)
}
