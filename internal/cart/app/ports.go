package app

import (
	"context"

	"github.com/poshpearl/poshcart/internal/cart/domain"
	catalogdomain "github.com/poshpearl/poshcart/internal/catalog/domain"
)

// CatalogReader resolves unit prices and titles when a snapshot is computed.
type CatalogReader interface {
	Get(ctx context.Context, id string) (catalogdomain.Product, error)
}

// Subscriber is handed a fresh snapshot after every committed mutation.
// Projections implement this; they must not mutate the store from inside
// the callback.
type Subscriber interface {
	CartChanged(snap domain.Snapshot)
}

// Syncer mirrors committed mutations to a remote cart backend. Calls must
// not block and must not return errors to the store: sync failures are
// surfaced through the Notifier and the local optimistic state stands.
// version is the store version the mutation committed at; responses are
// reconciled against it so a snapshot can never clobber a later edit.
type Syncer interface {
	AddItem(ctx context.Context, productID string, quantity int, version uint64)
	SetQuantity(ctx context.Context, productID string, quantity int, version uint64)
	RemoveItem(ctx context.Context, productID string, version uint64)
	Clear(ctx context.Context, version uint64)
}

// Notifier surfaces non-blocking failures to the user, the toast analogue.
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(msg string)

func (f NotifierFunc) Notify(msg string) { f(msg) }
