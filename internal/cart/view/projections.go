// Package view holds the stateless cart projections: the badge counter, the
// drawer list and the full-page itemized view. Projections never mutate the
// store; they re-render from each snapshot the store hands them, and
// rendering the same snapshot twice produces identical output.
package view

import (
	"fmt"
	"strings"
	"sync"

	"github.com/poshpearl/poshcart/internal/cart/domain"
	catalogdomain "github.com/poshpearl/poshcart/internal/catalog/domain"
)

// Projection is a named renderer that also satisfies the store's Subscriber
// interface, caching its latest render.
type Projection struct {
	name   string
	render func(domain.Snapshot) string

	mu   sync.Mutex
	last string
}

func (p *Projection) Name() string { return p.name }

func (p *Projection) CartChanged(snap domain.Snapshot) {
	out := p.render(snap)
	p.mu.Lock()
	p.last = out
	p.mu.Unlock()
}

// Render computes the view for a snapshot without touching the cache.
func (p *Projection) Render(snap domain.Snapshot) string { return p.render(snap) }

// Last returns the most recent render, or "" before the first notification.
func (p *Projection) Last() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Badge renders the numeric item counter shown next to the cart icon.
func Badge() *Projection {
	return &Projection{
		name: "badge",
		render: func(snap domain.Snapshot) string {
			return fmt.Sprintf("%d", snap.ItemCount)
		},
	}
}

// Drawer renders the slide-out cart list: one row per line with its
// quantity and price label.
func Drawer() *Projection {
	return &Projection{
		name: "drawer",
		render: func(snap domain.Snapshot) string {
			if len(snap.Lines) == 0 {
				return "Your cart is empty\n"
			}
			var b strings.Builder
			for _, l := range snap.Lines {
				fmt.Fprintf(&b, "%s  x%d  %s\n", l.Title, l.Quantity, l.PriceLabel)
			}
			fmt.Fprintf(&b, "Subtotal: %s\n", moneyLabel(snap.Currency, snap.Subtotal))
			return b.String()
		},
	}
}

// Page renders the full cart page with per-line totals.
func Page() *Projection {
	return &Projection{
		name: "page",
		render: func(snap domain.Snapshot) string {
			var b strings.Builder
			fmt.Fprintf(&b, "Cart (%d items)\n", snap.ItemCount)
			for _, l := range snap.Lines {
				fmt.Fprintf(&b, "%-40s %3d x %10s = %s\n",
					l.Title, l.Quantity, l.PriceLabel, moneyLabel(l.Currency, l.LineTotal))
			}
			fmt.Fprintf(&b, "Total: %s\n", moneyLabel(snap.Currency, snap.Subtotal))
			return b.String()
		},
	}
}

func moneyLabel(currency string, amount int64) string {
	return catalogdomain.Money{Currency: currency, Amount: amount}.Label()
}
