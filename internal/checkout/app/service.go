package app

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/poshpearl/poshcart/internal/checkout/domain"
	catalogdomain "github.com/poshpearl/poshcart/internal/catalog/domain"
	"golang.org/x/sync/errgroup"
)

type CartReader interface {
	GetCart(ctx context.Context) ([]CartItem, error)
}

type CartItem struct {
	ProductID string
	Quantity  int64
}

type CatalogReader interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
}

type Product struct {
	ID       string
	Name     string
	Currency string
	Amount   int64
}

var ErrEmptyCart = errors.New("cart is empty")

type Service struct {
	Cart    CartReader
	Catalog CatalogReader

	phone         string
	maxConcurrent int
}

// NewService wires the checkout over the cart and catalog readers. phone is
// the wa.me destination for the order handoff.
func NewService(cart CartReader, catalog CatalogReader, phone string, maxConcurrent int) *Service {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &Service{
		Cart:          cart,
		Catalog:       catalog,
		phone:         phone,
		maxConcurrent: maxConcurrent,
	}
}

// Quote prices every cart line against the catalog, fanning the lookups out
// with bounded concurrency.
func (s *Service) Quote(ctx context.Context) (domain.Quote, error) {
	items, err := s.Cart.GetCart(ctx)
	if err != nil {
		return domain.Quote{}, err
	}
	if len(items) == 0 {
		return domain.Quote{}, ErrEmptyCart
	}

	lines := make([]domain.QuoteLine, len(items))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrent)

	for idx := range items {
		idx := idx
		g.Go(func() error {
			it := items[idx]
			if it.Quantity <= 0 {
				return fmt.Errorf("quantity must be greater than zero: %d", it.Quantity)
			}

			product, err := s.Catalog.GetProduct(ctx, it.ProductID)
			if err != nil {
				return fmt.Errorf("failed to get product %s: %w", it.ProductID, err)
			}

			lines[idx] = domain.QuoteLine{
				ProductID: product.ID,
				Name:      product.Name,
				Quantity:  it.Quantity,
				UnitPrice: domain.Money{Currency: product.Currency, Amount: product.Amount},
				LineTotal: domain.Money{Currency: product.Currency, Amount: product.Amount * it.Quantity},
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Quote{}, err
	}

	var total int64
	for _, line := range lines {
		total += line.LineTotal.Amount
	}
	return domain.Quote{
		Lines: lines,
		Total: domain.Money{Currency: lines[0].LineTotal.Currency, Amount: total},
	}, nil
}

// Summary composes the order handoff for the current cart.
func (s *Service) Summary(ctx context.Context) (domain.OrderMessage, error) {
	quote, err := s.Quote(ctx)
	if err != nil {
		return domain.OrderMessage{}, err
	}
	text := FormatOrderSummary(quote)
	return domain.OrderMessage{
		Text:        text,
		WhatsAppURL: WhatsAppLink(s.phone, text),
	}, nil
}

// FormatOrderSummary renders a quote the way the storefront's checkout
// message reads: one "- Name x qty (label)" row per line plus the total.
func FormatOrderSummary(q domain.Quote) string {
	var b strings.Builder
	b.WriteString("Hello, I'd like to order:\n")
	for _, line := range q.Lines {
		label := catalogdomain.Money{Currency: line.UnitPrice.Currency, Amount: line.UnitPrice.Amount}.Label()
		fmt.Fprintf(&b, "- %s x %d (%s)\n", line.Name, line.Quantity, label)
	}
	total := catalogdomain.Money{Currency: q.Total.Currency, Amount: q.Total.Amount}.Label()
	fmt.Fprintf(&b, "Total: %s", total)
	return b.String()
}

// WhatsAppLink builds the prefilled wa.me message URL.
func WhatsAppLink(phone, text string) string {
	return "https://wa.me/" + phone + "?text=" + url.QueryEscape(text)
}
