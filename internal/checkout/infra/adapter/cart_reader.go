package adapter

import (
	"context"

	cartapp "github.com/poshpearl/poshcart/internal/cart/app"
	checkoutapp "github.com/poshpearl/poshcart/internal/checkout/app"
)

type CartStoreReader struct {
	svc *cartapp.Service
}

func NewCartStoreReader(svc *cartapp.Service) *CartStoreReader {
	return &CartStoreReader{svc: svc}
}

func (r *CartStoreReader) GetCart(ctx context.Context) ([]checkoutapp.CartItem, error) {
	lines := r.svc.Lines(ctx)
	items := make([]checkoutapp.CartItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, checkoutapp.CartItem{
			ProductID: l.ProductID,
			Quantity:  int64(l.Quantity),
		})
	}
	return items, nil
}
