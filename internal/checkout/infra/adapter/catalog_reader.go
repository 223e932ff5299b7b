package adapter

import (
	"context"

	catalogapp "github.com/poshpearl/poshcart/internal/catalog/app"
	checkoutapp "github.com/poshpearl/poshcart/internal/checkout/app"
)

type CatalogStoreReader struct {
	svc *catalogapp.Service
}

func NewCatalogStoreReader(svc *catalogapp.Service) *CatalogStoreReader {
	return &CatalogStoreReader{svc: svc}
}

func (r *CatalogStoreReader) GetProduct(ctx context.Context, productID string) (checkoutapp.Product, error) {
	p, err := r.svc.Get(ctx, productID)
	if err != nil {
		return checkoutapp.Product{}, err
	}
	return checkoutapp.Product{
		ID:       p.ID,
		Name:     p.Title,
		Currency: p.Price.Currency,
		Amount:   p.Price.Amount,
	}, nil
}
