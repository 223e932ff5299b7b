package domain

import "errors"

// ErrInvalidQuantity rejects non-positive add quantities; a line with
// quantity <= 0 is removed, never stored.
var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// Line is one product-id/quantity pair in the cart.
type Line struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// SnapshotLine is a cart line resolved against the catalog at snapshot time.
type SnapshotLine struct {
	ProductID  string `json:"product_id"`
	Title      string `json:"title"`
	Quantity   int    `json:"quantity"`
	UnitPrice  int64  `json:"unit_price"`
	Currency   string `json:"currency"`
	LineTotal  int64  `json:"line_total"`
	PriceLabel string `json:"price_label"`
}

// Snapshot is an immutable, fully computed view of the cart at a point in
// time. Lines are sorted by product id, so equal carts render identically.
type Snapshot struct {
	Lines     []SnapshotLine `json:"lines"`
	ItemCount int            `json:"item_count"`
	Subtotal  int64          `json:"subtotal"`
	Currency  string         `json:"currency"`
}

// Equal reports structural equality of two snapshots.
func (s Snapshot) Equal(other Snapshot) bool {
	if s.ItemCount != other.ItemCount || s.Subtotal != other.Subtotal || s.Currency != other.Currency {
		return false
	}
	if len(s.Lines) != len(other.Lines) {
		return false
	}
	for i := range s.Lines {
		if s.Lines[i] != other.Lines[i] {
			return false
		}
	}
	return true
}
