package domain

import "fmt"

type Money struct {
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
}

// Label renders the price the way the storefront shows it, e.g. "₦85,000".
// Unknown currencies fall back to the ISO code as a prefix.
func (m Money) Label() string {
	sym, ok := symbols[m.Currency]
	if !ok {
		sym = m.Currency + " "
	}
	return sym + groupDigits(m.Amount)
}

var symbols = map[string]string{
	"NGN": "₦",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
}

func groupDigits(n int64) string {
	if n < 0 {
		return "-" + groupDigits(-n)
	}
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var out []byte
	lead := len(s) % 3
	if lead > 0 {
		out = append(out, s[:lead]...)
	}
	for i := lead; i < len(s); i += 3 {
		if len(out) > 0 {
			out = append(out, ',')
		}
		out = append(out, s[i:i+3]...)
	}
	return string(out)
}

// Status is the storefront stock label for a product.
type Status string

const (
	StatusInStock    Status = "in_stock"
	StatusPreOrder   Status = "pre_order"
	StatusOutOfStock Status = "out_of_stock"
	StatusContact    Status = "contact"
)

// Product is immutable from the cart's point of view; the catalog replaces
// records wholesale when merging sources.
type Product struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Price       Money  `json:"price"`
	Stock       Status `json:"stock"`
	ImageRef    string `json:"image_ref,omitempty"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// Merge overlays the set fields of other onto p, field by field. Zero values
// in other leave p's field intact, so a partial snapshot scraped from a page
// cannot blank out known data.
func (p Product) Merge(other Product) Product {
	if other.Title != "" {
		p.Title = other.Title
	}
	if other.Price.Amount != 0 {
		p.Price.Amount = other.Price.Amount
	}
	if other.Price.Currency != "" {
		p.Price.Currency = other.Price.Currency
	}
	if other.Stock != "" {
		p.Stock = other.Stock
	}
	if other.ImageRef != "" {
		p.ImageRef = other.ImageRef
	}
	if other.Description != "" {
		p.Description = other.Description
	}
	if other.Category != "" {
		p.Category = other.Category
	}
	return p
}
