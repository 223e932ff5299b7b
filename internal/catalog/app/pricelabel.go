package app

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrBadPriceLabel = errors.New("unparseable price label")

// ParsePriceLabel converts a formatted storefront label such as "₦85,000" or
// "NGN 8,900.00" into whole minor units. Labels without any digits (e.g.
// "Request price") are an error, not zero, so callers can tell "free" from
// "unpriced".
func ParsePriceLabel(label string) (int64, error) {
	var b strings.Builder
	for _, r := range label {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, ErrBadPriceLabel
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, ErrBadPriceLabel
	}
	return d.Round(0).IntPart(), nil
}

// Slugify derives a product id from a title the same way the storefront
// does: lowercase, runs of non-alphanumerics collapsed to single hyphens.
func Slugify(s string) string {
	var b strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
