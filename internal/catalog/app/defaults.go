package app

import "github.com/poshpearl/poshcart/internal/catalog/domain"

// Defaults is the built-in seed catalog, the lowest-precedence merge source.
// Persisted overrides and page snapshots layer on top of it by id.
func Defaults() []domain.Product {
	return []domain.Product{
		{
			ID:          "mode-classic",
			Title:       "Mode Smart Lock — Classic",
			Price:       domain.Money{Currency: "NGN", Amount: 85000},
			Stock:       domain.StatusInStock,
			ImageRef:    "assets/placeholder-1.svg",
			Description: "Refined hardware, Bluetooth & optional Wi-Fi bridge.",
			Category:    "locks",
		},
		{
			ID:          "mode-modern",
			Title:       "Mode Smart Lock — Modern",
			Price:       domain.Money{Currency: "NGN", Amount: 95000},
			Stock:       domain.StatusPreOrder,
			ImageRef:    "assets/placeholder-2.svg",
			Description: "Thin profile for flush doors, guest codes and activity logs.",
			Category:    "locks",
		},
		{
			ID:          "outdoor-keypad",
			Title:       "Outdoor Keypad",
			Price:       domain.Money{Currency: "NGN", Amount: 8900},
			Stock:       domain.StatusInStock,
			ImageRef:    "assets/placeholder-3.svg",
			Description: "Weatherproof keypad for guest codes and one-time pins.",
			Category:    "accessories",
		},
		{
			ID:          "battery-pack",
			Title:       "Battery Pack — 4x AA",
			Price:       domain.Money{Currency: "NGN", Amount: 1200},
			Stock:       domain.StatusInStock,
			ImageRef:    "assets/placeholder-1.svg",
			Description: "Long-life alkaline batteries and low-battery alerts.",
			Category:    "accessories",
		},
	}
}
