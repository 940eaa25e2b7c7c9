package domain

import "time"

type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug,omitempty"`
	SortOrder int       `json:"sortOrder"`
	CreatedAt time.Time `json:"createdAt"`
}

// CatalogItem is a predefined purchasable item with a fixed price.
type CatalogItem struct {
	ID             string    `json:"id"`
	CategoryID     string    `json:"categoryId"`
	Name           string    `json:"name"`
	UnitPriceCents int64     `json:"unitPriceCents"`
	UnitLabel      string    `json:"unitLabel,omitempty"`
	Available      bool      `json:"available"`
	CreatedAt      time.Time `json:"createdAt"`
}
