package seed

import (
	"context"
	"fmt"

	"campusrunner/internal/domain"
)

// CatalogWriter is the part of the catalog service seeding drives.
type CatalogWriter interface {
	UpsertCategory(ctx context.Context, c domain.Category) (*domain.Category, error)
	UpsertItem(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error)
}

type itemSeed struct {
	Name       string
	PriceCents int64
	Unit       string
}

type categorySeed struct {
	Name  string
	Slug  string
	Items []itemSeed
}

var demoCatalog = []categorySeed{
	{
		Name: "Groceries",
		Slug: "groceries",
		Items: []itemSeed{
			{Name: "Jasmine Rice", PriceCents: 4500, Unit: "5 kg bag"},
			{Name: "Eggs", PriceCents: 250, Unit: "each"},
			{Name: "Fresh Milk", PriceCents: 1800, Unit: "1 L"},
			{Name: "Sliced Bread", PriceCents: 1500, Unit: "loaf"},
		},
	},
	{
		Name: "Snacks & Drinks",
		Slug: "snacks-drinks",
		Items: []itemSeed{
			{Name: "Plantain Chips", PriceCents: 500, Unit: "pack"},
			{Name: "Bottled Water", PriceCents: 300, Unit: "1.5 L"},
			{Name: "Malt Drink", PriceCents: 800, Unit: "can"},
		},
	},
	{
		Name: "Toiletries",
		Slug: "toiletries",
		Items: []itemSeed{
			{Name: "Toothpaste", PriceCents: 1600, Unit: "tube"},
			{Name: "Bath Soap", PriceCents: 700, Unit: "bar"},
			{Name: "Toilet Roll", PriceCents: 2400, Unit: "pack of 4"},
		},
	},
	{
		Name: "Stationery",
		Slug: "stationery",
		Items: []itemSeed{
			{Name: "A4 Notebook", PriceCents: 1200, Unit: "each"},
			{Name: "Ballpoint Pens", PriceCents: 600, Unit: "pack of 5"},
		},
	},
}

// Apply inserts the demo catalog for manual testing. It is idempotent: categories
// upsert on slug and items on category and name.
func Apply(ctx context.Context, catalog CatalogWriter) (int, error) {
	var count int
	for i, cs := range demoCatalog {
		cat, err := catalog.UpsertCategory(ctx, domain.Category{Name: cs.Name, Slug: cs.Slug, SortOrder: i})
		if err != nil {
			return count, fmt.Errorf("upsert category %s: %w", cs.Slug, err)
		}
		for _, is := range cs.Items {
			_, err := catalog.UpsertItem(ctx, domain.CatalogItem{
				CategoryID:     cat.ID,
				Name:           is.Name,
				UnitPriceCents: is.PriceCents,
				UnitLabel:      is.Unit,
				Available:      true,
			})
			if err != nil {
				return count, fmt.Errorf("upsert item %s: %w", is.Name, err)
			}
			count++
		}
	}
	return count, nil
}
