package catalog

import (
	"context"

	"campusrunner/internal/domain"
)

// Repository is the catalog lookup collaborator.
type Repository interface {
	Categories(ctx context.Context) ([]domain.Category, error)
	CategoryBySlug(ctx context.Context, slug string) (*domain.Category, error)
	ItemsByCategory(ctx context.Context, categoryID string) ([]domain.CatalogItem, error)
	ItemByID(ctx context.Context, id string) (*domain.CatalogItem, error)
	UpsertCategory(ctx context.Context, c domain.Category) (*domain.Category, error)
	UpsertItem(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error)
}
