package catalog

import (
	"context"
	"errors"
	"strings"

	"campusrunner/internal/domain"
	catalogrepo "campusrunner/internal/repository/catalog"
)

type Service struct {
	repo catalogrepo.Repository
}

func New(repo catalogrepo.Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Categories(ctx context.Context) ([]domain.Category, error) {
	return s.repo.Categories(ctx)
}

func (s *Service) ItemsByCategory(ctx context.Context, categoryID string) ([]domain.CatalogItem, error) {
	return s.repo.ItemsByCategory(ctx, categoryID)
}

func (s *Service) Item(ctx context.Context, id string) (*domain.CatalogItem, error) {
	return s.repo.ItemByID(ctx, id)
}

// ItemByID satisfies the cart session's item lookup.
func (s *Service) ItemByID(ctx context.Context, id string) (*domain.CatalogItem, error) {
	return s.repo.ItemByID(ctx, id)
}

func (s *Service) UpsertCategory(ctx context.Context, c domain.Category) (*domain.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Slug = strings.TrimSpace(c.Slug)
	if c.Name == "" {
		return nil, domain.NewValidationError("name", "name required")
	}
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	return s.repo.UpsertCategory(ctx, c)
}

func (s *Service) UpsertItem(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error) {
	item.Name = strings.TrimSpace(item.Name)
	verr := &domain.ValidationError{}
	if item.Name == "" {
		verr.Add("name", "name required")
	}
	if item.UnitPriceCents < 0 {
		verr.Add("unitPriceCents", "price must not be negative")
	}
	if strings.TrimSpace(item.CategoryID) == "" {
		verr.Add("categoryId", "category required")
	}
	if !verr.Empty() {
		return nil, verr
	}
	return s.repo.UpsertItem(ctx, item)
}

// EnsureCategory resolves a category by the slug of name, creating it when missing.
func (s *Service) EnsureCategory(ctx context.Context, name string) (*domain.Category, error) {
	slug := Slugify(name)
	c, err := s.repo.CategoryBySlug(ctx, slug)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return s.UpsertCategory(ctx, domain.Category{Name: name, Slug: slug})
}

// Slugify lowercases name and joins its alphanumeric runs with dashes.
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
