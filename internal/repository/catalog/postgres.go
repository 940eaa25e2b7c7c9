package catalog

import (
	"context"
	"errors"

	"campusrunner/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

const itemColumns = `id::text, category_id::text, name, unit_price_cents, unit_label, available, created_at`

func (r *postgresRepo) Categories(ctx context.Context) ([]domain.Category, error) {
	const q = `
SELECT id::text, name, slug, sort_order, created_at
FROM categories
ORDER BY sort_order ASC, name ASC
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.SortOrder, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *postgresRepo) CategoryBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	const q = `
SELECT id::text, name, slug, sort_order, created_at
FROM categories
WHERE slug = $1
`
	var c domain.Category
	if err := r.pool.QueryRow(ctx, q, slug).Scan(&c.ID, &c.Name, &c.Slug, &c.SortOrder, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *postgresRepo) ItemsByCategory(ctx context.Context, categoryID string) ([]domain.CatalogItem, error) {
	if _, err := uuid.Parse(categoryID); err != nil {
		return nil, domain.ErrNotFound
	}
	q := `
SELECT ` + itemColumns + `
FROM catalog_items
WHERE category_id = $1
ORDER BY name ASC
`
	rows, err := r.pool.Query(ctx, q, categoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CatalogItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *postgresRepo) ItemByID(ctx context.Context, id string) (*domain.CatalogItem, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	q := `SELECT ` + itemColumns + ` FROM catalog_items WHERE id = $1`
	item, err := scanItem(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// UpsertCategory inserts or updates by slug.
func (r *postgresRepo) UpsertCategory(ctx context.Context, c domain.Category) (*domain.Category, error) {
	const q = `
INSERT INTO categories (name, slug, sort_order)
VALUES ($1, $2, $3)
ON CONFLICT (slug) DO UPDATE
SET name = EXCLUDED.name,
    sort_order = EXCLUDED.sort_order
RETURNING id::text, name, slug, sort_order, created_at
`
	var out domain.Category
	if err := r.pool.QueryRow(ctx, q, c.Name, c.Slug, c.SortOrder).Scan(
		&out.ID, &out.Name, &out.Slug, &out.SortOrder, &out.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpsertItem inserts or updates by (category, name).
func (r *postgresRepo) UpsertItem(ctx context.Context, item domain.CatalogItem) (*domain.CatalogItem, error) {
	q := `
INSERT INTO catalog_items (category_id, name, unit_price_cents, unit_label, available)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (category_id, name) DO UPDATE
SET unit_price_cents = EXCLUDED.unit_price_cents,
    unit_label = EXCLUDED.unit_label,
    available = EXCLUDED.available
RETURNING ` + itemColumns
	out, err := scanItem(r.pool.QueryRow(ctx, q, item.CategoryID, item.Name, item.UnitPriceCents, item.UnitLabel, item.Available))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func scanItem(row pgx.Row) (domain.CatalogItem, error) {
	var it domain.CatalogItem
	err := row.Scan(&it.ID, &it.CategoryID, &it.Name, &it.UnitPriceCents, &it.UnitLabel, &it.Available, &it.CreatedAt)
	return it, err
}
