package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"campusrunner/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

// SaveCart replaces the stored cart with c. Lines are rewritten wholesale so the
// stored order always matches the in-memory order.
func (r *postgresRepo) SaveCart(ctx context.Context, c domain.Cart) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
INSERT INTO carts (requester_id, delivery_address, special_instructions, subtotal_cents, delivery_fee_cents, service_fee_cents, total_cents, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (requester_id) DO UPDATE
SET delivery_address = EXCLUDED.delivery_address,
    special_instructions = EXCLUDED.special_instructions,
    subtotal_cents = EXCLUDED.subtotal_cents,
    delivery_fee_cents = EXCLUDED.delivery_fee_cents,
    service_fee_cents = EXCLUDED.service_fee_cents,
    total_cents = EXCLUDED.total_cents,
    updated_at = EXCLUDED.updated_at
`, c.RequesterID, c.DeliveryAddress, c.SpecialInstructions,
		c.Totals.SubtotalCents, c.Totals.DeliveryFeeCents, c.Totals.ServiceFeeCents, c.Totals.TotalCents,
		c.UpdatedAt); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM cart_lines WHERE requester_id = $1`, c.RequesterID); err != nil {
		return err
	}

	if len(c.Lines) > 0 {
		batch := &pgx.Batch{}
		for i, l := range c.Lines {
			snapshot, catalogID, err := lineSnapshot(l)
			if err != nil {
				return err
			}
			batch.Queue(`
INSERT INTO cart_lines (id, requester_id, position, kind, catalog_item_id, snapshot, quantity, notes, added_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`, l.ID, c.RequesterID, i, string(l.Kind()), catalogID, snapshot, l.Quantity, l.Notes, l.AddedAt)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *postgresRepo) GetByRequester(ctx context.Context, requesterID string) (*domain.Cart, error) {
	var c domain.Cart
	err := r.pool.QueryRow(ctx, `
SELECT requester_id, delivery_address, special_instructions, subtotal_cents, delivery_fee_cents, service_fee_cents, total_cents, updated_at
FROM carts
WHERE requester_id = $1
`, requesterID).Scan(
		&c.RequesterID,
		&c.DeliveryAddress,
		&c.SpecialInstructions,
		&c.Totals.SubtotalCents,
		&c.Totals.DeliveryFeeCents,
		&c.Totals.ServiceFeeCents,
		&c.Totals.TotalCents,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, kind, snapshot, quantity, notes, added_at
FROM cart_lines
WHERE requester_id = $1
ORDER BY position ASC
`, requesterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	c.Lines = []domain.LineItem{}
	for rows.Next() {
		var (
			l        domain.LineItem
			kind     string
			snapshot []byte
		)
		if err := rows.Scan(&l.ID, &kind, &snapshot, &l.Quantity, &l.Notes, &l.AddedAt); err != nil {
			return nil, err
		}
		if err := restoreSnapshot(&l, domain.LineKind(kind), snapshot); err != nil {
			return nil, fmt.Errorf("cart line %s: %w", l.ID, err)
		}
		c.Lines = append(c.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *postgresRepo) Delete(ctx context.Context, requesterID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM carts WHERE requester_id = $1`, requesterID)
	return err
}

func lineSnapshot(l domain.LineItem) ([]byte, *string, error) {
	if l.Catalog != nil {
		raw, err := json.Marshal(l.Catalog)
		id := l.Catalog.ID
		return raw, &id, err
	}
	raw, err := json.Marshal(l.Custom)
	return raw, nil, err
}

func restoreSnapshot(l *domain.LineItem, kind domain.LineKind, raw []byte) error {
	switch kind {
	case domain.LineKindCatalog:
		var item domain.CatalogItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return err
		}
		l.Catalog = &item
	case domain.LineKindCustom:
		var item domain.CustomItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return err
		}
		l.Custom = &item
	default:
		return fmt.Errorf("unknown line kind %q", kind)
	}
	return nil
}
