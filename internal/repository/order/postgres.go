package order

import (
	"context"
	"errors"
	"fmt"

	"campusrunner/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// adminListLimit bounds the unfiltered admin listing.
const adminListLimit = 200

type postgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) Repository {
	return &postgresRepo{pool: pool}
}

const orderColumns = `
id::text, number, requester_id, fulfiller_id,
subtotal_cents, delivery_fee_cents, service_fee_cents, total_cents,
delivery_address, hall, room, phone, special_instructions, payment_method, status,
created_at, updated_at, accepted_at, shopping_at, delivering_at, completed_at, cancelled_at`

// statusColumns maps each entered status to the timestamp column it stamps.
var statusColumns = map[domain.OrderStatus]string{
	domain.StatusAccepted:   "accepted_at",
	domain.StatusShopping:   "shopping_at",
	domain.StatusDelivering: "delivering_at",
	domain.StatusCompleted:  "completed_at",
	domain.StatusCancelled:  "cancelled_at",
}

func (r *postgresRepo) CreateOrder(ctx context.Context, o domain.Order) (domain.OrderRef, error) {
	const q = `
INSERT INTO orders (
	number, requester_id,
	subtotal_cents, delivery_fee_cents, service_fee_cents, total_cents,
	delivery_address, hall, room, phone, special_instructions, payment_method, status,
	created_at, updated_at
)
VALUES ('CR-' || lpad(nextval('order_number_seq')::text, 6, '0'), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
RETURNING id::text, number
`
	var ref domain.OrderRef
	err := r.pool.QueryRow(ctx, q,
		o.RequesterID,
		o.Totals.SubtotalCents, o.Totals.DeliveryFeeCents, o.Totals.ServiceFeeCents, o.Totals.TotalCents,
		o.Delivery.Address, o.Delivery.Hall, o.Delivery.Room, o.Delivery.Phone,
		o.SpecialInstructions, string(o.PaymentMethod), string(o.Status),
		o.CreatedAt,
	).Scan(&ref.ID, &ref.Number)
	if err != nil {
		return domain.OrderRef{}, err
	}
	return ref, nil
}

// AddOrderItems attaches all items in one transaction; either every item lands or none.
func (r *postgresRepo) AddOrderItems(ctx context.Context, orderID string, items []domain.OrderItem) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for i, it := range items {
		batch.Queue(`
INSERT INTO order_items (id, order_id, position, catalog_item_id, name, custom, unit_price_cents, quantity, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`, it.ID, orderID, i, it.CatalogItemID, it.Name, it.Custom, it.UnitPriceCents, it.Quantity, it.Notes)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	orders, err := r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, domain.ErrNotFound
	}
	return &orders[0], nil
}

// ListForActor returns a requester's own orders, a fulfiller's active orders (not
// completed or cancelled), or the most recent orders for an admin. Newest first.
func (r *postgresRepo) ListForActor(ctx context.Context, actor domain.User) ([]domain.Order, error) {
	switch actor.Role {
	case domain.RoleRequester:
		return r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE requester_id = $1 ORDER BY created_at DESC`, actor.ID)
	case domain.RoleFulfiller:
		return r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders WHERE fulfiller_id = $1 AND status NOT IN ('completed', 'cancelled') ORDER BY updated_at DESC`, actor.ID)
	case domain.RoleAdmin:
		return r.queryOrders(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT $1`, adminListLimit)
	default:
		return nil, domain.ErrForbidden
	}
}

// ListAvailable returns pending orders no fulfiller has claimed, oldest first.
func (r *postgresRepo) ListAvailable(ctx context.Context) ([]domain.Order, error) {
	return r.queryOrders(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE status = 'pending' AND fulfiller_id IS NULL
ORDER BY created_at ASC
`)
}

// UpdateStatus applies change only while the stored status still equals change.From.
// Acceptance additionally requires that no fulfiller is bound yet.
func (r *postgresRepo) UpdateStatus(ctx context.Context, change domain.StatusChange) (bool, error) {
	column, ok := statusColumns[change.To]
	if !ok {
		return false, fmt.Errorf("no timestamp column for status %q", change.To)
	}
	if _, err := uuid.Parse(change.OrderID); err != nil {
		return false, domain.ErrNotFound
	}

	var (
		q    string
		args []any
	)
	if change.To == domain.StatusAccepted {
		if change.FulfillerID == nil {
			return false, errors.New("accepting an order requires a fulfiller")
		}
		q = fmt.Sprintf(`
UPDATE orders
SET status = $1, updated_at = $2, %s = $2, fulfiller_id = $5
WHERE id = $3 AND status = $4 AND fulfiller_id IS NULL
`, column)
		args = []any{string(change.To), change.At, change.OrderID, string(change.From), *change.FulfillerID}
	} else {
		q = fmt.Sprintf(`
UPDATE orders
SET status = $1, updated_at = $2, %s = $2
WHERE id = $3 AND status = $4
`, column)
		args = []any{string(change.To), change.At, change.OrderID, string(change.From)}
	}

	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// AnnotateItem records the actual price and fulfilled flag, only while the order is
// being shopped by the given fulfiller.
func (r *postgresRepo) AnnotateItem(ctx context.Context, a ItemAnnotation) (bool, error) {
	if _, err := uuid.Parse(a.OrderID); err != nil {
		return false, domain.ErrNotFound
	}
	const q = `
UPDATE order_items AS oi
SET actual_price_cents = $1, fulfilled = $2
FROM orders AS o
WHERE oi.id = $3
  AND oi.order_id = $4
  AND o.id = oi.order_id
  AND o.status = 'shopping'
  AND o.fulfiller_id = $5
`
	tag, err := r.pool.Exec(ctx, q, a.ActualPriceCents, a.Fulfilled, a.ItemID, a.OrderID, a.FulfillerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *postgresRepo) queryOrders(ctx context.Context, q string, args ...any) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []domain.Order{}
	index := map[string]int{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		index[o.ID] = len(orders)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	itemRows, err := r.pool.Query(ctx, `
SELECT id, order_id::text, catalog_item_id, name, custom, unit_price_cents, quantity, notes, actual_price_cents, fulfilled
FROM order_items
WHERE order_id = ANY($1::uuid[])
ORDER BY order_id, position ASC
`, ids)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var it domain.OrderItem
		if err := itemRows.Scan(
			&it.ID,
			&it.OrderID,
			&it.CatalogItemID,
			&it.Name,
			&it.Custom,
			&it.UnitPriceCents,
			&it.Quantity,
			&it.Notes,
			&it.ActualPriceCents,
			&it.Fulfilled,
		); err != nil {
			return nil, err
		}
		if i, ok := index[it.OrderID]; ok {
			orders[i].Items = append(orders[i].Items, it)
		}
	}
	return orders, itemRows.Err()
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o      domain.Order
		method string
		status string
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.RequesterID, &o.FulfillerID,
		&o.Totals.SubtotalCents, &o.Totals.DeliveryFeeCents, &o.Totals.ServiceFeeCents, &o.Totals.TotalCents,
		&o.Delivery.Address, &o.Delivery.Hall, &o.Delivery.Room, &o.Delivery.Phone,
		&o.SpecialInstructions, &method, &status,
		&o.CreatedAt, &o.UpdatedAt, &o.AcceptedAt, &o.ShoppingAt, &o.DeliveringAt, &o.CompletedAt, &o.CancelledAt,
	)
	if err != nil {
		return domain.Order{}, err
	}
	o.PaymentMethod = domain.PaymentMethod(method)
	o.Status = domain.OrderStatus(status)
	o.Items = []domain.OrderItem{}
	return o, nil
}
