package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MelihSuissefocus/Depotix/internal/platform/db"
	"github.com/MelihSuissefocus/Depotix/internal/shared"
)

// Repository is the orders persistence port.
type Repository interface {
	Insert(ctx context.Context, o *Order) error
	Get(ctx context.Context, ownerID, orderID int64) (Order, error)
	List(ctx context.Context, ownerID int64, status Status) ([]Order, error)
	UpdateStatus(ctx context.Context, ownerID, orderID int64, from, to Status) error
	Delete(ctx context.Context, ownerID, orderID int64) error
}

// PGRepository is the PostgreSQL-backed orders repository.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Insert stores the order and its lines in one transaction and assigns the
// order number from the yearly sequence.
func (r *PGRepository) Insert(ctx context.Context, o *Order) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var seq int64
		if err := tx.QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
			return fmt.Errorf("orders: next number: %w", err)
		}
		o.Number = fmt.Sprintf("LS-%d-%04d", time.Now().Year(), seq)
		o.Status = StatusDraft

		err := tx.QueryRow(ctx, `
			INSERT INTO sales_orders (owner_id, number, customer_id, status, delivery_date, notes, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at, updated_at`,
			o.OwnerID, o.Number, o.CustomerID, o.Status, o.DeliveryDate, o.Notes, o.CreatedBy).
			Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("orders: insert order: %w", err)
		}

		for i := range o.Lines {
			line := &o.Lines[i]
			line.OrderID = o.ID
			err := tx.QueryRow(ctx, `
				INSERT INTO sales_order_lines (order_id, item_id, qty_packages)
				VALUES ($1, $2, $3)
				RETURNING id`,
				line.OrderID, line.ItemID, line.QtyPackages).Scan(&line.ID)
			if err != nil {
				return fmt.Errorf("orders: insert line: %w", err)
			}
		}
		return nil
	})
}

const orderColumns = `id, owner_id, number, customer_id, status, delivery_date, notes, created_by, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OwnerID, &o.Number, &o.CustomerID, &o.Status, &o.DeliveryDate, &o.Notes, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, shared.ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("orders: scan order: %w", err)
	}
	return o, nil
}

// Get fetches one order with its lines. ownerID 0 disables owner scoping.
func (r *PGRepository) Get(ctx context.Context, ownerID, orderID int64) (Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM sales_orders WHERE id = $1 AND ($2 = 0 OR owner_id = $2)`,
		orderID, ownerID))
	if err != nil {
		return Order{}, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, item_id, qty_packages FROM sales_order_lines WHERE order_id = $1 ORDER BY id`,
		o.ID)
	if err != nil {
		return Order{}, fmt.Errorf("orders: list lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ItemID, &l.QtyPackages); err != nil {
			return Order{}, fmt.Errorf("orders: scan line: %w", err)
		}
		o.Lines = append(o.Lines, l)
	}
	return o, rows.Err()
}

// List returns the owner's orders newest first, optionally filtered by status.
func (r *PGRepository) List(ctx context.Context, ownerID int64, status Status) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM sales_orders
		WHERE ($1 = 0 OR owner_id = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id DESC`,
		ownerID, string(status))
	if err != nil {
		return nil, fmt.Errorf("orders: list: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// UpdateStatus moves an order from one status to another. The expected
// current status is part of the predicate so concurrent transitions lose
// cleanly instead of double-applying.
func (r *PGRepository) UpdateStatus(ctx context.Context, ownerID, orderID int64, from, to Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sales_orders
		SET status = $4, updated_at = NOW()
		WHERE id = $1 AND ($2 = 0 OR owner_id = $2) AND status = $3`,
		orderID, ownerID, from, to)
	if err != nil {
		return fmt.Errorf("orders: update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidTransition
	}
	return nil
}

// Delete removes the order and its lines.
func (r *PGRepository) Delete(ctx context.Context, ownerID, orderID int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM sales_order_lines WHERE order_id = $1`, orderID); err != nil {
			return fmt.Errorf("orders: delete lines: %w", err)
		}
		tag, err := tx.Exec(ctx,
			`DELETE FROM sales_orders WHERE id = $1 AND ($2 = 0 OR owner_id = $2)`,
			orderID, ownerID)
		if err != nil {
			return fmt.Errorf("orders: delete order: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}
