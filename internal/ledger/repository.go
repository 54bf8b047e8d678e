package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MelihSuissefocus/Depotix/internal/platform/db"
)

// rowQuerier is the slice of pgx shared by *pgxpool.Pool and pgx.Tx that the
// single-row helpers need.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGRepository is the PostgreSQL-backed ledger repository.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// WithTx runs fn in a RepeatableRead transaction, retrying once on a
// serialization failure or deadlock.
func (r *PGRepository) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	run := func() error {
		return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
			return fn(ctx, &pgTxRepository{tx: tx})
		})
	}
	err := run()
	if err != nil && db.IsRetryable(err) {
		err = run()
	}
	return err
}

const itemColumns = `id, owner_id, name, sku, palette_count, package_count, defective_count, packages_per_pallet, units_per_package, min_stock_level`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.OwnerID, &it.Name, &it.SKU, &it.PaletteCount, &it.PackageCount, &it.DefectiveCount, &it.PackagesPerPallet, &it.UnitsPerPackage, &it.MinStockLevel)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("ledger: scan item: %w", err)
	}
	return it, nil
}

func getItem(ctx context.Context, q rowQuerier, ownerID, itemID int64, forUpdate bool) (Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = $1 AND ($2 = 0 OR owner_id = $2)`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return scanItem(q.QueryRow(ctx, query, itemID, ownerID))
}

// GetItem fetches an item without locking. ownerID 0 disables owner scoping
// (staff access).
func (r *PGRepository) GetItem(ctx context.Context, ownerID, itemID int64) (Item, error) {
	return getItem(ctx, r.pool, ownerID, itemID, false)
}

const movementColumns = `id, item_id, type, unit, qty, packages_per_pallet, purchase_price, idempotency_key, supplier_id, customer_id, order_id, note, created_by, movement_ts, created_at`

func scanMovement(row pgx.Row) (Movement, error) {
	var m Movement
	err := row.Scan(&m.ID, &m.ItemID, &m.Type, &m.Unit, &m.Quantity, &m.PackagesPerPallet, &m.PurchasePrice, &m.IdempotencyKey, &m.SupplierID, &m.CustomerID, &m.OrderID, &m.Note, &m.CreatedBy, &m.MovementTimestamp, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Movement{}, ErrMovementNotFound
	}
	if err != nil {
		return Movement{}, fmt.Errorf("ledger: scan movement: %w", err)
	}
	return m, nil
}

func getMovementByKey(ctx context.Context, q rowQuerier, ownerID int64, key string) (Movement, error) {
	return scanMovement(q.QueryRow(ctx, `
		SELECT `+qualify(movementColumns, "m")+`
		FROM stock_movements m
		JOIN items i ON i.id = m.item_id
		WHERE m.idempotency_key = $1 AND ($2 = 0 OR i.owner_id = $2)`,
		key, ownerID))
}

// GetMovementByKey fetches a movement by its idempotency key within the
// owner's scope. ownerID 0 disables owner scoping (staff access).
func (r *PGRepository) GetMovementByKey(ctx context.Context, ownerID int64, key string) (Movement, error) {
	return getMovementByKey(ctx, r.pool, ownerID, key)
}

// ListMovements lists movements newest first.
func (r *PGRepository) ListMovements(ctx context.Context, f MovementFilter) ([]Movement, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+qualify(movementColumns, "m")+`
		FROM stock_movements m
		JOIN items i ON i.id = m.item_id
		WHERE ($1 = 0 OR i.owner_id = $1)
		  AND ($2 = 0 OR m.item_id = $2)
		  AND ($3 = '' OR m.type = $3)
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $4`,
		f.OwnerID, f.ItemID, string(f.Type), f.Limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: list movements: %w", err)
	}
	defer rows.Close()
	return collectMovements(rows)
}

// ListLowStock lists active items at or below their reorder level.
func (r *PGRepository) ListLowStock(ctx context.Context, ownerID int64) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE is_active
		  AND ($1 = 0 OR owner_id = $1)
		  AND palette_count * packages_per_pallet + package_count <= min_stock_level
		ORDER BY name`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list low stock: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// pgTxRepository is the transactional slice bound to one open pgx.Tx.
type pgTxRepository struct {
	tx pgx.Tx
}

func (t *pgTxRepository) GetItemForUpdate(ctx context.Context, ownerID, itemID int64) (Item, error) {
	return getItem(ctx, t.tx, ownerID, itemID, true)
}

func (t *pgTxRepository) UpdateItemBalance(ctx context.Context, item Item) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE items
		SET palette_count = $2, package_count = $3, defective_count = $4, updated_at = NOW()
		WHERE id = $1`,
		item.ID, item.PaletteCount, item.PackageCount, item.DefectiveCount)
	if err != nil {
		return fmt.Errorf("ledger: update balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (t *pgTxRepository) InsertMovement(ctx context.Context, m *Movement) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO stock_movements (item_id, type, unit, qty, packages_per_pallet, purchase_price, idempotency_key, supplier_id, customer_id, order_id, note, created_by, movement_ts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`,
		m.ItemID, m.Type, m.Unit, m.Quantity, m.PackagesPerPallet, m.PurchasePrice, m.IdempotencyKey, m.SupplierID, m.CustomerID, m.OrderID, m.Note, m.CreatedBy, m.MovementTimestamp, m.CreatedAt).Scan(&m.ID)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w", m.IdempotencyKey, errDuplicateKey)
	}
	if err != nil {
		return fmt.Errorf("ledger: insert movement: %w", err)
	}
	return nil
}

func (t *pgTxRepository) GetMovementByKey(ctx context.Context, ownerID int64, key string) (Movement, error) {
	return getMovementByKey(ctx, t.tx, ownerID, key)
}

func (t *pgTxRepository) GetMovement(ctx context.Context, ownerID, movementID int64) (Movement, error) {
	return scanMovement(t.tx.QueryRow(ctx, `
		SELECT `+qualify(movementColumns, "m")+`
		FROM stock_movements m
		JOIN items i ON i.id = m.item_id
		WHERE m.id = $1 AND ($2 = 0 OR i.owner_id = $2)`,
		movementID, ownerID))
}

func (t *pgTxRepository) DeleteMovement(ctx context.Context, movementID int64) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM stock_movements WHERE id = $1`, movementID)
	if err != nil {
		return fmt.Errorf("ledger: delete movement: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrMovementNotFound
	}
	return nil
}

func (t *pgTxRepository) ListMovementsByOrder(ctx context.Context, ownerID, orderID int64) ([]Movement, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+qualify(movementColumns, "m")+`
		FROM stock_movements m
		JOIN items i ON i.id = m.item_id
		WHERE m.order_id = $1 AND ($2 = 0 OR i.owner_id = $2)
		ORDER BY m.item_id, m.id`,
		orderID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list order movements: %w", err)
	}
	defer rows.Close()
	return collectMovements(rows)
}

func (t *pgTxRepository) InsertStockLog(ctx context.Context, log *StockLog) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO stock_logs (item_id, actor_id, action, qty_change, previous_total, new_total, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE(NULLIF($8, '0001-01-01'::timestamptz), NOW()))
		RETURNING id`,
		log.ItemID, log.ActorID, log.Action, log.QuantityChange, log.PreviousTotal, log.NewTotal, log.Note, log.CreatedAt).Scan(&log.ID)
	if err != nil {
		return fmt.Errorf("ledger: insert stock log: %w", err)
	}
	return nil
}

func collectMovements(rows pgx.Rows) ([]Movement, error) {
	var out []Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// qualify prefixes each column in a comma-separated list with an alias.
func qualify(columns, alias string) string {
	return alias + "." + strings.ReplaceAll(columns, ", ", ", "+alias+".")
}
