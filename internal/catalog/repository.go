package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MelihSuissefocus/Depotix/internal/platform/db"
	"github.com/MelihSuissefocus/Depotix/internal/shared"
)

// Repository is the catalog persistence port.
type Repository interface {
	Insert(ctx context.Context, item *Item) error
	Update(ctx context.Context, item Item) error
	Get(ctx context.Context, ownerID, itemID int64) (Item, error)
	List(ctx context.Context, ownerID int64, activeOnly bool) ([]Item, error)
	Deactivate(ctx context.Context, ownerID, itemID int64) error
}

// PGRepository is the PostgreSQL-backed catalog repository.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const itemColumns = `id, owner_id, name, sku, description, packages_per_pallet, units_per_package, min_stock_level, is_active, palette_count, package_count, defective_count, created_at, updated_at`

func scanItem(row pgx.Row) (Item, error) {
	var it Item
	err := row.Scan(&it.ID, &it.OwnerID, &it.Name, &it.SKU, &it.Description, &it.PackagesPerPallet, &it.UnitsPerPackage, &it.MinStockLevel, &it.IsActive, &it.PaletteCount, &it.PackageCount, &it.DefectiveCount, &it.CreatedAt, &it.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, shared.ErrNotFound
	}
	if err != nil {
		return Item{}, fmt.Errorf("catalog: scan item: %w", err)
	}
	return it, nil
}

// Insert stores a new item and fills the generated fields.
func (r *PGRepository) Insert(ctx context.Context, item *Item) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO items (owner_id, name, sku, description, packages_per_pallet, units_per_package, min_stock_level, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE)
		RETURNING id, created_at, updated_at`,
		item.OwnerID, item.Name, item.SKU, item.Description, item.PackagesPerPallet, item.UnitsPerPackage, item.MinStockLevel).
		Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("sku %q: %w", item.SKU, shared.ErrDuplicate)
	}
	if err != nil {
		return fmt.Errorf("catalog: insert item: %w", err)
	}
	item.IsActive = true
	return nil
}

// Update persists the mutable fields. Balance columns are never written here.
func (r *PGRepository) Update(ctx context.Context, item Item) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE items
		SET name = $3, description = $4, packages_per_pallet = $5, units_per_package = $6, min_stock_level = $7, is_active = $8, updated_at = NOW()
		WHERE id = $1 AND ($2 = 0 OR owner_id = $2)`,
		item.ID, item.OwnerID, item.Name, item.Description, item.PackagesPerPallet, item.UnitsPerPackage, item.MinStockLevel, item.IsActive)
	if err != nil {
		return fmt.Errorf("catalog: update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Get fetches one item. ownerID 0 disables owner scoping (staff access).
func (r *PGRepository) Get(ctx context.Context, ownerID, itemID int64) (Item, error) {
	return scanItem(r.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1 AND ($2 = 0 OR owner_id = $2)`,
		itemID, ownerID))
}

// List returns the owner's items ordered by name.
func (r *PGRepository) List(ctx context.Context, ownerID int64, activeOnly bool) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE ($1 = 0 OR owner_id = $1) AND (NOT $2 OR is_active)
		ORDER BY name`,
		ownerID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("catalog: list items: %w", err)
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

// Deactivate retires an item. Movement history keeps referencing it, so rows
// are never physically deleted.
func (r *PGRepository) Deactivate(ctx context.Context, ownerID, itemID int64) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE items SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND ($2 = 0 OR owner_id = $2)`,
		itemID, ownerID)
	if err != nil {
		return fmt.Errorf("catalog: deactivate item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
