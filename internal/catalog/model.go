// Package catalog manages the descriptive side of inventory items. Balances
// are owned by the ledger and exposed here read-only.
package catalog

import "time"

// Item is a catalog entry.
type Item struct {
	ID                int64     `json:"id"`
	OwnerID           int64     `json:"owner_id"`
	Name              string    `json:"name"`
	SKU               string    `json:"sku"`
	Description       string    `json:"description,omitempty"`
	PackagesPerPallet int64     `json:"packages_per_pallet"`
	UnitsPerPackage   int64     `json:"units_per_package"`
	MinStockLevel     int64     `json:"min_stock_level"`
	IsActive          bool      `json:"is_active"`
	PaletteCount      int64     `json:"palette_count"`
	PackageCount      int64     `json:"package_count"`
	DefectiveCount    int64     `json:"defective_count"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CreateItemInput carries the fields a new item needs.
type CreateItemInput struct {
	OwnerID           int64
	Name              string
	SKU               string
	Description       string
	PackagesPerPallet int64
	UnitsPerPackage   int64
	MinStockLevel     int64
}

// UpdateItemInput updates the mutable fields. Nil pointers leave the current
// value untouched.
type UpdateItemInput struct {
	Name              *string
	Description       *string
	PackagesPerPallet *int64
	UnitsPerPackage   *int64
	MinStockLevel     *int64
	IsActive          *bool
}
