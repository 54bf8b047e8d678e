// Package ledger implements the stock ledger: every change to an item's
// balance happens through a movement posted here, and every movement can be
// compensated by a reversal. Balances are kept in a two-tier representation
// (full pallets plus loose packages) with the package as the base unit of
// account.
package ledger

import (
	"errors"
	"fmt"
	"time"
)

// MovementType classifies a stock movement.
type MovementType string

const (
	MovementIn     MovementType = "IN"
	MovementOut    MovementType = "OUT"
	MovementReturn MovementType = "RETURN"
	MovementDefect MovementType = "DEFECT"
	MovementAdjust MovementType = "ADJUST"
)

// Unit is the unit a movement quantity is expressed in.
type Unit string

const (
	UnitPallet  Unit = "pallet"
	UnitPackage Unit = "package"
)

// Item is the ledger's view of an inventory item: identity plus the balance
// fields the ledger owns. The catalog package manages the descriptive rest.
type Item struct {
	ID                int64
	OwnerID           int64
	Name              string
	SKU               string
	PaletteCount      int64
	PackageCount      int64
	DefectiveCount    int64
	PackagesPerPallet int64
	UnitsPerPackage   int64
	MinStockLevel     int64
}

// TotalPackages returns the sellable on-hand quantity in base units.
// Defective stock is excluded.
func (i Item) TotalPackages() int64 {
	return i.PaletteCount*i.PackagesPerPallet + i.PackageCount
}

// IsLowStock reports whether the on-hand quantity has fallen to or below the
// reorder threshold.
func (i Item) IsLowStock() bool {
	return i.TotalPackages() <= i.MinStockLevel
}

// Movement is one immutable ledger entry. PackagesPerPallet is the item's
// conversion factor at posting time so a later reversal restores exactly the
// base quantity that was moved, even if the factor has changed since.
type Movement struct {
	ID                int64
	ItemID            int64
	Type              MovementType
	Unit              Unit
	Quantity          int64
	PackagesPerPallet int64
	PurchasePrice     *float64
	IdempotencyKey    string
	SupplierID        *int64
	CustomerID        *int64
	OrderID           *int64
	Note              string
	CreatedBy         int64
	MovementTimestamp time.Time
	CreatedAt         time.Time
}

// StockLog is the denormalized audit mirror written in the same transaction
// as every balance change. Totals are in base units.
type StockLog struct {
	ID             int64
	ItemID         int64
	ActorID        int64
	Action         string
	QuantityChange int64
	PreviousTotal  int64
	NewTotal       int64
	Note           string
	CreatedAt      time.Time
}

// Stock log actions.
const (
	ActionAdd     = "ADD"
	ActionRemove  = "REMOVE"
	ActionUpdate  = "UPDATE"
	ActionReverse = "REVERSE"
)

// Balance is the read model returned by balance queries.
type Balance struct {
	ItemID            int64 `json:"item_id"`
	PaletteCount      int64 `json:"palette_count"`
	PackageCount      int64 `json:"package_count"`
	DefectiveCount    int64 `json:"defective_count"`
	PackagesPerPallet int64 `json:"packages_per_pallet"`
	UnitsPerPackage   int64 `json:"units_per_package"`
	Total             int64 `json:"total_packages"`
	MinStockLevel     int64 `json:"min_stock_level"`
	LowStock          bool  `json:"low_stock"`
}

// Sentinel errors of the ledger domain.
var (
	ErrItemNotFound         = errors.New("item not found")
	ErrMovementNotFound     = errors.New("movement not found")
	ErrInvalidQuantity      = errors.New("quantity must be positive")
	ErrUnknownMovementType  = errors.New("unknown movement type")
	ErrUnknownUnit          = errors.New("unknown movement unit")
	ErrInvalidFactor        = errors.New("packages per pallet must be at least 1")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrConversionMismatch   = errors.New("pallet conversion mismatch")
	ErrMissingCounterpart   = errors.New("return requires a customer reference")
	ErrMissingProvenance    = errors.New("inbound movement requires a supplier or a note")
	ErrMissingJustification = errors.New("adjustment requires a note")
	ErrManualReviewRequired = errors.New("adjustment reversal requires manual review")

	// errDuplicateKey marks an idempotency-key collision detected inside the
	// posting transaction. It never leaves the package: the coordinator
	// converts it into an idempotent replay.
	errDuplicateKey = errors.New("idempotency key already used")
)

// InsufficientStockError carries the shortfall so callers can render it.
// Quantities are in the unit the request used.
type InsufficientStockError struct {
	ItemID    int64
	Unit      Unit
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %d: %d %s available, %d requested", e.ItemID, e.Available, e.Unit, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// ConversionMismatchError reports a client-claimed base total that does not
// match the recomputed two-tier breakdown.
type ConversionMismatchError struct {
	Pallets  int64
	Packages int64
	Factor   int64
	Computed int64
	Claimed  int64
}

func (e *ConversionMismatchError) Error() string {
	return fmt.Sprintf("conversion mismatch: %d pallets x %d + %d packages = %d, client claimed %d", e.Pallets, e.Factor, e.Packages, e.Computed, e.Claimed)
}

func (e *ConversionMismatchError) Unwrap() error { return ErrConversionMismatch }
