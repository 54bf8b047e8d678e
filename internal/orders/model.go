// Package orders implements the sales-order lifecycle. Delivering an order
// posts one outbound stock movement per line through the ledger; deleting a
// delivered order reverses those movements.
package orders

import (
	"errors"
	"time"
)

// Status of a sales order.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusConfirmed Status = "CONFIRMED"
	StatusDelivered Status = "DELIVERED"
)

// Order is a sales order with its lines.
type Order struct {
	ID           int64      `json:"id"`
	OwnerID      int64      `json:"owner_id"`
	Number       string     `json:"number"`
	CustomerID   int64      `json:"customer_id"`
	Status       Status     `json:"status"`
	DeliveryDate *time.Time `json:"delivery_date,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	CreatedBy    int64      `json:"created_by"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Lines        []Line     `json:"lines"`
}

// Line is one order position. Quantities are in packages.
type Line struct {
	ID          int64 `json:"id"`
	OrderID     int64 `json:"order_id"`
	ItemID      int64 `json:"item_id"`
	QtyPackages int64 `json:"qty_packages"`
}

// Domain errors.
var (
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrEmptyOrder        = errors.New("order needs at least one line")
	ErrUnknownCustomer   = errors.New("customer does not exist")
)
