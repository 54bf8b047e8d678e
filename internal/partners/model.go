// Package partners manages the counterparties that movements and orders
// reference:
// suppliers on the inbound side, customers on the outbound side.
package partners

import "time"

// Kind distinguishes the two partner roles.
type Kind string

const (
	KindSupplier Kind = "supplier"
	KindCustomer Kind = "customer"
)

// Party is one supplier or customer.
type Party struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	Kind        Kind      `json:"kind"`
	Name        string    `json:"name"`
	ContactName string    `json:"contact_name,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Address     string    `json:"address,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// PartyInput carries the mutable fields of a party.
type PartyInput struct {
	Name        string
	ContactName string
	Email       string
	Phone       string
	Address     string
}
