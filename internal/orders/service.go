package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/MelihSuissefocus/Depotix/internal/ledger"
	"github.com/MelihSuissefocus/Depotix/internal/shared"
)

// MovementPoster posts stock movements; satisfied by *ledger.Service.
type MovementPoster interface {
	SubmitBatch(ctx context.Context, inputs []ledger.MovementInput) ([]ledger.Movement, error)
}

// FulfillmentReverser undoes an order's movements; satisfied by *ledger.Reversal.
type FulfillmentReverser interface {
	ReverseOrderFulfillment(ctx context.Context, ownerID, orderID, actorID int64) error
}

// CustomerDirectory checks customer references; satisfied by the customer
// partners service.
type CustomerDirectory interface {
	Exists(ctx context.Context, ownerID, id int64) (bool, error)
}

// CreateOrderInput carries the fields a new order needs.
type CreateOrderInput struct {
	OwnerID      int64
	CustomerID   int64
	DeliveryDate *time.Time
	Notes        string
	Lines        []Line
	ActorID      int64
}

// Service implements the order lifecycle.
type Service struct {
	repo      Repository
	ledger    MovementPoster
	reversal  FulfillmentReverser
	customers CustomerDirectory
	audit     shared.AuditRecorder
	logger    *slog.Logger
}

// NewService wires an order service. audit may be nil.
func NewService(repo Repository, poster MovementPoster, reversal FulfillmentReverser, customers CustomerDirectory, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		ledger:    poster,
		reversal:  reversal,
		customers: customers,
		audit:     audit,
		logger:    logger,
	}
}

// Create registers a draft order.
func (s *Service) Create(ctx context.Context, in CreateOrderInput) (Order, error) {
	if len(in.Lines) == 0 {
		return Order{}, ErrEmptyOrder
	}
	for _, l := range in.Lines {
		if l.ItemID <= 0 || l.QtyPackages <= 0 {
			return Order{}, fmt.Errorf("line for item %d: %w", l.ItemID, shared.ErrInvalidInput)
		}
	}
	ok, err := s.customers.Exists(ctx, in.OwnerID, in.CustomerID)
	if err != nil {
		return Order{}, err
	}
	if !ok {
		return Order{}, fmt.Errorf("customer %d: %w", in.CustomerID, ErrUnknownCustomer)
	}

	o := Order{
		OwnerID:      in.OwnerID,
		CustomerID:   in.CustomerID,
		DeliveryDate: in.DeliveryDate,
		Notes:        in.Notes,
		CreatedBy:    in.ActorID,
		Lines:        in.Lines,
	}
	if err := s.repo.Insert(ctx, &o); err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, in.ActorID, "order.create", o.ID)
	return o, nil
}

// Get fetches one order.
func (s *Service) Get(ctx context.Context, ownerID, orderID int64) (Order, error) {
	return s.repo.Get(ctx, ownerID, orderID)
}

// List returns the owner's orders.
func (s *Service) List(ctx context.Context, ownerID int64, status Status) ([]Order, error) {
	return s.repo.List(ctx, ownerID, status)
}

// Confirm moves a draft order to CONFIRMED.
func (s *Service) Confirm(ctx context.Context, actorID, ownerID, orderID int64) (Order, error) {
	if err := s.repo.UpdateStatus(ctx, ownerID, orderID, StatusDraft, StatusConfirmed); err != nil {
		return Order{}, err
	}
	s.recordAudit(ctx, actorID, "order.confirm", orderID)
	return s.repo.Get(ctx, ownerID, orderID)
}

// Deliver posts one OUT movement per line and marks the order DELIVERED.
// All movements go through one ledger transaction, so a failing line (for
// example insufficient stock) delivers nothing. The idempotency key is
// derived from order and line IDs, which makes a retried deliver replay the
// already-posted movements instead of shipping twice.
func (s *Service) Deliver(ctx context.Context, actorID, ownerID, orderID int64) (Order, error) {
	o, err := s.repo.Get(ctx, ownerID, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.Status != StatusConfirmed {
		return Order{}, fmt.Errorf("order %s is %s: %w", o.Number, o.Status, ErrInvalidTransition)
	}
	if len(o.Lines) == 0 {
		return Order{}, ErrEmptyOrder
	}

	inputs := make([]ledger.MovementInput, 0, len(o.Lines))
	for _, line := range o.Lines {
		oid := o.ID
		cid := o.CustomerID
		inputs = append(inputs, ledger.MovementInput{
			OwnerID:        ownerID,
			ItemID:         line.ItemID,
			Type:           ledger.MovementOut,
			Unit:           ledger.UnitPackage,
			Quantity:       line.QtyPackages,
			IdempotencyKey: fmt.Sprintf("order:%d:line:%d", o.ID, line.ID),
			CustomerID:     &cid,
			OrderID:        &oid,
			Note:           fmt.Sprintf("Lieferung %s", o.Number),
			ActorID:        actorID,
		})
	}
	if _, err := s.ledger.SubmitBatch(ctx, inputs); err != nil {
		return Order{}, err
	}

	if err := s.repo.UpdateStatus(ctx, ownerID, orderID, StatusConfirmed, StatusDelivered); err != nil {
		// The movements are committed and keyed to this order; a retried
		// deliver replays them and only flips the status.
		return Order{}, err
	}
	s.recordAudit(ctx, actorID, "order.deliver", orderID)
	return s.repo.Get(ctx, ownerID, orderID)
}

// Delete removes an order. For a delivered order the posted movements are
// reversed first; an order whose movements are already gone reverses to a
// no-op, so a retried delete converges.
func (s *Service) Delete(ctx context.Context, actorID, ownerID, orderID int64) error {
	o, err := s.repo.Get(ctx, ownerID, orderID)
	if err != nil {
		return err
	}
	if o.Status == StatusDelivered {
		if err := s.reversal.ReverseOrderFulfillment(ctx, ownerID, o.ID, actorID); err != nil {
			return err
		}
	}
	if err := s.repo.Delete(ctx, ownerID, o.ID); err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "order.delete", o.ID)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, orderID int64) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "sales_order",
		EntityID: strconv.FormatInt(orderID, 10),
	}); err != nil {
		s.logger.Warn("audit record failed", slog.Any("error", err))
	}
}
