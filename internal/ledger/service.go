package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/MelihSuissefocus/Depotix/internal/shared"
)

// MovementInput is a request to post one movement. OwnerID scopes the item
// lookup (0 means unscoped, used for staff actors). For ADJUST the quantity
// is the absolute target in the given unit, not a delta.
type MovementInput struct {
	OwnerID  int64
	ItemID   int64
	Type     MovementType
	Unit     Unit
	Quantity int64

	// Optional client-side double entry: when all three are present the
	// coordinator re-derives the base total from the breakdown and rejects
	// the request if the claimed total disagrees.
	QtyPallets  *int64
	QtyPackages *int64
	ClaimedBase *int64

	IdempotencyKey    string
	SupplierID        *int64
	CustomerID        *int64
	OrderID           *int64
	PurchasePrice     *float64
	Note              string
	ActorID           int64
	MovementTimestamp time.Time
}

// MovementFilter narrows movement listings.
type MovementFilter struct {
	OwnerID int64
	ItemID  int64
	Type    MovementType
	Limit   int32
}

// Repository is the ledger's persistence port.
type Repository interface {
	// WithTx runs fn inside one database transaction; the TxRepository it
	// receives sees uncommitted writes and holds any row locks taken.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
	GetItem(ctx context.Context, ownerID, itemID int64) (Item, error)
	// GetMovementByKey resolves an idempotency key within the owner's scope
	// (0 means unscoped). Keys are globally unique, but a movement is only
	// replayable to the owner whose item it touched.
	GetMovementByKey(ctx context.Context, ownerID int64, key string) (Movement, error)
	ListMovements(ctx context.Context, f MovementFilter) ([]Movement, error)
	ListLowStock(ctx context.Context, ownerID int64) ([]Item, error)
}

// TxRepository is the transactional slice of the port.
type TxRepository interface {
	GetItemForUpdate(ctx context.Context, ownerID, itemID int64) (Item, error)
	UpdateItemBalance(ctx context.Context, item Item) error
	InsertMovement(ctx context.Context, m *Movement) error
	GetMovementByKey(ctx context.Context, ownerID int64, key string) (Movement, error)
	GetMovement(ctx context.Context, ownerID, movementID int64) (Movement, error)
	DeleteMovement(ctx context.Context, movementID int64) error
	ListMovementsByOrder(ctx context.Context, ownerID, orderID int64) ([]Movement, error)
	InsertStockLog(ctx context.Context, log *StockLog) error
}

// MovementObserver receives a signal per committed movement, keyed by type.
type MovementObserver interface {
	ObserveMovement(movementType string)
}

// Service coordinates movement posting: idempotency, locking, validation,
// delta application, and the in-transaction audit mirror.
type Service struct {
	repo     Repository
	audit    shared.AuditRecorder
	observer MovementObserver
	cache    *LowStockCache
	logger   *slog.Logger
	now      func() time.Time
}

// NewService wires a ledger service. audit, observer, and cache may be nil.
func NewService(repo Repository, audit shared.AuditRecorder, observer MovementObserver, cache *LowStockCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		audit:    audit,
		observer: observer,
		cache:    cache,
		logger:   logger,
		now:      time.Now,
	}
}

// SubmitMovement posts one movement. The returned bool is true when the
// movement was not newly created but replayed from an earlier request with
// the same idempotency key.
func (s *Service) SubmitMovement(ctx context.Context, in MovementInput) (Movement, bool, error) {
	if in.IdempotencyKey != "" {
		existing, err := s.repo.GetMovementByKey(ctx, in.OwnerID, in.IdempotencyKey)
		switch {
		case err == nil:
			return existing, true, nil
		case !errors.Is(err, ErrMovementNotFound):
			return Movement{}, false, fmt.Errorf("idempotency lookup: %w", err)
		}
	} else {
		in.IdempotencyKey = uuid.NewString()
	}

	var out Movement
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := s.applyMovement(ctx, tx, in)
		if err != nil {
			return err
		}
		out = m
		return nil
	})
	if errors.Is(err, errDuplicateKey) {
		// A concurrent request with the same key won the race. Its commit is
		// the one that counts; hand back its movement.
		winner, lookupErr := s.repo.GetMovementByKey(ctx, in.OwnerID, in.IdempotencyKey)
		if lookupErr != nil {
			return Movement{}, false, fmt.Errorf("replay lookup after key conflict: %w", lookupErr)
		}
		return winner, true, nil
	}
	if err != nil {
		return Movement{}, false, err
	}

	s.afterCommit(ctx, in.OwnerID, in.ActorID, out)
	return out, false, nil
}

// SubmitBatch posts several movements in one transaction, locking items in
// ascending item-ID order so concurrent batches cannot deadlock. Inputs whose
// idempotency key already exists are replayed in place; the rest are applied.
// Used by order fulfillment, where a partial delivery must never commit.
func (s *Service) SubmitBatch(ctx context.Context, inputs []MovementInput) ([]Movement, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	ordered := make([]MovementInput, len(inputs))
	copy(ordered, inputs)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ItemID < ordered[j].ItemID })

	for i := range ordered {
		if ordered[i].IdempotencyKey == "" {
			ordered[i].IdempotencyKey = uuid.NewString()
		}
	}

	var (
		out     []Movement
		applied []Movement
	)
	run := func(ctx context.Context, tx TxRepository) error {
		out = out[:0]
		applied = applied[:0]
		for _, in := range ordered {
			existing, err := tx.GetMovementByKey(ctx, in.OwnerID, in.IdempotencyKey)
			if err == nil {
				out = append(out, existing)
				continue
			}
			if !errors.Is(err, ErrMovementNotFound) {
				return fmt.Errorf("idempotency lookup: %w", err)
			}
			m, err := s.applyMovement(ctx, tx, in)
			if err != nil {
				return err
			}
			out = append(out, m)
			applied = append(applied, m)
		}
		return nil
	}
	err := s.repo.WithTx(ctx, run)
	if errors.Is(err, errDuplicateKey) {
		// A concurrent request committed one of the keys between the in-tx
		// lookup and the insert. The re-run sees its committed movement and
		// replays it instead of posting again.
		err = s.repo.WithTx(ctx, run)
	}
	if err != nil {
		return nil, err
	}

	for _, m := range applied {
		s.afterCommit(ctx, inputsOwner(ordered), m.CreatedBy, m)
	}
	return out, nil
}

func inputsOwner(inputs []MovementInput) int64 {
	if len(inputs) == 0 {
		return 0
	}
	return inputs[0].OwnerID
}

// applyMovement runs the locked section of the posting protocol. It must be
// called with an open transaction.
func (s *Service) applyMovement(ctx context.Context, tx TxRepository, in MovementInput) (Movement, error) {
	item, err := tx.GetItemForUpdate(ctx, in.OwnerID, in.ItemID)
	if err != nil {
		return Movement{}, err
	}

	if in.QtyPallets != nil && in.QtyPackages != nil && in.ClaimedBase != nil {
		if _, err := VerifyConversion(*in.QtyPallets, *in.QtyPackages, item.PackagesPerPallet, *in.ClaimedBase, true); err != nil {
			return Movement{}, err
		}
	}

	if err := validateMovement(item, in); err != nil {
		return Movement{}, err
	}

	qtyBase, err := QuantityInBase(in.Unit, in.Quantity, item.PackagesPerPallet)
	if err != nil {
		return Movement{}, err
	}

	current := item.TotalPackages()
	var delta int64
	switch in.Type {
	case MovementIn, MovementReturn:
		delta = qtyBase
	case MovementOut, MovementDefect:
		delta = -qtyBase
	case MovementAdjust:
		delta = qtyBase - current
	}

	newTotal := current + delta
	if newTotal < 0 {
		return Movement{}, &InsufficientStockError{
			ItemID:    item.ID,
			Unit:      UnitPackage,
			Available: current,
			Requested: qtyBase,
		}
	}
	if in.Type == MovementDefect {
		item.DefectiveCount += qtyBase
	}
	item.PaletteCount, item.PackageCount = Normalize(newTotal, item.PackagesPerPallet)
	if err := tx.UpdateItemBalance(ctx, item); err != nil {
		return Movement{}, err
	}

	now := s.now()
	ts := in.MovementTimestamp
	if ts.IsZero() {
		ts = now
	}
	m := Movement{
		ItemID:            item.ID,
		Type:              in.Type,
		Unit:              in.Unit,
		Quantity:          in.Quantity,
		PackagesPerPallet: item.PackagesPerPallet,
		PurchasePrice:     in.PurchasePrice,
		IdempotencyKey:    in.IdempotencyKey,
		SupplierID:        in.SupplierID,
		CustomerID:        in.CustomerID,
		OrderID:           in.OrderID,
		Note:              in.Note,
		CreatedBy:         in.ActorID,
		MovementTimestamp: ts,
		CreatedAt:         now,
	}
	if err := tx.InsertMovement(ctx, &m); err != nil {
		return Movement{}, err
	}

	log := StockLog{
		ItemID:         item.ID,
		ActorID:        in.ActorID,
		Action:         actionFor(in.Type),
		QuantityChange: abs64(delta),
		PreviousTotal:  current,
		NewTotal:       newTotal,
		Note:           in.Note,
		CreatedAt:      now,
	}
	if err := tx.InsertStockLog(ctx, &log); err != nil {
		return Movement{}, err
	}
	return m, nil
}

// afterCommit performs the best-effort side effects of a committed movement.
func (s *Service) afterCommit(ctx context.Context, ownerID, actorID int64, m Movement) {
	if s.observer != nil {
		s.observer.ObserveMovement(string(m.Type))
	}
	s.cache.Invalidate(ctx, ownerID)
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "stock." + string(m.Type),
			Entity:   "movement",
			EntityID: strconv.FormatInt(m.ID, 10),
			Meta: map[string]any{
				"item_id": m.ItemID,
				"unit":    string(m.Unit),
				"qty":     m.Quantity,
			},
			At: m.CreatedAt,
		}); err != nil {
			s.logger.Warn("audit record failed", slog.Any("error", err))
		}
	}
}

// GetBalance returns the current balance read model for one item.
func (s *Service) GetBalance(ctx context.Context, ownerID, itemID int64) (Balance, error) {
	item, err := s.repo.GetItem(ctx, ownerID, itemID)
	if err != nil {
		return Balance{}, err
	}
	return balanceOf(item), nil
}

// CheckLowStock reports whether the item is at or below its reorder level.
func (s *Service) CheckLowStock(ctx context.Context, ownerID, itemID int64) (bool, error) {
	item, err := s.repo.GetItem(ctx, ownerID, itemID)
	if err != nil {
		return false, err
	}
	return item.IsLowStock(), nil
}

// LowStockItems lists the owner's items at or below their reorder level,
// served from the redis cache when warm.
func (s *Service) LowStockItems(ctx context.Context, ownerID int64) ([]Item, error) {
	if items, ok := s.cache.Get(ctx, ownerID); ok {
		return items, nil
	}
	items, err := s.repo.ListLowStock(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, ownerID, items)
	return items, nil
}

// ListMovements returns the stock card for an item, newest first.
func (s *Service) ListMovements(ctx context.Context, f MovementFilter) ([]Movement, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}
	return s.repo.ListMovements(ctx, f)
}

func balanceOf(item Item) Balance {
	return Balance{
		ItemID:            item.ID,
		PaletteCount:      item.PaletteCount,
		PackageCount:      item.PackageCount,
		DefectiveCount:    item.DefectiveCount,
		PackagesPerPallet: item.PackagesPerPallet,
		UnitsPerPackage:   item.UnitsPerPackage,
		Total:             item.TotalPackages(),
		MinStockLevel:     item.MinStockLevel,
		LowStock:          item.IsLowStock(),
	}
}

func actionFor(t MovementType) string {
	switch t {
	case MovementIn, MovementReturn:
		return ActionAdd
	case MovementOut, MovementDefect:
		return ActionRemove
	default:
		return ActionUpdate
	}
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
