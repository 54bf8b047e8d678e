package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/MelihSuissefocus/Depotix/internal/shared"
)

// Reversal compensates committed movements: the inverse delta is applied to
// the item, a REVERSE entry is written to the stock log, and the movement row
// is removed. Adjustments are never auto-reversed because their original
// pre-state is not recoverable from the movement alone.
type Reversal struct {
	repo   Repository
	audit  shared.AuditRecorder
	caches *LowStockCache
	logger *slog.Logger
}

// NewReversal wires a reversal coordinator. audit and caches may be nil.
func NewReversal(repo Repository, audit shared.AuditRecorder, caches *LowStockCache, logger *slog.Logger) *Reversal {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reversal{repo: repo, audit: audit, caches: caches, logger: logger}
}

// ReverseMovement undoes one movement and deletes it, all in one transaction.
func (r *Reversal) ReverseMovement(ctx context.Context, ownerID, movementID, actorID int64) error {
	var reversed Movement
	err := r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		m, err := tx.GetMovement(ctx, ownerID, movementID)
		if err != nil {
			return err
		}
		if m.Type == MovementAdjust {
			return fmt.Errorf("movement %d: %w", m.ID, ErrManualReviewRequired)
		}
		item, err := tx.GetItemForUpdate(ctx, ownerID, m.ItemID)
		if err != nil {
			return err
		}
		if err := r.undo(ctx, tx, &item, m, actorID); err != nil {
			return err
		}
		if err := tx.UpdateItemBalance(ctx, item); err != nil {
			return err
		}
		reversed = m
		return nil
	})
	if err != nil {
		return err
	}
	r.afterCommit(ctx, ownerID, actorID, reversed)
	return nil
}

// ReverseOrderFulfillment undoes every movement an order posted, in one
// transaction with item locks taken in ascending item-ID order. An order with
// no remaining movements reverses to a no-op, so retries are safe.
func (r *Reversal) ReverseOrderFulfillment(ctx context.Context, ownerID, orderID, actorID int64) error {
	var count int
	err := r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		movements, err := tx.ListMovementsByOrder(ctx, ownerID, orderID)
		if err != nil {
			return err
		}
		count = len(movements)
		if count == 0 {
			return nil
		}

		byItem := make(map[int64][]Movement)
		for _, m := range movements {
			byItem[m.ItemID] = append(byItem[m.ItemID], m)
		}
		itemIDs := make([]int64, 0, len(byItem))
		for id := range byItem {
			itemIDs = append(itemIDs, id)
		}
		sort.Slice(itemIDs, func(i, j int) bool { return itemIDs[i] < itemIDs[j] })

		for _, itemID := range itemIDs {
			item, err := tx.GetItemForUpdate(ctx, ownerID, itemID)
			if err != nil {
				return err
			}
			for _, m := range byItem[itemID] {
				if m.Type == MovementAdjust {
					return fmt.Errorf("movement %d: %w", m.ID, ErrManualReviewRequired)
				}
				if err := r.undo(ctx, tx, &item, m, actorID); err != nil {
					return err
				}
			}
			if err := tx.UpdateItemBalance(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if count > 0 {
		r.logger.Info("order fulfillment reversed",
			slog.Int64("order_id", orderID),
			slog.Int("movements", count))
		r.caches.Invalidate(ctx, ownerID)
		if r.audit != nil {
			if err := r.audit.Record(ctx, shared.AuditLog{
				ActorID:  actorID,
				Action:   "order.reverse",
				Entity:   "sales_order",
				EntityID: strconv.FormatInt(orderID, 10),
				Meta:     map[string]any{"movements": count},
			}); err != nil {
				r.logger.Warn("audit record failed", slog.Any("error", err))
			}
		}
	}
	return nil
}

// undo applies the inverse delta of m to item and removes the movement. The
// base quantity is derived with the factor snapshotted on the movement; the
// new total is re-normalized with the item's current factor.
func (r *Reversal) undo(ctx context.Context, tx TxRepository, item *Item, m Movement, actorID int64) error {
	factor := m.PackagesPerPallet
	if factor < 1 {
		// Rows predating the snapshot column fall back to the current factor.
		factor = item.PackagesPerPallet
	}
	qtyBase, err := QuantityInBase(m.Unit, m.Quantity, factor)
	if err != nil {
		return err
	}

	current := item.TotalPackages()
	next := current
	switch m.Type {
	case MovementIn, MovementReturn:
		next = current - qtyBase
		if next < 0 {
			// The inflow was partially consumed since; drain to zero rather
			// than going negative.
			next = 0
		}
	case MovementOut:
		next = current + qtyBase
	case MovementDefect:
		restore := qtyBase
		if restore > item.DefectiveCount {
			restore = item.DefectiveCount
		}
		item.DefectiveCount -= restore
		next = current + restore
	default:
		return fmt.Errorf("%q: %w", m.Type, ErrUnknownMovementType)
	}
	item.PaletteCount, item.PackageCount = Normalize(next, item.PackagesPerPallet)

	if err := tx.DeleteMovement(ctx, m.ID); err != nil {
		return err
	}
	return tx.InsertStockLog(ctx, &StockLog{
		ItemID:         item.ID,
		ActorID:        actorID,
		Action:         ActionReverse,
		QuantityChange: abs64(next - current),
		PreviousTotal:  current,
		NewTotal:       next,
		Note:           fmt.Sprintf("reversal of %s movement %d", m.Type, m.ID),
	})
}

func (r *Reversal) afterCommit(ctx context.Context, ownerID, actorID int64, m Movement) {
	r.caches.Invalidate(ctx, ownerID)
	if r.audit != nil {
		if err := r.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "stock.REVERSE",
			Entity:   "movement",
			EntityID: strconv.FormatInt(m.ID, 10),
			Meta: map[string]any{
				"item_id": m.ItemID,
				"type":    string(m.Type),
				"qty":     m.Quantity,
			},
		}); err != nil {
			r.logger.Warn("audit record failed", slog.Any("error", err))
		}
	}
}
