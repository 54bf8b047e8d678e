package ledger

import (
	"fmt"
	"strings"
)

// validateMovement checks a movement request against the locked item state.
// It is called inside the posting transaction so the availability check
// cannot race with concurrent movements.
func validateMovement(item Item, in MovementInput) error {
	switch in.Unit {
	case UnitPallet, UnitPackage:
	default:
		return fmt.Errorf("%q: %w", in.Unit, ErrUnknownUnit)
	}
	if in.Quantity <= 0 {
		return fmt.Errorf("quantity %d: %w", in.Quantity, ErrInvalidQuantity)
	}

	switch in.Type {
	case MovementIn:
		if in.SupplierID == nil && strings.TrimSpace(in.Note) == "" {
			return ErrMissingProvenance
		}
	case MovementOut, MovementDefect:
		available := item.TotalPackages()
		if in.Unit == UnitPallet {
			available /= max64(item.PackagesPerPallet, 1)
		}
		if available < in.Quantity {
			return &InsufficientStockError{
				ItemID:    item.ID,
				Unit:      in.Unit,
				Available: available,
				Requested: in.Quantity,
			}
		}
	case MovementReturn:
		if in.CustomerID == nil {
			return ErrMissingCounterpart
		}
	case MovementAdjust:
		if strings.TrimSpace(in.Note) == "" {
			return ErrMissingJustification
		}
	default:
		return fmt.Errorf("%q: %w", in.Type, ErrUnknownMovementType)
	}
	return nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
