package ledger

import "fmt"

// ToBaseUnits converts a two-tier quantity into base packages.
// The factor must be >= 1, both tiers must be non-negative, and the total
// must come out positive.
func ToBaseUnits(pallets, packages, factor int64) (int64, error) {
	if factor < 1 {
		return 0, fmt.Errorf("factor %d: %w", factor, ErrInvalidFactor)
	}
	if pallets < 0 || packages < 0 {
		return 0, fmt.Errorf("negative tier quantity: %w", ErrInvalidQuantity)
	}
	total := pallets*factor + packages
	if total <= 0 {
		return 0, fmt.Errorf("total of %d pallets and %d packages: %w", pallets, packages, ErrInvalidQuantity)
	}
	return total, nil
}

// VerifyConversion recomputes the base total from the breakdown and compares
// it against the client-claimed total. In strict mode a mismatch is an
// error; otherwise it is reported via the bool.
func VerifyConversion(pallets, packages, factor, claimed int64, strict bool) (bool, error) {
	computed, err := ToBaseUnits(pallets, packages, factor)
	if err != nil {
		return false, err
	}
	if computed == claimed {
		return true, nil
	}
	if strict {
		return false, &ConversionMismatchError{
			Pallets:  pallets,
			Packages: packages,
			Factor:   factor,
			Computed: computed,
			Claimed:  claimed,
		}
	}
	return false, nil
}

// QuantityInBase converts a quantity expressed in the given unit into base
// packages.
func QuantityInBase(unit Unit, qty, factor int64) (int64, error) {
	switch unit {
	case UnitPallet:
		if factor < 1 {
			return 0, fmt.Errorf("factor %d: %w", factor, ErrInvalidFactor)
		}
		return qty * factor, nil
	case UnitPackage:
		return qty, nil
	default:
		return 0, fmt.Errorf("%q: %w", unit, ErrUnknownUnit)
	}
}

// Normalize splits a base-unit total into full pallets and loose packages.
// The loose remainder is always in [0, factor).
func Normalize(total, factor int64) (pallets, packages int64) {
	if factor < 1 {
		factor = 1
	}
	return total / factor, total % factor
}
