package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToBaseUnits(t *testing.T) {
	cases := []struct {
		name     string
		pallets  int64
		packages int64
		factor   int64
		want     int64
		wantErr  error
	}{
		{name: "two tier", pallets: 2, packages: 5, factor: 10, want: 25},
		{name: "packages only", pallets: 0, packages: 7, factor: 12, want: 7},
		{name: "pallets only", pallets: 3, packages: 0, factor: 60, want: 180},
		{name: "factor one", pallets: 4, packages: 0, factor: 1, want: 4},
		{name: "zero total", pallets: 0, packages: 0, factor: 10, wantErr: ErrInvalidQuantity},
		{name: "negative packages", pallets: 1, packages: -2, factor: 10, wantErr: ErrInvalidQuantity},
		{name: "invalid factor", pallets: 1, packages: 0, factor: 0, wantErr: ErrInvalidFactor},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ToBaseUnits(tc.pallets, tc.packages, tc.factor)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestVerifyConversion(t *testing.T) {
	ok, err := VerifyConversion(2, 5, 10, 25, true)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = VerifyConversion(2, 5, 10, 24, true)
	require.ErrorIs(t, err, ErrConversionMismatch)
	var mismatch *ConversionMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, int64(25), mismatch.Computed)
	require.Equal(t, int64(24), mismatch.Claimed)

	ok, err = VerifyConversion(2, 5, 10, 24, false)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestQuantityInBase(t *testing.T) {
	got, err := QuantityInBase(UnitPallet, 3, 10)
	require.NoError(t, err)
	require.Equal(t, int64(30), got)

	got, err = QuantityInBase(UnitPackage, 3, 10)
	require.NoError(t, err)
	require.Equal(t, int64(3), got)

	_, err = QuantityInBase(Unit("crate"), 3, 10)
	require.ErrorIs(t, err, ErrUnknownUnit)
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		total, factor, pallets, packages int64
	}{
		{50, 12, 4, 2},
		{25, 10, 2, 5},
		{9, 10, 0, 9},
		{0, 10, 0, 0},
		{30, 1, 30, 0},
	}
	for _, tc := range cases {
		pallets, packages := Normalize(tc.total, tc.factor)
		require.Equal(t, tc.pallets, pallets, "total=%d factor=%d", tc.total, tc.factor)
		require.Equal(t, tc.packages, packages, "total=%d factor=%d", tc.total, tc.factor)
		// The split must be lossless and the remainder a true remainder.
		require.Equal(t, tc.total, pallets*tc.factor+packages)
		require.Less(t, packages, tc.factor)
	}
}
