package catalog

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MelihSuissefocus/Depotix/internal/shared"
)

type memoryRepo struct {
	items  map[int64]Item
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: make(map[int64]Item), nextID: 1}
}

func (r *memoryRepo) Insert(ctx context.Context, item *Item) error {
	for _, existing := range r.items {
		if existing.SKU == item.SKU {
			return fmt.Errorf("sku %q: %w", item.SKU, shared.ErrDuplicate)
		}
	}
	item.ID = r.nextID
	r.nextID++
	item.IsActive = true
	r.items[item.ID] = *item
	return nil
}

func (r *memoryRepo) Update(ctx context.Context, item Item) error {
	stored, ok := r.items[item.ID]
	if !ok || (item.OwnerID != 0 && stored.OwnerID != item.OwnerID) {
		return shared.ErrNotFound
	}
	item.PaletteCount = stored.PaletteCount
	item.PackageCount = stored.PackageCount
	item.DefectiveCount = stored.DefectiveCount
	r.items[item.ID] = item
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, ownerID, itemID int64) (Item, error) {
	it, ok := r.items[itemID]
	if !ok || (ownerID != 0 && it.OwnerID != ownerID) {
		return Item{}, shared.ErrNotFound
	}
	return it, nil
}

func (r *memoryRepo) List(ctx context.Context, ownerID int64, activeOnly bool) ([]Item, error) {
	var out []Item
	for _, it := range r.items {
		if ownerID != 0 && it.OwnerID != ownerID {
			continue
		}
		if activeOnly && !it.IsActive {
			continue
		}
		out = append(out, it)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memoryRepo) Deactivate(ctx context.Context, ownerID, itemID int64) error {
	it, ok := r.items[itemID]
	if !ok || (ownerID != 0 && it.OwnerID != ownerID) {
		return shared.ErrNotFound
	}
	it.IsActive = false
	r.items[itemID] = it
	return nil
}

func createInput() CreateItemInput {
	return CreateItemInput{
		OwnerID:           7,
		Name:              "Mineralwasser 50cl",
		SKU:               "MW-050",
		PackagesPerPallet: 60,
		UnitsPerPackage:   24,
		MinStockLevel:     120,
	}
}

func TestCreateItem(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)

	in := createInput()
	in.Name = "  Mineralwasser 50cl  "
	item, err := svc.Create(context.Background(), 7, in)
	require.NoError(t, err)
	require.NotZero(t, item.ID)
	require.Equal(t, "Mineralwasser 50cl", item.Name)
	require.True(t, item.IsActive)
	require.Zero(t, item.PaletteCount)
	require.Zero(t, item.PackageCount)
}

func TestCreateItemValidation(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	in := createInput()
	in.Name = "   "
	_, err := svc.Create(ctx, 7, in)
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	in = createInput()
	in.PackagesPerPallet = 0
	_, err = svc.Create(ctx, 7, in)
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	in = createInput()
	in.MinStockLevel = -1
	_, err = svc.Create(ctx, 7, in)
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	// units_per_package defaults rather than fails.
	in = createInput()
	in.UnitsPerPackage = 0
	item, err := svc.Create(ctx, 7, in)
	require.NoError(t, err)
	require.Equal(t, int64(1), item.UnitsPerPackage)
}

func TestCreateItemDuplicateSKU(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, 7, createInput())
	require.NoError(t, err)
	_, err = svc.Create(ctx, 7, createInput())
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestUpdateItemPatchSemantics(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	item, err := svc.Create(ctx, 7, createInput())
	require.NoError(t, err)

	factor := int64(50)
	got, err := svc.Update(ctx, 7, 7, item.ID, UpdateItemInput{PackagesPerPallet: &factor})
	require.NoError(t, err)
	require.Equal(t, int64(50), got.PackagesPerPallet)
	require.Equal(t, item.Name, got.Name, "untouched fields keep their value")
	require.Equal(t, item.MinStockLevel, got.MinStockLevel)

	badFactor := int64(0)
	_, err = svc.Update(ctx, 7, 7, item.ID, UpdateItemInput{PackagesPerPallet: &badFactor})
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	blank := "  "
	_, err = svc.Update(ctx, 7, 7, item.ID, UpdateItemInput{Name: &blank})
	require.ErrorIs(t, err, shared.ErrInvalidInput)
}

func TestDeleteRetiresItem(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	item, err := svc.Create(ctx, 7, createInput())
	require.NoError(t, err)

	err = svc.Delete(ctx, 7, 7, item.ID)
	require.NoError(t, err)

	// Retired, not gone: history still resolves the item.
	got, err := svc.Get(ctx, 7, item.ID)
	require.NoError(t, err)
	require.False(t, got.IsActive)

	active, err := svc.List(ctx, 7, true)
	require.NoError(t, err)
	require.Empty(t, active)
}

func TestOwnerScoping(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	item, err := svc.Create(ctx, 7, createInput())
	require.NoError(t, err)

	_, err = svc.Get(ctx, 8, item.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)

	// Owner 0 is the staff view and sees everything.
	got, err := svc.Get(ctx, 0, item.ID)
	require.NoError(t, err)
	require.Equal(t, item.ID, got.ID)
}
