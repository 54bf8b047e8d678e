package ledger

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// memoryRepo implements Repository and TxRepository for service tests.
// WithTx runs the callback against a deep copy and commits it back only on
// success, mirroring the rollback behavior of the real repository.
type memoryRepo struct {
	items          map[int64]Item
	movements      map[int64]Movement
	logs           []StockLog
	nextMovementID int64
	lowStockCalls  int

	// conflict simulates a concurrent writer owning an idempotency key:
	// the first lookup misses, the insert then collides, and later lookups
	// see the winner. Shared across transaction clones because the other
	// writer's commit is not part of this transaction's rollback.
	conflict *keyConflict
}

type keyConflict struct {
	key    string
	winner Movement
	hidden bool
}

func newMemoryRepo(items ...Item) *memoryRepo {
	r := &memoryRepo{
		items:          make(map[int64]Item),
		movements:      make(map[int64]Movement),
		nextMovementID: 1,
	}
	for _, it := range items {
		r.items[it.ID] = it
	}
	return r
}

func (r *memoryRepo) clone() *memoryRepo {
	c := &memoryRepo{
		items:          make(map[int64]Item, len(r.items)),
		movements:      make(map[int64]Movement, len(r.movements)),
		logs:           append([]StockLog(nil), r.logs...),
		nextMovementID: r.nextMovementID,
		lowStockCalls:  r.lowStockCalls,
		conflict:       r.conflict,
	}
	for id, it := range r.items {
		c.items[id] = it
	}
	for id, m := range r.movements {
		c.movements[id] = m
	}
	return c
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	tx := r.clone()
	if err := fn(ctx, tx); err != nil {
		return err
	}
	*r = *tx
	return nil
}

func (r *memoryRepo) scoped(ownerID int64, it Item) bool {
	return ownerID == 0 || it.OwnerID == ownerID
}

func (r *memoryRepo) GetItem(ctx context.Context, ownerID, itemID int64) (Item, error) {
	it, ok := r.items[itemID]
	if !ok || !r.scoped(ownerID, it) {
		return Item{}, ErrItemNotFound
	}
	return it, nil
}

func (r *memoryRepo) GetItemForUpdate(ctx context.Context, ownerID, itemID int64) (Item, error) {
	return r.GetItem(ctx, ownerID, itemID)
}

func (r *memoryRepo) UpdateItemBalance(ctx context.Context, item Item) error {
	stored, ok := r.items[item.ID]
	if !ok {
		return ErrItemNotFound
	}
	stored.PaletteCount = item.PaletteCount
	stored.PackageCount = item.PackageCount
	stored.DefectiveCount = item.DefectiveCount
	r.items[item.ID] = stored
	return nil
}

func (r *memoryRepo) GetMovementByKey(ctx context.Context, ownerID int64, key string) (Movement, error) {
	if r.conflict != nil && r.conflict.key == key {
		if r.conflict.hidden {
			r.conflict.hidden = false
			return Movement{}, ErrMovementNotFound
		}
		return r.conflict.winner, nil
	}
	for _, m := range r.movements {
		if m.IdempotencyKey != key {
			continue
		}
		if it, ok := r.items[m.ItemID]; ok && !r.scoped(ownerID, it) {
			return Movement{}, ErrMovementNotFound
		}
		return m, nil
	}
	return Movement{}, ErrMovementNotFound
}

func (r *memoryRepo) InsertMovement(ctx context.Context, m *Movement) error {
	if r.conflict != nil && r.conflict.key == m.IdempotencyKey {
		return fmt.Errorf("%s: %w", m.IdempotencyKey, errDuplicateKey)
	}
	for _, existing := range r.movements {
		if existing.IdempotencyKey == m.IdempotencyKey {
			return fmt.Errorf("%s: %w", m.IdempotencyKey, errDuplicateKey)
		}
	}
	m.ID = r.nextMovementID
	r.nextMovementID++
	r.movements[m.ID] = *m
	return nil
}

func (r *memoryRepo) GetMovement(ctx context.Context, ownerID, movementID int64) (Movement, error) {
	m, ok := r.movements[movementID]
	if !ok {
		return Movement{}, ErrMovementNotFound
	}
	if it, itemOK := r.items[m.ItemID]; itemOK && !r.scoped(ownerID, it) {
		return Movement{}, ErrMovementNotFound
	}
	return m, nil
}

func (r *memoryRepo) DeleteMovement(ctx context.Context, movementID int64) error {
	if _, ok := r.movements[movementID]; !ok {
		return ErrMovementNotFound
	}
	delete(r.movements, movementID)
	return nil
}

func (r *memoryRepo) ListMovementsByOrder(ctx context.Context, ownerID, orderID int64) ([]Movement, error) {
	var out []Movement
	for _, m := range r.movements {
		if m.OrderID != nil && *m.OrderID == orderID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ItemID != out[j].ItemID {
			return out[i].ItemID < out[j].ItemID
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memoryRepo) InsertStockLog(ctx context.Context, log *StockLog) error {
	log.ID = int64(len(r.logs) + 1)
	r.logs = append(r.logs, *log)
	return nil
}

func (r *memoryRepo) ListMovements(ctx context.Context, f MovementFilter) ([]Movement, error) {
	var out []Movement
	for _, m := range r.movements {
		if f.ItemID != 0 && m.ItemID != f.ItemID {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryRepo) ListLowStock(ctx context.Context, ownerID int64) ([]Item, error) {
	r.lowStockCalls++
	var out []Item
	for _, it := range r.items {
		if r.scoped(ownerID, it) && it.IsLowStock() {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type countingObserver struct {
	byType map[string]int
}

func (o *countingObserver) ObserveMovement(t string) {
	if o.byType == nil {
		o.byType = make(map[string]int)
	}
	o.byType[t]++
}

func newTestService(repo *memoryRepo) (*Service, *countingObserver) {
	observer := &countingObserver{}
	return NewService(repo, nil, observer, nil, nil), observer
}

func TestSubmitMovementInPallets(t *testing.T) {
	repo := newMemoryRepo(testItem()) // 2 pallets + 5 packages @ 10 = 25
	svc, observer := newTestService(repo)
	supplier := int64(3)

	m, replayed, err := svc.SubmitMovement(context.Background(), MovementInput{
		OwnerID:    7,
		ItemID:     1,
		Type:       MovementIn,
		Unit:       UnitPallet,
		Quantity:   3,
		SupplierID: &supplier,
		ActorID:    7,
	})
	require.NoError(t, err)
	require.False(t, replayed)
	require.NotZero(t, m.ID)
	require.Equal(t, int64(10), m.PackagesPerPallet, "factor must be snapshotted on the movement")
	require.NotEmpty(t, m.IdempotencyKey, "server generates a key when the client sends none")

	item := repo.items[1]
	require.Equal(t, int64(5), item.PaletteCount)
	require.Equal(t, int64(5), item.PackageCount)
	require.Equal(t, int64(55), item.TotalPackages())

	require.Len(t, repo.logs, 1)
	log := repo.logs[0]
	require.Equal(t, ActionAdd, log.Action)
	require.Equal(t, int64(30), log.QuantityChange)
	require.Equal(t, int64(25), log.PreviousTotal)
	require.Equal(t, int64(55), log.NewTotal)

	require.Equal(t, 1, observer.byType["IN"])
}

func TestSubmitMovementInsufficientStockLeavesNoTrace(t *testing.T) {
	repo := newMemoryRepo(testItem())
	svc, _ := newTestService(repo)

	_, _, err := svc.SubmitMovement(context.Background(), MovementInput{
		OwnerID: 7, ItemID: 1, Type: MovementOut, Unit: UnitPackage, Quantity: 30, ActorID: 7,
	})
	require.ErrorIs(t, err, ErrInsufficientStock)

	require.Equal(t, int64(25), repo.items[1].TotalPackages())
	require.Empty(t, repo.movements)
	require.Empty(t, repo.logs)
}

func TestSubmitMovementDefect(t *testing.T) {
	repo := newMemoryRepo(testItem())
	svc, _ := newTestService(repo)

	_, _, err := svc.SubmitMovement(context.Background(), MovementInput{
		OwnerID: 7, ItemID: 1, Type: MovementDefect, Unit: UnitPackage, Quantity: 3, ActorID: 7,
	})
	require.NoError(t, err)

	item := repo.items[1]
	require.Equal(t, int64(22), item.TotalPackages())
	require.Equal(t, int64(2), item.PaletteCount)
	require.Equal(t, int64(2), item.PackageCount)
	require.Equal(t, int64(3), item.DefectiveCount)
}

func TestSubmitMovementAdjust(t *testing.T) {
	repo := newMemoryRepo(testItem())
	svc, _ := newTestService(repo)

	// Absolute target of 30 packages, up from 25.
	_, _, err := svc.SubmitMovement(context.Background(), MovementInput{
		OwnerID: 7, ItemID: 1, Type: MovementAdjust, Unit: UnitPackage, Quantity: 30,
		Note: "Inventur", ActorID: 7,
	})
	require.NoError(t, err)
	require.Equal(t, int64(30), repo.items[1].TotalPackages())
	require.Equal(t, ActionUpdate, repo.logs[0].Action)
	require.Equal(t, int64(5), repo.logs[0].QuantityChange)

	// And back down to 1 pallet.
	_, _, err = svc.SubmitMovement(context.Background(), MovementInput{
		OwnerID: 7, ItemID: 1, Type: MovementAdjust, Unit: UnitPallet, Quantity: 1,
		Note: "Inventur", ActorID: 7,
	})
	require.NoError(t, err)
	item := repo.items[1]
	require.Equal(t, int64(10), item.TotalPackages())
	require.Equal(t, int64(1), item.PaletteCount)
	require.Equal(t, int64(0), item.PackageCount)
}

func TestSubmitMovementIdempotentReplay(t *testing.T) {
	repo := newMemoryRepo(testItem())
	svc, observer := newTestService(repo)
	supplier := int64(3)
	in := MovementInput{
		OwnerID: 7, ItemID: 1, Type: MovementIn, Unit: UnitPackage, Quantity: 10,
		SupplierID: &supplier, IdempotencyKey: "req-42", ActorID: 7,
	}

	first, replayed, err := svc.SubmitMovement(context.Background(), in)
	require.NoError(t, err)
	require.False(t, replayed)

	second, replayed, err := svc.SubmitMovement(context.Background(), in)
	require.NoError(t, err)
	require.True(t, replayed)
	require.Equal(t, first.ID, second.ID)

	// Applied exactly once.
	require.Equal(t, int64(35), repo.items[1].TotalPackages())
	require.Len(t, repo.movements, 1)
	require.Len(t, repo.logs, 1)
	require.Equal(t, 1, observer.byType["IN"])
}

func TestSubmitMovementKeyRaceReturnsWinner(t *testing.T) {
	repo := newMemoryRepo(testItem())
	winner := Movement{ID: 99, ItemID: 1, Type: MovementIn, Unit: UnitPackage, Quantity: 10, IdempotencyKey: "req-9"}
	repo.conflict = &keyConflict{key: "req-9", winner: winner, hidden: true}
	svc, _ := newTestService(repo)
	supplier := int64(3)

	m, replayed, err := svc.SubmitMovement(context.Background(), MovementInput{
		OwnerID: 7, ItemID: 1, Type: MovementIn, Unit: UnitPackage, Quantity: 10,
		SupplierID: &supplier, IdempotencyKey: "req-9", ActorID: 7,
	})
	require.NoError(t, err)
	require.True(t, replayed)
	require.Equal(t, winner.ID, m.ID)

	// The losing attempt rolled back; the local state is untouched.
	require.Equal(t, int64(25), repo.items[1].TotalPackages())
}

func TestSubmitBatchKeyRaceReplaysWinner(t *testing.T) {
	repo := newMemoryRepo(testItem())
	winner := Movement{ID: 99, ItemID: 1, Type: MovementIn, Unit: UnitPackage, Quantity: 10, IdempotencyKey: "req-9"}
	repo.conflict = &keyConflict{key: "req-9", winner: winner, hidden: true}
	svc, _ := newTestService(repo)
	supplier := int64(3)

	out, err := svc.SubmitBatch(context.Background(), []MovementInput{
		{OwnerID: 7, ItemID: 1, Type: MovementIn, Unit: UnitPackage, Quantity: 10, SupplierID: &supplier, IdempotencyKey: "req-9", ActorID: 7},
		{OwnerID: 7, ItemID: 1, Type: MovementIn, Unit: UnitPackage, Quantity: 4, SupplierID: &supplier, IdempotencyKey: "req-10", ActorID: 7},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, winner.ID, out[0].ID, "the contested key replays the concurrent winner")

	// Only the uncontested input was applied here: 25 + 4.
	require.Equal(t, int64(29), repo.items[1].TotalPackages())
	require.Len(t, repo.movements, 1)
	require.Len(t, repo.logs, 1)
}

func TestSubmitMovementKeyScopedToOwner(t *testing.T) {
	itemA := testItem() // owner 7
	itemB := testItem()
	itemB.ID = 2
	itemB.OwnerID = 8
	itemB.SKU = "AS-100"
	repo := newMemoryRepo(itemA, itemB)
	svc, _ := newTestService(repo)
	supplier := int64(3)

	first, _, err := svc.SubmitMovement(context.Background(), MovementInput{
		OwnerID: 7, ItemID: 1, Type: MovementIn, Unit: UnitPackage, Quantity: 10,
		SupplierID: &supplier, IdempotencyKey: "shared-key", ActorID: 7,
	})
	require.NoError(t, err)

	// Another owner presenting the same key must not be handed the first
	// owner's movement; the attempt fails without touching either balance.
	m, replayed, err := svc.SubmitMovement(context.Background(), MovementInput{
		OwnerID: 8, ItemID: 2, Type: MovementIn, Unit: UnitPackage, Quantity: 10,
		SupplierID: &supplier, IdempotencyKey: "shared-key", ActorID: 8,
	})
	require.ErrorIs(t, err, ErrMovementNotFound)
	require.False(t, replayed)
	require.Zero(t, m.ID)
	require.Equal(t, int64(25), repo.items[2].TotalPackages())

	// The owning tenant still replays normally.
	again, replayed, err := svc.SubmitMovement(context.Background(), MovementInput{
		OwnerID: 7, ItemID: 1, Type: MovementIn, Unit: UnitPackage, Quantity: 10,
		SupplierID: &supplier, IdempotencyKey: "shared-key", ActorID: 7,
	})
	require.NoError(t, err)
	require.True(t, replayed)
	require.Equal(t, first.ID, again.ID)
}

func TestSubmitMovementConversionGuard(t *testing.T) {
	repo := newMemoryRepo(testItem())
	svc, _ := newTestService(repo)
	supplier := int64(3)
	pallets, packages, claimed := int64(2), int64(5), int64(24)

	_, _, err := svc.SubmitMovement(context.Background(), MovementInput{
		OwnerID: 7, ItemID: 1, Type: MovementIn, Unit: UnitPallet, Quantity: 2,
		QtyPallets: &pallets, QtyPackages: &packages, ClaimedBase: &claimed,
		SupplierID: &supplier, ActorID: 7,
	})
	require.ErrorIs(t, err, ErrConversionMismatch)
	require.Empty(t, repo.movements)
	require.Equal(t, int64(25), repo.items[1].TotalPackages())
}

func TestSubmitBatchIsAtomic(t *testing.T) {
	itemA := testItem()
	itemB := testItem()
	itemB.ID = 2
	itemB.SKU = "AS-100"
	repo := newMemoryRepo(itemA, itemB)
	svc, _ := newTestService(repo)

	_, err := svc.SubmitBatch(context.Background(), []MovementInput{
		{OwnerID: 7, ItemID: 1, Type: MovementOut, Unit: UnitPackage, Quantity: 5, ActorID: 7},
		{OwnerID: 7, ItemID: 2, Type: MovementOut, Unit: UnitPackage, Quantity: 999, ActorID: 7},
	})
	require.ErrorIs(t, err, ErrInsufficientStock)

	// The first line must not have shipped.
	require.Equal(t, int64(25), repo.items[1].TotalPackages())
	require.Equal(t, int64(25), repo.items[2].TotalPackages())
	require.Empty(t, repo.movements)
}

func TestSubmitBatchReplaysExistingKeys(t *testing.T) {
	repo := newMemoryRepo(testItem())
	svc, _ := newTestService(repo)
	supplier := int64(3)

	_, _, err := svc.SubmitMovement(context.Background(), MovementInput{
		OwnerID: 7, ItemID: 1, Type: MovementIn, Unit: UnitPackage, Quantity: 10,
		SupplierID: &supplier, IdempotencyKey: "batch-1", ActorID: 7,
	})
	require.NoError(t, err)

	out, err := svc.SubmitBatch(context.Background(), []MovementInput{
		{OwnerID: 7, ItemID: 1, Type: MovementIn, Unit: UnitPackage, Quantity: 10, SupplierID: &supplier, IdempotencyKey: "batch-1", ActorID: 7},
		{OwnerID: 7, ItemID: 1, Type: MovementIn, Unit: UnitPackage, Quantity: 4, SupplierID: &supplier, IdempotencyKey: "batch-2", ActorID: 7},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)

	// 25 + 10 (once) + 4.
	require.Equal(t, int64(39), repo.items[1].TotalPackages())
	require.Len(t, repo.movements, 2)
}

func TestGetBalance(t *testing.T) {
	item := testItem()
	item.DefectiveCount = 4
	repo := newMemoryRepo(item)
	svc, _ := newTestService(repo)

	b, err := svc.GetBalance(context.Background(), 7, 1)
	require.NoError(t, err)
	require.Equal(t, int64(25), b.Total)
	require.Equal(t, int64(4), b.DefectiveCount)
	require.False(t, b.LowStock)

	low, err := svc.CheckLowStock(context.Background(), 7, 1)
	require.NoError(t, err)
	require.False(t, low)

	_, err = svc.GetBalance(context.Background(), 8, 1)
	require.ErrorIs(t, err, ErrItemNotFound, "foreign owner must not see the item")
}
