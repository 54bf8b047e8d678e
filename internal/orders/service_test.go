package orders

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MelihSuissefocus/Depotix/internal/ledger"
	"github.com/MelihSuissefocus/Depotix/internal/shared"
)

type fakeRepo struct {
	orders map[int64]Order
	nextID int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{orders: make(map[int64]Order), nextID: 1}
}

func (r *fakeRepo) Insert(ctx context.Context, o *Order) error {
	o.ID = r.nextID
	r.nextID++
	o.Number = fmt.Sprintf("LS-2026-%04d", o.ID)
	o.Status = StatusDraft
	for i := range o.Lines {
		o.Lines[i].ID = int64(i + 1)
		o.Lines[i].OrderID = o.ID
	}
	r.orders[o.ID] = *o
	return nil
}

func (r *fakeRepo) Get(ctx context.Context, ownerID, orderID int64) (Order, error) {
	o, ok := r.orders[orderID]
	if !ok || (ownerID != 0 && o.OwnerID != ownerID) {
		return Order{}, shared.ErrNotFound
	}
	return o, nil
}

func (r *fakeRepo) List(ctx context.Context, ownerID int64, status Status) ([]Order, error) {
	var out []Order
	for _, o := range r.orders {
		if (ownerID == 0 || o.OwnerID == ownerID) && (status == "" || o.Status == status) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdateStatus(ctx context.Context, ownerID, orderID int64, from, to Status) error {
	o, ok := r.orders[orderID]
	if !ok || o.Status != from {
		return ErrInvalidTransition
	}
	o.Status = to
	r.orders[orderID] = o
	return nil
}

func (r *fakeRepo) Delete(ctx context.Context, ownerID, orderID int64) error {
	if _, ok := r.orders[orderID]; !ok {
		return shared.ErrNotFound
	}
	delete(r.orders, orderID)
	return nil
}

type fakePoster struct {
	batches [][]ledger.MovementInput
	err     error
}

func (p *fakePoster) SubmitBatch(ctx context.Context, inputs []ledger.MovementInput) ([]ledger.Movement, error) {
	if p.err != nil {
		return nil, p.err
	}
	p.batches = append(p.batches, inputs)
	out := make([]ledger.Movement, len(inputs))
	for i, in := range inputs {
		out[i] = ledger.Movement{ID: int64(i + 1), ItemID: in.ItemID, Type: in.Type, Quantity: in.Quantity}
	}
	return out, nil
}

type fakeReverser struct {
	calls []int64
	err   error
}

func (f *fakeReverser) ReverseOrderFulfillment(ctx context.Context, ownerID, orderID, actorID int64) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, orderID)
	return nil
}

type fakeCustomers struct{ known map[int64]bool }

func (f fakeCustomers) Exists(ctx context.Context, ownerID, id int64) (bool, error) {
	return f.known[id], nil
}

func newTestService(repo *fakeRepo, poster *fakePoster, reverser *fakeReverser) *Service {
	return NewService(repo, poster, reverser, fakeCustomers{known: map[int64]bool{9: true}}, nil, nil)
}

func draftInput() CreateOrderInput {
	return CreateOrderInput{
		OwnerID:    7,
		CustomerID: 9,
		ActorID:    7,
		Lines: []Line{
			{ItemID: 1, QtyPackages: 6},
			{ItemID: 2, QtyPackages: 4},
		},
	}
}

func TestCreateOrder(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakePoster{}, &fakeReverser{})

	o, err := svc.Create(context.Background(), draftInput())
	require.NoError(t, err)
	require.Equal(t, StatusDraft, o.Status)
	require.NotEmpty(t, o.Number)
	require.Len(t, o.Lines, 2)
}

func TestCreateOrderValidation(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, &fakePoster{}, &fakeReverser{})

	in := draftInput()
	in.Lines = nil
	_, err := svc.Create(context.Background(), in)
	require.ErrorIs(t, err, ErrEmptyOrder)

	in = draftInput()
	in.Lines[0].QtyPackages = 0
	_, err = svc.Create(context.Background(), in)
	require.ErrorIs(t, err, shared.ErrInvalidInput)

	in = draftInput()
	in.CustomerID = 404
	_, err = svc.Create(context.Background(), in)
	require.ErrorIs(t, err, ErrUnknownCustomer)

	require.Empty(t, repo.orders)
}

func TestDeliverPostsMovementsAndFlipsStatus(t *testing.T) {
	repo := newFakeRepo()
	poster := &fakePoster{}
	svc := newTestService(repo, poster, &fakeReverser{})
	ctx := context.Background()

	o, err := svc.Create(ctx, draftInput())
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, 7, 7, o.ID)
	require.NoError(t, err)

	delivered, err := svc.Deliver(ctx, 7, 7, o.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, delivered.Status)

	require.Len(t, poster.batches, 1)
	inputs := poster.batches[0]
	require.Len(t, inputs, 2)
	for i, in := range inputs {
		require.Equal(t, ledger.MovementOut, in.Type)
		require.Equal(t, ledger.UnitPackage, in.Unit)
		require.Equal(t, o.Lines[i].ItemID, in.ItemID)
		require.Equal(t, o.Lines[i].QtyPackages, in.Quantity)
		require.Equal(t, fmt.Sprintf("order:%d:line:%d", o.ID, o.Lines[i].ID), in.IdempotencyKey)
		require.NotNil(t, in.OrderID)
		require.Equal(t, o.ID, *in.OrderID)
		require.NotNil(t, in.CustomerID)
		require.Equal(t, o.CustomerID, *in.CustomerID)
	}
}

func TestDeliverRequiresConfirmed(t *testing.T) {
	repo := newFakeRepo()
	poster := &fakePoster{}
	svc := newTestService(repo, poster, &fakeReverser{})
	ctx := context.Background()

	o, err := svc.Create(ctx, draftInput())
	require.NoError(t, err)

	_, err = svc.Deliver(ctx, 7, 7, o.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.Empty(t, poster.batches, "a draft order must not ship")
}

func TestDeliverKeepsStatusOnLedgerFailure(t *testing.T) {
	repo := newFakeRepo()
	poster := &fakePoster{err: ledger.ErrInsufficientStock}
	svc := newTestService(repo, poster, &fakeReverser{})
	ctx := context.Background()

	o, err := svc.Create(ctx, draftInput())
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, 7, 7, o.ID)
	require.NoError(t, err)

	_, err = svc.Deliver(ctx, 7, 7, o.ID)
	require.ErrorIs(t, err, ledger.ErrInsufficientStock)

	got, err := svc.Get(ctx, 7, o.ID)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, got.Status)
}

func TestDeleteDeliveredReversesFulfillment(t *testing.T) {
	repo := newFakeRepo()
	reverser := &fakeReverser{}
	svc := newTestService(repo, &fakePoster{}, reverser)
	ctx := context.Background()

	o, err := svc.Create(ctx, draftInput())
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, 7, 7, o.ID)
	require.NoError(t, err)
	_, err = svc.Deliver(ctx, 7, 7, o.ID)
	require.NoError(t, err)

	err = svc.Delete(ctx, 7, 7, o.ID)
	require.NoError(t, err)
	require.Equal(t, []int64{o.ID}, reverser.calls)

	_, err = svc.Get(ctx, 7, o.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeleteDraftSkipsReversal(t *testing.T) {
	repo := newFakeRepo()
	reverser := &fakeReverser{}
	svc := newTestService(repo, &fakePoster{}, reverser)
	ctx := context.Background()

	o, err := svc.Create(ctx, draftInput())
	require.NoError(t, err)

	err = svc.Delete(ctx, 7, 7, o.ID)
	require.NoError(t, err)
	require.Empty(t, reverser.calls)
}

func TestDeleteKeepsOrderWhenReversalFails(t *testing.T) {
	repo := newFakeRepo()
	reverser := &fakeReverser{err: ledger.ErrManualReviewRequired}
	svc := newTestService(repo, &fakePoster{}, reverser)
	ctx := context.Background()

	o, err := svc.Create(ctx, draftInput())
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, 7, 7, o.ID)
	require.NoError(t, err)
	_, err = svc.Deliver(ctx, 7, 7, o.ID)
	require.NoError(t, err)

	err = svc.Delete(ctx, 7, 7, o.ID)
	require.ErrorIs(t, err, ledger.ErrManualReviewRequired)

	_, err = svc.Get(ctx, 7, o.ID)
	require.NoError(t, err, "order must survive a failed reversal")
}
