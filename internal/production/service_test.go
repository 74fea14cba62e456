package production

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-wms/meridian-wms/internal/inventory"
	"github.com/meridian-wms/meridian-wms/internal/masterdata"
)

type memoryRepo struct {
	orders     map[int64]Order
	components map[int64][]Component
	nextID     int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orders: map[int64]Order{}, components: map[int64][]Component{}}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Order, []Component, error) {
	order, ok := r.orders[id]
	if !ok {
		return Order{}, nil, ErrOrderNotFound
	}
	return order, r.components[id], nil
}

func (r *memoryRepo) CreateOrder(ctx context.Context, order Order) (int64, error) {
	r.nextID++
	order.ID = r.nextID
	r.orders[order.ID] = order
	return order.ID, nil
}

func (r *memoryRepo) InsertComponent(ctx context.Context, component Component) (int64, error) {
	r.nextID++
	component.ID = r.nextID
	r.components[component.OrderID] = append(r.components[component.OrderID], component)
	return component.ID, nil
}

func (r *memoryRepo) UpdateStatus(ctx context.Context, orderID int64, status OrderStatus) error {
	order, ok := r.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	order.Status = status
	r.orders[orderID] = order
	return nil
}

func (r *memoryRepo) SetComponentLedgerEntry(ctx context.Context, componentID, entryID int64) error {
	for orderID, components := range r.components {
		for i := range components {
			if components[i].ID == componentID {
				components[i].LedgerEntryID = entryID
				r.components[orderID] = components
				return nil
			}
		}
	}
	return errors.New("component not found")
}

func (r *memoryRepo) SetOutputLedgerEntry(ctx context.Context, orderID, entryID int64) error {
	order, ok := r.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	order.OutputLedgerEntryID = entryID
	r.orders[orderID] = order
	return nil
}

type fakeEngine struct {
	batches [][]inventory.MovementRequest
	fail    error
	nextID  int64
}

func (e *fakeEngine) ApplyMovements(ctx context.Context, reqs []inventory.MovementRequest) ([]inventory.LedgerEntry, error) {
	if e.fail != nil {
		return nil, e.fail
	}
	e.batches = append(e.batches, reqs)
	entries := make([]inventory.LedgerEntry, 0, len(reqs))
	for _, req := range reqs {
		e.nextID++
		entries = append(entries, inventory.LedgerEntry{
			ID:          e.nextID,
			WarehouseID: req.WarehouseID,
			Item:        req.Item,
			Direction:   req.Direction,
			Quantity:    req.Quantity,
			DocType:     req.DocType,
			DocID:       req.DocID,
		})
	}
	return entries, nil
}

type fakeResolver struct{}

func (fakeResolver) CheckWarehouse(ctx context.Context, id int64) error {
	if id != 1 {
		return masterdata.ErrUnknownReference
	}
	return nil
}

func (fakeResolver) CheckItem(ctx context.Context, item inventory.ItemRef) error {
	if item.ID > 100 {
		return masterdata.ErrUnknownReference
	}
	return nil
}

func material(id, n int64) ComponentInput {
	return ComponentInput{
		Item:     inventory.ItemRef{Kind: inventory.ItemKindMaterial, ID: id},
		Quantity: decimal.NewFromInt(n),
	}
}

func draftOrder(t *testing.T, svc *Service) Order {
	t.Helper()
	order, err := svc.Create(context.Background(), CreateInput{
		WarehouseID: 1,
		ProductID:   5,
		Quantity:    decimal.NewFromInt(10),
		Components:  []ComponentInput{material(1, 20), material(2, 30)},
	})
	require.NoError(t, err)
	return order
}

func TestCreateValidatesComponents(t *testing.T) {
	svc := NewService(newMemoryRepo(), &fakeEngine{}, fakeResolver{}, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{WarehouseID: 1, ProductID: 5, Quantity: decimal.NewFromInt(10)})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, CreateInput{
		WarehouseID: 1,
		ProductID:   5,
		Quantity:    decimal.NewFromInt(10),
		Components:  []ComponentInput{material(1, 0)},
	})
	require.ErrorIs(t, err, ErrValidation)
}

func TestReleaseConsumesComponentsInOneBatch(t *testing.T) {
	repo := newMemoryRepo()
	engine := &fakeEngine{}
	svc := NewService(repo, engine, fakeResolver{}, nil, nil)
	ctx := context.Background()

	order := draftOrder(t, svc)
	require.NoError(t, svc.Release(ctx, order.ID))

	require.Len(t, engine.batches, 1)
	batch := engine.batches[0]
	require.Len(t, batch, 2)
	for _, req := range batch {
		require.Equal(t, inventory.DirectionOut, req.Direction)
		require.Equal(t, inventory.DocTypeProductionConsumption, req.DocType)
		require.Equal(t, order.DocRef, req.DocID)
	}

	released, components, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, OrderStatusReleased, released.Status)
	for _, component := range components {
		require.NotZero(t, component.LedgerEntryID)
	}
}

func TestReleaseKeepsDraftOnInsufficientStock(t *testing.T) {
	repo := newMemoryRepo()
	engine := &fakeEngine{fail: inventory.ErrInsufficientStock}
	svc := NewService(repo, engine, fakeResolver{}, nil, nil)
	ctx := context.Background()

	order := draftOrder(t, svc)
	require.ErrorIs(t, svc.Release(ctx, order.ID), inventory.ErrInsufficientStock)

	current, _, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, OrderStatusDraft, current.Status)
}

func TestCompleteCreditsFinishedProduct(t *testing.T) {
	repo := newMemoryRepo()
	engine := &fakeEngine{}
	svc := NewService(repo, engine, fakeResolver{}, nil, nil)
	ctx := context.Background()

	order := draftOrder(t, svc)
	require.NoError(t, svc.Release(ctx, order.ID))
	require.NoError(t, svc.Complete(ctx, order.ID))

	require.Len(t, engine.batches, 2)
	output := engine.batches[1]
	require.Len(t, output, 1)
	require.Equal(t, inventory.DirectionIn, output[0].Direction)
	require.Equal(t, inventory.DocTypeProductionOutput, output[0].DocType)
	require.Equal(t, inventory.ItemRef{Kind: inventory.ItemKindProduct, ID: 5}, output[0].Item)
	require.True(t, output[0].Quantity.Equal(decimal.NewFromInt(10)))

	completed, _, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, OrderStatusCompleted, completed.Status)
	require.NotZero(t, completed.OutputLedgerEntryID)
}

func TestCompleteRequiresRelease(t *testing.T) {
	svc := NewService(newMemoryRepo(), &fakeEngine{}, fakeResolver{}, nil, nil)
	ctx := context.Background()

	order := draftOrder(t, svc)
	require.ErrorIs(t, svc.Complete(ctx, order.ID), ErrInvalidState)
}

func TestCancelReleasedRejected(t *testing.T) {
	svc := NewService(newMemoryRepo(), &fakeEngine{}, fakeResolver{}, nil, nil)
	ctx := context.Background()

	order := draftOrder(t, svc)
	require.NoError(t, svc.Release(ctx, order.ID))
	require.ErrorIs(t, svc.Cancel(ctx, order.ID), ErrInvalidState)
}
