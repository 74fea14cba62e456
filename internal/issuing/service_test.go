package issuing

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-wms/meridian-wms/internal/inventory"
	"github.com/meridian-wms/meridian-wms/internal/masterdata"
	"github.com/meridian-wms/meridian-wms/internal/orders"
)

type memoryRepo struct {
	notes  map[int64]IssueNote
	lines  map[int64][]IssueLine
	nextID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{notes: map[int64]IssueNote{}, lines: map[int64][]IssueLine{}}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, r)
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (IssueNote, []IssueLine, error) {
	note, ok := r.notes[id]
	if !ok {
		return IssueNote{}, nil, ErrNoteNotFound
	}
	return note, r.lines[id], nil
}

func (r *memoryRepo) CreateNote(ctx context.Context, note IssueNote) (int64, error) {
	r.nextID++
	note.ID = r.nextID
	r.notes[note.ID] = note
	return note.ID, nil
}

func (r *memoryRepo) InsertLine(ctx context.Context, line IssueLine) (int64, error) {
	r.nextID++
	line.ID = r.nextID
	r.lines[line.NoteID] = append(r.lines[line.NoteID], line)
	return line.ID, nil
}

func (r *memoryRepo) UpdateStatus(ctx context.Context, noteID int64, status IssueNoteStatus) error {
	note, ok := r.notes[noteID]
	if !ok {
		return ErrNoteNotFound
	}
	note.Status = status
	r.notes[noteID] = note
	return nil
}

func (r *memoryRepo) SetLineLedgerEntry(ctx context.Context, lineID, entryID int64) error {
	for noteID, lines := range r.lines {
		for i := range lines {
			if lines[i].ID == lineID {
				lines[i].LedgerEntryID = entryID
				r.lines[noteID] = lines
				return nil
			}
		}
	}
	return errors.New("line not found")
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

type fulfilment struct {
	orderID int64
	item    inventory.ItemRef
	qty     decimal.Decimal
}

type fakeOrderBook struct {
	order     orders.SalesOrder
	lines     []orders.SalesOrderLine
	fulfilled []fulfilment
}

func (b *fakeOrderBook) Get(ctx context.Context, id int64) (orders.SalesOrder, []orders.SalesOrderLine, error) {
	if id != b.order.ID {
		return orders.SalesOrder{}, nil, orders.ErrOrderNotFound
	}
	return b.order, b.lines, nil
}

func (b *fakeOrderBook) AddFulfilled(ctx context.Context, orderID int64, item inventory.ItemRef, qty decimal.Decimal) error {
	b.fulfilled = append(b.fulfilled, fulfilment{orderID: orderID, item: item, qty: qty})
	return nil
}

func product(id int64) inventory.ItemRef {
	return inventory.ItemRef{Kind: inventory.ItemKindProduct, ID: id}
}

func productLine(id, n int64) LineInput {
	return LineInput{Item: product(id), Quantity: decimal.NewFromInt(n)}
}

func openOrder(id int64) *fakeOrderBook {
	return &fakeOrderBook{
		order: orders.SalesOrder{ID: id, Number: "SO-1", Status: orders.SalesOrderStatusOpen},
		lines: []orders.SalesOrderLine{
			{OrderID: id, Item: product(1), QuantityOrdered: decimal.NewFromInt(20)},
			{OrderID: id, Item: product(2), QuantityOrdered: decimal.NewFromInt(5)},
		},
	}
}

func TestPostBuildsOutboundBatch(t *testing.T) {
	engine := &fakeEngine{}
	svc := NewService(newMemoryRepo(), engine, fakeResolver{}, &fakeOrderBook{}, nil, nil)
	ctx := context.Background()

	note, err := svc.Create(ctx, CreateInput{
		WarehouseID: 1,
		CustomerID:  7,
		Lines:       []LineInput{productLine(1, 3), productLine(2, 4)},
	})
	require.NoError(t, err)
	require.NoError(t, svc.Post(ctx, note.ID))

	require.Len(t, engine.batches, 1)
	for _, req := range engine.batches[0] {
		require.Equal(t, inventory.DirectionOut, req.Direction)
		require.Equal(t, inventory.DocTypeGoodsIssue, req.DocType)
		require.Equal(t, note.DocRef, req.DocID)
	}
}

func TestPostAdvancesFulfilmentGrouped(t *testing.T) {
	book := openOrder(42)
	svc := NewService(newMemoryRepo(), &fakeEngine{}, fakeResolver{}, book, nil, nil)
	ctx := context.Background()
	orderID := int64(42)

	// Item 1 appears on two lines; fulfilment must see one grouped total.
	note, err := svc.Create(ctx, CreateInput{
		WarehouseID:  1,
		CustomerID:   7,
		SalesOrderID: &orderID,
		Lines:        []LineInput{productLine(1, 3), productLine(2, 5), productLine(1, 4)},
	})
	require.NoError(t, err)
	require.NoError(t, svc.Post(ctx, note.ID))

	require.Len(t, book.fulfilled, 2)
	require.Equal(t, product(1), book.fulfilled[0].item)
	require.True(t, book.fulfilled[0].qty.Equal(decimal.NewFromInt(7)))
	require.Equal(t, product(2), book.fulfilled[1].item)
	require.True(t, book.fulfilled[1].qty.Equal(decimal.NewFromInt(5)))
}

func TestPostRejectsClosedOrder(t *testing.T) {
	book := openOrder(42)
	book.order.Status = orders.SalesOrderStatusFulfilled
	engine := &fakeEngine{}
	svc := NewService(newMemoryRepo(), engine, fakeResolver{}, book, nil, nil)
	ctx := context.Background()
	orderID := int64(42)

	note, err := svc.Create(ctx, CreateInput{
		WarehouseID:  1,
		CustomerID:   7,
		SalesOrderID: &orderID,
		Lines:        []LineInput{productLine(1, 1)},
	})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Post(ctx, note.ID), ErrOrderNotOpen)
	require.Empty(t, engine.batches, "closed order must stop the batch before stock moves")
}

func TestPostRejectsOverFulfilmentEarly(t *testing.T) {
	book := openOrder(42)
	engine := &fakeEngine{}
	svc := NewService(newMemoryRepo(), engine, fakeResolver{}, book, nil, nil)
	ctx := context.Background()
	orderID := int64(42)

	note, err := svc.Create(ctx, CreateInput{
		WarehouseID:  1,
		CustomerID:   7,
		SalesOrderID: &orderID,
		Lines:        []LineInput{productLine(2, 6)},
	})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Post(ctx, note.ID), orders.ErrOverFulfilled)
	require.Empty(t, engine.batches)
	require.Empty(t, book.fulfilled)
}

func TestPostKeepsDraftOnInsufficientStock(t *testing.T) {
	repo := newMemoryRepo()
	book := openOrder(42)
	engine := &fakeEngine{fail: inventory.ErrInsufficientStock}
	svc := NewService(repo, engine, fakeResolver{}, book, nil, nil)
	ctx := context.Background()
	orderID := int64(42)

	note, err := svc.Create(ctx, CreateInput{
		WarehouseID:  1,
		CustomerID:   7,
		SalesOrderID: &orderID,
		Lines:        []LineInput{productLine(1, 3)},
	})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Post(ctx, note.ID), inventory.ErrInsufficientStock)
	require.Empty(t, book.fulfilled, "no fulfilment when the batch fails")

	current, _, err := svc.Get(ctx, note.ID)
	require.NoError(t, err)
	require.Equal(t, IssueStatusDraft, current.Status)
}

func TestGroupByItemKeepsOrder(t *testing.T) {
	lines := []IssueLine{
		{Item: product(3), Quantity: decimal.NewFromInt(1)},
		{Item: product(1), Quantity: decimal.NewFromInt(2)},
		{Item: product(3), Quantity: decimal.NewFromInt(4)},
	}
	totals := groupByItem(lines)
	require.Len(t, totals, 2)
	require.Equal(t, product(3), totals[0].item)
	require.True(t, totals[0].quantity.Equal(decimal.NewFromInt(5)))
	require.Equal(t, product(1), totals[1].item)
	require.True(t, totals[1].quantity.Equal(decimal.NewFromInt(2)))
}
