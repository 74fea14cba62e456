package inventory

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	mu      sync.Mutex
	lines   map[string]InventoryLine
	entries []LedgerEntry
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{lines: make(map[string]InventoryLine)}
}

func lineKey(warehouseID int64, item ItemRef) string {
	return item.String() + "@" + strconv.FormatInt(warehouseID, 10)
}

// memoryTx stages writes so a failed batch leaves the repo untouched, matching
// the rollback behaviour of the real repository.
type memoryTx struct {
	repo    *memoryRepo
	lines   map[string]InventoryLine
	entries []LedgerEntry
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{repo: r, lines: make(map[string]InventoryLine)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for key, line := range tx.lines {
		r.lines[key] = line
	}
	r.entries = append(r.entries, tx.entries...)
	return nil
}

func (r *memoryRepo) GetQuantity(ctx context.Context, warehouseID int64, item ItemRef) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if line, ok := r.lines[lineKey(warehouseID, item)]; ok {
		return line.Quantity, nil
	}
	return decimal.Zero, nil
}

func (r *memoryRepo) ListLedger(ctx context.Context, filter LedgerFilter) ([]LedgerEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make([]LedgerEntry, len(r.entries))
	copy(entries, r.entries)
	return entries, nil
}

func (r *memoryRepo) CountLedger(ctx context.Context, filter LedgerFilter) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries), nil
}

func (r *memoryRepo) Summarize(ctx context.Context, from, to time.Time, kind ItemKind) ([]MovementTotal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	totals := make(map[string]*MovementTotal)
	order := []string{}
	for _, e := range r.entries {
		if kind != "" && e.Item.Kind != kind {
			continue
		}
		if !from.IsZero() && e.PostedAt.Before(from) {
			continue
		}
		if !to.IsZero() && e.PostedAt.After(to) {
			continue
		}
		key := e.Item.String() + ":" + string(e.Direction)
		if _, ok := totals[key]; !ok {
			totals[key] = &MovementTotal{Item: e.Item, Direction: e.Direction, Total: decimal.Zero}
			order = append(order, key)
		}
		totals[key].Total = totals[key].Total.Add(e.Quantity)
	}
	result := make([]MovementTotal, 0, len(order))
	for _, key := range order {
		result = append(result, *totals[key])
	}
	return result, nil
}

func (tx *memoryTx) GetLineForUpdate(ctx context.Context, warehouseID int64, item ItemRef) (InventoryLine, error) {
	key := lineKey(warehouseID, item)
	if line, ok := tx.lines[key]; ok {
		return line, nil
	}
	if line, ok := tx.repo.lines[key]; ok {
		return line, nil
	}
	return InventoryLine{WarehouseID: warehouseID, Item: item, Quantity: decimal.Zero}, ErrLineNotFound
}

func (tx *memoryTx) UpsertLine(ctx context.Context, line InventoryLine) error {
	tx.lines[lineKey(line.WarehouseID, line.Item)] = line
	return nil
}

func (tx *memoryTx) InsertLedgerEntry(ctx context.Context, entry LedgerEntry) (int64, error) {
	tx.repo.nextID++
	entry.ID = tx.repo.nextID
	tx.entries = append(tx.entries, entry)
	return entry.ID, nil
}

func qty(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func receipt(warehouseID int64, item ItemRef, n int64) MovementRequest {
	return MovementRequest{
		WarehouseID: warehouseID,
		Item:        item,
		Direction:   DirectionIn,
		Quantity:    qty(n),
		DocType:     DocTypeGoodsReceipt,
		DocID:       uuid.New(),
	}
}

func issue(warehouseID int64, item ItemRef, n int64) MovementRequest {
	return MovementRequest{
		WarehouseID: warehouseID,
		Item:        item,
		Direction:   DirectionOut,
		Quantity:    qty(n),
		DocType:     DocTypeGoodsIssue,
		DocID:       uuid.New(),
	}
}

func TestReceiptCreatesLine(t *testing.T) {
	repo := newMemoryRepo()
	engine := NewEngine(repo, nil, nil)
	ctx := context.Background()
	m1 := ItemRef{Kind: ItemKindMaterial, ID: 1}

	entry, err := engine.ApplyMovement(ctx, receipt(1, m1, 50))
	require.NoError(t, err)
	require.Equal(t, DirectionIn, entry.Direction)
	require.True(t, entry.Quantity.Equal(qty(50)))

	balance, err := engine.Quantity(ctx, 1, m1)
	require.NoError(t, err)
	require.True(t, balance.Equal(qty(50)))
	require.Len(t, repo.entries, 1)
}

func TestInsufficientStockLeavesNoTrace(t *testing.T) {
	repo := newMemoryRepo()
	engine := NewEngine(repo, nil, nil)
	ctx := context.Background()
	m1 := ItemRef{Kind: ItemKindMaterial, ID: 1}

	_, err := engine.ApplyMovement(ctx, receipt(1, m1, 50))
	require.NoError(t, err)

	_, err = engine.ApplyMovement(ctx, issue(1, m1, 60))
	require.ErrorIs(t, err, ErrInsufficientStock)

	balance, err := engine.Quantity(ctx, 1, m1)
	require.NoError(t, err)
	require.True(t, balance.Equal(qty(50)), "rejected movement must not change stock")
	require.Len(t, repo.entries, 1, "rejected movement must not write a ledger entry")
}

func TestIssueReducesStock(t *testing.T) {
	repo := newMemoryRepo()
	engine := NewEngine(repo, nil, nil)
	ctx := context.Background()
	m1 := ItemRef{Kind: ItemKindMaterial, ID: 1}

	_, err := engine.ApplyMovement(ctx, receipt(1, m1, 50))
	require.NoError(t, err)
	_, err = engine.ApplyMovement(ctx, issue(1, m1, 20))
	require.NoError(t, err)

	balance, err := engine.Quantity(ctx, 1, m1)
	require.NoError(t, err)
	require.True(t, balance.Equal(qty(30)))
	require.Len(t, repo.entries, 2)
}

func TestInvalidQuantityRejected(t *testing.T) {
	engine := NewEngine(newMemoryRepo(), nil, nil)
	ctx := context.Background()
	m1 := ItemRef{Kind: ItemKindMaterial, ID: 1}

	bad := receipt(1, m1, 50)
	bad.Quantity = decimal.Zero
	_, err := engine.ApplyMovement(ctx, bad)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	bad.Quantity = qty(-5)
	_, err = engine.ApplyMovement(ctx, bad)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestBatchAllOrNothing(t *testing.T) {
	repo := newMemoryRepo()
	engine := NewEngine(repo, nil, nil)
	ctx := context.Background()
	m1 := ItemRef{Kind: ItemKindMaterial, ID: 1}
	m2 := ItemRef{Kind: ItemKindMaterial, ID: 2}

	_, err := engine.ApplyMovement(ctx, receipt(1, m1, 10))
	require.NoError(t, err)

	// Second line issues stock that does not exist, so line one must roll back.
	_, err = engine.ApplyMovements(ctx, []MovementRequest{
		receipt(1, m1, 5),
		issue(1, m2, 1),
	})
	require.ErrorIs(t, err, ErrInsufficientStock)

	balance, err := engine.Quantity(ctx, 1, m1)
	require.NoError(t, err)
	require.True(t, balance.Equal(qty(10)))
	require.Len(t, repo.entries, 1)
}

func TestBatchLinesSeeEarlierLines(t *testing.T) {
	repo := newMemoryRepo()
	engine := NewEngine(repo, nil, nil)
	ctx := context.Background()
	p1 := ItemRef{Kind: ItemKindProduct, ID: 7}

	entries, err := engine.ApplyMovements(ctx, []MovementRequest{
		receipt(1, p1, 5),
		issue(1, p1, 3),
	})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	balance, err := engine.Quantity(ctx, 1, p1)
	require.NoError(t, err)
	require.True(t, balance.Equal(qty(2)))
}

func TestConcurrentReceiptsLoseNoUpdates(t *testing.T) {
	repo := newMemoryRepo()
	engine := NewEngine(repo, nil, nil)
	ctx := context.Background()
	m1 := ItemRef{Kind: ItemKindMaterial, ID: 1}

	const n = 32
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.ApplyMovement(ctx, receipt(1, m1, 1))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	balance, err := engine.Quantity(ctx, 1, m1)
	require.NoError(t, err)
	require.True(t, balance.Equal(qty(n)))
	require.Len(t, repo.entries, n)
}

func TestLedgerReconcilesWithStock(t *testing.T) {
	repo := newMemoryRepo()
	engine := NewEngine(repo, nil, nil)
	ctx := context.Background()
	m1 := ItemRef{Kind: ItemKindMaterial, ID: 1}

	moves := []MovementRequest{
		receipt(1, m1, 40),
		issue(1, m1, 15),
		receipt(1, m1, 5),
		issue(1, m1, 30),
	}
	for _, m := range moves {
		_, err := engine.ApplyMovement(ctx, m)
		require.NoError(t, err)
	}

	balance, err := engine.Quantity(ctx, 1, m1)
	require.NoError(t, err)

	signed := decimal.Zero
	for _, e := range repo.entries {
		signed = signed.Add(e.SignedQuantity())
	}
	require.True(t, balance.Equal(signed), "stock must equal signed ledger sum")
	require.False(t, balance.IsNegative())
}

func TestSummarizeIsRepeatable(t *testing.T) {
	repo := newMemoryRepo()
	engine := NewEngine(repo, nil, nil)
	ctx := context.Background()
	m1 := ItemRef{Kind: ItemKindMaterial, ID: 1}

	_, err := engine.ApplyMovement(ctx, receipt(1, m1, 50))
	require.NoError(t, err)
	_, err = engine.ApplyMovement(ctx, issue(1, m1, 20))
	require.NoError(t, err)

	first, err := repo.Summarize(ctx, time.Time{}, time.Time{}, ItemKindMaterial)
	require.NoError(t, err)
	second, err := repo.Summarize(ctx, time.Time{}, time.Time{}, ItemKindMaterial)
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.Len(t, first, 2)
	require.True(t, first[0].Total.Equal(qty(50)))
	require.True(t, first[1].Total.Equal(qty(20)))
}
