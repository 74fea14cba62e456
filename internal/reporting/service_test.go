package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridian-wms/meridian-wms/internal/inventory"
)

type fakeLedger struct {
	totals []inventory.MovementTotal
	calls  int
}

func (l *fakeLedger) Summarize(ctx context.Context, from, to time.Time, kind inventory.ItemKind) ([]inventory.MovementTotal, error) {
	l.calls++
	return l.totals, nil
}

type fakeStock struct {
	totals []ItemTotal
	calls  int
}

func (s *fakeStock) CurrentTotals(ctx context.Context, kind inventory.ItemKind) ([]ItemTotal, error) {
	s.calls++
	return s.totals, nil
}

func material(id int64) inventory.ItemRef {
	return inventory.ItemRef{Kind: inventory.ItemKindMaterial, ID: id}
}

func dec(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}

func TestStockSummaryDerivesBeginning(t *testing.T) {
	ledger := &fakeLedger{totals: []inventory.MovementTotal{
		{Item: material(1), Direction: inventory.DirectionIn, Total: dec(50)},
		{Item: material(1), Direction: inventory.DirectionOut, Total: dec(20)},
	}}
	stock := &fakeStock{totals: []ItemTotal{{Item: material(1), Total: dec(80)}}}
	svc := NewService(ledger, stock, nil, time.Minute)

	summary, err := svc.StockSummary(context.Background(), time.Time{}, time.Time{}, "")
	require.NoError(t, err)
	require.Len(t, summary.Rows, 1)

	row := summary.Rows[0]
	require.Equal(t, material(1), row.Item)
	// ending 80, in 50, out 20 -> beginning 50
	require.True(t, row.Beginning.Equal(dec(50)))
	require.True(t, row.Incoming.Equal(dec(50)))
	require.True(t, row.Outgoing.Equal(dec(20)))
	require.True(t, row.Ending.Equal(dec(80)))
}

func TestStockSummaryIncludesItemsWithoutMovements(t *testing.T) {
	ledger := &fakeLedger{}
	stock := &fakeStock{totals: []ItemTotal{{Item: material(7), Total: dec(12)}}}
	svc := NewService(ledger, stock, nil, time.Minute)

	summary, err := svc.StockSummary(context.Background(), time.Time{}, time.Time{}, "")
	require.NoError(t, err)
	require.Len(t, summary.Rows, 1)
	require.True(t, summary.Rows[0].Beginning.Equal(dec(12)), "no movements means beginning equals ending")
	require.True(t, summary.Rows[0].Ending.Equal(dec(12)))
}

func TestStockSummaryRowsSorted(t *testing.T) {
	ledger := &fakeLedger{totals: []inventory.MovementTotal{
		{Item: inventory.ItemRef{Kind: inventory.ItemKindProduct, ID: 1}, Direction: inventory.DirectionIn, Total: dec(5)},
		{Item: material(2), Direction: inventory.DirectionIn, Total: dec(5)},
		{Item: material(1), Direction: inventory.DirectionIn, Total: dec(5)},
	}}
	svc := NewService(ledger, &fakeStock{}, nil, time.Minute)

	summary, err := svc.StockSummary(context.Background(), time.Time{}, time.Time{}, "")
	require.NoError(t, err)
	require.Len(t, summary.Rows, 3)
	require.Equal(t, material(1), summary.Rows[0].Item)
	require.Equal(t, material(2), summary.Rows[1].Item)
	require.Equal(t, inventory.ItemRef{Kind: inventory.ItemKindProduct, ID: 1}, summary.Rows[2].Item)
}

func TestStockSummaryServedFromCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ledger := &fakeLedger{totals: []inventory.MovementTotal{
		{Item: material(1), Direction: inventory.DirectionIn, Total: dec(50)},
	}}
	stock := &fakeStock{totals: []ItemTotal{{Item: material(1), Total: dec(50)}}}
	svc := NewService(ledger, stock, client, time.Minute)
	ctx := context.Background()

	first, err := svc.StockSummary(ctx, time.Time{}, time.Time{}, inventory.ItemKindMaterial)
	require.NoError(t, err)
	second, err := svc.StockSummary(ctx, time.Time{}, time.Time{}, inventory.ItemKindMaterial)
	require.NoError(t, err)

	require.Equal(t, 1, ledger.calls, "second call must come from cache")
	require.Equal(t, 1, stock.calls)
	require.Equal(t, len(first.Rows), len(second.Rows))
}

func TestStockSummaryCacheExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ledger := &fakeLedger{}
	stock := &fakeStock{}
	svc := NewService(ledger, stock, client, time.Second)
	ctx := context.Background()

	_, err := svc.StockSummary(ctx, time.Time{}, time.Time{}, "")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	_, err = svc.StockSummary(ctx, time.Time{}, time.Time{}, "")
	require.NoError(t, err)
	require.Equal(t, 2, ledger.calls)
}
