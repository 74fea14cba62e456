package reporting

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/meridian-wms/meridian-wms/internal/inventory"
)

// LedgerSource aggregates ledger quantities over a window.
type LedgerSource interface {
	Summarize(ctx context.Context, from, to time.Time, kind inventory.ItemKind) ([]inventory.MovementTotal, error)
}

// StockSource reads current on-hand totals.
type StockSource interface {
	CurrentTotals(ctx context.Context, kind inventory.ItemKind) ([]ItemTotal, error)
}

// Service builds stock summaries. Results are cached in redis for a short
// TTL and concurrent builds for the same window are collapsed through
// singleflight, so a dashboard refresh storm hits the database once.
type Service struct {
	ledger LedgerSource
	stock  StockSource
	cache  *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	now    func() time.Time
}

// NewService constructs reporting service. A nil cache disables caching.
func NewService(ledger LedgerSource, stock StockSource, cache *redis.Client, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Service{ledger: ledger, stock: stock, cache: cache, ttl: ttl, now: time.Now}
}

// StockSummary returns the movement summary for the window. The report reads
// committed state only; it never takes the movement engine's locks.
func (s *Service) StockSummary(ctx context.Context, from, to time.Time, kind inventory.ItemKind) (StockSummary, error) {
	key := fmt.Sprintf("report:stock:%s:%d:%d", kind, from.Unix(), to.Unix())

	if cached, ok := s.fromCache(ctx, key); ok {
		return cached, nil
	}

	result, err, _ := s.group.Do(key, func() (any, error) {
		if cached, ok := s.fromCache(ctx, key); ok {
			return cached, nil
		}
		summary, err := s.build(ctx, from, to, kind)
		if err != nil {
			return StockSummary{}, err
		}
		s.toCache(ctx, key, summary)
		return summary, nil
	})
	if err != nil {
		return StockSummary{}, err
	}
	return result.(StockSummary), nil
}

func (s *Service) build(ctx context.Context, from, to time.Time, kind inventory.ItemKind) (StockSummary, error) {
	totals, err := s.ledger.Summarize(ctx, from, to, kind)
	if err != nil {
		return StockSummary{}, err
	}
	current, err := s.stock.CurrentTotals(ctx, kind)
	if err != nil {
		return StockSummary{}, err
	}

	type accum struct {
		in, out, ending decimal.Decimal
	}
	byItem := map[inventory.ItemRef]*accum{}
	get := func(item inventory.ItemRef) *accum {
		a, ok := byItem[item]
		if !ok {
			a = &accum{in: decimal.Zero, out: decimal.Zero, ending: decimal.Zero}
			byItem[item] = a
		}
		return a
	}
	for _, t := range totals {
		a := get(t.Item)
		if t.Direction == inventory.DirectionIn {
			a.in = a.in.Add(t.Total)
		} else {
			a.out = a.out.Add(t.Total)
		}
	}
	for _, t := range current {
		get(t.Item).ending = t.Total
	}

	rows := make([]StockSummaryRow, 0, len(byItem))
	for item, a := range byItem {
		rows = append(rows, StockSummaryRow{
			Item:      item,
			Beginning: a.ending.Sub(a.in).Add(a.out),
			Incoming:  a.in,
			Outgoing:  a.out,
			Ending:    a.ending,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Item.Kind != rows[j].Item.Kind {
			return rows[i].Item.Kind < rows[j].Item.Kind
		}
		return rows[i].Item.ID < rows[j].Item.ID
	})

	return StockSummary{From: from, To: to, Kind: kind, GeneratedAt: s.now().UTC(), Rows: rows}, nil
}

func (s *Service) fromCache(ctx context.Context, key string) (StockSummary, bool) {
	if s.cache == nil {
		return StockSummary{}, false
	}
	payload, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		return StockSummary{}, false
	}
	var summary StockSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return StockSummary{}, false
	}
	return summary, true
}

func (s *Service) toCache(ctx context.Context, key string, summary StockSummary) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return
	}
	_ = s.cache.Set(ctx, key, payload, s.ttl).Err()
}
