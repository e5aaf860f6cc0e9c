// Package concentration ranks revenue-bearing entities and computes the
// cumulative revenue share (Pareto) table.
//
// The analyzer is generic over the entity kind: seller scorecards and
// category aggregates both feed it. It needs the population's grand total
// before any share can be computed, so it is inherently two-pass: total
// first, then the ranked sweep.
package concentration

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"ecomcli/internal/analytics/seller"
	apperrors "ecomcli/internal/errors"
	"ecomcli/internal/store"
)

// Entity is one revenue-bearing unit to rank.
type Entity struct {
	ID      string
	Revenue float64
}

// Record is one ranked row of the concentration table.
type Record struct {
	Rank              int     `json:"rank"`
	EntityID          string  `json:"entity_id"`
	Revenue           float64 `json:"revenue"`
	RevenueShare      float64 `json:"revenue_share_pct"`
	CumulativeRevenue float64 `json:"cumulative_revenue"`
	CumulativePct     float64 `json:"cumulative_pct"`
	PercentileTier    string  `json:"percentile_tier"`
}

// Percentile tier labels, assigned by rank position over the entity count.
const (
	TierTop    = "Top 20%"
	TierMiddle = "Middle 30%"
	TierBottom = "Bottom 50%"
)

// Result is the ranked table for one entity kind.
type Result struct {
	Kind         string
	Records      []Record
	TotalRevenue float64
	Exclusions   *apperrors.ExclusionCounter
}

// Analyzer computes concentration tables.
type Analyzer struct {
	logger *slog.Logger
}

// New creates a concentration analyzer.
func New(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{logger: logger}
}

// Rank sorts the entities by revenue descending and fills cumulative shares
// and percentile tiers. Revenue ties break by entity id ascending so the
// table is stable across runs. A zero grand total cannot yield shares; the
// whole population is excluded and an empty table returned.
func (a *Analyzer) Rank(ctx context.Context, kind string, entities []Entity) (*Result, error) {
	start := time.Now()

	result := &Result{
		Kind:       kind,
		Exclusions: apperrors.NewExclusionCounter(),
	}

	if len(entities) == 0 {
		return result, nil
	}

	// Pass 1: grand total.
	for _, e := range entities {
		result.TotalRevenue += e.Revenue
	}
	if result.TotalRevenue == 0 {
		result.Exclusions.Add(apperrors.CodeDegenerateDenominator, len(entities))
		a.logger.WarnContext(ctx, "zero total revenue, concentration table empty", "kind", kind)
		return result, nil
	}

	sorted := make([]Entity, len(entities))
	copy(sorted, entities)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Revenue != sorted[j].Revenue {
			return sorted[i].Revenue > sorted[j].Revenue
		}
		return sorted[i].ID < sorted[j].ID
	})

	// Pass 2: ranked sweep. The last row's cumulative share is forced to
	// exactly 100 so float drift never leaves the table short.
	n := len(sorted)
	cumulative := 0.0
	result.Records = make([]Record, 0, n)
	for i, e := range sorted {
		cumulative += e.Revenue
		cumPct := cumulative / result.TotalRevenue * 100
		if i == n-1 {
			cumPct = 100
		}
		result.Records = append(result.Records, Record{
			Rank:              i + 1,
			EntityID:          e.ID,
			Revenue:           e.Revenue,
			RevenueShare:      round2(e.Revenue / result.TotalRevenue * 100),
			CumulativeRevenue: cumulative,
			CumulativePct:     round2(cumPct),
			PercentileTier:    tierForRank(i+1, n),
		})
	}

	a.logger.InfoContext(ctx, "concentration analysis completed",
		"kind", kind,
		"entities", n,
		"total_revenue", result.TotalRevenue,
		"duration", time.Since(start),
	)

	return result, nil
}

// tierForRank assigns the percentile tier by rank position: the top fifth of
// entities by count, the next three tenths, then the rest.
func tierForRank(rank, total int) string {
	switch {
	case float64(rank) <= float64(total)*0.20:
		return TierTop
	case float64(rank) <= float64(total)*0.50:
		return TierMiddle
	default:
		return TierBottom
	}
}

// SellerEntities adapts seller scorecards, low-volume sellers included:
// concentration is about revenue mass, not tier eligibility.
func SellerEntities(res *seller.Result) []Entity {
	cards := res.All()
	entities := make([]Entity, 0, len(cards))
	for _, card := range cards {
		entities = append(entities, Entity{ID: card.SellerID, Revenue: card.TotalRevenue})
	}
	return entities
}

// CategoryEntities aggregates item revenue per product category over
// delivered orders, using the snapshot's translated category labels.
func CategoryEntities(snap *store.Snapshot) []Entity {
	byCategory := make(map[string]float64)
	for _, item := range snap.Items {
		order, ok := snap.OrderByID(item.OrderID)
		if !ok || !order.IsDelivered() {
			continue
		}
		byCategory[snap.CategoryFor(item.ProductID)] += item.ItemValue()
	}

	entities := make([]Entity, 0, len(byCategory))
	for category, revenue := range byCategory {
		entities = append(entities, Entity{ID: category, Revenue: revenue})
	}
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })
	return entities
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
