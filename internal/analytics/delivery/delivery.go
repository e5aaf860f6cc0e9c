// Package delivery computes per-order delivery performance: actual versus
// estimated delivery spans, lateness classification, and the delay buckets
// used for satisfaction correlation. Its output feeds seller scoring and
// the monthly trend metrics.
package delivery

import (
	"context"
	"log/slog"
	"time"

	apperrors "ecomcli/internal/errors"
	"ecomcli/internal/store"
)

// Bucket classifies an order's delivery delay for satisfaction
// correlation.
type Bucket int

const (
	// BucketEarly means delivered more than 3 days before the estimate.
	BucketEarly Bucket = iota
	// BucketOnTime means within 3 days either side of the estimate.
	BucketOnTime
	// BucketLate means 4 to 10 days past the estimate.
	BucketLate
	// BucketVeryLate means more than 10 days past the estimate.
	BucketVeryLate

	numBuckets
)

// String returns the bucket label used in result tables.
func (b Bucket) String() string {
	switch b {
	case BucketEarly:
		return "early"
	case BucketOnTime:
		return "on_time"
	case BucketLate:
		return "late"
	case BucketVeryLate:
		return "very_late"
	default:
		return "unknown"
	}
}

// Classify maps a delivery delta in days to its bucket. The boundaries are
// fixed: early < -3, on-time -3..3, late 4..10, very late > 10.
func Classify(deltaDays int) Bucket {
	switch {
	case deltaDays < -3:
		return BucketEarly
	case deltaDays <= 3:
		return BucketOnTime
	case deltaDays <= 10:
		return BucketLate
	default:
		return BucketVeryLate
	}
}

// OrderDelivery holds the delivery deltas for one delivered order.
type OrderDelivery struct {
	OrderID       string `json:"order_id"`
	DeliveryDays  int    `json:"delivery_days"`
	EstimatedDays int    `json:"estimated_days"`
	DeltaDays     int    `json:"delta_days"`
	IsLate        bool   `json:"is_late"`
	Bucket        Bucket `json:"bucket"`
}

// BucketStat aggregates orders and review scores per delay bucket.
type BucketStat struct {
	Bucket         Bucket  `json:"bucket"`
	Orders         int     `json:"orders"`
	ReviewedOrders int     `json:"reviewed_orders"`
	AvgReviewScore float64 `json:"avg_review_score"`
}

// Result is the delivery analysis output for one run.
type Result struct {
	Orders     []OrderDelivery
	Buckets    []BucketStat
	Exclusions *apperrors.ExclusionCounter

	byOrder map[string]OrderDelivery
}

// ByOrder returns the delivery record of an order, if it was measurable.
func (r *Result) ByOrder(orderID string) (OrderDelivery, bool) {
	od, ok := r.byOrder[orderID]
	return od, ok
}

// Analyzer computes delivery performance over a snapshot.
type Analyzer struct {
	logger *slog.Logger
}

// New creates a delivery analyzer.
func New(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{logger: logger}
}

// Analyze computes delivery deltas for every delivered order with complete
// dates. Orders missing any of the three dates are excluded from delivery
// metrics entirely and counted, never treated as on-time.
func (a *Analyzer) Analyze(ctx context.Context, snap *store.Snapshot) (*Result, error) {
	start := time.Now()

	result := &Result{
		Exclusions: apperrors.NewExclusionCounter(),
		byOrder:    make(map[string]OrderDelivery),
	}

	sums := make([]struct {
		orders      int
		scoreSum    int
		scoredCount int
	}, numBuckets)

	for _, order := range snap.DeliveredOrders() {
		if !order.HasDeliveryDates() {
			result.Exclusions.Add(apperrors.CodeIncompleteRecord, 1)
			continue
		}

		delta := daysBetween(order.EstimatedDelivery, order.DeliveredAt)
		od := OrderDelivery{
			OrderID:       order.OrderID,
			DeliveryDays:  daysBetween(order.PurchasedAt, order.DeliveredAt),
			EstimatedDays: daysBetween(order.PurchasedAt, order.EstimatedDelivery),
			DeltaDays:     delta,
			IsLate:        delta > 0,
			Bucket:        Classify(delta),
		}
		result.Orders = append(result.Orders, od)
		result.byOrder[od.OrderID] = od

		sums[od.Bucket].orders++
		if review, ok := snap.ReviewFor(order.OrderID); ok && review.HasValidScore() {
			sums[od.Bucket].scoreSum += review.Score
			sums[od.Bucket].scoredCount++
		}
	}

	result.Buckets = make([]BucketStat, 0, numBuckets)
	for b := Bucket(0); b < numBuckets; b++ {
		stat := BucketStat{
			Bucket:         b,
			Orders:         sums[b].orders,
			ReviewedOrders: sums[b].scoredCount,
		}
		if sums[b].scoredCount > 0 {
			stat.AvgReviewScore = float64(sums[b].scoreSum) / float64(sums[b].scoredCount)
		}
		result.Buckets = append(result.Buckets, stat)
	}

	a.logger.InfoContext(ctx, "delivery analysis completed",
		"measured_orders", len(result.Orders),
		"excluded_incomplete", result.Exclusions.Count(apperrors.CodeIncompleteRecord),
		"duration", time.Since(start),
	)

	return result, nil
}

// daysBetween returns whole calendar days from one timestamp's date to
// another's. Working at date granularity keeps a late-evening delivery on
// the estimated day counted as on time.
func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}
