// Package revenue computes the monthly trend metrics: revenue, order and
// customer counts, averages, and month-over-month growth.
//
// Only months with at least one delivered order appear; calendar gaps are
// not synthesized. Growth for a month is computed against the immediately
// preceding present month, so a sparse-month gap silently collapses the
// baseline to the nearest earlier observed month. That behavior is a design
// choice carried from the reporting layer this feeds and must be preserved.
package revenue

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"ecomcli/internal/analytics/delivery"
	apperrors "ecomcli/internal/errors"
	"ecomcli/internal/store"
)

// MonthlyMetric is one month's aggregate row. PrevMonthRevenue and
// MoMGrowthPct are nil for the first present month and whenever the
// baseline is zero.
type MonthlyMetric struct {
	Month              string   `json:"month"`
	TotalRevenue       float64  `json:"total_revenue"`
	OrderCount         int      `json:"order_count"`
	UniqueCustomers    int      `json:"unique_customers"`
	NewCustomers       int      `json:"new_customers"`
	ReturningCustomers int      `json:"returning_customers"`
	AvgOrderValue      float64  `json:"avg_order_value"`
	AvgReviewScore     float64  `json:"avg_review_score"`
	ReviewedOrders     int      `json:"reviewed_orders"`
	AvgDeliveryDays    float64  `json:"avg_delivery_days"`
	OnTimeRate         float64  `json:"on_time_rate"`
	MeasuredDeliveries int      `json:"measured_deliveries"`
	PrevMonthRevenue   *float64 `json:"prev_month_revenue,omitempty"`
	MoMGrowthPct       *float64 `json:"mom_growth_pct,omitempty"`
}

// Result holds the monthly series in chronological order.
type Result struct {
	Months       []MonthlyMetric
	TotalRevenue float64
	Exclusions   *apperrors.ExclusionCounter
}

// Aggregator computes the monthly series from a snapshot.
type Aggregator struct {
	logger *slog.Logger
}

// New creates a revenue aggregator.
func New(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{logger: logger}
}

// monthAccumulator carries the per-month running sums of the first pass.
type monthAccumulator struct {
	revenue         float64
	orders          int
	persons         map[string]bool
	newPersons      map[string]bool
	reviewSum       int
	reviewedOrders  int
	deliveryDaysSum int
	onTimeCount     int
	measured        int
}

// Aggregate builds the monthly series over delivered orders. The delivery
// result contributes per-month delivery-day averages and on-time rates.
func (a *Aggregator) Aggregate(ctx context.Context, snap *store.Snapshot, del *delivery.Result) (*Result, error) {
	start := time.Now()

	result := &Result{Exclusions: apperrors.NewExclusionCounter()}

	delivered := snap.DeliveredOrders()

	// Pass 1: first delivered month per person, so the per-month pass can
	// split new from returning customers.
	firstMonth := make(map[string]string, len(delivered))
	for _, order := range delivered {
		if order.PurchasedAt.IsZero() {
			continue
		}
		person := snap.PersonFor(order.CustomerID)
		month := order.PurchaseMonth()
		if existing, ok := firstMonth[person]; !ok || month < existing {
			firstMonth[person] = month
		}
	}

	// Pass 2: per-month accumulation.
	months := make(map[string]*monthAccumulator)
	for _, order := range delivered {
		if order.PurchasedAt.IsZero() {
			result.Exclusions.Add(apperrors.CodeIncompleteRecord, 1)
			continue
		}

		month := order.PurchaseMonth()
		acc, ok := months[month]
		if !ok {
			acc = &monthAccumulator{
				persons:    make(map[string]bool),
				newPersons: make(map[string]bool),
			}
			months[month] = acc
		}

		payment := snap.OrderPayment(order.OrderID)
		acc.revenue += payment
		acc.orders++
		result.TotalRevenue += payment

		person := snap.PersonFor(order.CustomerID)
		acc.persons[person] = true
		if firstMonth[person] == month {
			acc.newPersons[person] = true
		}

		if review, ok := snap.ReviewFor(order.OrderID); ok && review.HasValidScore() {
			acc.reviewSum += review.Score
			acc.reviewedOrders++
		}

		if od, ok := del.ByOrder(order.OrderID); ok {
			acc.deliveryDaysSum += od.DeliveryDays
			acc.measured++
			if !od.IsLate {
				acc.onTimeCount++
			}
		}
	}

	keys := make([]string, 0, len(months))
	for month := range months {
		keys = append(keys, month)
	}
	// Year-month keys sort lexicographically in chronological order.
	sort.Strings(keys)

	result.Months = make([]MonthlyMetric, 0, len(keys))
	for _, month := range keys {
		acc := months[month]
		metric := MonthlyMetric{
			Month:              month,
			TotalRevenue:       acc.revenue,
			OrderCount:         acc.orders,
			UniqueCustomers:    len(acc.persons),
			NewCustomers:       len(acc.newPersons),
			ReturningCustomers: len(acc.persons) - len(acc.newPersons),
			ReviewedOrders:     acc.reviewedOrders,
			MeasuredDeliveries: acc.measured,
		}
		if acc.orders > 0 {
			metric.AvgOrderValue = acc.revenue / float64(acc.orders)
		}
		if acc.reviewedOrders > 0 {
			metric.AvgReviewScore = float64(acc.reviewSum) / float64(acc.reviewedOrders)
		}
		if acc.measured > 0 {
			metric.AvgDeliveryDays = float64(acc.deliveryDaysSum) / float64(acc.measured)
			metric.OnTimeRate = float64(acc.onTimeCount) / float64(acc.measured)
		}
		result.Months = append(result.Months, metric)
	}

	applyGrowth(result)

	a.logger.InfoContext(ctx, "revenue aggregation completed",
		"months", len(result.Months),
		"total_revenue", result.TotalRevenue,
		"duration", time.Since(start),
	)

	return result, nil
}

// applyGrowth fills the month-over-month fields against the previous
// present month. The first month and zero baselines yield nil growth,
// guarded, never a divide-by-zero fault.
func applyGrowth(result *Result) {
	for i := range result.Months {
		if i == 0 {
			continue
		}
		prev := result.Months[i-1].TotalRevenue
		prevCopy := prev
		result.Months[i].PrevMonthRevenue = &prevCopy
		if prev == 0 {
			result.Exclusions.Add(apperrors.CodeDegenerateDenominator, 1)
			continue
		}
		growth := (result.Months[i].TotalRevenue - prev) / prev * 100
		result.Months[i].MoMGrowthPct = &growth
	}
}
