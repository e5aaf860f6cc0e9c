// Package rfm scores customers on recency, frequency and monetary value and
// classifies them into named segments.
//
// Scores are quantile-relative: the 1-5 boundaries are computed once per run
// over the current population, never hardcoded, so segment proportions stay
// stable across dataset sizes while the labels remain relative. That forces
// a two-pass structure per dimension: collect the population, then apply
// boundaries.
//
// The population is persons with at least one delivered order. Cohort
// retention counts non-canceled orders instead; the filters differ on
// purpose.
package rfm

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	apperrors "ecomcli/internal/errors"
	"ecomcli/internal/store"
)

// CustomerRFM is one customer's scored row.
type CustomerRFM struct {
	CustomerUID   string    `json:"customer_unique_id"`
	City          string    `json:"customer_city"`
	State         string    `json:"customer_state"`
	RecencyDays   int       `json:"recency"`
	Frequency     int       `json:"frequency"`
	Monetary      float64   `json:"monetary"`
	RScore        int       `json:"r_score"`
	FScore        int       `json:"f_score"`
	MScore        int       `json:"m_score"`
	RFMCode       string    `json:"rfm_score"`
	Segment       string    `json:"segment"`
	FirstPurchase time.Time `json:"first_purchase_date"`
	LastPurchase  time.Time `json:"last_purchase_date"`
	TenureDays    int       `json:"customer_tenure_days"`
	AvgOrderValue float64   `json:"avg_order_value"`
}

// Result is the segmentation output for one run. SegmentCounts always sums
// to len(Customers): the segments partition the population.
type Result struct {
	Customers     []CustomerRFM
	SegmentCounts map[string]int
	ReferenceDate time.Time
	RuleVersion   string
	Exclusions    *apperrors.ExclusionCounter
}

// Engine scores and segments customers over a snapshot.
type Engine struct {
	table   RuleTable
	buckets int
	logger  *slog.Logger
}

// New creates an RFM engine bound to one rule table version and score scale.
func New(ruleVersion string, buckets int, logger *slog.Logger) (*Engine, error) {
	table, err := RuleTableForVersion(ruleVersion)
	if err != nil {
		return nil, err
	}
	if buckets < 2 {
		return nil, fmt.Errorf("rfm score buckets must be at least 2, got %d", buckets)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{table: table, buckets: buckets, logger: logger}, nil
}

// accumulator carries one person's running aggregates during the collection
// pass.
type accumulator struct {
	uid      string
	city     string
	state    string
	first    time.Time
	last     time.Time
	orders   int
	monetary float64
}

// Score aggregates per-person RFM metrics over delivered orders, buckets
// each dimension by population quantiles, and classifies every person into a
// segment.
func (e *Engine) Score(ctx context.Context, snap *store.Snapshot) (*Result, error) {
	start := time.Now()

	result := &Result{
		SegmentCounts: make(map[string]int),
		RuleVersion:   e.table.Version,
		Exclusions:    apperrors.NewExclusionCounter(),
	}

	// Pass 1: per-person aggregates.
	byPerson := make(map[string]*accumulator)
	var maxPurchase time.Time
	for _, order := range snap.DeliveredOrders() {
		if order.PurchasedAt.IsZero() {
			result.Exclusions.Add(apperrors.CodeIncompleteRecord, 1)
			continue
		}

		uid := snap.PersonFor(order.CustomerID)
		acc, ok := byPerson[uid]
		if !ok {
			acc = &accumulator{uid: uid, first: order.PurchasedAt, last: order.PurchasedAt}
			if c, ok := snap.CustomerFor(order.CustomerID); ok {
				acc.city = c.City
				acc.state = c.State
			}
			byPerson[uid] = acc
		}

		acc.orders++
		acc.monetary += snap.OrderPayment(order.OrderID)
		if order.PurchasedAt.Before(acc.first) {
			acc.first = order.PurchasedAt
		}
		if order.PurchasedAt.After(acc.last) {
			acc.last = order.PurchasedAt
		}
		if order.PurchasedAt.After(maxPurchase) {
			maxPurchase = order.PurchasedAt
		}
	}

	if len(byPerson) == 0 {
		e.logger.WarnContext(ctx, "no delivered orders to segment")
		return result, nil
	}

	// Recency is anchored one day past the latest purchase in the
	// population, so the most recent buyer still has positive recency.
	result.ReferenceDate = maxPurchase.AddDate(0, 0, 1)

	persons := make([]*accumulator, 0, len(byPerson))
	for _, acc := range byPerson {
		persons = append(persons, acc)
	}
	sort.Slice(persons, func(i, j int) bool { return persons[i].uid < persons[j].uid })

	if len(persons) < e.buckets {
		result.Exclusions.Add(apperrors.CodeInsufficientSample, 1)
		e.logger.WarnContext(ctx, "population smaller than score scale, quantile boundaries degenerate",
			"population", len(persons), "buckets", e.buckets)
	}

	recency := make([]float64, len(persons))
	monetary := make([]float64, len(persons))
	for i, acc := range persons {
		recency[i] = float64(int(result.ReferenceDate.Sub(acc.last).Hours() / 24))
		monetary[i] = acc.monetary
	}

	recencyBounds := quantileBounds(recency, e.buckets)
	monetaryBounds := quantileBounds(monetary, e.buckets)
	fScores := rankBuckets(persons, e.buckets)

	result.Customers = make([]CustomerRFM, 0, len(persons))
	for i, acc := range persons {
		// More recent means a smaller recency value and a higher score.
		rScore := e.buckets + 1 - bucketOf(recency[i], recencyBounds)
		fScore := fScores[i]
		mScore := bucketOf(monetary[i], monetaryBounds)

		row := CustomerRFM{
			CustomerUID:   acc.uid,
			City:          acc.city,
			State:         acc.state,
			RecencyDays:   int(recency[i]),
			Frequency:     acc.orders,
			Monetary:      acc.monetary,
			RScore:        rScore,
			FScore:        fScore,
			MScore:        mScore,
			RFMCode:       fmt.Sprintf("%d%d%d", rScore, fScore, mScore),
			Segment:       e.table.Classify(rScore, fScore),
			FirstPurchase: acc.first,
			LastPurchase:  acc.last,
			TenureDays:    int(acc.last.Sub(acc.first).Hours() / 24),
			AvgOrderValue: acc.monetary / float64(acc.orders),
		}
		result.Customers = append(result.Customers, row)
		result.SegmentCounts[row.Segment]++
	}

	e.logger.InfoContext(ctx, "rfm segmentation completed",
		"customers", len(result.Customers),
		"segments", len(result.SegmentCounts),
		"rule_version", result.RuleVersion,
		"duration", time.Since(start),
	)

	return result, nil
}

// quantileBounds returns the buckets-1 interior quantile boundaries of the
// values, linearly interpolated over the sorted population.
func quantileBounds(values []float64, buckets int) []float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	bounds := make([]float64, buckets-1)
	for k := 1; k < buckets; k++ {
		bounds[k-1] = quantile(sorted, float64(k)/float64(buckets))
	}
	return bounds
}

// quantile interpolates the q-th quantile of an already-sorted slice.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(pos)
	if lo >= n-1 {
		return sorted[n-1]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// bucketOf maps a value to its 1-based quantile bucket. Boundary intervals
// are right-closed: a value equal to a boundary stays in the lower bucket.
func bucketOf(v float64, bounds []float64) int {
	for i, b := range bounds {
		if v <= b {
			return i + 1
		}
	}
	return len(bounds) + 1
}

// rankBuckets assigns frequency scores by position in the (frequency, uid)
// order rather than by value boundaries. Order counts are tiny integers with
// massive ties; value-quantile bucketing would collapse most of the scale,
// so ties are broken by stable rank and the ranked population is cut into
// equal-count buckets.
func rankBuckets(persons []*accumulator, buckets int) []int {
	idx := make([]int, len(persons))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return persons[idx[a]].orders < persons[idx[b]].orders
	})

	scores := make([]int, len(persons))
	n := len(persons)
	for rank, personIdx := range idx {
		scores[personIdx] = rank*buckets/n + 1
	}
	return scores
}
