// Package seller scores marketplace sellers on revenue, satisfaction and
// delivery reliability, and assigns risk tiers from the late-delivery rate.
//
// Revenue attribution is item-level: an order carrying items from several
// sellers contributes each seller's own price+freight, while reviews and
// delivery outcomes count once per (order, seller) pair. Only delivered
// orders participate.
package seller

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"ecomcli/internal/analytics/delivery"
	"ecomcli/internal/config"
	apperrors "ecomcli/internal/errors"
	"ecomcli/internal/store"
)

// Tier is a seller's delivery risk classification.
type Tier string

const (
	TierGood             Tier = "GOOD"
	TierModerate         Tier = "MODERATE"
	TierHighRisk         Tier = "HIGH RISK"
	TierInsufficientData Tier = "INSUFFICIENT DATA"
)

// Scorecard is one seller's aggregate row. Ratio fields are nil when their
// denominator is empty: AvgReviewScore with no reviews, the delivery rates
// with no measured deliveries. CompositeScore is nil whenever a component
// is, and unscored sellers carry Rank 0.
type Scorecard struct {
	SellerID        string   `json:"seller_id"`
	City            string   `json:"seller_city"`
	State           string   `json:"seller_state"`
	TotalOrders     int      `json:"total_orders"`
	TotalRevenue    float64  `json:"total_revenue"`
	TotalFreight    float64  `json:"total_freight"`
	AvgReviewScore  *float64 `json:"avg_review_score"`
	ReviewCount     int      `json:"review_count"`
	OnTimeRate      *float64 `json:"on_time_rate"`
	LateRate        *float64 `json:"late_rate"`
	AvgDeliveryDays *float64 `json:"avg_delivery_days"`
	MeasuredOrders  int      `json:"measured_orders"`
	CompositeScore  *float64 `json:"composite_score"`
	Rank            int      `json:"seller_rank"`
	Tier            Tier     `json:"risk_tier"`
}

// Result is the scoring output for one run. Tiered and BelowSample together
// hold every seller with delivered items; sellers that cannot be risk
// tiered, by low volume or by an undefined late rate, are reported, not
// dropped.
type Result struct {
	Tiered      []Scorecard
	BelowSample []Scorecard
	Exclusions  *apperrors.ExclusionCounter
}

// All returns every scorecard, tiered first.
func (r *Result) All() []Scorecard {
	out := make([]Scorecard, 0, len(r.Tiered)+len(r.BelowSample))
	out = append(out, r.Tiered...)
	out = append(out, r.BelowSample...)
	return out
}

// Scorer computes seller scorecards over a snapshot.
type Scorer struct {
	cfg    config.AnalyticsConfig
	logger *slog.Logger
}

// New creates a seller scorer. The composite weights must already be
// validated.
func New(cfg config.AnalyticsConfig, logger *slog.Logger) (*Scorer, error) {
	if !cfg.Composite.IsValid() {
		return nil, fmt.Errorf("composite weights must sum to 1")
	}
	if cfg.ModerateLateRate >= cfg.HighRiskLateRate {
		return nil, fmt.Errorf("moderate late rate %.2f must be below high risk late rate %.2f",
			cfg.ModerateLateRate, cfg.HighRiskLateRate)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{cfg: cfg, logger: logger}, nil
}

// ClassifyRisk maps a late-delivery rate to its tier. The boundaries are
// half-open: a rate exactly at the high threshold is still MODERATE.
func (s *Scorer) ClassifyRisk(lateRate float64) Tier {
	switch {
	case lateRate > s.cfg.HighRiskLateRate:
		return TierHighRisk
	case lateRate >= s.cfg.ModerateLateRate:
		return TierModerate
	default:
		return TierGood
	}
}

// accumulator carries one seller's running aggregates.
type accumulator struct {
	sellerID        string
	orders          map[string]bool
	revenue         float64
	freight         float64
	reviewSum       int
	reviewCount     int
	reviewedOrders  map[string]bool
	measuredOrders  map[string]bool
	lateOrders      int
	deliveryDaysSum int
}

// Score aggregates per-seller metrics over delivered orders, computes
// composite scores against the population, and tiers each seller by late
// rate. Sellers under the minimum sample, or with no delivery measurements
// at all, are tiered INSUFFICIENT DATA and reported separately.
func (s *Scorer) Score(ctx context.Context, snap *store.Snapshot, del *delivery.Result) (*Result, error) {
	start := time.Now()

	result := &Result{Exclusions: apperrors.NewExclusionCounter()}

	bySeller := make(map[string]*accumulator)
	for _, item := range snap.Items {
		order, ok := snap.OrderByID(item.OrderID)
		if !ok {
			result.Exclusions.Add(apperrors.CodeMissingReference, 1)
			continue
		}
		if !order.IsDelivered() {
			continue
		}

		acc, ok := bySeller[item.SellerID]
		if !ok {
			acc = &accumulator{
				sellerID:       item.SellerID,
				orders:         make(map[string]bool),
				reviewedOrders: make(map[string]bool),
				measuredOrders: make(map[string]bool),
			}
			bySeller[item.SellerID] = acc
		}

		acc.orders[item.OrderID] = true
		acc.revenue += item.ItemValue()
		acc.freight += item.FreightValue

		// Reviews and delivery outcomes count once per (order, seller) pair
		// even when the seller has several items in the order.
		if !acc.reviewedOrders[item.OrderID] {
			if review, ok := snap.ReviewFor(item.OrderID); ok && review.HasValidScore() {
				acc.reviewedOrders[item.OrderID] = true
				acc.reviewSum += review.Score
				acc.reviewCount++
			}
		}
		if !acc.measuredOrders[item.OrderID] {
			if od, ok := del.ByOrder(item.OrderID); ok {
				acc.measuredOrders[item.OrderID] = true
				acc.deliveryDaysSum += od.DeliveryDays
				if od.IsLate {
					acc.lateOrders++
				}
			}
		}
	}

	if len(bySeller) == 0 {
		s.logger.WarnContext(ctx, "no sellers with delivered items")
		return result, nil
	}

	sellers := make([]*accumulator, 0, len(bySeller))
	minRevenue, maxRevenue := math.Inf(1), math.Inf(-1)
	for _, acc := range bySeller {
		sellers = append(sellers, acc)
		minRevenue = math.Min(minRevenue, acc.revenue)
		maxRevenue = math.Max(maxRevenue, acc.revenue)
	}
	sort.Slice(sellers, func(i, j int) bool { return sellers[i].sellerID < sellers[j].sellerID })

	revenueSpan := maxRevenue - minRevenue
	if revenueSpan == 0 {
		// A uniform-revenue population has no spread to normalize; every
		// seller takes the midpoint rather than a divide-by-zero.
		result.Exclusions.Add(apperrors.CodeDegenerateDenominator, 1)
	}

	cards := make([]Scorecard, 0, len(sellers))
	for _, acc := range sellers {
		card := Scorecard{
			SellerID:     acc.sellerID,
			TotalOrders:  len(acc.orders),
			TotalRevenue: acc.revenue,
			TotalFreight: acc.freight,
			ReviewCount:  acc.reviewCount,
		}
		if info, ok := snap.SellerByID(acc.sellerID); ok {
			card.City = info.City
			card.State = info.State
		}
		if acc.reviewCount > 0 {
			avg := float64(acc.reviewSum) / float64(acc.reviewCount)
			card.AvgReviewScore = &avg
		} else {
			result.Exclusions.Add(apperrors.CodeDegenerateDenominator, 1)
		}

		measured := len(acc.measuredOrders)
		card.MeasuredOrders = measured
		if measured > 0 {
			lateRate := float64(acc.lateOrders) / float64(measured)
			onTimeRate := 1 - lateRate
			avgDays := float64(acc.deliveryDaysSum) / float64(measured)
			card.LateRate = &lateRate
			card.OnTimeRate = &onTimeRate
			card.AvgDeliveryDays = &avgDays
		} else {
			result.Exclusions.Add(apperrors.CodeDegenerateDenominator, 1)
		}

		// A missing component leaves the composite nil rather than scoring
		// the seller as if it had a zero review average or a 0% on-time rate.
		if card.AvgReviewScore != nil && card.OnTimeRate != nil {
			revenueScore := 50.0
			if revenueSpan > 0 {
				revenueScore = (acc.revenue - minRevenue) / revenueSpan * 100
			}
			reviewScore := *card.AvgReviewScore / 5 * 100
			deliveryScore := *card.OnTimeRate * 100
			composite := round2(revenueScore*s.cfg.Composite.Revenue +
				reviewScore*s.cfg.Composite.Review +
				deliveryScore*s.cfg.Composite.Delivery)
			card.CompositeScore = &composite
		}

		switch {
		case card.TotalOrders < s.cfg.MinSellerOrders:
			card.Tier = TierInsufficientData
			result.Exclusions.Add(apperrors.CodeInsufficientSample, 1)
		case card.LateRate == nil:
			// No measurable deliveries: the late rate is undefined, so the
			// seller cannot be risk tiered.
			card.Tier = TierInsufficientData
		default:
			card.Tier = s.ClassifyRisk(*card.LateRate)
		}

		cards = append(cards, card)
	}

	rankCards(cards)

	for _, card := range cards {
		if card.Tier == TierInsufficientData {
			result.BelowSample = append(result.BelowSample, card)
		} else {
			result.Tiered = append(result.Tiered, card)
		}
	}

	s.logger.InfoContext(ctx, "seller scoring completed",
		"sellers", len(cards),
		"tiered", len(result.Tiered),
		"below_sample", len(result.BelowSample),
		"duration", time.Since(start),
	)

	return result, nil
}

// rankCards assigns 1-based ranks by composite score descending. Ties share
// the lowest rank of the group, so two sellers tied at the top both rank 1
// and the next seller ranks 3. Sellers without a composite score stay at
// Rank 0, outside the ranking.
func rankCards(cards []Scorecard) {
	order := make([]int, 0, len(cards))
	for i := range cards {
		if cards[i].CompositeScore != nil {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return *cards[order[a]].CompositeScore > *cards[order[b]].CompositeScore
	})

	for pos, idx := range order {
		if pos > 0 && *cards[idx].CompositeScore == *cards[order[pos-1]].CompositeScore {
			cards[idx].Rank = cards[order[pos-1]].Rank
			continue
		}
		cards[idx].Rank = pos + 1
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
