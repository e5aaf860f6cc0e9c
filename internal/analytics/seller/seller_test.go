package seller

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecomcli/internal/analytics/delivery"
	"ecomcli/internal/config"
	apperrors "ecomcli/internal/errors"
	"ecomcli/internal/records"
	"ecomcli/internal/store"
)

func day(d int) time.Time {
	return time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

// addOrder appends a delivered order with one item for the seller. late
// pushes delivery past the estimate.
func addOrder(snap *store.Snapshot, seller string, n int, value float64, late bool) string {
	orderID := fmt.Sprintf("%s-o%d", seller, n)
	deliveredAt := day(8)
	if late {
		deliveredAt = day(15)
	}
	snap.Orders = append(snap.Orders, records.Order{
		OrderID:           orderID,
		CustomerID:        "c-" + orderID,
		Status:            records.StatusDelivered,
		PurchasedAt:       day(0),
		DeliveredAt:       deliveredAt,
		EstimatedDelivery: day(10),
	})
	snap.Items = append(snap.Items, records.OrderItem{
		OrderID: orderID, ItemSeq: 1, ProductID: "prod", SellerID: seller,
		Price: value, FreightValue: 0,
	})
	return orderID
}

func runScorer(t *testing.T, cfg config.AnalyticsConfig, snap *store.Snapshot) *Result {
	t.Helper()
	require.NoError(t, snap.Index())

	del, err := delivery.New(nil).Analyze(context.Background(), snap)
	require.NoError(t, err)

	scorer, err := New(cfg, nil)
	require.NoError(t, err)

	result, err := scorer.Score(context.Background(), snap, del)
	require.NoError(t, err)
	return result
}

func findCard(t *testing.T, cards []Scorecard, sellerID string) Scorecard {
	t.Helper()
	for _, c := range cards {
		if c.SellerID == sellerID {
			return c
		}
	}
	t.Fatalf("no scorecard for %s", sellerID)
	return Scorecard{}
}

func TestClassifyRisk(t *testing.T) {
	scorer, err := New(config.DefaultAnalytics(), nil)
	require.NoError(t, err)

	tests := []struct {
		lateRate float64
		expected Tier
	}{
		{0.00, TierGood},
		{0.05, TierGood},
		{0.099, TierGood},
		{0.10, TierModerate},
		{0.15, TierModerate},
		{0.20, TierModerate},
		{0.201, TierHighRisk},
		{0.25, TierHighRisk},
		{1.00, TierHighRisk},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%.3f", tt.lateRate), func(t *testing.T) {
			assert.Equal(t, tt.expected, scorer.ClassifyRisk(tt.lateRate))
		})
	}
}

func TestScoreRiskTiers(t *testing.T) {
	snap := &store.Snapshot{}
	// 20 orders each: 5% late is GOOD, 15% MODERATE, 25% HIGH RISK.
	for i := 0; i < 20; i++ {
		addOrder(snap, "good", i, 10, i < 1)
		addOrder(snap, "moderate", i, 10, i < 3)
		addOrder(snap, "risky", i, 10, i < 5)
	}

	result := runScorer(t, config.DefaultAnalytics(), snap)
	require.Len(t, result.Tiered, 3)
	assert.Empty(t, result.BelowSample)

	assert.Equal(t, TierGood, findCard(t, result.Tiered, "good").Tier)
	assert.Equal(t, TierModerate, findCard(t, result.Tiered, "moderate").Tier)
	assert.Equal(t, TierHighRisk, findCard(t, result.Tiered, "risky").Tier)

	risky := findCard(t, result.Tiered, "risky")
	require.NotNil(t, risky.LateRate)
	require.NotNil(t, risky.OnTimeRate)
	assert.InDelta(t, 0.25, *risky.LateRate, 1e-9)
	assert.InDelta(t, 0.75, *risky.OnTimeRate, 1e-9)
	assert.Equal(t, 20, risky.TotalOrders)
}

func TestScoreBelowSampleReportedSeparately(t *testing.T) {
	snap := &store.Snapshot{}
	for i := 0; i < 12; i++ {
		addOrder(snap, "big", i, 10, false)
	}
	addOrder(snap, "small", 0, 10, false)

	result := runScorer(t, config.DefaultAnalytics(), snap)

	require.Len(t, result.Tiered, 1)
	require.Len(t, result.BelowSample, 1)
	assert.Equal(t, "small", result.BelowSample[0].SellerID)
	assert.Equal(t, TierInsufficientData, result.BelowSample[0].Tier)
	assert.Equal(t, 1, result.Exclusions.Count(apperrors.CodeInsufficientSample))

	// Still present in the combined view.
	assert.Len(t, result.All(), 2)
}

// addUnmeasuredOrder appends a delivered order whose delivery dates never
// made it into the source row, so the delivery stage cannot measure it.
func addUnmeasuredOrder(snap *store.Snapshot, seller string, n int, value float64) string {
	orderID := fmt.Sprintf("%s-u%d", seller, n)
	snap.Orders = append(snap.Orders, records.Order{
		OrderID:     orderID,
		CustomerID:  "c-" + orderID,
		Status:      records.StatusDelivered,
		PurchasedAt: day(0),
	})
	snap.Items = append(snap.Items, records.OrderItem{
		OrderID: orderID, ItemSeq: 1, ProductID: "prod", SellerID: seller,
		Price: value, FreightValue: 0,
	})
	return orderID
}

func TestScoreUnmeasuredSellerNotTiered(t *testing.T) {
	snap := &store.Snapshot{}
	// Both sellers clear the minimum sample, but every one of dark's
	// deliveries is missing its dates, so its late rate is undefined.
	var darkOrder, litOrder string
	for i := 0; i < 12; i++ {
		darkOrder = addUnmeasuredOrder(snap, "dark", i, 10)
		litOrder = addOrder(snap, "lit", i, 20, false)
	}
	snap.Reviews = []records.Review{
		{ReviewID: "r1", OrderID: darkOrder, Score: 4},
		{ReviewID: "r2", OrderID: litOrder, Score: 4},
	}

	result := runScorer(t, config.DefaultAnalytics(), snap)

	require.Len(t, result.Tiered, 1)
	assert.Equal(t, "lit", result.Tiered[0].SellerID)
	assert.Equal(t, TierGood, result.Tiered[0].Tier)

	require.Len(t, result.BelowSample, 1)
	dark := result.BelowSample[0]
	assert.Equal(t, "dark", dark.SellerID)
	assert.Equal(t, TierInsufficientData, dark.Tier)
	assert.Equal(t, 0, dark.MeasuredOrders)

	// Undefined ratios stay nil instead of reading as a 100% late rate,
	// and the seller never gets a composite score or a rank.
	assert.Nil(t, dark.OnTimeRate)
	assert.Nil(t, dark.LateRate)
	assert.Nil(t, dark.AvgDeliveryDays)
	assert.Nil(t, dark.CompositeScore)
	assert.Equal(t, 0, dark.Rank)

	assert.Equal(t, 1, result.Exclusions.Count(apperrors.CodeDegenerateDenominator))
	assert.Equal(t, 0, result.Exclusions.Count(apperrors.CodeInsufficientSample))
}

func TestScoreComposite(t *testing.T) {
	cfg := config.DefaultAnalytics()
	cfg.MinSellerOrders = 1

	snap := &store.Snapshot{
		Sellers: []records.Seller{
			{SellerID: "s1", City: "porto", State: "RS"},
		},
	}
	o1 := addOrder(snap, "s1", 0, 100, false)
	o2 := addOrder(snap, "s2", 0, 200, true)
	snap.Reviews = []records.Review{
		{ReviewID: "r1", OrderID: o1, Score: 5},
		{ReviewID: "r2", OrderID: o2, Score: 4},
	}

	result := runScorer(t, cfg, snap)
	require.Len(t, result.Tiered, 2)

	// s1: min revenue (0) + perfect review (100) + on time (100).
	s1 := findCard(t, result.Tiered, "s1")
	require.NotNil(t, s1.CompositeScore)
	assert.InDelta(t, 0*0.3+100*0.4+100*0.3, *s1.CompositeScore, 1e-9)
	assert.Equal(t, "porto", s1.City)

	// s2: max revenue (100) + 4/5 review (80) + late (0).
	s2 := findCard(t, result.Tiered, "s2")
	require.NotNil(t, s2.CompositeScore)
	assert.InDelta(t, 100*0.3+80*0.4+0*0.3, *s2.CompositeScore, 1e-9)

	assert.Equal(t, 1, s1.Rank)
	assert.Equal(t, 2, s2.Rank)
}

func TestScoreUniformRevenueMidpoint(t *testing.T) {
	cfg := config.DefaultAnalytics()
	cfg.MinSellerOrders = 1

	snap := &store.Snapshot{}
	o1 := addOrder(snap, "s1", 0, 50, false)
	o2 := addOrder(snap, "s2", 0, 50, false)
	snap.Reviews = []records.Review{
		{ReviewID: "r1", OrderID: o1, Score: 5},
		{ReviewID: "r2", OrderID: o2, Score: 5},
	}

	result := runScorer(t, cfg, snap)
	require.Len(t, result.Tiered, 2)

	// No revenue spread to normalize: both take the midpoint.
	for _, card := range result.Tiered {
		require.NotNil(t, card.CompositeScore)
		assert.InDelta(t, 50*0.3+100*0.4+100*0.3, *card.CompositeScore, 1e-9)
	}
	assert.Equal(t, 1, result.Exclusions.Count(apperrors.CodeDegenerateDenominator))
}

func TestScoreItemLevelAttribution(t *testing.T) {
	cfg := config.DefaultAnalytics()
	cfg.MinSellerOrders = 1

	// One order carrying items from two sellers: revenue splits by item,
	// the review counts once per seller.
	snap := &store.Snapshot{
		Orders: []records.Order{
			{
				OrderID: "shared", CustomerID: "c1", Status: records.StatusDelivered,
				PurchasedAt: day(0), DeliveredAt: day(8), EstimatedDelivery: day(10),
			},
		},
		Items: []records.OrderItem{
			{OrderID: "shared", ItemSeq: 1, SellerID: "s1", Price: 30, FreightValue: 5},
			{OrderID: "shared", ItemSeq: 2, SellerID: "s1", Price: 20, FreightValue: 5},
			{OrderID: "shared", ItemSeq: 3, SellerID: "s2", Price: 40, FreightValue: 10},
		},
		Reviews: []records.Review{
			{ReviewID: "r1", OrderID: "shared", Score: 4},
		},
	}

	result := runScorer(t, cfg, snap)

	s1 := findCard(t, result.All(), "s1")
	assert.InDelta(t, 60.0, s1.TotalRevenue, 1e-9)
	assert.InDelta(t, 10.0, s1.TotalFreight, 1e-9)
	assert.Equal(t, 1, s1.TotalOrders)
	assert.Equal(t, 1, s1.ReviewCount)
	require.NotNil(t, s1.AvgReviewScore)
	assert.InDelta(t, 4.0, *s1.AvgReviewScore, 1e-9)

	s2 := findCard(t, result.All(), "s2")
	assert.InDelta(t, 50.0, s2.TotalRevenue, 1e-9)
	assert.Equal(t, 1, s2.ReviewCount)
}

func TestScoreSkipsNonDeliveredAndOrphans(t *testing.T) {
	cfg := config.DefaultAnalytics()
	cfg.MinSellerOrders = 1

	snap := &store.Snapshot{
		Orders: []records.Order{
			{OrderID: "shipped", CustomerID: "c1", Status: records.StatusShipped, PurchasedAt: day(0)},
		},
		Items: []records.OrderItem{
			{OrderID: "shipped", ItemSeq: 1, SellerID: "s1", Price: 10},
			{OrderID: "missing", ItemSeq: 1, SellerID: "s1", Price: 10},
		},
	}

	result := runScorer(t, cfg, snap)
	assert.Empty(t, result.All())
	assert.Equal(t, 1, result.Exclusions.Count(apperrors.CodeMissingReference))
}

func score(v float64) *float64 {
	return &v
}

func TestRankCardsMinTies(t *testing.T) {
	cards := []Scorecard{
		{SellerID: "a", CompositeScore: score(80)},
		{SellerID: "b", CompositeScore: score(90)},
		{SellerID: "c", CompositeScore: score(90)},
		{SellerID: "d", CompositeScore: score(70)},
	}
	rankCards(cards)

	assert.Equal(t, 1, cards[1].Rank)
	assert.Equal(t, 1, cards[2].Rank)
	assert.Equal(t, 3, cards[0].Rank)
	assert.Equal(t, 4, cards[3].Rank)
}

func TestRankCardsSkipsUnscored(t *testing.T) {
	cards := []Scorecard{
		{SellerID: "a", CompositeScore: score(80)},
		{SellerID: "b"},
		{SellerID: "c", CompositeScore: score(90)},
	}
	rankCards(cards)

	assert.Equal(t, 1, cards[2].Rank)
	assert.Equal(t, 2, cards[0].Rank)
	assert.Equal(t, 0, cards[1].Rank)
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := config.DefaultAnalytics()
	cfg.Composite.Revenue = 0.9
	_, err := New(cfg, nil)
	assert.Error(t, err)

	cfg = config.DefaultAnalytics()
	cfg.ModerateLateRate = 0.5
	_, err = New(cfg, nil)
	assert.Error(t, err)
}
