package revenue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecomcli/internal/analytics/delivery"
	"ecomcli/internal/records"
	"ecomcli/internal/store"
)

func at(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
}

func deliveredOrder(id, customer string, purchased time.Time) records.Order {
	return records.Order{
		OrderID:     id,
		CustomerID:  customer,
		Status:      records.StatusDelivered,
		PurchasedAt: purchased,
	}
}

func analyze(t *testing.T, snap *store.Snapshot) *Result {
	t.Helper()
	require.NoError(t, snap.Index())

	del, err := delivery.New(nil).Analyze(context.Background(), snap)
	require.NoError(t, err)

	result, err := New(nil).Aggregate(context.Background(), snap, del)
	require.NoError(t, err)
	return result
}

func TestAggregateMonthlyTotals(t *testing.T) {
	snap := &store.Snapshot{
		Customers: []records.Customer{
			{CustomerID: "c1", UniqueID: "p1"},
			{CustomerID: "c2", UniqueID: "p2"},
			{CustomerID: "c3", UniqueID: "p1"},
		},
		Orders: []records.Order{
			deliveredOrder("o1", "c1", at(2018, 1, 5)),
			deliveredOrder("o2", "c2", at(2018, 1, 20)),
			deliveredOrder("o3", "c3", at(2018, 2, 3)),
			{OrderID: "o4", CustomerID: "c1", Status: records.StatusCanceled, PurchasedAt: at(2018, 2, 10)},
		},
		Payments: []records.Payment{
			{OrderID: "o1", Seq: 1, Value: 100},
			{OrderID: "o2", Seq: 1, Value: 50},
			{OrderID: "o3", Seq: 1, Value: 80},
			{OrderID: "o4", Seq: 1, Value: 999},
		},
	}

	result := analyze(t, snap)
	require.Len(t, result.Months, 2)

	jan := result.Months[0]
	assert.Equal(t, "2018-01", jan.Month)
	assert.InDelta(t, 150.0, jan.TotalRevenue, 1e-9)
	assert.Equal(t, 2, jan.OrderCount)
	assert.Equal(t, 2, jan.UniqueCustomers)
	assert.Equal(t, 2, jan.NewCustomers)
	assert.Equal(t, 0, jan.ReturningCustomers)
	assert.InDelta(t, 75.0, jan.AvgOrderValue, 1e-9)
	assert.Nil(t, jan.MoMGrowthPct)
	assert.Nil(t, jan.PrevMonthRevenue)

	feb := result.Months[1]
	assert.InDelta(t, 80.0, feb.TotalRevenue, 1e-9)
	// c3 maps to person p1 who first bought in January.
	assert.Equal(t, 0, feb.NewCustomers)
	assert.Equal(t, 1, feb.ReturningCustomers)
	require.NotNil(t, feb.MoMGrowthPct)
	assert.InDelta(t, (80.0-150.0)/150.0*100, *feb.MoMGrowthPct, 1e-9)

	// Canceled order contributes to nothing.
	assert.InDelta(t, 230.0, result.TotalRevenue, 1e-9)
}

func TestGrowthUsesPreviousPresentMonth(t *testing.T) {
	// Revenue sequence 100, 150, (no delivered orders), 200: the omitted
	// month must not become a zero baseline.
	snap := &store.Snapshot{
		Orders: []records.Order{
			deliveredOrder("o1", "c1", at(2018, 1, 10)),
			deliveredOrder("o2", "c2", at(2018, 2, 10)),
			deliveredOrder("o3", "c3", at(2018, 4, 10)),
		},
		Payments: []records.Payment{
			{OrderID: "o1", Seq: 1, Value: 100},
			{OrderID: "o2", Seq: 1, Value: 150},
			{OrderID: "o3", Seq: 1, Value: 200},
		},
	}

	result := analyze(t, snap)
	require.Len(t, result.Months, 3)

	april := result.Months[2]
	assert.Equal(t, "2018-04", april.Month)
	require.NotNil(t, april.PrevMonthRevenue)
	assert.InDelta(t, 150.0, *april.PrevMonthRevenue, 1e-9)
	require.NotNil(t, april.MoMGrowthPct)
	assert.InDelta(t, 33.33, *april.MoMGrowthPct, 0.01)
}

func TestGrowthGuardsZeroBaseline(t *testing.T) {
	snap := &store.Snapshot{
		Orders: []records.Order{
			deliveredOrder("o1", "c1", at(2018, 1, 10)),
			deliveredOrder("o2", "c2", at(2018, 2, 10)),
		},
		Payments: []records.Payment{
			// o1 has no payment rows: a zero-revenue month exists.
			{OrderID: "o2", Seq: 1, Value: 150},
		},
	}

	result := analyze(t, snap)
	require.Len(t, result.Months, 2)

	feb := result.Months[1]
	require.NotNil(t, feb.PrevMonthRevenue)
	assert.Zero(t, *feb.PrevMonthRevenue)
	assert.Nil(t, feb.MoMGrowthPct)
}

func TestRevenueMatchesIndependentPaymentSum(t *testing.T) {
	snap := &store.Snapshot{
		Orders: []records.Order{
			deliveredOrder("o1", "c1", at(2018, 1, 5)),
			deliveredOrder("o2", "c2", at(2018, 3, 5)),
			{OrderID: "o3", CustomerID: "c3", Status: records.StatusShipped, PurchasedAt: at(2018, 3, 9)},
		},
		Payments: []records.Payment{
			{OrderID: "o1", Seq: 1, Value: 33.40},
			{OrderID: "o1", Seq: 2, Value: 66.60},
			{OrderID: "o2", Seq: 1, Value: 19.99},
			{OrderID: "o3", Seq: 1, Value: 50.00},
		},
	}

	result := analyze(t, snap)

	independent := 33.40 + 66.60 + 19.99 // delivered orders only
	monthSum := 0.0
	for _, m := range result.Months {
		monthSum += m.TotalRevenue
	}
	assert.InDelta(t, independent, monthSum, 1e-9)
	assert.InDelta(t, independent, result.TotalRevenue, 1e-9)
}

func TestAggregateDeliveryAverages(t *testing.T) {
	purchase := at(2018, 1, 2)
	snap := &store.Snapshot{
		Orders: []records.Order{
			{
				OrderID: "fast", CustomerID: "c1", Status: records.StatusDelivered,
				PurchasedAt: purchase, DeliveredAt: purchase.AddDate(0, 0, 4),
				EstimatedDelivery: purchase.AddDate(0, 0, 10),
			},
			{
				OrderID: "slow", CustomerID: "c2", Status: records.StatusDelivered,
				PurchasedAt: purchase, DeliveredAt: purchase.AddDate(0, 0, 16),
				EstimatedDelivery: purchase.AddDate(0, 0, 10),
			},
		},
		Reviews: []records.Review{
			{ReviewID: "r1", OrderID: "fast", Score: 5},
			{ReviewID: "r2", OrderID: "slow", Score: 2},
		},
	}

	result := analyze(t, snap)
	require.Len(t, result.Months, 1)

	jan := result.Months[0]
	assert.Equal(t, 2, jan.MeasuredDeliveries)
	assert.InDelta(t, 10.0, jan.AvgDeliveryDays, 1e-9)
	assert.InDelta(t, 0.5, jan.OnTimeRate, 1e-9)
	assert.InDelta(t, 3.5, jan.AvgReviewScore, 1e-9)
}
