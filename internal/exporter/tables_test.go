package exporter

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ecomcli/internal/analytics/seller"
	"ecomcli/internal/config"
	"ecomcli/internal/pipeline"
	"ecomcli/internal/records"
	"ecomcli/internal/store"
)

func runResult(t *testing.T) *pipeline.Result {
	t.Helper()

	order := func(id, customer string, month time.Month, day int) records.Order {
		purchased := time.Date(2018, month, day, 10, 0, 0, 0, time.UTC)
		return records.Order{
			OrderID:           id,
			CustomerID:        customer,
			Status:            records.StatusDelivered,
			PurchasedAt:       purchased,
			DeliveredAt:       purchased.AddDate(0, 0, 8),
			EstimatedDelivery: purchased.AddDate(0, 0, 10),
		}
	}

	snap := &store.Snapshot{
		Customers: []records.Customer{
			{CustomerID: "c1", UniqueID: "p1", City: "sao paulo", State: "SP"},
			{CustomerID: "c2", UniqueID: "p2", City: "rio", State: "RJ"},
		},
		Orders: []records.Order{
			order("o1", "c1", 1, 5),
			order("o2", "c2", 2, 10),
		},
		Items: []records.OrderItem{
			{OrderID: "o1", ItemSeq: 1, ProductID: "prod-a", SellerID: "s1", Price: 90, FreightValue: 10},
			{OrderID: "o2", ItemSeq: 1, ProductID: "prod-a", SellerID: "s1", Price: 45, FreightValue: 5},
		},
		Payments: []records.Payment{
			{OrderID: "o1", Seq: 1, Value: 100},
			{OrderID: "o2", Seq: 1, Value: 50},
		},
		Reviews: []records.Review{
			{ReviewID: "r1", OrderID: "o1", Score: 5},
		},
		Products: []records.Product{
			{ProductID: "prod-a", CategoryName: "moveis_decoracao"},
		},
		Sellers: []records.Seller{
			{SellerID: "s1", City: "curitiba", State: "PR"},
		},
	}
	require.NoError(t, snap.Index())

	runner, err := pipeline.New(config.DefaultAnalytics(), nil)
	require.NoError(t, err)
	result, err := runner.Run(context.Background(), snap)
	require.NoError(t, err)
	return result
}

func TestExportWritesAllTables(t *testing.T) {
	dir := t.TempDir()
	e := New(config.OutputConfig{Dir: dir, Workbook: false}, nil)

	require.NoError(t, e.Export(context.Background(), runResult(t)))

	for _, name := range []string{
		FileMonthlyMetrics, FileCohortRetention, FileCustomerSegments,
		FileSellerPerformance, FileSellerConcentration,
		FileCategoryConcentration, FileDeliveryBuckets,
	} {
		rows := readCSV(t, filepath.Join(dir, name))
		assert.NotEmpty(t, rows, name)
	}
}

func TestExportMonthlyTable(t *testing.T) {
	dir := t.TempDir()
	e := New(config.OutputConfig{Dir: dir, Workbook: false}, nil)
	require.NoError(t, e.Export(context.Background(), runResult(t)))

	rows := readCSV(t, filepath.Join(dir, FileMonthlyMetrics))
	require.Len(t, rows, 3)
	assert.Equal(t, monthlyHeaders(), rows[0])

	jan := rows[1]
	assert.Equal(t, "2018-01", jan[0])
	assert.Equal(t, "100.00", jan[1])
	assert.Equal(t, "1", jan[2])
	// First month has no baseline: empty cells, not zeros.
	assert.Equal(t, "", jan[3])
	assert.Equal(t, "", jan[4])

	feb := rows[2]
	assert.Equal(t, "100.00", feb[3])
	assert.Equal(t, "-50.00", feb[4])
}

func TestExportCohortTable(t *testing.T) {
	dir := t.TempDir()
	e := New(config.OutputConfig{Dir: dir, Workbook: false}, nil)
	require.NoError(t, e.Export(context.Background(), runResult(t)))

	rows := readCSV(t, filepath.Join(dir, FileCohortRetention))
	require.Len(t, rows, 3)
	require.Len(t, rows[0], 2+13)
	assert.Equal(t, "month_0", rows[0][2])
	assert.Equal(t, "month_12", rows[0][14])

	jan := rows[1]
	assert.Equal(t, "2018-01", jan[0])
	assert.Equal(t, "1", jan[1])
	assert.Equal(t, "100.0", jan[2])
	assert.Equal(t, "0.0", jan[3])
	// Offsets past the dataset end export as empty cells.
	assert.Equal(t, "", jan[4])
}

func TestExportSellerTable(t *testing.T) {
	dir := t.TempDir()
	e := New(config.OutputConfig{Dir: dir, Workbook: false}, nil)
	require.NoError(t, e.Export(context.Background(), runResult(t)))

	rows := readCSV(t, filepath.Join(dir, FileSellerPerformance))
	require.Len(t, rows, 2)

	s1 := rows[1]
	assert.Equal(t, "s1", s1[0])
	assert.Equal(t, "PR", s1[1])
	assert.Equal(t, "150.00", s1[2])
	assert.Equal(t, "2", s1[3])
	assert.Equal(t, "INSUFFICIENT DATA", s1[7])
}

func TestSellerRowGuardedCells(t *testing.T) {
	// A seller with no measured deliveries and no reviews has undefined
	// ratios: the row carries empty cells, never 0.00 readings.
	row := sellerRow(seller.Scorecard{
		SellerID:     "s1",
		State:        "PR",
		TotalOrders:  12,
		TotalRevenue: 120,
		Tier:         seller.TierInsufficientData,
	})

	assert.Equal(t, "120.00", row[2])
	assert.Equal(t, "", row[4], "avg_review_score")
	assert.Equal(t, "", row[5], "on_time_rate")
	assert.Equal(t, "", row[6], "composite_score")
	assert.Equal(t, "", row[9], "seller_rank")
	assert.Equal(t, "", row[10], "late_rate")
	assert.Equal(t, "", row[11], "avg_delivery_days")
}

func TestExportWorkbook(t *testing.T) {
	dir := t.TempDir()
	e := New(config.OutputConfig{Dir: dir, Workbook: true}, nil)
	require.NoError(t, e.Export(context.Background(), runResult(t)))

	f, err := excelize.OpenFile(filepath.Join(dir, WorkbookName))
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	assert.Len(t, sheets, 7)
	assert.Contains(t, sheets, "Monthly Metrics")
	assert.Contains(t, sheets, "Cohort Retention")
	assert.NotContains(t, sheets, "Sheet1")

	month, err := f.GetCellValue("Monthly Metrics", "A2")
	require.NoError(t, err)
	assert.Equal(t, "2018-01", month)

	revenue, err := f.GetCellValue("Monthly Metrics", "B2")
	require.NoError(t, err)
	assert.Equal(t, "100.00", revenue)
}
