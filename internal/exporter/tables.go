package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ecomcli/internal/analytics/cohort"
	"ecomcli/internal/analytics/concentration"
	"ecomcli/internal/analytics/delivery"
	"ecomcli/internal/analytics/revenue"
	"ecomcli/internal/analytics/rfm"
	"ecomcli/internal/analytics/seller"
	"ecomcli/internal/config"
	"ecomcli/internal/pipeline"
)

// Output file names, one table per file.
const (
	FileMonthlyMetrics        = "monthly_metrics.csv"
	FileCohortRetention       = "cohort_retention.csv"
	FileCustomerSegments      = "customer_segments.csv"
	FileSellerPerformance     = "seller_performance.csv"
	FileSellerConcentration   = "seller_concentration.csv"
	FileCategoryConcentration = "category_concentration.csv"
	FileDeliveryBuckets       = "delivery_buckets.csv"

	// WorkbookName is the combined xlsx output.
	WorkbookName = "analytics_report.xlsx"
)

const dateLayout = "2006-01-02"

// Exporter writes every result table of a run.
type Exporter struct {
	cfg    config.OutputConfig
	csv    *CSVWriter
	logger *slog.Logger
}

// New creates an exporter bound to the configured output directory.
func New(cfg config.OutputConfig, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		cfg:    cfg,
		csv:    NewCSVWriter(cfg.Dir, logger),
		logger: logger,
	}
}

// Export writes all result tables as CSV files and, when enabled, the
// combined workbook.
func (e *Exporter) Export(ctx context.Context, result *pipeline.Result) error {
	start := time.Now()

	steps := []struct {
		name string
		fn   func() error
	}{
		{FileMonthlyMetrics, func() error { return e.exportMonthly(result) }},
		{FileCohortRetention, func() error { return e.exportCohort(result.Cohort) }},
		{FileCustomerSegments, func() error { return e.exportSegments(result.RFM) }},
		{FileSellerPerformance, func() error { return e.exportSellers(result.Sellers) }},
		{FileSellerConcentration, func() error { return e.exportConcentration(FileSellerConcentration, result.SellerPareto) }},
		{FileCategoryConcentration, func() error { return e.exportConcentration(FileCategoryConcentration, result.CategoryPareto) }},
		{FileDeliveryBuckets, func() error { return e.exportDeliveryBuckets(result.Delivery) }},
	}
	for _, step := range steps {
		if err := step.fn(); err != nil {
			return fmt.Errorf("export %s: %w", step.name, err)
		}
	}

	if e.cfg.Workbook {
		if err := e.exportWorkbook(result); err != nil {
			return fmt.Errorf("export %s: %w", WorkbookName, err)
		}
	}

	e.logger.InfoContext(ctx, "export completed",
		"run_id", result.RunID,
		"dir", e.cfg.Dir,
		"workbook", e.cfg.Workbook,
		"duration", time.Since(start),
	)

	return nil
}

func monthlyHeaders() []string {
	return []string{
		"month", "total_revenue", "order_count", "prev_month_revenue", "mom_growth_pct",
		"unique_customers", "new_customers", "returning_customers", "avg_order_value",
		"avg_review_score", "avg_delivery_days", "on_time_delivery_rate",
	}
}

func monthlyRow(m revenue.MonthlyMetric) []string {
	return []string{
		m.Month,
		formatFloat(m.TotalRevenue),
		formatInt(m.OrderCount),
		formatOptFloat(m.PrevMonthRevenue),
		formatOptFloat(m.MoMGrowthPct),
		formatInt(m.UniqueCustomers),
		formatInt(m.NewCustomers),
		formatInt(m.ReturningCustomers),
		formatFloat(m.AvgOrderValue),
		formatFloat(m.AvgReviewScore),
		formatFloat1(m.AvgDeliveryDays),
		formatFloat(m.OnTimeRate * 100),
	}
}

func (e *Exporter) exportMonthly(result *pipeline.Result) error {
	records := make([][]string, 0, len(result.Revenue.Months))
	for _, m := range result.Revenue.Months {
		records = append(records, monthlyRow(m))
	}
	return e.csv.WriteSimpleCSV(FileMonthlyMetrics, monthlyHeaders(), records)
}

func cohortHeaders(horizon int) []string {
	headers := []string{"cohort_month", "cohort_size"}
	for k := 0; k <= horizon; k++ {
		headers = append(headers, fmt.Sprintf("month_%d", k))
	}
	return headers
}

func cohortRow(row cohort.MatrixRow) []string {
	record := []string{row.CohortMonth, formatInt(row.CohortSize)}
	for _, cell := range row.Retention {
		record = append(record, formatOptFloat1(cell))
	}
	return record
}

func (e *Exporter) exportCohort(res *cohort.Result) error {
	records := make([][]string, 0, len(res.Matrix))
	for _, row := range res.Matrix {
		records = append(records, cohortRow(row))
	}
	return e.csv.WriteSimpleCSV(FileCohortRetention, cohortHeaders(res.Horizon), records)
}

func segmentHeaders() []string {
	return []string{
		"customer_unique_id", "recency", "frequency", "monetary", "segment",
		"r_score", "f_score", "m_score", "rfm_score",
		"customer_city", "customer_state",
		"first_purchase_date", "last_purchase_date", "customer_tenure_days", "avg_order_value",
	}
}

func segmentRow(c rfm.CustomerRFM) []string {
	return []string{
		c.CustomerUID,
		formatInt(c.RecencyDays),
		formatInt(c.Frequency),
		formatFloat(c.Monetary),
		c.Segment,
		formatInt(c.RScore),
		formatInt(c.FScore),
		formatInt(c.MScore),
		c.RFMCode,
		c.City,
		c.State,
		c.FirstPurchase.Format(dateLayout),
		c.LastPurchase.Format(dateLayout),
		formatInt(c.TenureDays),
		formatFloat(c.AvgOrderValue),
	}
}

// exportSegments streams: the segment table scales with the customer
// population, the only table that does.
func (e *Exporter) exportSegments(res *rfm.Result) error {
	sw, err := e.csv.CreateStreamWriter(FileCustomerSegments, segmentHeaders())
	if err != nil {
		return err
	}
	for _, c := range res.Customers {
		if err := sw.WriteRecord(segmentRow(c)); err != nil {
			sw.Close()
			return err
		}
	}
	return sw.Close()
}

func sellerHeaders() []string {
	return []string{
		"seller_id", "seller_state", "total_revenue", "total_orders",
		"avg_review_score", "on_time_rate", "composite_score", "risk_tier",
		"seller_city", "seller_rank", "late_rate", "avg_delivery_days",
	}
}

func sellerRow(card seller.Scorecard) []string {
	rank := ""
	if card.Rank > 0 {
		rank = formatInt(card.Rank)
	}
	return []string{
		card.SellerID,
		card.State,
		formatFloat(card.TotalRevenue),
		formatInt(card.TotalOrders),
		formatOptFloat(card.AvgReviewScore),
		formatOptPct(card.OnTimeRate),
		formatOptFloat(card.CompositeScore),
		string(card.Tier),
		card.City,
		rank,
		formatOptPct(card.LateRate),
		formatOptFloat1(card.AvgDeliveryDays),
	}
}

func (e *Exporter) exportSellers(res *seller.Result) error {
	cards := res.All()
	records := make([][]string, 0, len(cards))
	for _, card := range cards {
		records = append(records, sellerRow(card))
	}
	return e.csv.WriteSimpleCSV(FileSellerPerformance, sellerHeaders(), records)
}

func concentrationHeaders() []string {
	return []string{
		"entity_id", "rank", "revenue", "cumulative_revenue",
		"cumulative_share_pct", "tier", "revenue_share_pct",
	}
}

func concentrationRow(rec concentration.Record) []string {
	return []string{
		rec.EntityID,
		formatInt(rec.Rank),
		formatFloat(rec.Revenue),
		formatFloat(rec.CumulativeRevenue),
		formatFloat(rec.CumulativePct),
		rec.PercentileTier,
		formatFloat(rec.RevenueShare),
	}
}

func (e *Exporter) exportConcentration(fileName string, res *concentration.Result) error {
	records := make([][]string, 0, len(res.Records))
	for _, rec := range res.Records {
		records = append(records, concentrationRow(rec))
	}
	return e.csv.WriteSimpleCSV(fileName, concentrationHeaders(), records)
}

func deliveryHeaders() []string {
	return []string{"bucket", "orders", "reviewed_orders", "avg_review_score"}
}

func deliveryRow(stat delivery.BucketStat) []string {
	return []string{
		stat.Bucket.String(),
		formatInt(stat.Orders),
		formatInt(stat.ReviewedOrders),
		formatFloat(stat.AvgReviewScore),
	}
}

func (e *Exporter) exportDeliveryBuckets(res *delivery.Result) error {
	records := make([][]string, 0, len(res.Buckets))
	for _, stat := range res.Buckets {
		records = append(records, deliveryRow(stat))
	}
	return e.csv.WriteSimpleCSV(FileDeliveryBuckets, deliveryHeaders(), records)
}
