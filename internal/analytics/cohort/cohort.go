// Package cohort computes customer cohort retention.
//
// A cohort is the set of persons whose earliest non-canceled order falls in
// the same calendar month. Retention at offset k is the share of the cohort
// with a non-canceled order k calendar months later. Offsets use integer
// calendar-month arithmetic, never elapsed-day division, so variable month
// lengths cannot drift a late-month purchase into the wrong bucket.
//
// Retention activity counts non-canceled orders while revenue metrics count
// delivered ones. The asymmetry is deliberate; unifying the filters would
// change reported retention.
package cohort

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	apperrors "ecomcli/internal/errors"
	"ecomcli/internal/records"
	"ecomcli/internal/store"
)

// Record is one (cohort, offset) retention cell.
type Record struct {
	CohortMonth     string  `json:"cohort_month"`
	MonthsSince     int     `json:"months_since_cohort"`
	ActiveCustomers int     `json:"active_customers"`
	CohortSize      int     `json:"cohort_size"`
	RetentionPct    float64 `json:"retention_pct"`
}

// MatrixRow is one cohort's row in the matrix view. Retention holds
// horizon+1 cells; a nil cell is an offset the dataset cannot observe yet
// (the cohort is too recent), distinct from an observed 0%.
type MatrixRow struct {
	CohortMonth string     `json:"cohort_month"`
	CohortSize  int        `json:"cohort_size"`
	Retention   []*float64 `json:"retention"`
}

// Result is the retention output for one run.
type Result struct {
	Records    []Record
	Matrix     []MatrixRow
	Horizon    int
	Exclusions *apperrors.ExclusionCounter
}

// Engine computes cohort retention over a snapshot.
type Engine struct {
	horizon int
	logger  *slog.Logger
}

// New creates a cohort engine. The horizon truncates the matrix view;
// longer-lived activity is simply not shown, never an error.
func New(horizon int, logger *slog.Logger) (*Engine, error) {
	if horizon < 1 {
		return nil, fmt.Errorf("cohort horizon must be at least 1, got %d", horizon)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{horizon: horizon, logger: logger}, nil
}

// Compute builds the retention records and matrix.
func (e *Engine) Compute(ctx context.Context, snap *store.Snapshot) (*Result, error) {
	start := time.Now()

	result := &Result{
		Horizon:    e.horizon,
		Exclusions: apperrors.NewExclusionCounter(),
	}

	// Distinct activity months per person over non-canceled orders.
	activity := make(map[string]map[string]bool)
	lastMonth := ""
	for _, order := range snap.NonCanceledOrders() {
		if order.PurchasedAt.IsZero() {
			result.Exclusions.Add(apperrors.CodeIncompleteRecord, 1)
			continue
		}
		person := snap.PersonFor(order.CustomerID)
		month := order.PurchaseMonth()
		if activity[person] == nil {
			activity[person] = make(map[string]bool)
		}
		activity[person][month] = true
		if month > lastMonth {
			lastMonth = month
		}
	}

	if len(activity) == 0 {
		e.logger.WarnContext(ctx, "no retention activity found")
		return result, nil
	}

	// Cohort assignment: earliest activity month per person, then active
	// counts per (cohort, offset).
	cohortSize := make(map[string]int)
	active := make(map[string]map[int]int)
	for _, months := range activity {
		cohortMonth := ""
		for month := range months {
			if cohortMonth == "" || month < cohortMonth {
				cohortMonth = month
			}
		}
		cohortSize[cohortMonth]++

		for month := range months {
			offset, err := records.MonthsBetween(cohortMonth, month)
			if err != nil {
				return nil, fmt.Errorf("month offset %s -> %s: %w", cohortMonth, month, err)
			}
			if active[cohortMonth] == nil {
				active[cohortMonth] = make(map[int]int)
			}
			active[cohortMonth][offset]++
		}
	}

	cohorts := make([]string, 0, len(cohortSize))
	for month := range cohortSize {
		cohorts = append(cohorts, month)
	}
	sort.Strings(cohorts)

	for _, cohortMonth := range cohorts {
		size := cohortSize[cohortMonth]
		// Cannot occur by construction: membership implies offset-0
		// activity. Guarded anyway.
		if size == 0 {
			result.Exclusions.Add(apperrors.CodeDegenerateDenominator, 1)
			continue
		}

		observable, err := records.MonthsBetween(cohortMonth, lastMonth)
		if err != nil {
			return nil, fmt.Errorf("observable horizon for %s: %w", cohortMonth, err)
		}
		maxOffset := e.horizon
		if observable < maxOffset {
			maxOffset = observable
		}

		row := MatrixRow{
			CohortMonth: cohortMonth,
			CohortSize:  size,
			Retention:   make([]*float64, e.horizon+1),
		}

		for offset := 0; offset <= maxOffset; offset++ {
			count := active[cohortMonth][offset]
			pct := round1(float64(count) / float64(size) * 100)
			result.Records = append(result.Records, Record{
				CohortMonth:     cohortMonth,
				MonthsSince:     offset,
				ActiveCustomers: count,
				CohortSize:      size,
				RetentionPct:    pct,
			})
			pctCopy := pct
			row.Retention[offset] = &pctCopy
		}

		result.Matrix = append(result.Matrix, row)
	}

	e.logger.InfoContext(ctx, "cohort retention completed",
		"cohorts", len(result.Matrix),
		"persons", len(activity),
		"horizon", e.horizon,
		"duration", time.Since(start),
	)

	return result, nil
}

// round1 rounds to one decimal place, the precision retention is reported
// at.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
