// Package pipeline orchestrates one analytics run over a record snapshot.
//
// Stage graph: delivery runs first because revenue and seller scoring read
// its per-order deltas. Revenue, cohort, RFM and seller scoring then run
// concurrently against the shared read-only snapshot, each writing only its
// own result. Concentration waits for the seller scorer at a single barrier.
// A run either completes in full or fails; partial results are never
// returned.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"ecomcli/internal/analytics/cohort"
	"ecomcli/internal/analytics/concentration"
	"ecomcli/internal/analytics/delivery"
	"ecomcli/internal/analytics/revenue"
	"ecomcli/internal/analytics/rfm"
	"ecomcli/internal/analytics/seller"
	"ecomcli/internal/config"
	"ecomcli/internal/infrastructure"
	"ecomcli/internal/store"
)

// Result is the immutable output of one run.
type Result struct {
	RunID       string
	StartedAt   time.Time
	CompletedAt time.Time

	Revenue        *revenue.Result
	Delivery       *delivery.Result
	Cohort         *cohort.Result
	RFM            *rfm.Result
	Sellers        *seller.Result
	SellerPareto   *concentration.Result
	CategoryPareto *concentration.Result
}

// Runner wires the analysis stages together.
type Runner struct {
	cfg    config.AnalyticsConfig
	logger *slog.Logger

	revenue       *revenue.Aggregator
	delivery      *delivery.Analyzer
	cohort        *cohort.Engine
	rfm           *rfm.Engine
	seller        *seller.Scorer
	concentration *concentration.Analyzer
}

// New builds a runner. Stage construction validates the analytics
// parameters (rule table version, horizon, weights) up front, before any
// data is read.
func New(cfg config.AnalyticsConfig, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cohortEngine, err := cohort.New(cfg.CohortHorizonMonths, logger)
	if err != nil {
		return nil, fmt.Errorf("build cohort engine: %w", err)
	}
	rfmEngine, err := rfm.New(cfg.RFMRuleVersion, cfg.ScoreBuckets, logger)
	if err != nil {
		return nil, fmt.Errorf("build rfm engine: %w", err)
	}
	sellerScorer, err := seller.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("build seller scorer: %w", err)
	}

	return &Runner{
		cfg:           cfg,
		logger:        logger,
		revenue:       revenue.New(logger),
		delivery:      delivery.New(logger),
		cohort:        cohortEngine,
		rfm:           rfmEngine,
		seller:        sellerScorer,
		concentration: concentration.New(logger),
	}, nil
}

// Run executes one complete analytics pass over an indexed snapshot.
func (r *Runner) Run(ctx context.Context, snap *store.Snapshot) (*Result, error) {
	result := &Result{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}
	ctx = infrastructure.WithRunID(ctx, result.RunID)

	tracer := otel.Tracer(infrastructure.TracerName)
	ctx, span := tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(attribute.String("run_id", result.RunID)))
	defer span.End()

	r.logger.InfoContext(ctx, "analytics run started",
		"orders", len(snap.Orders),
		"customers", len(snap.Customers),
		"sellers", len(snap.Sellers),
	)

	// Delivery first: revenue and seller scoring consume its per-order
	// deltas.
	var err error
	result.Delivery, err = r.runDelivery(ctx, tracer, snap)
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}

	// Independent per-entity stages share the read-only snapshot.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := r.runStage(gctx, tracer, "revenue", func(ctx context.Context) (any, error) {
			return r.revenue.Aggregate(ctx, snap, result.Delivery)
		})
		if err != nil {
			return err
		}
		result.Revenue = res.(*revenue.Result)
		return nil
	})
	g.Go(func() error {
		res, err := r.runStage(gctx, tracer, "cohort", func(ctx context.Context) (any, error) {
			return r.cohort.Compute(ctx, snap)
		})
		if err != nil {
			return err
		}
		result.Cohort = res.(*cohort.Result)
		return nil
	})
	g.Go(func() error {
		res, err := r.runStage(gctx, tracer, "rfm", func(ctx context.Context) (any, error) {
			return r.rfm.Score(ctx, snap)
		})
		if err != nil {
			return err
		}
		result.RFM = res.(*rfm.Result)
		return nil
	})
	g.Go(func() error {
		res, err := r.runStage(gctx, tracer, "seller", func(ctx context.Context) (any, error) {
			return r.seller.Score(ctx, snap, result.Delivery)
		})
		if err != nil {
			return err
		}
		result.Sellers = res.(*seller.Result)
		return nil
	})
	if err := g.Wait(); err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, err
	}

	// Barrier passed: concentration needs the complete seller population.
	result.SellerPareto, err = r.concentration.Rank(ctx, "seller",
		concentration.SellerEntities(result.Sellers))
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, fmt.Errorf("seller concentration: %w", err)
	}
	result.CategoryPareto, err = r.concentration.Rank(ctx, "category",
		concentration.CategoryEntities(snap))
	if err != nil {
		infrastructure.RecordError(ctx, err)
		return nil, fmt.Errorf("category concentration: %w", err)
	}

	result.CompletedAt = time.Now()
	r.logger.InfoContext(ctx, "analytics run completed",
		"run_id", result.RunID,
		"duration", result.CompletedAt.Sub(result.StartedAt),
	)

	return result, nil
}

// runDelivery wraps the delivery stage in its own span.
func (r *Runner) runDelivery(ctx context.Context, tracer trace.Tracer, snap *store.Snapshot) (*delivery.Result, error) {
	ctx, span := tracer.Start(ctx, "stage.delivery")
	defer span.End()

	res, err := r.delivery.Analyze(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("delivery stage: %w", err)
	}
	return res, nil
}

// runStage wraps one parallel stage in a span and uniform error context.
func (r *Runner) runStage(ctx context.Context, tracer trace.Tracer, name string, fn func(context.Context) (any, error)) (any, error) {
	ctx, span := tracer.Start(ctx, "stage."+name)
	defer span.End()

	res, err := fn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s stage: %w", name, err)
	}
	return res, nil
}
