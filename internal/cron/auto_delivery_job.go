package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/miravelle/modora-backend/internal/orders"
	"github.com/miravelle/modora-backend/pkg/db/models"
	"github.com/miravelle/modora-backend/pkg/enums"
	"github.com/miravelle/modora-backend/pkg/logger"
	"github.com/miravelle/modora-backend/pkg/metrics"
)

const defaultAutoDeliverAfterDays = 14

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type shippedOrderReader interface {
	FindShippedBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

type transactionalOrderRepo interface {
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Update(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
}

type transactionalRepoFactory func(tx *gorm.DB) transactionalOrderRepo

func defaultTransactionalRepo(tx *gorm.DB) transactionalOrderRepo {
	return orders.NewRepository(tx)
}

// AutoDeliveryJobParams configure the auto-delivery sweep.
type AutoDeliveryJobParams struct {
	Logger                   *logger.Logger
	DB                       txRunner
	ShippedReader            shippedOrderReader
	TransactionalRepoFactory transactionalRepoFactory
	Metrics                  *metrics.CronJobMetrics
	AfterDays                int
}

// AutoDeliveryJob marks orders delivered once they have been SHIPPED longer
// than the configured threshold. The same sweep backs the cron cadence and
// the operator-triggered endpoint with its dry-run mode.
type AutoDeliveryJob struct {
	logg        *logger.Logger
	db          txRunner
	reader      shippedOrderReader
	repoFactory transactionalRepoFactory
	metrics     *metrics.CronJobMetrics
	afterDays   int
	now         func() time.Time
}

// SweepResult reports what one sweep saw and did.
type SweepResult struct {
	DryRun        bool        `json:"dry_run"`
	Cutoff        time.Time   `json:"cutoff"`
	EligibleCount int         `json:"eligible_count"`
	UpdatedCount  int         `json:"updated_count"`
	OrderIDs      []uuid.UUID `json:"order_ids"`
}

// NewAutoDeliveryJob builds the sweep job.
func NewAutoDeliveryJob(params AutoDeliveryJobParams) (*AutoDeliveryJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.ShippedReader == nil {
		return nil, fmt.Errorf("shipped orders reader required")
	}
	repoFactory := params.TransactionalRepoFactory
	if repoFactory == nil {
		repoFactory = defaultTransactionalRepo
	}
	afterDays := params.AfterDays
	if afterDays <= 0 {
		afterDays = defaultAutoDeliverAfterDays
	}
	return &AutoDeliveryJob{
		logg:        params.Logger,
		db:          params.DB,
		reader:      params.ShippedReader,
		repoFactory: repoFactory,
		metrics:     params.Metrics,
		afterDays:   afterDays,
		now:         time.Now,
	}, nil
}

func (j *AutoDeliveryJob) Name() string { return "auto-delivery" }

func (j *AutoDeliveryJob) Run(ctx context.Context) error {
	_, err := j.Sweep(ctx, false)
	return err
}

// Sweep scans shipped orders past the threshold and, unless dryRun is set,
// transitions each to DELIVERED in its own transaction. A failure on one
// order is recorded and the sweep continues.
func (j *AutoDeliveryJob) Sweep(ctx context.Context, dryRun bool) (*SweepResult, error) {
	cutoff := j.now().UTC().Add(-time.Duration(j.afterDays) * 24 * time.Hour)
	eligible, err := j.reader.FindShippedBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query shipped orders: %w", err)
	}

	result := &SweepResult{
		DryRun:        dryRun,
		Cutoff:        cutoff,
		EligibleCount: len(eligible),
		OrderIDs:      make([]uuid.UUID, 0, len(eligible)),
	}

	var errs []error
	for _, order := range eligible {
		result.OrderIDs = append(result.OrderIDs, order.ID)
		if dryRun {
			continue
		}
		if err := j.deliver(ctx, order.ID); err != nil {
			orderCtx := j.logg.WithOrderID(ctx, order.ID.String())
			j.logg.Error(orderCtx, "auto-delivery failed for order", err)
			errs = append(errs, err)
			continue
		}
		result.UpdatedCount++
	}

	j.metrics.AddProcessed(j.Name(), result.UpdatedCount)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"eligible": result.EligibleCount,
		"updated":  result.UpdatedCount,
		"dry_run":  dryRun,
	})
	j.logg.Info(logCtx, "auto-delivery sweep complete")
	return result, multierr.Combine(errs...)
}

func (j *AutoDeliveryJob) deliver(ctx context.Context, orderID uuid.UUID) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repoFactory(tx)
		current, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		// a concurrent user confirmation may have landed first
		if current.Status != enums.OrderStatusShipped {
			return nil
		}
		deliveredAt := j.now().UTC()
		return repo.Update(ctx, orderID, map[string]any{
			"status":       enums.OrderStatusDelivered,
			"delivered_at": deliveredAt,
		})
	})
}
