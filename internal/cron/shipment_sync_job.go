package cron

import (
	"context"
	"fmt"

	"github.com/vendorahq/vendora-backend/internal/shipping"
	"github.com/vendorahq/vendora-backend/pkg/logger"
)

// ShipmentSyncJobParams configure the carrier tracking sync job.
type ShipmentSyncJobParams struct {
	Logger   *logger.Logger
	Shipping trackingSyncer
}

type trackingSyncer interface {
	SyncTracking(ctx context.Context) (shipping.SyncReport, error)
}

// NewShipmentSyncJob wraps the shipping tracking sync for the cron worker.
func NewShipmentSyncJob(params ShipmentSyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Shipping == nil {
		return nil, fmt.Errorf("shipping service required")
	}
	return &shipmentSyncJob{logg: params.Logger, shipping: params.Shipping}, nil
}

type shipmentSyncJob struct {
	logg     *logger.Logger
	shipping trackingSyncer
}

func (j *shipmentSyncJob) Name() string { return "shipment-sync" }

func (j *shipmentSyncJob) Run(ctx context.Context) error {
	report, err := j.shipping.SyncTracking(ctx)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"checked":   report.Checked,
		"updated":   report.Updated,
		"delivered": report.Delivered,
		"failed":    report.Failed,
	})
	if err != nil {
		j.logg.Error(logCtx, "tracking sync finished with failures", err)
		return fmt.Errorf("shipment sync: %w", err)
	}
	j.logg.Info(logCtx, "tracking sync complete")
	return nil
}
