package cron

import (
	"context"
	"fmt"

	"github.com/vendorahq/vendora-backend/internal/payouts"
	"github.com/vendorahq/vendora-backend/pkg/logger"
)

// PayoutJobParams configure the payout settlement job.
type PayoutJobParams struct {
	Logger  *logger.Logger
	Payouts payoutRunner
}

type payoutRunner interface {
	Run(ctx context.Context) (payouts.Report, error)
}

// NewPayoutJob wraps the payout scheduler for the cron worker.
func NewPayoutJob(params PayoutJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payout service required")
	}
	return &payoutJob{logg: params.Logger, payouts: params.Payouts}, nil
}

type payoutJob struct {
	logg    *logger.Logger
	payouts payoutRunner
}

func (j *payoutJob) Name() string { return "payout-settlement" }

// Run always logs the per-run totals; per-seller failures arrive as an
// aggregated error that must not mask the sellers that did settle.
func (j *payoutJob) Run(ctx context.Context) error {
	report, err := j.payouts.Run(ctx)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"orders_scanned":  report.OrdersScanned,
		"payouts_created": report.PayoutsCreated,
		"skipped":         report.Skipped,
		"failed":          report.Failed,
	})
	if err != nil {
		j.logg.Error(logCtx, "payout settlement finished with failures", err)
		return fmt.Errorf("payout settlement: %w", err)
	}
	j.logg.Info(logCtx, "payout settlement complete")
	return nil
}
