package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/vendorahq/vendora-backend/internal/notifications"
	"github.com/vendorahq/vendora-backend/internal/refunds"
	"github.com/vendorahq/vendora-backend/internal/users"
	"github.com/vendorahq/vendora-backend/internal/wallet"
	"github.com/vendorahq/vendora-backend/pkg/config"
	"github.com/vendorahq/vendora-backend/pkg/db"
	"github.com/vendorahq/vendora-backend/pkg/logger"
	"github.com/vendorahq/vendora-backend/pkg/outbox"
	"github.com/vendorahq/vendora-backend/pkg/outbox/idempotency"
	"github.com/vendorahq/vendora-backend/pkg/pubsub"
	"github.com/vendorahq/vendora-backend/pkg/razorpay"
	"github.com/vendorahq/vendora-backend/pkg/redis"

	"github.com/google/uuid"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "failed to close database client", err)
		}
	}()

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	refundsSubscription := pubsubClient.RefundsSubscription()
	if refundsSubscription == nil {
		requireResource(ctx, logg, "refunds subscription", errors.New("subscription not configured"))
	}
	notificationSubscription := pubsubClient.NotificationSubscription()
	if notificationSubscription == nil {
		requireResource(ctx, logg, "notification subscription", errors.New("subscription not configured"))
	}

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.ConsumerIdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	razorpayClient, err := razorpay.New(cfg.Razorpay)
	requireResource(ctx, logg, "razorpay client", err)

	gdb := dbClient.DB()
	outboxSvc := outbox.NewService(outbox.NewRepository(gdb), logg)

	walletSvc, err := wallet.NewService(wallet.NewRepository(gdb))
	requireResource(ctx, logg, "wallet service", err)

	processor, err := refunds.NewProcessor(refunds.ProcessorParams{
		Logger:            logg,
		Tx:                dbClient,
		Repo:              refunds.NewRepository(gdb),
		Wallet:            walletSvc,
		Gateway:           razorpayClient,
		Outbox:            outboxSvc,
		PlatformAccountID: cfg.Payouts.PlatformAccount(),
		MaxAttempts:       cfg.Refunds.MaxAttempts,
		BackoffBase:       cfg.Refunds.RetryBackoff,
	})
	requireResource(ctx, logg, "refund processor", err)

	refundConsumer, err := refunds.NewConsumer(processor, refundsSubscription, manager, logg)
	requireResource(ctx, logg, "refund consumer", err)

	notificationConsumer, err := notifications.NewConsumer(
		notifications.NewRepository(gdb),
		notificationSubscription,
		manager,
		logg,
		lookupAlertAdmin(ctx, logg, gdb),
	)
	requireResource(ctx, logg, "notification consumer", err)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(runCtx, "worker ready")

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		return refundConsumer.Run(groupCtx)
	})
	group.Go(func() error {
		return notificationConsumer.Run(groupCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "worker failed", err)
		os.Exit(1)
	}
}

// lookupAlertAdmin resolves the admin account that receives operational
// alerts. A missing admin is not fatal, alerts are just skipped.
func lookupAlertAdmin(ctx context.Context, logg *logger.Logger, gdb *gorm.DB) uuid.UUID {
	admin, err := users.NewRepository(gdb).FindFirstAdmin(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logg.Warn(ctx, "no admin account found, admin alerts disabled")
		} else {
			logg.Error(ctx, "failed to look up admin account", err)
		}
		return uuid.Nil
	}
	return admin.ID
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
