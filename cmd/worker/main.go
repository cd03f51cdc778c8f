package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/splitpay/backend/internal/config"
	"github.com/splitpay/backend/internal/db"
	"github.com/splitpay/backend/internal/events"
	"github.com/splitpay/backend/internal/models"
	"github.com/splitpay/backend/internal/repositories"
	"github.com/splitpay/backend/internal/services"
	"go.uber.org/zap"
)

// The worker sweeps escrows that sat in funded without reaching full
// confirmation and cancels them after ESCROW_STALE_SECONDS.

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if cfg.EscrowStaleSeconds <= 0 {
		log.Info("auto-cancel disabled, worker idle")
		<-sigCh
		return
	}

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	escrowRepo := repositories.NewEscrowRepo(pool)
	auditRepo := repositories.NewAuditRepo(pool)
	publisher := events.NewRedisPublisher(rdb, log)
	escrowService := services.NewEscrowService(escrowRepo, auditRepo, publisher, cfg, log)

	log.Info("worker started", zap.Int("stale_seconds", cfg.EscrowStaleSeconds))

	staleTicker := time.NewTicker(time.Minute)
	defer staleTicker.Stop()

	for {
		select {
		case <-staleTicker.C:
			runStaleCancel(ctx, escrowRepo, escrowService, cfg, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func runStaleCancel(ctx context.Context, escrowRepo *repositories.EscrowRepo, escrowService *services.EscrowService, cfg *config.Config, log *zap.Logger) {
	escrows, err := escrowRepo.ListStale(ctx, models.EscrowStatusFunded, cfg.EscrowStaleSeconds)
	if err != nil {
		log.Error("failed to list stale escrows", zap.Error(err))
		return
	}

	for _, e := range escrows {
		log.Info("auto-cancelling stale escrow",
			zap.String("escrow_id", e.ID.String()),
			zap.Time("updated_at", e.UpdatedAt),
		)
		if _, err := escrowService.AutoCancel(ctx, e.ID); err != nil {
			log.Error("failed to cancel escrow", zap.String("escrow_id", e.ID.String()), zap.Error(err))
		}
	}
}
