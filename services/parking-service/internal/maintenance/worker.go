package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/slotpark/slotpark/libs/db"
	"github.com/slotpark/slotpark/services/parking-service/internal/outbox"
	"github.com/slotpark/slotpark/services/parking-service/internal/storage"
)

// Worker runs the periodic housekeeping passes: expiring quick
// postings and completing bookings whose end time has passed. Each
// pass runs in one transaction guarded by a transaction-scoped
// advisory lock, so with multiple parking-service replicas only one
// does the work per tick and the lock releases itself on commit.
type Worker struct {
	pool        *db.Pool
	slots       *storage.SlotRepository
	bookings    *storage.BookingRepository
	outbox      *outbox.Repository
	logger      *slog.Logger
	interval    time.Duration
	advisoryKey int64
}

type WorkerConfig struct {
	Interval        time.Duration
	AdvisoryLockKey int64
}

func NewWorker(pool *db.Pool, slots *storage.SlotRepository, bookings *storage.BookingRepository, outboxRepo *outbox.Repository, logger *slog.Logger, cfg WorkerConfig) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = 1 * time.Minute
	}
	lockKey := cfg.AdvisoryLockKey
	if lockKey == 0 {
		lockKey = 7231001
	}
	return &Worker{
		pool:        pool,
		slots:       slots,
		bookings:    bookings,
		outbox:      outboxRepo,
		logger:      logger,
		interval:    cfg.Interval,
		advisoryKey: lockKey,
	}
}

func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run immediately on startup to catch up after downtime.
	if err := w.runOnce(ctx); err != nil {
		w.logger.Error("maintenance pass failed", "err", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.runOnce(ctx); err != nil {
				w.logger.Error("maintenance pass failed", "err", err)
			}
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var locked bool
	if err := tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1)`, w.advisoryKey).Scan(&locked); err != nil {
		return err
	}
	if !locked {
		// Another replica holds the lock for this tick.
		return tx.Rollback(ctx)
	}

	now := time.Now().UTC()

	sweptIDs, err := w.slots.SweepExpiredQuickTx(ctx, tx, now)
	if err != nil {
		return err
	}
	if len(sweptIDs) > 0 {
		evt, err := outbox.QuickPostExpired(sweptIDs, now)
		if err != nil {
			return err
		}
		if err := w.outbox.Insert(ctx, tx, evt); err != nil {
			return err
		}
	}

	completed, err := w.bookings.CompleteFinishedTx(ctx, tx, now)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	if len(sweptIDs) > 0 || completed > 0 {
		w.logger.Info("maintenance pass done", "quick_posts_expired", len(sweptIDs), "bookings_completed", completed)
	}
	return nil
}
