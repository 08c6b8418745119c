package repair

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/labdesk/internal/locks"
	ledgerdomain "github.com/smallbiznis/labdesk/internal/ledger/domain"
	"github.com/smallbiznis/labdesk/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	LedgerSvc ledgerdomain.Service
	Locks     *locks.ClientLocks
	Config    Config `optional:"true"`
}

// Worker drains the repair queue: every client marked dirty by a failed
// mutating sequence gets its running balances recomputed until clean.
type Worker struct {
	db        *gorm.DB
	log       *zap.Logger
	ledgerSvc ledgerdomain.Service
	locks     *locks.ClientLocks
	cfg       Config
}

func NewWorker(p Params) *Worker {
	return &Worker{
		db:        p.DB,
		log:       p.Log.Named("ledger.repair"),
		ledgerSvc: p.LedgerSvc,
		locks:     p.Locks,
		cfg:       p.Config.withDefaults(),
	}
}

func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil {
			w.log.Warn("ledger repair run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce processes at most one batch and reports how many clients were
// repaired.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	if w.db == nil || w.ledgerSvc == nil || w.locks == nil {
		return 0, errors.New("repair_worker_unavailable")
	}

	var items []ledgerdomain.RepairItem
	if err := w.db.WithContext(ctx).
		Order("enqueued_at ASC").
		Limit(w.cfg.BatchSize).
		Find(&items).Error; err != nil {
		return 0, err
	}

	var backlog int64
	if err := w.db.WithContext(ctx).Model(&ledgerdomain.RepairItem{}).Count(&backlog).Error; err == nil {
		metrics.Billing().SetRepairBacklog(int(backlog))
	}

	repaired := 0
	for _, item := range items {
		err := w.locks.Do(item.ClientID, func() error {
			return w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				if err := w.ledgerSvc.Recompute(ctx, tx, item.ClientID); err != nil {
					return err
				}
				return tx.Exec(`DELETE FROM repair_queue WHERE client_id = ?`, item.ClientID).Error
			})
		})
		if err != nil {
			// left in the queue for the next pass
			w.log.Warn("ledger repair failed",
				zap.String("client_id", item.ClientID.String()),
				zap.String("reason", item.Reason),
				zap.Error(err),
			)
			continue
		}
		repaired++
	}
	return repaired, nil
}
