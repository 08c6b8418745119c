package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/labdesk/internal/clock"
	ledgerdomain "github.com/smallbiznis/labdesk/internal/ledger/domain"
	"github.com/smallbiznis/labdesk/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("ledger.service"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

// Append inserts one ledger row, chaining its running balance from the
// most recent entry of the client. The caller must hold the client lock:
// this read-then-insert is the race-prone primitive.
func (s *Service) Append(ctx context.Context, tx *gorm.DB, req ledgerdomain.AppendRequest) (*ledgerdomain.AccountEntry, error) {
	if tx == nil {
		tx = s.db
	}
	if req.ClientID == 0 {
		return nil, ledgerdomain.ErrInvalidClient
	}
	if req.Debit.IsNegative() || req.Credit.IsNegative() {
		return nil, ledgerdomain.ErrInvalidAmount
	}
	if req.Debit.IsPositive() == req.Credit.IsPositive() {
		// exactly one side must be positive
		return nil, ledgerdomain.ErrInvalidAmount
	}

	createdAt := req.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.clock.Now()
	}

	prev, err := s.lastBalance(ctx, tx, req.ClientID)
	if err != nil {
		return nil, err
	}

	entry := ledgerdomain.AccountEntry{
		ID:             s.genID.Generate(),
		ClientID:       req.ClientID,
		InvoiceID:      req.InvoiceID,
		PaymentID:      req.PaymentID,
		Debit:          req.Debit,
		Credit:         req.Credit,
		RunningBalance: prev.Add(req.Debit).Sub(req.Credit),
		CreatedAt:      createdAt.UTC(),
	}
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, err
	}

	direction := "debit"
	if req.Credit.IsPositive() {
		direction = "credit"
	}
	metrics.Billing().ObserveEntryAppended(direction)

	return &entry, nil
}

func (s *Service) lastBalance(ctx context.Context, tx *gorm.DB, clientID snowflake.ID) (decimal.Decimal, error) {
	var last ledgerdomain.AccountEntry
	err := tx.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(1).
		Find(&last).Error
	if err != nil {
		return decimal.Zero, err
	}
	if last.ID == 0 {
		return decimal.Zero, nil
	}
	return last.RunningBalance, nil
}

// Recompute replays the client's full ledger in (created_at, id) order and
// rewrites every running balance. Idempotent: a second pass without
// intervening writes touches no rows.
func (s *Service) Recompute(ctx context.Context, tx *gorm.DB, clientID snowflake.ID) error {
	if tx == nil {
		tx = s.db
	}
	if clientID == 0 {
		return ledgerdomain.ErrInvalidClient
	}

	var entries []ledgerdomain.AccountEntry
	if err := tx.WithContext(ctx).
		Where("client_id = ?", clientID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&entries).Error; err != nil {
		metrics.Billing().ObserveRecompute("failed")
		return err
	}

	balance := decimal.Zero
	rewritten := 0
	for _, entry := range entries {
		balance = balance.Add(entry.Debit).Sub(entry.Credit)
		if entry.RunningBalance.Equal(balance) {
			continue
		}
		if err := tx.WithContext(ctx).Exec(
			`UPDATE account_entries SET running_balance = ? WHERE id = ?`,
			balance,
			entry.ID,
		).Error; err != nil {
			metrics.Billing().ObserveRecompute("failed")
			return err
		}
		rewritten++
	}

	if rewritten > 0 {
		s.log.Info("ledger balances recomputed",
			zap.String("client_id", clientID.String()),
			zap.Int("entries", len(entries)),
			zap.Int("rewritten", rewritten),
		)
	}
	metrics.Billing().ObserveRecompute("success")
	return nil
}

// MarkDirty records the client in the repair queue. Always uses the base
// connection: the mark must survive the rollback of the sequence that
// failed.
func (s *Service) MarkDirty(ctx context.Context, clientID snowflake.ID, reason string) error {
	if clientID == 0 {
		return ledgerdomain.ErrInvalidClient
	}
	return s.db.WithContext(ctx).Exec(
		`INSERT INTO repair_queue (client_id, reason, enqueued_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (client_id) DO NOTHING`,
		clientID,
		reason,
		s.clock.Now().UTC(),
	).Error
}
