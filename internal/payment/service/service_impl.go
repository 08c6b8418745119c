package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/labdesk/internal/audit/domain"
	clientdomain "github.com/smallbiznis/labdesk/internal/client/domain"
	"github.com/smallbiznis/labdesk/internal/clock"
	"github.com/smallbiznis/labdesk/internal/events"
	invoicedomain "github.com/smallbiznis/labdesk/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/labdesk/internal/ledger/domain"
	"github.com/smallbiznis/labdesk/internal/locks"
	"github.com/smallbiznis/labdesk/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/labdesk/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Locks       *locks.ClientLocks
	Repo        paymentdomain.Repository
	ClientRepo  clientdomain.Repository
	InvoiceRepo invoicedomain.Repository
	LedgerSvc   ledgerdomain.Service
	AuditSvc    auditdomain.Service
	Outbox      *events.Outbox
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	locks       *locks.ClientLocks
	repo        paymentdomain.Repository
	clientRepo  clientdomain.Repository
	invoiceRepo invoicedomain.Repository
	ledgerSvc   ledgerdomain.Service
	auditSvc    auditdomain.Service
	outbox      *events.Outbox
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		locks:       p.Locks,
		repo:        p.Repo,
		clientRepo:  p.ClientRepo,
		invoiceRepo: p.InvoiceRepo,
		ledgerSvc:   p.LedgerSvc,
		auditSvc:    p.AuditSvc,
		outbox:      p.Outbox,
	}
}

// Record spreads one received amount across the client's PENDING
// invoices, oldest first. Each slice becomes a payment row with its own
// ledger credit; whatever cannot be applied is still credited to the
// ledger as an unapplied remainder, so the account always reflects the
// full cash received.
func (s *Service) Record(ctx context.Context, req paymentdomain.RecordRequest) ([]paymentdomain.Payment, error) {
	if !req.Amount.IsPositive() {
		return nil, paymentdomain.ErrNonPositiveAmount
	}
	client, err := s.clientRepo.FindByID(ctx, s.db, req.ClientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, clientdomain.ErrClientNotFound
	}

	provider := strings.TrimSpace(req.Provider)
	if provider == "" {
		provider = paymentdomain.ProviderManual
	}
	receivedAt := s.clock.Now()
	if req.Date != nil && !req.Date.IsZero() {
		receivedAt = req.Date.UTC()
	}

	var created []paymentdomain.Payment
	err = s.locks.Do(req.ClientID, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			pending, err := s.invoiceRepo.ListPendingByClient(ctx, tx, req.ClientID)
			if err != nil {
				return err
			}

			var latest ledgerdomain.AccountEntry
			if err := tx.WithContext(ctx).
				Where("client_id = ?", req.ClientID).
				Order("created_at DESC").
				Order("id DESC").
				Limit(1).
				Find(&latest).Error; err != nil {
				return err
			}
			backdated := latest.ID != 0 && receivedAt.Before(latest.CreatedAt)

			remaining := req.Amount
			for _, invoice := range pending {
				if !remaining.IsPositive() {
					break
				}
				paid, err := s.repo.SumForInvoice(ctx, tx, invoice.ID)
				if err != nil {
					return err
				}
				outstanding := invoice.Amount.Sub(paid)
				if !outstanding.IsPositive() {
					continue
				}

				slice := decimal.Min(outstanding, remaining)
				payment := paymentdomain.Payment{
					ID:          s.genID.Generate(),
					InvoiceID:   invoice.ID,
					Provider:    provider,
					ProviderRef: strings.TrimSpace(req.Note),
					Amount:      slice,
					Status:      paymentdomain.StatusSucceeded,
					CreatedAt:   receivedAt,
				}
				if err := s.repo.Insert(ctx, tx, &payment); err != nil {
					return err
				}

				invoiceID := invoice.ID
				paymentID := payment.ID
				if _, err := s.ledgerSvc.Append(ctx, tx, ledgerdomain.AppendRequest{
					ClientID:  req.ClientID,
					InvoiceID: &invoiceID,
					PaymentID: &paymentID,
					Debit:     decimal.Zero,
					Credit:    slice,
					CreatedAt: receivedAt,
				}); err != nil {
					return err
				}

				if slice.Equal(outstanding) {
					if err := s.invoiceRepo.UpdateStatus(ctx, tx, invoice.ID, invoicedomain.StatusPaid, receivedAt); err != nil {
						return err
					}
				}

				created = append(created, payment)
				remaining = remaining.Sub(slice)
			}

			// Surplus beyond total outstanding is not applied to any
			// invoice but still enters the ledger, keeping the running
			// balance in line with cash received.
			if remaining.IsPositive() {
				if _, err := s.ledgerSvc.Append(ctx, tx, ledgerdomain.AppendRequest{
					ClientID:  req.ClientID,
					Debit:     decimal.Zero,
					Credit:    remaining,
					CreatedAt: receivedAt,
				}); err != nil {
					return err
				}
				metrics.Billing().ObserveAllocation("surplus")
			} else {
				metrics.Billing().ObserveAllocation("applied")
			}

			// A backdated payment lands its credits mid-history while
			// Append chained them from the latest entry. Replay the
			// whole ledger so every later balance is rewritten before
			// commit.
			if backdated {
				if err := s.ledgerSvc.Recompute(ctx, tx, req.ClientID); err != nil {
					return err
				}
			}

			return s.outbox.PublishTx(ctx, tx, events.Event{
				ClientID: req.ClientID,
				Type:     events.TypePaymentRecorded,
				Payload: map[string]any{
					"client_id": req.ClientID.String(),
					"amount":    req.Amount.String(),
					"provider":  provider,
					"payments":  len(created),
				},
			})
		})
	})
	if err != nil {
		metrics.Billing().ObserveAllocation("rejected")
		s.markDirty(ctx, req.ClientID, "payment.record")
		return nil, err
	}

	s.log.Info("payment recorded",
		zap.String("client_id", req.ClientID.String()),
		zap.String("amount", req.Amount.String()),
		zap.Int("invoices_touched", len(created)),
	)
	s.auditPayment(ctx, "payment.record", req.ClientID, map[string]any{
		"amount":   req.Amount.String(),
		"provider": provider,
		"payments": len(created),
	})
	return created, nil
}

// Delete is the admin path for a payment recorded in error. The linked
// ledger credit is removed, balances replayed, and the invoice demoted to
// PENDING when the remaining payments no longer cover it.
func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	payment, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if payment == nil {
		return paymentdomain.ErrPaymentNotFound
	}
	invoice, err := s.invoiceRepo.FindByID(ctx, s.db, payment.InvoiceID)
	if err != nil {
		return err
	}
	if invoice == nil {
		return invoicedomain.ErrInvoiceNotFound
	}

	now := s.clock.Now()
	err = s.locks.Do(invoice.ClientID, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.WithContext(ctx).Exec(
				`DELETE FROM account_entries WHERE payment_id = ?`, payment.ID,
			).Error; err != nil {
				return err
			}
			if err := s.repo.Delete(ctx, tx, payment.ID); err != nil {
				return err
			}

			paid, err := s.repo.SumForInvoice(ctx, tx, invoice.ID)
			if err != nil {
				return err
			}
			if invoice.Status == invoicedomain.StatusPaid && paid.LessThan(invoice.Amount) {
				if err := s.invoiceRepo.UpdateStatus(ctx, tx, invoice.ID, invoicedomain.StatusPending, now); err != nil {
					return err
				}
			}

			if err := s.ledgerSvc.Recompute(ctx, tx, invoice.ClientID); err != nil {
				return err
			}
			return s.outbox.PublishTx(ctx, tx, events.Event{
				ClientID:  invoice.ClientID,
				Type:      events.TypePaymentDeleted,
				DedupeKey: events.TypePaymentDeleted + ":" + payment.ID.String(),
				Payload: map[string]any{
					"payment_id": payment.ID.String(),
					"invoice_id": invoice.ID.String(),
					"amount":     payment.Amount.String(),
				},
			})
		})
	})
	if err != nil {
		s.markDirty(ctx, invoice.ClientID, "payment.delete")
		return err
	}

	targetID := payment.ID.String()
	_ = s.auditSvc.AuditLog(ctx, auditdomain.ActorTypeAdmin, "", "payment.delete", "payment", &targetID, map[string]any{
		"client_id":  invoice.ClientID.String(),
		"invoice_id": invoice.ID.String(),
		"amount":     payment.Amount.String(),
	})
	return nil
}

func (s *Service) markDirty(ctx context.Context, clientID snowflake.ID, reason string) {
	if err := s.ledgerSvc.MarkDirty(ctx, clientID, reason); err != nil {
		s.log.Error("failed to enqueue ledger repair",
			zap.String("client_id", clientID.String()),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
}

func (s *Service) auditPayment(ctx context.Context, action string, clientID snowflake.ID, metadata map[string]any) {
	targetID := clientID.String()
	_ = s.auditSvc.AuditLog(ctx, auditdomain.ActorTypeAdmin, "", action, "client", &targetID, metadata)
}
