package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/labdesk/internal/audit/domain"
	clientdomain "github.com/smallbiznis/labdesk/internal/client/domain"
	"github.com/smallbiznis/labdesk/internal/clock"
	"github.com/smallbiznis/labdesk/internal/config"
	"github.com/smallbiznis/labdesk/internal/events"
	invoicedomain "github.com/smallbiznis/labdesk/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/labdesk/internal/ledger/domain"
	"github.com/smallbiznis/labdesk/internal/locks"
	paymentdomain "github.com/smallbiznis/labdesk/internal/payment/domain"
	"github.com/smallbiznis/labdesk/internal/pricing"
	workorderdomain "github.com/smallbiznis/labdesk/internal/workorder/domain"
	"github.com/smallbiznis/labdesk/pkg/db/pagination"
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
	Cfg         config.Config
	Locks       *locks.ClientLocks
	Prices      *pricing.Table
	Repo        invoicedomain.Repository
	ClientRepo  clientdomain.Repository
	OrderRepo   workorderdomain.Repository
	PaymentRepo paymentdomain.Repository
	LedgerSvc   ledgerdomain.Service
	AuditSvc    auditdomain.Service
	Outbox      *events.Outbox
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	cfg         config.Config
	locks       *locks.ClientLocks
	prices      *pricing.Table
	repo        invoicedomain.Repository
	clientRepo  clientdomain.Repository
	orderRepo   workorderdomain.Repository
	paymentRepo paymentdomain.Repository
	ledgerSvc   ledgerdomain.Service
	auditSvc    auditdomain.Service
	outbox      *events.Outbox
}

func NewService(p Params) invoicedomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("invoice.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		cfg:         p.Cfg,
		locks:       p.Locks,
		prices:      p.Prices,
		repo:        p.Repo,
		clientRepo:  p.ClientRepo,
		orderRepo:   p.OrderRepo,
		paymentRepo: p.PaymentRepo,
		ledgerSvc:   p.LedgerSvc,
		auditSvc:    p.AuditSvc,
		outbox:      p.Outbox,
	}
}

// Create invoices a completed or delivered work order: one PENDING
// invoice, the order's price backfilled when empty, and one ledger debit
// for the full amount, all inside one transaction under the client lock.
func (s *Service) Create(ctx context.Context, orderID snowflake.ID) (*invoicedomain.Invoice, error) {
	order, err := s.orderRepo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, workorderdomain.ErrOrderNotFound
	}
	if order.ClientID == 0 {
		return nil, invoicedomain.ErrBillingPartyMissing
	}
	billed, err := s.clientRepo.FindByID(ctx, s.db, order.ClientID)
	if err != nil {
		return nil, err
	}
	if billed == nil {
		return nil, invoicedomain.ErrBillingPartyMissing
	}
	if !order.Status.Billable() {
		return nil, invoicedomain.ErrOrderNotReady
	}

	existing, err := s.repo.FindByWorkOrderID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, invoicedomain.ErrDuplicateInvoice
	}

	amount := s.resolveAmount(order)
	if !amount.IsPositive() {
		return nil, invoicedomain.ErrAmountUndetermined
	}

	now := s.clock.Now()
	workOrderID := order.ID
	invoice := &invoicedomain.Invoice{
		ID:          s.genID.Generate(),
		ClientID:    order.ClientID,
		WorkOrderID: &workOrderID,
		Amount:      amount,
		Currency:    s.cfg.DefaultCurrency,
		Status:      invoicedomain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.locks.Do(order.ClientID, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.repo.Insert(ctx, tx, invoice); err != nil {
				return err
			}
			if order.Price == nil || !order.Price.IsPositive() {
				if err := s.orderRepo.BackfillPrice(ctx, tx, order.ID, amount, now); err != nil {
					return err
				}
			}
			invoiceID := invoice.ID
			if _, err := s.ledgerSvc.Append(ctx, tx, ledgerdomain.AppendRequest{
				ClientID:  order.ClientID,
				InvoiceID: &invoiceID,
				Debit:     amount,
				Credit:    decimal.Zero,
				CreatedAt: now,
			}); err != nil {
				return err
			}
			return s.outbox.PublishTx(ctx, tx, events.Event{
				ClientID:  order.ClientID,
				Type:      events.TypeInvoiceCreated,
				DedupeKey: events.TypeInvoiceCreated + ":" + invoice.ID.String(),
				Payload: map[string]any{
					"invoice_id":    invoice.ID.String(),
					"work_order_id": order.ID.String(),
					"amount":        amount.String(),
					"currency":      invoice.Currency,
				},
			})
		})
	})
	if err != nil {
		s.markDirty(ctx, order.ClientID, "invoice.create")
		return nil, err
	}

	s.audit(ctx, "invoice.create", invoice.ID, map[string]any{
		"client_id":     order.ClientID.String(),
		"work_order_id": order.ID.String(),
		"amount":        amount.String(),
	})
	return invoice, nil
}

// resolveAmount prefers the price table, then the price stamped on the
// order.
func (s *Service) resolveAmount(order *workorderdomain.WorkOrder) decimal.Decimal {
	if price, ok := s.prices.Lookup(order.WorkType); ok && price.IsPositive() {
		return price
	}
	if order.Price != nil && order.Price.IsPositive() {
		return *order.Price
	}
	return decimal.Zero
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*invoicedomain.Invoice, error) {
	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return invoice, nil
}

func (s *Service) List(ctx context.Context, req invoicedomain.ListRequest) (invoicedomain.ListResponse, error) {
	offset, limit, err := req.Resolve()
	if err != nil {
		return invoicedomain.ListResponse{}, err
	}

	invoices, err := s.repo.List(ctx, s.db, invoicedomain.ListFilter{
		ClientID: req.ClientID,
		Status:   req.Status,
		Offset:   offset,
		Limit:    limit,
	})
	if err != nil {
		return invoicedomain.ListResponse{}, err
	}

	return invoicedomain.ListResponse{
		PageInfo: pagination.PageInfo{
			NextPageToken: pagination.NextToken(offset, limit, len(invoices)),
		},
		Invoices: invoices,
	}, nil
}

// EditAmount is the admin correction path for a mispriced invoice. The
// originating ledger debit is rewritten and every later balance replayed.
func (s *Service) EditAmount(ctx context.Context, req invoicedomain.EditAmountRequest) (*invoicedomain.Invoice, error) {
	if !req.NewAmount.IsPositive() {
		return nil, invoicedomain.ErrInvalidAmount
	}
	invoice, err := s.repo.FindByID(ctx, s.db, req.InvoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	if invoice.Status == invoicedomain.StatusCancelled {
		return nil, invoicedomain.ErrInvoiceCancelled
	}

	now := s.clock.Now()
	err = s.locks.Do(invoice.ClientID, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			paid, err := s.paymentRepo.SumForInvoice(ctx, tx, invoice.ID)
			if err != nil {
				return err
			}
			if req.NewAmount.LessThan(paid) && !req.Override {
				return invoicedomain.ErrAmountBelowPayments
			}

			if err := tx.WithContext(ctx).Exec(
				`UPDATE account_entries
				 SET debit = ?
				 WHERE client_id = ? AND invoice_id = ? AND debit > 0`,
				req.NewAmount,
				invoice.ClientID,
				invoice.ID,
			).Error; err != nil {
				return err
			}
			if err := s.repo.UpdateAmount(ctx, tx, invoice.ID, req.NewAmount, now); err != nil {
				return err
			}

			status := invoicedomain.StatusPending
			if paid.GreaterThanOrEqual(req.NewAmount) {
				status = invoicedomain.StatusPaid
			}
			if err := s.repo.UpdateStatus(ctx, tx, invoice.ID, status, now); err != nil {
				return err
			}
			invoice.Amount = req.NewAmount
			invoice.Status = status
			invoice.UpdatedAt = now

			if err := s.ledgerSvc.Recompute(ctx, tx, invoice.ClientID); err != nil {
				return err
			}
			return s.outbox.PublishTx(ctx, tx, events.Event{
				ClientID:  invoice.ClientID,
				Type:      events.TypeInvoiceAmended,
				DedupeKey: events.TypeInvoiceAmended + ":" + invoice.ID.String() + ":" + req.NewAmount.String(),
				Payload: map[string]any{
					"invoice_id": invoice.ID.String(),
					"amount":     req.NewAmount.String(),
				},
			})
		})
	})
	if err != nil {
		if !errors.Is(err, invoicedomain.ErrAmountBelowPayments) {
			s.markDirty(ctx, invoice.ClientID, "invoice.edit_amount")
		}
		return nil, err
	}

	s.audit(ctx, "invoice.edit_amount", invoice.ID, map[string]any{
		"client_id": invoice.ClientID.String(),
		"amount":    req.NewAmount.String(),
		"override":  req.Override,
	})
	return invoice, nil
}

// Delete removes an invoice with everything it owns: its payments, its
// ledger rows, then the invoice itself, and replays the client's
// balances.
func (s *Service) Delete(ctx context.Context, id snowflake.ID) error {
	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if invoice == nil {
		return invoicedomain.ErrInvoiceNotFound
	}

	err = s.locks.Do(invoice.ClientID, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.paymentRepo.DeleteForInvoice(ctx, tx, invoice.ID); err != nil {
				return err
			}
			if err := tx.WithContext(ctx).Exec(
				`DELETE FROM account_entries WHERE invoice_id = ?`, invoice.ID,
			).Error; err != nil {
				return err
			}
			if err := s.repo.Delete(ctx, tx, invoice.ID); err != nil {
				return err
			}
			if err := s.ledgerSvc.Recompute(ctx, tx, invoice.ClientID); err != nil {
				return err
			}
			return s.outbox.PublishTx(ctx, tx, events.Event{
				ClientID:  invoice.ClientID,
				Type:      events.TypeInvoiceDeleted,
				DedupeKey: events.TypeInvoiceDeleted + ":" + invoice.ID.String(),
				Payload:   map[string]any{"invoice_id": invoice.ID.String()},
			})
		})
	})
	if err != nil {
		s.markDirty(ctx, invoice.ClientID, "invoice.delete")
		return err
	}

	s.audit(ctx, "invoice.delete", invoice.ID, map[string]any{
		"client_id": invoice.ClientID.String(),
		"amount":    invoice.Amount.String(),
	})
	return nil
}

// Cancel withdraws an unpaid invoice. Allowed only while no payment
// touches it; the ledger debit is removed rather than offset. Terminal.
func (s *Service) Cancel(ctx context.Context, id snowflake.ID) error {
	invoice, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if invoice == nil {
		return invoicedomain.ErrInvoiceNotFound
	}
	if invoice.Status == invoicedomain.StatusCancelled {
		return nil
	}

	now := s.clock.Now()
	err = s.locks.Do(invoice.ClientID, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			paid, err := s.paymentRepo.SumForInvoice(ctx, tx, invoice.ID)
			if err != nil {
				return err
			}
			if paid.IsPositive() {
				return invoicedomain.ErrInvoiceHasPayments
			}
			if err := tx.WithContext(ctx).Exec(
				`DELETE FROM account_entries WHERE invoice_id = ? AND debit > 0`, invoice.ID,
			).Error; err != nil {
				return err
			}
			if err := s.repo.UpdateStatus(ctx, tx, invoice.ID, invoicedomain.StatusCancelled, now); err != nil {
				return err
			}
			if err := s.ledgerSvc.Recompute(ctx, tx, invoice.ClientID); err != nil {
				return err
			}
			return s.outbox.PublishTx(ctx, tx, events.Event{
				ClientID:  invoice.ClientID,
				Type:      events.TypeInvoiceCancelled,
				DedupeKey: events.TypeInvoiceCancelled + ":" + invoice.ID.String(),
				Payload:   map[string]any{"invoice_id": invoice.ID.String()},
			})
		})
	})
	if err != nil {
		if !errors.Is(err, invoicedomain.ErrInvoiceHasPayments) {
			s.markDirty(ctx, invoice.ClientID, "invoice.cancel")
		}
		return err
	}

	s.audit(ctx, "invoice.cancel", invoice.ID, map[string]any{
		"client_id": invoice.ClientID.String(),
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

func (s *Service) audit(ctx context.Context, action string, invoiceID snowflake.ID, metadata map[string]any) {
	targetID := invoiceID.String()
	_ = s.auditSvc.AuditLog(ctx, auditdomain.ActorTypeAdmin, "", action, "invoice", &targetID, metadata)
}
