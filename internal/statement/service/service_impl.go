package service

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/labdesk/internal/cache"
	clientdomain "github.com/smallbiznis/labdesk/internal/client/domain"
	invoicedomain "github.com/smallbiznis/labdesk/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/labdesk/internal/ledger/domain"
	"github.com/smallbiznis/labdesk/internal/statement/domain"
	workorderdomain "github.com/smallbiznis/labdesk/internal/workorder/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const descriptionTTL = 5 * time.Minute

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	ClientRepo  clientdomain.Repository
	InvoiceRepo invoicedomain.Repository
	OrderRepo   workorderdomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clientRepo  clientdomain.Repository
	invoiceRepo invoicedomain.Repository
	orderRepo   workorderdomain.Repository
	labels      cache.Cache[snowflake.ID, string]
}

func NewService(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("statement.service"),
		clientRepo:  p.ClientRepo,
		invoiceRepo: p.InvoiceRepo,
		orderRepo:   p.OrderRepo,
		labels:      cache.NewTTLCache[snowflake.ID, string](),
	}
}

// Get renders the client's ledger as a statement. Lines come out in the
// same order balances were computed in, so the running balance column
// reads top to bottom without surprises. A dangling invoice or payment
// reference degrades to a generic label, never to an error.
func (s *Service) Get(ctx context.Context, req domain.GetRequest) (*domain.Statement, error) {
	client, err := s.clientRepo.FindByID(ctx, s.db, req.ClientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, clientdomain.ErrClientNotFound
	}

	q := s.db.WithContext(ctx).
		Where("client_id = ?", req.ClientID).
		Order("created_at ASC").
		Order("id ASC")
	if req.From != nil {
		q = q.Where("created_at >= ?", req.From.UTC())
	}
	if req.To != nil {
		q = q.Where("created_at <= ?", req.To.UTC())
	}

	var entries []ledgerdomain.AccountEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, err
	}

	stmt := &domain.Statement{
		ClientID:   client.ID,
		ClientName: client.Name,
		From:       req.From,
		To:         req.To,
		Lines:      make([]domain.Line, 0, len(entries)),
		Totals: domain.Totals{
			Invoiced:  decimal.Zero,
			Collected: decimal.Zero,
			Balance:   decimal.Zero,
		},
	}

	for _, entry := range entries {
		line := domain.Line{
			EntryID:        entry.ID,
			InvoiceID:      entry.InvoiceID,
			PaymentID:      entry.PaymentID,
			Debit:          entry.Debit,
			Credit:         entry.Credit,
			RunningBalance: entry.RunningBalance,
			Date:           entry.CreatedAt,
		}
		switch {
		case entry.Debit.IsPositive():
			line.Kind = domain.KindFactura
			line.Description = s.invoiceLabel(ctx, entry.InvoiceID)
			stmt.Totals.Invoiced = stmt.Totals.Invoiced.Add(entry.Debit)
		case entry.PaymentID != nil:
			line.Kind = domain.KindPago
			line.Description = "Pago recibido"
			stmt.Totals.Collected = stmt.Totals.Collected.Add(entry.Credit)
		default:
			line.Kind = domain.KindMovimiento
			line.Description = "Saldo a favor"
			stmt.Totals.Collected = stmt.Totals.Collected.Add(entry.Credit)
		}
		stmt.Lines = append(stmt.Lines, line)
	}

	if n := len(stmt.Lines); n > 0 {
		stmt.Totals.Balance = stmt.Lines[n-1].RunningBalance
	}
	return stmt, nil
}

// invoiceLabel resolves a debit entry to a human label through the
// invoice and its work order. Lookups are cached; misses fall back to a
// generic charge label.
func (s *Service) invoiceLabel(ctx context.Context, invoiceID *snowflake.ID) string {
	const fallback = "Cargo"
	if invoiceID == nil {
		return fallback
	}
	if label, ok := s.labels.Get(*invoiceID); ok {
		return label
	}

	invoice, err := s.invoiceRepo.FindByID(ctx, s.db, *invoiceID)
	if err != nil || invoice == nil {
		if err != nil {
			s.log.Warn("invoice lookup failed for statement line",
				zap.String("invoice_id", invoiceID.String()),
				zap.Error(err),
			)
		}
		return fallback
	}

	label := fmt.Sprintf("Factura %s", invoice.ID)
	if invoice.WorkOrderID != nil {
		order, err := s.orderRepo.FindByID(ctx, s.db, *invoice.WorkOrderID)
		if err == nil && order != nil {
			label = fmt.Sprintf("Factura %s, %s, paciente %s", invoice.ID, order.WorkType, order.PatientName)
		}
	}
	s.labels.Set(*invoiceID, label, descriptionTTL)
	return label
}
