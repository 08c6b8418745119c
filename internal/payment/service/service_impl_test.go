package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditrepository "github.com/smallbiznis/labdesk/internal/audit/repository"
	auditservice "github.com/smallbiznis/labdesk/internal/audit/service"
	clientdomain "github.com/smallbiznis/labdesk/internal/client/domain"
	clientrepository "github.com/smallbiznis/labdesk/internal/client/repository"
	"github.com/smallbiznis/labdesk/internal/clock"
	"github.com/smallbiznis/labdesk/internal/events"
	invoicedomain "github.com/smallbiznis/labdesk/internal/invoice/domain"
	invoicerepository "github.com/smallbiznis/labdesk/internal/invoice/repository"
	ledgerdomain "github.com/smallbiznis/labdesk/internal/ledger/domain"
	ledgerservice "github.com/smallbiznis/labdesk/internal/ledger/service"
	"github.com/smallbiznis/labdesk/internal/locks"
	paymentdomain "github.com/smallbiznis/labdesk/internal/payment/domain"
	paymentrepository "github.com/smallbiznis/labdesk/internal/payment/repository"
	"github.com/smallbiznis/labdesk/internal/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc       paymentdomain.Service
	ledgerSvc ledgerdomain.Service
	db        *gorm.DB
	node      *snowflake.Node
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenTestDB(t)
	node := testutil.NewNode(t)
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	fixed := clock.Fixed{At: now}
	log := zap.NewNop()

	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Clock: fixed,
	})
	auditSvc := auditservice.NewService(auditservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  auditrepository.Provide(),
	})

	svc := NewService(Params{
		DB:          db,
		Log:         log,
		GenID:       node,
		Clock:       fixed,
		Locks:       locks.New(),
		Repo:        paymentrepository.Provide(),
		ClientRepo:  clientrepository.Provide(),
		InvoiceRepo: invoicerepository.Provide(),
		LedgerSvc:   ledgerSvc,
		AuditSvc:    auditSvc,
		Outbox:      events.NewOutbox(db, node),
	})
	return &fixture{svc: svc, ledgerSvc: ledgerSvc, db: db, node: node, now: now}
}

func (f *fixture) createClient(t *testing.T) snowflake.ID {
	t.Helper()
	client := clientdomain.Client{
		ID:        f.node.Generate(),
		Name:      "Dental Norte",
		CreatedAt: f.now,
		UpdatedAt: f.now,
	}
	require.NoError(t, f.db.Create(&client).Error)
	return client.ID
}

// createInvoice seeds a PENDING invoice plus its ledger debit, with
// created_at spaced so allocation order is deterministic.
func (f *fixture) createInvoice(t *testing.T, clientID snowflake.ID, raw string, age time.Duration) *invoicedomain.Invoice {
	t.Helper()
	amount := decimal.RequireFromString(raw)
	createdAt := f.now.Add(-age)
	invoice := invoicedomain.Invoice{
		ID:        f.node.Generate(),
		ClientID:  clientID,
		Amount:    amount,
		Currency:  "MXN",
		Status:    invoicedomain.StatusPending,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	require.NoError(t, f.db.Create(&invoice).Error)
	invoiceID := invoice.ID
	_, err := f.ledgerSvc.Append(context.Background(), nil, ledgerdomain.AppendRequest{
		ClientID:  clientID,
		InvoiceID: &invoiceID,
		Debit:     amount,
		CreatedAt: createdAt,
	})
	require.NoError(t, err)
	return &invoice
}

func (f *fixture) invoiceStatus(t *testing.T, id snowflake.ID) invoicedomain.Status {
	t.Helper()
	var invoice invoicedomain.Invoice
	require.NoError(t, f.db.First(&invoice, "id = ?", id).Error)
	return invoice.Status
}

func (f *fixture) ledgerEntries(t *testing.T, clientID snowflake.ID) []ledgerdomain.AccountEntry {
	t.Helper()
	var entries []ledgerdomain.AccountEntry
	require.NoError(t, f.db.
		Where("client_id = ?", clientID).
		Order("created_at ASC").Order("id ASC").
		Find(&entries).Error)
	return entries
}

func TestRecordAllocatesOldestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clientID := f.createClient(t)
	oldest := f.createInvoice(t, clientID, "1000.00", 72*time.Hour)
	middle := f.createInvoice(t, clientID, "500.00", 48*time.Hour)
	newest := f.createInvoice(t, clientID, "800.00", 24*time.Hour)

	payments, err := f.svc.Record(ctx, paymentdomain.RecordRequest{
		ClientID: clientID,
		Amount:   decimal.RequireFromString("1200.00"),
	})
	require.NoError(t, err)
	require.Len(t, payments, 2)

	require.Equal(t, oldest.ID, payments[0].InvoiceID)
	require.True(t, payments[0].Amount.Equal(decimal.RequireFromString("1000.00")))
	require.Equal(t, middle.ID, payments[1].InvoiceID)
	require.True(t, payments[1].Amount.Equal(decimal.RequireFromString("200.00")))

	require.Equal(t, invoicedomain.StatusPaid, f.invoiceStatus(t, oldest.ID))
	require.Equal(t, invoicedomain.StatusPending, f.invoiceStatus(t, middle.ID))
	require.Equal(t, invoicedomain.StatusPending, f.invoiceStatus(t, newest.ID))
}

func TestRecordCreditsSumToReceivedAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clientID := f.createClient(t)
	f.createInvoice(t, clientID, "300.00", 48*time.Hour)
	f.createInvoice(t, clientID, "200.00", 24*time.Hour)

	received := decimal.RequireFromString("750.00")
	_, err := f.svc.Record(ctx, paymentdomain.RecordRequest{
		ClientID: clientID,
		Amount:   received,
	})
	require.NoError(t, err)

	total := decimal.Zero
	var surplus *ledgerdomain.AccountEntry
	for _, entry := range f.ledgerEntries(t, clientID) {
		if !entry.Credit.IsPositive() {
			continue
		}
		total = total.Add(entry.Credit)
		if entry.PaymentID == nil {
			entry := entry
			surplus = &entry
		}
	}
	require.True(t, total.Equal(received))

	// the 250.00 that no invoice absorbed is a credit with no links
	require.NotNil(t, surplus)
	require.Nil(t, surplus.InvoiceID)
	require.True(t, surplus.Credit.Equal(decimal.RequireFromString("250.00")))

	entries := f.ledgerEntries(t, clientID)
	last := entries[len(entries)-1]
	require.True(t, last.RunningBalance.Equal(decimal.RequireFromString("-250.00")))
}

func TestRecordBackdatedReplaysLaterBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clientID := f.createClient(t)
	oldest := f.createInvoice(t, clientID, "1000.00", 72*time.Hour)
	f.createInvoice(t, clientID, "500.00", 24*time.Hour)

	// dated between the two invoices, so the credit sorts mid-history
	receivedAt := f.now.Add(-48 * time.Hour)
	payments, err := f.svc.Record(ctx, paymentdomain.RecordRequest{
		ClientID: clientID,
		Amount:   decimal.RequireFromString("1000.00"),
		Date:     &receivedAt,
	})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Equal(t, oldest.ID, payments[0].InvoiceID)
	require.Equal(t, invoicedomain.StatusPaid, f.invoiceStatus(t, oldest.ID))

	entries := f.ledgerEntries(t, clientID)
	require.Len(t, entries, 3)
	require.True(t, entries[0].RunningBalance.Equal(decimal.RequireFromString("1000.00")))
	require.True(t, entries[1].Credit.Equal(decimal.RequireFromString("1000.00")))
	require.True(t, entries[1].RunningBalance.Equal(decimal.Zero))
	require.True(t, entries[2].RunningBalance.Equal(decimal.RequireFromString("500.00")))
}

func TestRecordSkipsCancelledAndPaidInvoices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clientID := f.createClient(t)
	cancelled := f.createInvoice(t, clientID, "400.00", 72*time.Hour)
	require.NoError(t, f.db.Model(&invoicedomain.Invoice{}).
		Where("id = ?", cancelled.ID).
		Update("status", invoicedomain.StatusCancelled).Error)
	open := f.createInvoice(t, clientID, "600.00", 24*time.Hour)

	payments, err := f.svc.Record(ctx, paymentdomain.RecordRequest{
		ClientID: clientID,
		Amount:   decimal.RequireFromString("600.00"),
	})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Equal(t, open.ID, payments[0].InvoiceID)
	require.Equal(t, invoicedomain.StatusPaid, f.invoiceStatus(t, open.ID))
}

func TestRecordRejectsNonPositiveAmountWithZeroWrites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clientID := f.createClient(t)
	f.createInvoice(t, clientID, "100.00", 24*time.Hour)

	for _, raw := range []string{"0", "-25.00"} {
		_, err := f.svc.Record(ctx, paymentdomain.RecordRequest{
			ClientID: clientID,
			Amount:   decimal.RequireFromString(raw),
		})
		require.ErrorIs(t, err, paymentdomain.ErrNonPositiveAmount)
	}

	var payments int64
	require.NoError(t, f.db.Model(&paymentdomain.Payment{}).Count(&payments).Error)
	require.Zero(t, payments)
	require.Len(t, f.ledgerEntries(t, clientID), 1)

	var queued int64
	require.NoError(t, f.db.Model(&ledgerdomain.RepairItem{}).Count(&queued).Error)
	require.Zero(t, queued)
}

func TestRecordUnknownClient(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Record(context.Background(), paymentdomain.RecordRequest{
		ClientID: f.node.Generate(),
		Amount:   decimal.RequireFromString("100.00"),
	})
	require.ErrorIs(t, err, clientdomain.ErrClientNotFound)
}

func TestRecordWithNoOpenInvoicesIsAllSurplus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clientID := f.createClient(t)

	payments, err := f.svc.Record(ctx, paymentdomain.RecordRequest{
		ClientID: clientID,
		Amount:   decimal.RequireFromString("500.00"),
	})
	require.NoError(t, err)
	require.Empty(t, payments)

	entries := f.ledgerEntries(t, clientID)
	require.Len(t, entries, 1)
	require.Nil(t, entries[0].InvoiceID)
	require.Nil(t, entries[0].PaymentID)
	require.True(t, entries[0].RunningBalance.Equal(decimal.RequireFromString("-500.00")))
}

func TestDeletePaymentRevertsInvoice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	clientID := f.createClient(t)
	invoice := f.createInvoice(t, clientID, "1000.00", 24*time.Hour)

	payments, err := f.svc.Record(ctx, paymentdomain.RecordRequest{
		ClientID: clientID,
		Amount:   decimal.RequireFromString("1000.00"),
	})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Equal(t, invoicedomain.StatusPaid, f.invoiceStatus(t, invoice.ID))

	require.NoError(t, f.svc.Delete(ctx, payments[0].ID))

	require.Equal(t, invoicedomain.StatusPending, f.invoiceStatus(t, invoice.ID))

	entries := f.ledgerEntries(t, clientID)
	require.Len(t, entries, 1)
	require.True(t, entries[0].Debit.Equal(invoice.Amount))
	require.True(t, entries[0].RunningBalance.Equal(invoice.Amount))

	err = f.svc.Delete(ctx, payments[0].ID)
	require.ErrorIs(t, err, paymentdomain.ErrPaymentNotFound)
}
