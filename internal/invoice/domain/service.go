package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/labdesk/pkg/db/pagination"
)

// EditAmountRequest corrects the billed amount of an invoice. Override
// must be set to push the amount below what the client already paid.
type EditAmountRequest struct {
	InvoiceID snowflake.ID
	NewAmount decimal.Decimal
	Override  bool
}

type ListRequest struct {
	pagination.Pagination
	ClientID snowflake.ID
	Status   Status
}

type ListResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

// Service covers invoice generation and the admin correction paths.
// Every mutation repairs the client's ledger inside the same unit of
// work.
type Service interface {
	// Create invoices a completed or delivered work order.
	Create(ctx context.Context, orderID snowflake.ID) (*Invoice, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, req ListRequest) (ListResponse, error)
	EditAmount(ctx context.Context, req EditAmountRequest) (*Invoice, error)
	Delete(ctx context.Context, id snowflake.ID) error
	Cancel(ctx context.Context, id snowflake.ID) error
}

var (
	ErrInvoiceNotFound     = errors.New("invoice_not_found")
	ErrOrderNotReady       = errors.New("order_not_ready")
	ErrDuplicateInvoice    = errors.New("duplicate_invoice")
	ErrBillingPartyMissing = errors.New("billing_party_missing")
	ErrAmountUndetermined  = errors.New("amount_undetermined")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrAmountBelowPayments = errors.New("amount_below_payments")
	ErrInvoiceHasPayments  = errors.New("invoice_has_payments")
	ErrInvoiceCancelled    = errors.New("invoice_cancelled")
)
