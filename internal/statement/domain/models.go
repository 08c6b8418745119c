package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Kind classifies a statement line for display.
type Kind string

const (
	// KindFactura is a charge raised by an invoice.
	KindFactura Kind = "factura"
	// KindPago is a credit backed by a payment.
	KindPago Kind = "pago"
	// KindMovimiento is any other ledger movement, such as an unapplied
	// payment surplus.
	KindMovimiento Kind = "movimiento"
)

// Line is one row of a client statement, in chronological order.
type Line struct {
	EntryID        snowflake.ID    `json:"entry_id"`
	Kind           Kind            `json:"kind"`
	Description    string          `json:"description"`
	InvoiceID      *snowflake.ID   `json:"invoice_id,omitempty"`
	PaymentID      *snowflake.ID   `json:"payment_id,omitempty"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	RunningBalance decimal.Decimal `json:"running_balance"`
	Date           time.Time       `json:"date"`
}

// Totals summarises the lines within the requested window.
type Totals struct {
	Invoiced  decimal.Decimal `json:"invoiced"`
	Collected decimal.Decimal `json:"collected"`
	Balance   decimal.Decimal `json:"balance"`
}

// Statement is the account view handed to the front desk.
type Statement struct {
	ClientID   snowflake.ID `json:"client_id"`
	ClientName string       `json:"client_name"`
	From       *time.Time   `json:"from,omitempty"`
	To         *time.Time   `json:"to,omitempty"`
	Lines      []Line       `json:"lines"`
	Totals     Totals       `json:"totals"`
}

// GetRequest selects the client and an optional date window. Bounds are
// inclusive and apply to entry dates.
type GetRequest struct {
	ClientID snowflake.ID
	From     *time.Time
	To       *time.Time
}

type Service interface {
	Get(ctx context.Context, req GetRequest) (*Statement, error)
}
