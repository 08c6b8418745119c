package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// RecordRequest is one incoming payment from a client, before allocation.
type RecordRequest struct {
	ClientID snowflake.ID
	Amount   decimal.Decimal
	// Date overrides the payment timestamp, for back-dated captures.
	Date *time.Time
	// Note is a free-text reference: receipt folio, transfer id.
	Note string
	// Provider tags the source; defaults to ProviderManual.
	Provider string
}

// Service records incoming payments and the admin payment-removal path.
type Service interface {
	// Record allocates the amount across the client's outstanding
	// invoices, oldest first, and returns the payment rows created.
	Record(ctx context.Context, req RecordRequest) ([]Payment, error)
	Delete(ctx context.Context, id snowflake.ID) error
}

var (
	ErrNonPositiveAmount = errors.New("non_positive_amount")
	ErrPaymentNotFound   = errors.New("payment_not_found")
)
