package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AppendRequest describes one debit or credit row to append.
type AppendRequest struct {
	ClientID  snowflake.ID
	InvoiceID *snowflake.ID
	PaymentID *snowflake.ID
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	CreatedAt time.Time
}

// Service is the ledger writer. Callers are responsible for holding the
// client lock around any sequence of Append/Recompute calls; both methods
// run against the caller's transaction.
type Service interface {
	Append(ctx context.Context, tx *gorm.DB, req AppendRequest) (*AccountEntry, error)
	Recompute(ctx context.Context, tx *gorm.DB, clientID snowflake.ID) error
	// MarkDirty enqueues a client for a background repair pass. Used on
	// failure paths where the in-band recompute did not run.
	MarkDirty(ctx context.Context, clientID snowflake.ID, reason string) error
}

var (
	ErrInvalidClient = errors.New("invalid_client")
	ErrInvalidAmount = errors.New("invalid_entry_amount")
)
