package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// AccountEntry is one append-only row in a client's account ledger.
// Debit rows charge the client (an invoice), credit rows settle
// (a payment). RunningBalance is the cumulative sum of debits minus
// credits in (created_at, id) order and is the only field rewritten
// after creation, exclusively by the recompute path.
type AccountEntry struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	ClientID       snowflake.ID    `gorm:"not null;index:idx_account_entries_client_created,priority:1" json:"client_id"`
	InvoiceID      *snowflake.ID   `gorm:"index" json:"invoice_id,omitempty"`
	PaymentID      *snowflake.ID   `gorm:"index" json:"payment_id,omitempty"`
	Debit          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"debit"`
	Credit         decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"credit"`
	RunningBalance decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"running_balance"`
	CreatedAt      time.Time       `gorm:"not null;index:idx_account_entries_client_created,priority:2" json:"created_at"`
}

// TableName sets the database table name.
func (AccountEntry) TableName() string { return "account_entries" }

// RepairItem marks a client whose ledger needs a recompute pass. Rows are
// written on the failure path of any mutating sequence and drained by the
// repair worker.
type RepairItem struct {
	ClientID   snowflake.ID `gorm:"primaryKey"`
	Reason     string       `gorm:"type:text;not null"`
	EnqueuedAt time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (RepairItem) TableName() string { return "repair_queue" }
