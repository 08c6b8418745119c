package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Status is the invoice settlement state.
type Status string

const (
	// StatusPending: not yet fully covered by payments.
	StatusPending Status = "PENDING"
	// StatusPaid: sum of payments covers the amount.
	StatusPaid Status = "PAID"
	// StatusCancelled: withdrawn by an admin before any payment. Terminal.
	StatusCancelled Status = "CANCELLED"
)

// Invoice bills a client for one delivered work order, or is raised
// manually by an admin (no work order reference).
type Invoice struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	ClientID    snowflake.ID    `gorm:"not null;index:idx_invoices_client_status,priority:1" json:"client_id"`
	WorkOrderID *snowflake.ID   `gorm:"uniqueIndex:ux_invoices_work_order" json:"work_order_id,omitempty"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency    string          `gorm:"type:text;not null" json:"currency"`
	Status      Status          `gorm:"type:text;not null;index:idx_invoices_client_status,priority:2" json:"status"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }
