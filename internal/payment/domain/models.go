package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Status of a recorded payment. Payments enter the system already
// settled; gateways notify after the fact.
type Status string

const (
	StatusSucceeded Status = "succeeded"
)

// ProviderManual tags payments entered at the front desk.
const ProviderManual = "manual"

// Payment is one settlement applied to one invoice. A single received
// amount may be split into several Payment rows when it spans invoices.
type Payment struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	Provider    string          `gorm:"type:text;not null" json:"provider"`
	ProviderRef string          `gorm:"type:text" json:"provider_ref"`
	Amount      decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	Status      Status          `gorm:"type:text;not null" json:"status"`
	CreatedAt   time.Time       `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (Payment) TableName() string { return "payments" }
