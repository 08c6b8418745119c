package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Status tracks a work order through the lab.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusDelivered  Status = "delivered"
)

// Billable reports whether the order has reached a state that can be
// invoiced.
func (s Status) Billable() bool {
	return s == StatusCompleted || s == StatusDelivered
}

// WorkOrder is one unit of lab work: a crown, a bridge, a denture, tied
// to the client that commissioned it and the patient it is for.
type WorkOrder struct {
	ID          snowflake.ID     `gorm:"primaryKey" json:"id"`
	ClientID    snowflake.ID     `gorm:"not null;index" json:"client_id"`
	PatientName string           `gorm:"type:text;not null" json:"patient_name"`
	WorkType    string           `gorm:"type:text;not null" json:"work_type"`
	Description string           `gorm:"type:text" json:"description"`
	Status      Status           `gorm:"type:text;not null" json:"status"`
	Price       *decimal.Decimal `gorm:"type:numeric(12,2)" json:"price,omitempty"`
	CreatedAt   time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time        `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (WorkOrder) TableName() string { return "work_orders" }

var ErrOrderNotFound = errors.New("order_not_found")

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*WorkOrder, error)
	// BackfillPrice stamps the price on an order that has none.
	BackfillPrice(ctx context.Context, db *gorm.DB, id snowflake.ID, price decimal.Decimal, now time.Time) error
}
