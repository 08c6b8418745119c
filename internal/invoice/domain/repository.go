package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ListFilter struct {
	ClientID snowflake.ID
	Status   Status
	Offset   int
	Limit    int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	FindByWorkOrderID(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*Invoice, error)
	// ListPendingByClient returns PENDING invoices oldest first, the
	// allocation order.
	ListPendingByClient(ctx context.Context, db *gorm.DB, clientID snowflake.ID) ([]Invoice, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]Invoice, error)
	UpdateAmount(ctx context.Context, db *gorm.DB, id snowflake.ID, amount decimal.Decimal, now time.Time) error
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, now time.Time) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
}
