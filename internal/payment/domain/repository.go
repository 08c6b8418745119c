package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	// SumForInvoice totals the payments recorded against an invoice.
	SumForInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) (decimal.Decimal, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	DeleteForInvoice(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID) error
}
