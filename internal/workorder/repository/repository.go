package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/labdesk/internal/workorder/domain"
	"gorm.io/gorm"
)

type Repository struct{}

// Provide constructs the work order repository.
func Provide() domain.Repository {
	return &Repository{}
}

func (r *Repository) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.WorkOrder, error) {
	var order domain.WorkOrder
	err := db.WithContext(ctx).First(&order, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) BackfillPrice(ctx context.Context, db *gorm.DB, id snowflake.ID, price decimal.Decimal, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE work_orders
		 SET price = ?, updated_at = ?
		 WHERE id = ? AND (price IS NULL OR price = 0)`,
		price,
		now,
		id,
	).Error
}
