package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/smallbiznis/labdesk/internal/client/domain"
	workorderdomain "github.com/smallbiznis/labdesk/internal/workorder/domain"
	"gorm.io/gorm"
)

const demoClientName = "Clinica Dental Sonrisa"

// EnsureDemoData seeds one demo client and a handful of work orders so a
// fresh development install has something to bill. Safe to call on every
// startup.
func EnsureDemoData(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var client clientdomain.Client
		err := tx.WithContext(ctx).Where("name = ?", demoClientName).First(&client).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		now := time.Now().UTC()
		client = clientdomain.Client{
			ID:        node.Generate(),
			Name:      demoClientName,
			Email:     "recepcion@sonrisa.example",
			Phone:     "+52 55 0000 0000",
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.WithContext(ctx).Create(&client).Error; err != nil {
			return err
		}

		orders := []workorderdomain.WorkOrder{
			{
				ID:          node.Generate(),
				ClientID:    client.ID,
				PatientName: "Maria Lopez",
				WorkType:    "corona_zirconia",
				Description: "Corona de zirconia, pieza 26",
				Status:      workorderdomain.StatusDelivered,
				CreatedAt:   now,
				UpdatedAt:   now,
			},
			{
				ID:          node.Generate(),
				ClientID:    client.ID,
				PatientName: "Jorge Ramirez",
				WorkType:    "puente_3_unidades",
				Description: "Puente de tres unidades, piezas 24-26",
				Status:      workorderdomain.StatusCompleted,
				CreatedAt:   now,
				UpdatedAt:   now,
			},
			{
				ID:          node.Generate(),
				ClientID:    client.ID,
				PatientName: "Ana Torres",
				WorkType:    "guarda_oclusal",
				Description: "Guarda oclusal superior",
				Status:      workorderdomain.StatusInProgress,
				CreatedAt:   now,
				UpdatedAt:   now,
			},
		}
		for i := range orders {
			if err := tx.WithContext(ctx).Create(&orders[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
