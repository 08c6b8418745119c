package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/joho/godotenv"
	"github.com/smallbiznis/labdesk/internal/audit"
	"github.com/smallbiznis/labdesk/internal/client"
	"github.com/smallbiznis/labdesk/internal/clock"
	"github.com/smallbiznis/labdesk/internal/config"
	"github.com/smallbiznis/labdesk/internal/events"
	"github.com/smallbiznis/labdesk/internal/invoice"
	"github.com/smallbiznis/labdesk/internal/ledger"
	"github.com/smallbiznis/labdesk/internal/locks"
	"github.com/smallbiznis/labdesk/internal/logger"
	"github.com/smallbiznis/labdesk/internal/migration"
	"github.com/smallbiznis/labdesk/internal/observability/tracing"
	"github.com/smallbiznis/labdesk/internal/payment"
	"github.com/smallbiznis/labdesk/internal/pricing"
	"github.com/smallbiznis/labdesk/internal/seed"
	"github.com/smallbiznis/labdesk/internal/server"
	"github.com/smallbiznis/labdesk/internal/statement"
	"github.com/smallbiznis/labdesk/internal/workorder"
	"github.com/smallbiznis/labdesk/pkg/db"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var version = "dev"

func main() {
	_ = godotenv.Load()

	app := fx.New(
		config.Module,
		logger.Module,
		tracing.Module,
		clock.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		fx.Provide(locks.New),
		db.Module,
		fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
			if err := migration.RunMigrations(conn); err != nil {
				return err
			}
			if cfg.SeedDemoData {
				return seed.EnsureDemoData(conn)
			}
			return nil
		}),
		pricing.Module,
		events.Module,
		audit.Module,
		client.Module,
		workorder.Module,
		ledger.Module,
		invoice.Module,
		payment.Module,
		statement.Module,
		server.Module,
	)
	app.Run()
}
