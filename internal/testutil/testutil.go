package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/labdesk/internal/audit/domain"
	clientdomain "github.com/smallbiznis/labdesk/internal/client/domain"
	invoicedomain "github.com/smallbiznis/labdesk/internal/invoice/domain"
	ledgerdomain "github.com/smallbiznis/labdesk/internal/ledger/domain"
	paymentdomain "github.com/smallbiznis/labdesk/internal/payment/domain"
	workorderdomain "github.com/smallbiznis/labdesk/internal/workorder/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dbSeq atomic.Int64

var models = []any{
	&clientdomain.Client{},
	&workorderdomain.WorkOrder{},
	&invoicedomain.Invoice{},
	&paymentdomain.Payment{},
	&ledgerdomain.AccountEntry{},
	&ledgerdomain.RepairItem{},
	&auditdomain.AuditLog{},
}

// OpenTestDB returns an isolated in-memory sqlite database with the
// billing schema migrated. Each call gets its own database.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}
	// The outbox writes raw SQL, so its table is created the same way.
	if err := db.Exec(
		`CREATE TABLE IF NOT EXISTS billing_events (
			id BIGINT PRIMARY KEY,
			client_id BIGINT NOT NULL,
			event_type TEXT NOT NULL,
			payload TEXT NOT NULL DEFAULT '{}',
			dedupe_key TEXT,
			published BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP NOT NULL
		)`,
	).Error; err != nil {
		t.Fatalf("create billing_events: %v", err)
	}
	if err := db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_billing_events_dedupe
		 ON billing_events (client_id, dedupe_key)`,
	).Error; err != nil {
		t.Fatalf("index billing_events: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	// A shared-cache memory DB disappears when its last connection
	// closes. Pin one open for the lifetime of the test.
	sqlDB.SetMaxIdleConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return db
}

// NewNode returns a snowflake node for generating test IDs.
func NewNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return node
}
