package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	auditdomain "github.com/smallbiznis/labdesk/internal/audit/domain"
	"github.com/smallbiznis/labdesk/internal/config"
	invoicedomain "github.com/smallbiznis/labdesk/internal/invoice/domain"
	"github.com/smallbiznis/labdesk/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/labdesk/internal/payment/domain"
	statementdomain "github.com/smallbiznis/labdesk/internal/statement/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Cfg          config.Config
	Log          *zap.Logger
	DB           *gorm.DB
	InvoiceSvc   invoicedomain.Service
	PaymentSvc   paymentdomain.Service
	StatementSvc statementdomain.Service
	AuditSvc     auditdomain.Service
}

type Server struct {
	cfg          config.Config
	log          *zap.Logger
	db           *gorm.DB
	invoiceSvc   invoicedomain.Service
	paymentSvc   paymentdomain.Service
	statementSvc statementdomain.Service
	auditSvc     auditdomain.Service
	adminLimiter *rateLimiter
}

func NewServer(p Params) *Server {
	return &Server{
		cfg:          p.Cfg,
		log:          p.Log.Named("server"),
		db:           p.DB,
		invoiceSvc:   p.InvoiceSvc,
		paymentSvc:   p.PaymentSvc,
		statementSvc: p.StatementSvc,
		auditSvc:     p.AuditSvc,
		adminLimiter: newRateLimiter(p.Cfg.AdminRateLimit, p.Cfg.AdminRateLimitWindow),
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	if s.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(metrics.GinMiddleware(metrics.HTTP()))

	engine.GET("/healthz", s.Healthz)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := engine.Group("/v1")
	{
		v1.POST("/invoices", s.CreateInvoice)
		v1.GET("/invoices", s.ListInvoices)
		v1.GET("/invoices/:id", s.GetInvoiceByID)
		v1.PATCH("/invoices/:id/amount", s.adminGuard, s.EditInvoiceAmount)
		v1.POST("/invoices/:id/cancel", s.adminGuard, s.CancelInvoice)
		v1.DELETE("/invoices/:id", s.adminGuard, s.DeleteInvoice)

		v1.POST("/payments", s.RecordPayment)
		v1.DELETE("/payments/:id", s.adminGuard, s.DeletePayment)

		v1.GET("/clients/:id/statement", s.GetClientStatement)

		v1.GET("/audit-logs", s.ListAuditLogs)
	}
	return engine
}

// adminGuard rate limits the destructive admin routes per caller
// address.
func (s *Server) adminGuard(c *gin.Context) {
	if !s.adminLimiter.Allow(c.ClientIP()) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": gin.H{
			"code":    "rate_limited",
			"message": "too many admin operations, slow down",
		}})
		return
	}
	c.Next()
}

func (s *Server) Healthz(c *gin.Context) {
	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Run wires the HTTP listener into the fx lifecycle.
func Run(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				s.log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Module("server",
	fx.Provide(NewServer),
	fx.Invoke(Run),
)
