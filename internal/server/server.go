package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/rebata/internal/audit"
	auditdomain "github.com/smallbiznis/rebata/internal/audit/domain"
	"github.com/smallbiznis/rebata/internal/cashback"
	cashbackdomain "github.com/smallbiznis/rebata/internal/cashback/domain"
	"github.com/smallbiznis/rebata/internal/config"
	"github.com/smallbiznis/rebata/internal/metrics"
	"github.com/smallbiznis/rebata/internal/order"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	metrics.Module,
	audit.Module,
	order.Module,
	cashback.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger) *gin.Engine {
	return NewEngine(log)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	cashbackSvc cashbackdomain.Service
	auditSvc    auditdomain.Service
	metrics     *metrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	CashbackSvc cashbackdomain.Service
	AuditSvc    auditdomain.Service
	Metrics     *metrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		log:         p.Log.Named("server"),
		genID:       p.GenID,
		cashbackSvc: p.CashbackSvc,
		auditSvc:    p.AuditSvc,
		metrics:     p.Metrics,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1", s.CompanyContext())
	{
		v1.POST("/cashback/orders/:order_id/apply", s.ApplyCashback)
		v1.POST("/cashback/returns/:return_request_id/reverse", s.ReverseCashback)
		v1.GET("/cashback/orders/:order_id", s.GetOrderCashback)
		v1.GET("/cashback/program", s.GetCashbackProgram)
		v1.GET("/loyalty-accounts", s.ListLoyaltyAccounts)
		v1.GET("/audit-logs", s.ListAuditLogs)
	}
}
