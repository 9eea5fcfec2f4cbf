package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/soundline/vocalis/internal/audit"
	auditdomain "github.com/soundline/vocalis/internal/audit/domain"
	"github.com/soundline/vocalis/internal/config"
	"github.com/soundline/vocalis/internal/enforcement"
	enforcementdomain "github.com/soundline/vocalis/internal/enforcement/domain"
	"github.com/soundline/vocalis/internal/observability"
	obsmiddleware "github.com/soundline/vocalis/internal/observability/logger"
	obsmetrics "github.com/soundline/vocalis/internal/observability/metrics"
	"github.com/soundline/vocalis/internal/payment"
	"github.com/soundline/vocalis/internal/payment/adapters"
	"github.com/soundline/vocalis/internal/reconcile"
	reconciledomain "github.com/soundline/vocalis/internal/reconcile/domain"
	"github.com/soundline/vocalis/internal/resource"
	"github.com/soundline/vocalis/internal/subscription"
	subscriptiondomain "github.com/soundline/vocalis/internal/subscription/domain"
	"github.com/soundline/vocalis/internal/syncjob"
	syncdomain "github.com/soundline/vocalis/internal/syncjob/domain"
	"github.com/soundline/vocalis/internal/usage"
	usagedomain "github.com/soundline/vocalis/internal/usage/domain"
	"github.com/soundline/vocalis/internal/voiceevents"
	voiceeventsdomain "github.com/soundline/vocalis/internal/voiceevents/domain"
	"github.com/soundline/vocalis/internal/webhookgate"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	audit.Module,
	resource.Module,
	usage.Module,
	syncjob.Module,
	payment.Module,
	webhookgate.Module,
	subscription.Module,
	enforcement.Module,
	reconcile.Module,
	voiceevents.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger, obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(log, obsmiddleware.MiddlewareConfig{
		Debug: obsCfg.Debug(),
	}))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(log *zap.Logger, obsCfg observability.Config) *gin.Engine {
	return NewEngine(log, obsCfg)
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
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	gate            *webhookgate.Gate
	payments        *adapters.Registry
	subscriptionSvc subscriptiondomain.Service
	voiceEventsSvc  voiceeventsdomain.Service
	usageSvc        usagedomain.Service
	syncJobsSvc     syncdomain.Service
	enforcementSvc  enforcementdomain.Service
	reconcileSvc    reconciledomain.Service
	auditSvc        auditdomain.Service
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	Gate            *webhookgate.Gate
	Payments        *adapters.Registry
	SubscriptionSvc subscriptiondomain.Service
	VoiceEventsSvc  voiceeventsdomain.Service
	UsageSvc        usagedomain.Service
	SyncJobsSvc     syncdomain.Service
	EnforcementSvc  enforcementdomain.Service
	ReconcileSvc    reconciledomain.Service
	AuditSvc        auditdomain.Service
	ObsMetrics      *obsmetrics.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		gate:            p.Gate,
		payments:        p.Payments,
		subscriptionSvc: p.SubscriptionSvc,
		voiceEventsSvc:  p.VoiceEventsSvc,
		usageSvc:        p.UsageSvc,
		syncJobsSvc:     p.SyncJobsSvc,
		enforcementSvc:  p.EnforcementSvc,
		reconcileSvc:    p.ReconcileSvc,
		auditSvc:        p.AuditSvc,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerWebhookRoutes()
	svc.registerTenantRoutes()
	svc.registerInternalRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerWebhookRoutes() {
	webhooks := s.engine.Group("/webhooks")

	webhooks.POST("/payment/:provider", s.HandlePaymentWebhook)
	webhooks.POST("/voice", s.HandleVoiceWebhook)
}

func (s *Server) registerTenantRoutes() {
	tenants := s.engine.Group("/tenants")

	tenants.GET("/:tenantId/usage", s.GetTenantUsage)
	tenants.GET("/:tenantId/usage/check", s.CheckTenantLimit)
}

func (s *Server) registerInternalRoutes() {
	internal := s.engine.Group("/internal")

	// The sweep trigger carries its own credential so the external scheduler
	// never holds the operational secret.
	internal.POST("/reconcile/sweep", s.bearerRequired(s.cfg.SweepSecret), s.TriggerSweep)

	ops := internal.Group("", s.bearerRequired(s.cfg.InternalSecret))
	{
		ops.GET("/sync/queue", s.GetSyncQueue)
		ops.POST("/sync/drain", s.DrainSyncQueue)
		ops.POST("/usage/minutes", s.RecordUsageMinutes)
	}
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin", s.bearerRequired(s.cfg.InternalSecret))

	admin.GET("/audit-logs", s.ListAuditLogs)
}
