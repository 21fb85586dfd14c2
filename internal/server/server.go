package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glowpress/keyline/internal/billing"
	billingdomain "github.com/glowpress/keyline/internal/billing/domain"
	"github.com/glowpress/keyline/internal/config"
	"github.com/glowpress/keyline/internal/license"
	licensedomain "github.com/glowpress/keyline/internal/license/domain"
	"github.com/glowpress/keyline/internal/observability"
	obslogger "github.com/glowpress/keyline/internal/observability/logger"
	obsmetrics "github.com/glowpress/keyline/internal/observability/metrics"
	obstracing "github.com/glowpress/keyline/internal/observability/tracing"
	"github.com/glowpress/keyline/internal/vault"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("server",
	fx.Provide(NewEngine),
	license.Module,
	billing.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, m *obsmetrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(m.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine         *gin.Engine
	cfg            config.Config
	log            *zap.Logger
	licenseSvc     licensedomain.Service
	billingSvc     billingdomain.Service
	vault          *vault.Vault
	adminTokenHash string
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	LicenseSvc licensedomain.Service
	BillingSvc billingdomain.Service
	Vault      *vault.Vault
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("server"),
		licenseSvc: p.LicenseSvc,
		billingSvc: p.BillingSvc,
		vault:      p.Vault,
	}
	if p.Cfg.AdminToken != "" {
		svc.adminTokenHash = p.Vault.Hash(p.Cfg.AdminToken)
	}

	svc.registerClientRoutes()
	svc.registerAdminRoutes()
	svc.registerWebhookRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerClientRoutes() {
	api := s.engine.Group("/api/v1")

	api.POST("/activate", s.ActivateLicense)
	api.POST("/validate", s.ValidateLicense)
	api.POST("/deactivate", s.DeactivateLicense)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/api/v1", s.AdminRequired())

	admin.POST("/licenses", s.IssueLicense)
	admin.GET("/licenses", s.ListLicenses)
	admin.GET("/licenses/:key", s.GetLicense)
	admin.GET("/licenses/:key/validations", s.ListLicenseValidations)

	admin.PUT("/billing/providers/:provider", s.UpsertBillingProvider)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/:provider", s.HandleBillingWebhook)
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
