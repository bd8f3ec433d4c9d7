package router

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tometh04/vibook-services-sub001/internal/infrastructure/logger"
	"github.com/tometh04/vibook-services-sub001/internal/interfaces/http/handler"
	"github.com/tometh04/vibook-services-sub001/internal/interfaces/http/middleware"
)

// EngineConfig holds the HTTP engine settings
type EngineConfig struct {
	ReleaseMode    bool
	TrustedProxies []string
	MaxBodySize    int64
	Tracing        middleware.TracingConfig
	// MetricsPath exposes Registry in Prometheus format; empty disables it
	MetricsPath string
	Registry    *prometheus.Registry
}

// Handlers are the HTTP handlers mounted by NewEngine. Nil handlers are skipped.
type Handlers struct {
	System    *handler.SystemHandler
	BoardSync *handler.BoardSyncHandler
	Webhooks  *handler.BoardWebhookHandler
}

// NewEngine builds the gin engine with the middleware chain and all routes:
//
//	/health                     liveness and database check
//	/metrics                    Prometheus exposition
//	/webhooks/trello/:tenant_id board callbacks
//	/api/v1/board-sync/...      operator API
//	/api/v1/system/info         build information
func NewEngine(cfg EngineConfig, log *zap.Logger, h Handlers) (*gin.Engine, error) {
	if cfg.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	if len(cfg.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			return nil, fmt.Errorf("set trusted proxies: %w", err)
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log, logger.WithQuietPaths("/health", cfg.MetricsPath)))
	engine.Use(middleware.TracingWithConfig(cfg.Tracing))
	engine.Use(middleware.SpanAttributes())
	if cfg.Registry != nil {
		engine.Use(middleware.Metrics(middleware.NewHTTPMetrics(cfg.Registry)))
	}
	engine.Use(middleware.BodyLimit(cfg.MaxBodySize))

	middleware.SetupValidator()

	r := NewRouter(engine)
	if h.System != nil {
		r.RegisterRoot(NewRouteGroup("").GET("/health", h.System.Health))
		r.Register(NewRouteGroup("/system").GET("/info", h.System.GetSystemInfo))
	}
	if cfg.MetricsPath != "" && cfg.Registry != nil {
		metrics := promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{Registry: cfg.Registry})
		r.RegisterRoot(NewRouteGroup("").GET(cfg.MetricsPath, gin.WrapH(metrics)))
	}
	if h.Webhooks != nil {
		r.RegisterRoot(registrarFunc(func(rg *gin.RouterGroup) { h.Webhooks.RegisterRoutes(rg) }))
	}
	if h.BoardSync != nil {
		r.Register(h.BoardSync)
	}
	routes := r.Setup()
	log.Debug("HTTP routes mounted", zap.Strings("routes", routes))

	return engine, nil
}
