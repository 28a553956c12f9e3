package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/reconciler/docs"
	"github.com/fatflowers/reconciler/internal/app/api/handlers"
	mw "github.com/fatflowers/reconciler/internal/app/api/middleware"
	nh "github.com/fatflowers/reconciler/internal/app/service/notification_handler"
	"github.com/fatflowers/reconciler/internal/app/service/purchase"
	cfgpkg "github.com/fatflowers/reconciler/pkg/config"
	"github.com/fatflowers/reconciler/pkg/metrics"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// request logger and access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

func newPrometheus(log *zap.SugaredLogger) *metrics.Prometheus {
	return metrics.NewPrometheus(metrics.NewPrometheusOptions{Logger: log})
}

type routeParams struct {
	fx.In

	Engine    *gin.Engine
	Cfg       *cfgpkg.Config
	Log       *zap.SugaredLogger
	DB        *gorm.DB
	Purchases *purchase.Service
	Webhooks  *nh.Handler
	Prom      *metrics.Prometheus
}

func registerRoutes(p routeParams) {
	RegisterRoutes(p.Engine, p.Log, p.DB, p.Purchases, p.Webhooks, p.Prom, p.Cfg.Server.WebhookMaxBodyBytes)
}

// RegisterRoutes mounts every API route on r. prom may be nil.
func RegisterRoutes(r *gin.Engine, log *zap.SugaredLogger, db *gorm.DB, purchases handlers.PurchaseAPI, webhooks handlers.WebhookHandler, prom *metrics.Prometheus, webhookMaxBody int64) {
	if prom != nil {
		r.Use(prom.HandlerFunc())
	}

	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub, db)
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")

	purchasesGroup := apiV1.Group("/purchases")
	purchasesGroup.Use(mw.UserMiddleware(), mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterPurchaseRoutes(purchasesGroup, purchases, log)

	webhooksGroup := apiV1.Group("/webhooks")
	webhooksGroup.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterWebhookRoutes(webhooksGroup, webhooks, webhookMaxBody, log)
}

func serve(lc fx.Lifecycle, log *zap.SugaredLogger, name string, srv *http.Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "server", name, "addr", srv.Addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("%s server error: %v", name, err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server", "server", name)
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	serve(lc, log, "api", &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second})
}

// runMetricsServer exposes the scrape endpoint on its own listener so it
// stays off the public port.
func runMetricsServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, prom *metrics.Prometheus) {
	if cfg.MetricsAddr == "" {
		return
	}
	m := gin.New()
	m.GET(prom.MetricsPath, gin.WrapH(prom.Handler()))
	serve(lc, log, "metrics", &http.Server{Addr: cfg.MetricsAddr, Handler: m, ReadHeaderTimeout: 5 * time.Second})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Provide(newPrometheus),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
	fx.Invoke(runMetricsServer),
)
