package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/studypass/billing/docs"
	"github.com/studypass/billing/internal/app/api/handlers"
	mw "github.com/studypass/billing/internal/app/api/middleware"
	"github.com/studypass/billing/internal/app/service/entitlement"
	"github.com/studypass/billing/internal/app/service/payment"
	"github.com/studypass/billing/internal/app/service/statistics"
	subsvc "github.com/studypass/billing/internal/app/service/subscription"
	"github.com/studypass/billing/internal/app/service/usage"
	"github.com/studypass/billing/internal/app/service/webhook"
	cfgpkg "github.com/studypass/billing/pkg/config"
	metrics "github.com/studypass/billing/pkg/metrics"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func newEngine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	// Add request tracing middleware only; request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

func registerRoutes(
	r *gin.Engine,
	log *zap.SugaredLogger,
	cfg *cfgpkg.Config,
	payments *payment.Service,
	ledger *subsvc.Service,
	meter *usage.Service,
	resolver *entitlement.Service,
	stats *statistics.Service,
	reconciler *webhook.Reconciler,
) {
	// Prometheus metrics
	if cfg != nil && cfg.MetricsAddr != "" {
		p := metrics.NewPrometheus(metrics.NewPrometheusOptions{
			Subsystem: "billing",
			ReqCntURLLabelMappingFn: func(c *gin.Context) string {
				if fp := c.FullPath(); fp != "" {
					return fp
				}
				return c.Request.URL.Path
			},
			Logger: log,
		})
		p.SetListenAddress(cfg.MetricsAddr)
		p.Use(r)

		log.Infow("metrics started", "addr", cfg.MetricsAddr)
	}

	// Public group: request logger + access log
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)
	// Swagger UI
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())

	handlers.RegisterSubscriptionRoutes(apiV1, ledger)
	handlers.RegisterPaymentRoutes(apiV1, payments)
	handlers.RegisterUsageRoutes(apiV1, meter)
	handlers.RegisterEntitlementRoutes(apiV1, resolver)
	handlers.RegisterAdminRoutes(apiV1.Group("/admin"), payments, stats)

	// Provider webhooks answer with real HTTP status codes so the
	// provider's redelivery loop sees failures.
	handlers.RegisterWebhookRoutes(apiV1.Group("/webhooks"), reconciler, log)
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
