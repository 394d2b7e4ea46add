package server

import (
	"context"
	"net/http"
	"time"

	"github.com/amourlabs/amour/internal/account"
	accountdomain "github.com/amourlabs/amour/internal/account/domain"
	"github.com/amourlabs/amour/internal/config"
	"github.com/amourlabs/amour/internal/observability"
	obsmiddleware "github.com/amourlabs/amour/internal/observability/logger"
	obsmetrics "github.com/amourlabs/amour/internal/observability/metrics"
	obstracing "github.com/amourlabs/amour/internal/observability/tracing"
	"github.com/amourlabs/amour/internal/payment"
	paymentdomain "github.com/amourlabs/amour/internal/payment/domain"
	"github.com/amourlabs/amour/internal/payout"
	payoutdomain "github.com/amourlabs/amour/internal/payout/domain"
	"github.com/amourlabs/amour/internal/ratelimit"
	"github.com/amourlabs/amour/internal/signup"
	signupdomain "github.com/amourlabs/amour/internal/signup/domain"
	"github.com/amourlabs/amour/internal/usage"
	usagedomain "github.com/amourlabs/amour/internal/usage/domain"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	account.Module,
	payment.Module,
	payout.Module,
	usage.Module,
	signup.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware(cfg.AppName))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(cfg, obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
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
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	genID         *snowflake.Node
	accountSvc    accountdomain.Service
	paymentSvc    paymentdomain.Service
	payoutSvc     payoutdomain.Service
	usageSvc      usagedomain.Service
	signupSvc     signupdomain.Service
	verifyLimiter *ratelimit.VerifyLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	GenID         *snowflake.Node
	AccountSvc    accountdomain.Service
	PaymentSvc    paymentdomain.Service
	PayoutSvc     payoutdomain.Service
	UsageSvc      usagedomain.Service
	SignupSvc     signupdomain.Service
	VerifyLimiter *ratelimit.VerifyLimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		genID:         p.GenID,
		accountSvc:    p.AccountSvc,
		paymentSvc:    p.PaymentSvc,
		payoutSvc:     p.PayoutSvc,
		usageSvc:      p.UsageSvc,
		signupSvc:     p.SignupSvc,
		verifyLimiter: p.VerifyLimiter,
		obsMetrics:    p.ObsMetrics,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.POST("/signup", s.Signup)
	api.POST("/payments/verify", s.AccountRequired(), s.PaymentVerifyRateLimit(), s.VerifyPayment)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")
	admin.Use(s.AdminRequired())

	admin.POST("/influencers", s.CreateInfluencer)
	admin.GET("/influencers", s.ListInfluencers)
	admin.GET("/influencers/:id", s.GetInfluencer)
	admin.POST("/influencers/:id/pay", s.PayInfluencer)

	admin.GET("/query-logs", s.ListQueryLogs)
	admin.GET("/query-logs/aggregates", s.ListQueryLogAggregates)
}
