package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/subtrack/internal/audit"
	auditdomain "github.com/smallbiznis/subtrack/internal/audit/domain"
	"github.com/smallbiznis/subtrack/internal/authorization"
	"github.com/smallbiznis/subtrack/internal/clock"
	"github.com/smallbiznis/subtrack/internal/cloudmetrics"
	"github.com/smallbiznis/subtrack/internal/config"
	"github.com/smallbiznis/subtrack/internal/department"
	departmentdomain "github.com/smallbiznis/subtrack/internal/department/domain"
	"github.com/smallbiznis/subtrack/internal/notification"
	"github.com/smallbiznis/subtrack/internal/observability"
	obsmiddleware "github.com/smallbiznis/subtrack/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/subtrack/internal/observability/metrics"
	obstracing "github.com/smallbiznis/subtrack/internal/observability/tracing"
	"github.com/smallbiznis/subtrack/internal/paymentcycle"
	cycledomain "github.com/smallbiznis/subtrack/internal/paymentcycle/domain"
	"github.com/smallbiznis/subtrack/internal/ratelimit"
	"github.com/smallbiznis/subtrack/internal/scheduler"
	"github.com/smallbiznis/subtrack/internal/servicetoken"
	servicetokendomain "github.com/smallbiznis/subtrack/internal/servicetoken/domain"
	"github.com/smallbiznis/subtrack/internal/subscription"
	subscriptiondomain "github.com/smallbiznis/subtrack/internal/subscription/domain"
	"github.com/smallbiznis/subtrack/internal/user"
	userdomain "github.com/smallbiznis/subtrack/internal/user/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	config.Module,
	cloudmetrics.Module,
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	department.Module,
	user.Module,
	notification.Module,
	subscription.Module,
	paymentcycle.Module,
	servicetoken.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	// The job trigger contract distinguishes wrong-method from wrong-path.
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, errorResponse{
			Error: errorPayload{Type: "method_not_allowed", Message: "method not allowed"},
		})
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
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
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	genID           *snowflake.Node
	clock           clock.Clock
	authzSvc        authorization.Service
	auditSvc        auditdomain.Service
	departmentSvc   departmentdomain.Service
	userSvc         userdomain.Service
	subscriptionSvc subscriptiondomain.Service
	cycleSvc        cycledomain.Service
	serviceTokenSvc servicetokendomain.Service
	scheduler       *scheduler.Scheduler
	obsMetrics      *obsmetrics.Metrics
	jobLimiter      *ratelimit.JobTriggerLimiter
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	GenID           *snowflake.Node
	Clock           clock.Clock
	AuthzSvc        authorization.Service
	AuditSvc        auditdomain.Service
	DepartmentSvc   departmentdomain.Service
	UserSvc         userdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	CycleSvc        cycledomain.Service
	ServiceTokenSvc servicetokendomain.Service
	Scheduler       *scheduler.Scheduler

	ObsMetrics *obsmetrics.Metrics          `optional:"true"`
	JobLimiter *ratelimit.JobTriggerLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		genID:           p.GenID,
		clock:           p.Clock,
		authzSvc:        p.AuthzSvc,
		auditSvc:        p.AuditSvc,
		departmentSvc:   p.DepartmentSvc,
		userSvc:         p.UserSvc,
		subscriptionSvc: p.SubscriptionSvc,
		cycleSvc:        p.CycleSvc,
		serviceTokenSvc: p.ServiceTokenSvc,
		scheduler:       p.Scheduler,
		obsMetrics:      p.ObsMetrics,
		jobLimiter:      p.JobLimiter,
	}

	svc.registerAPIRoutes()
	svc.registerJobRoutes()
	svc.RegisterDevRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.ActorRequired())

	// -------- Subscriptions --------
	// Read access is authorized per-department inside the service.
	api.GET("/subscriptions", s.ListSubscriptions)
	api.GET("/subscriptions/:id", s.GetSubscriptionByID)
	api.GET("/subscriptions/:id/payment-cycles", s.ListSubscriptionCycles)
	api.POST("/subscriptions/:id/activate", s.ActivateSubscription)
	api.POST("/subscriptions/:id/reject", s.RejectSubscription)
	api.POST("/subscriptions/:id/cancel", s.CancelSubscription)

	// -------- Payment cycles --------
	api.GET("/payment-cycles/pending-approval", s.ListPendingApprovalCycles)
	api.GET("/payment-cycles/:id", s.GetPaymentCycleByID)
	api.POST("/payment-cycles/:id/approve", s.ApprovePaymentCycle)
	api.POST("/payment-cycles/:id/decline", s.DeclinePaymentCycle)
	api.POST("/payment-cycles/:id/record-payment", s.RecordCyclePayment)
	api.POST("/payment-cycles/:id/invoice", s.UploadCycleInvoice)

	// -------- Directory --------
	api.GET("/departments", s.ListDepartments)
	api.POST("/departments", s.RequireRole(userdomain.RoleAdmin), s.CreateDepartment)
	api.GET("/users", s.RequireRole(userdomain.RoleAdmin), s.ListUsers)
	api.POST("/users", s.RequireRole(userdomain.RoleAdmin), s.CreateUser)
	api.GET("/users/:id", s.RequireRole(userdomain.RoleAdmin), s.GetUserByID)

	// -------- Audit trail --------
	api.GET("/audit-logs", s.RequireRole(userdomain.RoleAdmin), s.ListAuditLogs)

	// -------- Service tokens --------
	// The service layer re-checks token management rights through casbin.
	api.GET("/service-tokens", s.RequireRole(userdomain.RoleAdmin), s.ListServiceTokens)
	api.POST("/service-tokens", s.RequireRole(userdomain.RoleAdmin), s.CreateServiceToken)
	api.POST("/service-tokens/:key_id/rotate", s.RequireRole(userdomain.RoleAdmin), s.RotateServiceToken)
	api.POST("/service-tokens/:key_id/revoke", s.RequireRole(userdomain.RoleAdmin), s.RevokeServiceToken)

	if s.cfg.Environment != "production" {
		api.POST("/test/cleanup", s.RequireRole(userdomain.RoleAdmin), s.TestCleanup)
	}
}

func (s *Server) registerJobRoutes() {
	jobs := s.engine.Group("/internal/jobs", s.JobTriggerAuthRequired())

	// Both verbs are accepted so plain cron curl and uptime pingers work.
	routes := []struct {
		Path    string
		Job     string
		Handler gin.HandlerFunc
	}{
		{"/create-cycles", scheduler.JobCycleCreation, s.TriggerCycleCreation},
		{"/cancel-overdue", scheduler.JobAutoCancellation, s.TriggerAutoCancellation},
		{"/expire-subscriptions", scheduler.JobSubscriptionExpiry, s.TriggerSubscriptionExpiry},
	}
	for _, route := range routes {
		limited := s.JobTriggerRateLimit(route.Job)
		jobs.POST(route.Path, limited, route.Handler)
		jobs.GET(route.Path, limited, route.Handler)
	}
}
