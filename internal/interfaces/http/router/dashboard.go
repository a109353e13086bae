package router

import (
	"github.com/gin-gonic/gin"
	"github.com/saasfilter/backend/internal/domain/identity"
	"github.com/saasfilter/backend/internal/infrastructure/logger"
	"github.com/saasfilter/backend/internal/infrastructure/telemetry"
	"github.com/saasfilter/backend/internal/interfaces/http/handler"
	"github.com/saasfilter/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// DefaultMaxBodySize bounds request bodies when no limit is configured
const DefaultMaxBodySize = 1 << 20

// Dependencies carries everything the dashboard routes need
type Dependencies struct {
	Logger   *zap.Logger
	Sessions middleware.SessionResolver

	Auth   *handler.AuthHandler
	CRM    *handler.CRMHandler
	System *handler.SystemHandler

	Meters      *telemetry.MeterProvider
	Tracing     middleware.TracingConfig
	Profiling   middleware.ProfilingConfig
	CORS        middleware.CORSConfig
	Security    middleware.SecurityConfig
	MaxBodySize int64
}

// NewEngine builds the gin engine with the global middleware chain and every dashboard
// route mounted.
//
// Global chain: request id, request log, recovery, tracing, span error marking, metrics,
// CORS, security headers, body limit. Protected groups add session auth, span and
// profiling labels, and the expected-tenant check; lead updates also require admin.
func NewEngine(deps Dependencies) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.MaxBodySize <= 0 {
		deps.MaxBodySize = DefaultMaxBodySize
	}
	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(deps.Logger),
		logger.Recovery(deps.Logger),
		middleware.TracingWithConfig(deps.Tracing),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(deps.Meters),
		middleware.CORSWithConfig(deps.CORS),
		middleware.SecureWithConfig(deps.Security),
		middleware.BodyLimit(deps.MaxBodySize),
	)

	engine.GET("/health", deps.System.Health)

	r := NewRouter(engine)
	r.Register(publicRoutes(deps))
	r.Register(protectedRoutes(deps))
	r.Setup()
	return engine
}

func publicRoutes(deps Dependencies) *DomainGroup {
	g := NewDomainGroup("public", "")
	g.Use(middleware.SpanAttributes(), middleware.ProfilingWithConfig(deps.Profiling))
	g.POST("/auth/login", deps.Auth.Login)
	g.GET("/system/info", deps.System.GetSystemInfo)
	return g
}

func protectedRoutes(deps Dependencies) *DomainGroup {
	g := NewDomainGroup("dashboard", "")
	g.Use(
		middleware.SessionAuth(deps.Sessions),
		middleware.SpanAttributes(),
		middleware.ProfilingWithConfig(deps.Profiling),
	)

	g.POST("/auth/logout", deps.Auth.Logout)

	session := g.Group("session", "/session")
	session.GET("", deps.Auth.Session)
	session.PUT("/tenant", deps.Auth.SwitchTenant)

	g.GET("/access", deps.Auth.Access)

	crm := g.Group("crm", "")
	crm.Use(middleware.ExpectedTenant())
	crm.GET("/leads", deps.CRM.ListLeads)
	crm.PATCH("/leads/:id/status", middleware.RequireRole(identity.RoleAdmin), deps.CRM.UpdateLeadStatus)
	crm.GET("/calls", deps.CRM.ListCalls)
	return g
}
