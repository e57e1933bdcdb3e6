package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-flow/internal/handler/admin"
	"github.com/jwalitptl/clinic-flow/internal/handler/audit"
	"github.com/jwalitptl/clinic-flow/internal/handler/health"
	"github.com/jwalitptl/clinic-flow/internal/handler/patient"
	"github.com/jwalitptl/clinic-flow/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-flow/internal/handler/queue"
	"github.com/jwalitptl/clinic-flow/internal/handler/serviceorder"
	"github.com/jwalitptl/clinic-flow/internal/handler/session"
	"github.com/jwalitptl/clinic-flow/internal/handler/visit"
	"github.com/jwalitptl/clinic-flow/internal/middleware"
	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/pkg/validator"
)

const (
	APIPrefix  = "/api/v1"
	APIVersion = "1.0"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// Handlers are the per-resource handlers the router mounts
type Handlers struct {
	Health       *health.Handler
	Metrics      *prometheus.Handler
	Session      *session.Handler
	Patient      *patient.Handler
	Visit        *visit.Handler
	Audit        *audit.Handler
	ServiceOrder *serviceorder.Handler
	Queue        *queue.Handler
	Admin        *admin.Handler
}

type RouterConfig struct {
	Mode           string
	RateLimit      rate.Limit
	RateBurst      int
	CORSConfig     middleware.CORSConfig
	RequestTimeout time.Duration
	SizeLimit      middleware.SizeLimitConfig
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, config RouterConfig) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	validator.ConfigureBinding()

	engine := gin.New()

	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
	}

	sizeLimit := config.SizeLimit
	sizeLimit.UploadRoutes = append(sizeLimit.UploadRoutes, APIPrefix+serviceorder.CompleteRoute)

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		handlers.Metrics.Middleware(),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.CORS(config.CORSConfig),
	)

	if config.RateLimit > 0 {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	engine.Use(
		middleware.SizeLimit(sizeLimit),
		middleware.Timeout(middleware.TimeoutConfig{
			Duration:   config.RequestTimeout,
			SkipRoutes: []string{queue.EventsRoute},
		}),
	)

	return r
}

func (r *Router) Setup() {
	api := r.engine.Group(APIPrefix)
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", APIVersion)
		c.Next()
	})

	// Public routes
	r.handlers.Health.RegisterRoutes(api)
	r.handlers.Session.RegisterRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.setupProtectedRoutes(protected)

	admins := protected.Group("/admin")
	admins.Use(r.auth.RequireRoles(model.RoleAdmin))
	r.handlers.Admin.RegisterRoutes(admins)
}

// Role rules for clinical actions live in the services; the routes here
// only require a session.
func (r *Router) setupProtectedRoutes(rg *gin.RouterGroup) {
	r.handlers.Session.RegisterProtectedRoutes(rg)
	r.handlers.Admin.RegisterReferenceRoutes(rg)

	for _, h := range []Handler{
		r.handlers.Patient,
		r.handlers.Visit,
		r.handlers.Audit,
		r.handlers.ServiceOrder,
		r.handlers.Queue,
	} {
		h.RegisterRoutes(rg)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
