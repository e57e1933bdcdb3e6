// Package app wires configuration, storage and services into the HTTP API.
package app

import (
	"fmt"

	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-flow/internal/config"
	adminHandler "github.com/jwalitptl/clinic-flow/internal/handler/admin"
	auditHandler "github.com/jwalitptl/clinic-flow/internal/handler/audit"
	"github.com/jwalitptl/clinic-flow/internal/handler/health"
	patientHandler "github.com/jwalitptl/clinic-flow/internal/handler/patient"
	promHandler "github.com/jwalitptl/clinic-flow/internal/handler/prometheus"
	queueHandler "github.com/jwalitptl/clinic-flow/internal/handler/queue"
	serviceOrderHandler "github.com/jwalitptl/clinic-flow/internal/handler/serviceorder"
	sessionHandler "github.com/jwalitptl/clinic-flow/internal/handler/session"
	visitHandler "github.com/jwalitptl/clinic-flow/internal/handler/visit"
	"github.com/jwalitptl/clinic-flow/internal/middleware"
	"github.com/jwalitptl/clinic-flow/internal/repository"
	"github.com/jwalitptl/clinic-flow/internal/router"
	"github.com/jwalitptl/clinic-flow/internal/service/admin"
	"github.com/jwalitptl/clinic-flow/internal/service/audit"
	"github.com/jwalitptl/clinic-flow/internal/service/billing"
	"github.com/jwalitptl/clinic-flow/internal/service/examination"
	"github.com/jwalitptl/clinic-flow/internal/service/intake"
	"github.com/jwalitptl/clinic-flow/internal/service/lifecycle"
	"github.com/jwalitptl/clinic-flow/internal/service/payment"
	"github.com/jwalitptl/clinic-flow/internal/service/queue"
	"github.com/jwalitptl/clinic-flow/internal/service/serviceorder"
	"github.com/jwalitptl/clinic-flow/internal/service/session"
	"github.com/jwalitptl/clinic-flow/internal/worker"
	"github.com/jwalitptl/clinic-flow/pkg/auth"
	"github.com/jwalitptl/clinic-flow/pkg/imagestore"
	"github.com/jwalitptl/clinic-flow/pkg/logger"
	"github.com/jwalitptl/clinic-flow/pkg/messaging"
	"github.com/jwalitptl/clinic-flow/pkg/metrics"
	"github.com/jwalitptl/clinic-flow/pkg/security"
)

const MetricsNamespace = "clinic"

// Deps are the outside resources the API runs on
type Deps struct {
	Config *config.Config
	Store  *repository.Store
	// Broker feeds the queue event stream; nil disables it
	Broker messaging.Broker
	// Uploader overrides the image store client built from config
	Uploader imagestore.Uploader
}

// Services is the business layer, exposed for the operator CLI and tests
type Services struct {
	Lifecycle    *lifecycle.Service
	ServiceOrder *serviceorder.Service
	Billing      *billing.Service
	Intake       *intake.Service
	Examination  *examination.Service
	Payment      *payment.Service
	Queue        *queue.Service
	Audit        *audit.Service
	Admin        *admin.Service
	Session      *session.Service
}

type App struct {
	Router   *router.Router
	Services *Services
	Metrics  *metrics.Metrics
}

// NewServices builds the business layer on top of store
func NewServices(cfg *config.Config, store *repository.Store, uploader imagestore.Uploader, m *metrics.Metrics) *Services {
	if uploader == nil {
		uploader = imagestore.NewClient(imagestore.Config{
			URL:               cfg.ImageStore.URL,
			Timeout:           cfg.ImageStore.Timeout,
			DirectURLTemplate: cfg.ImageStore.DirectURLTemplate,
		}, m)
	}

	hasher := security.NewBcryptHasher(cfg.Session.BcryptCost)
	lc := lifecycle.NewService(store.Visits, m)
	bill := billing.NewService(store, billing.Config{
		ConsultationService: cfg.Billing.ConsultationService,
		FallbackFee:         cfg.Billing.ConsultationFallbackFee,
	})
	sessions := session.NewService(
		store.Staff,
		auth.NewJWTService(cfg.Session.Secret, cfg.Session.TTL),
		hasher,
		session.Config{RosterCacheTTL: cfg.Session.RosterCacheTTL},
	)

	return &Services{
		Lifecycle:    lc,
		ServiceOrder: serviceorder.NewService(store.ServiceOrders, store.Catalog, lc, uploader, bill.ConsultationService(), m),
		Billing:      bill,
		Intake:       intake.NewService(store.Patients, store.Visits),
		Examination:  examination.NewService(store, lc),
		Payment:      payment.NewService(bill, lc),
		Queue:        queue.NewService(store.Queues, cfg.Queue.PollInterval),
		Audit:        audit.NewService(store.Visits),
		Admin:        admin.NewService(store, hasher, sessions),
		Session:      sessions,
	}
}

// New builds the HTTP API. Domain metrics are registered on the router's
// registry, so New must be called once per process.
func New(deps Deps) (*App, error) {
	cfg := deps.Config
	prom := promHandler.New(MetricsNamespace)
	m := metrics.New(MetricsNamespace)
	if err := m.Register(prom.Registry()); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	svc := NewServices(cfg, deps.Store, deps.Uploader, m)

	checks := map[string]health.Pinger{}
	if deps.Store.Ping != nil {
		checks["database"] = health.PingFunc(deps.Store.Ping)
	}

	handlers := router.Handlers{
		Health:  health.NewHandler(checks, prom.Registry()),
		Metrics: prom,
		Session: sessionHandler.NewHandler(svc.Session),
		Patient: patientHandler.NewHandler(svc.Intake),
		Visit: visitHandler.NewHandler(visitHandler.Services{
			Intake:       svc.Intake,
			Examination:  svc.Examination,
			Lifecycle:    svc.Lifecycle,
			ServiceOrder: svc.ServiceOrder,
			Billing:      svc.Billing,
			Payment:      svc.Payment,
		}),
		Audit:        auditHandler.NewHandler(svc.Audit),
		ServiceOrder: serviceOrderHandler.NewHandler(svc.ServiceOrder),
		Queue:        queueHandler.NewHandler(svc.Queue, deps.Broker, cfg.Redis.Channel),
		Admin:        adminHandler.NewHandler(svc.Admin),
	}

	r := router.NewRouter(middleware.NewAuthMiddleware(svc.Session), handlers, router.RouterConfig{
		Mode:           cfg.Server.Mode,
		RateLimit:      rate.Limit(cfg.RateLimit.RequestsPerSecond),
		RateBurst:      cfg.RateLimit.Burst,
		CORSConfig:     middleware.CORSConfig{AllowOrigins: cfg.CORS.AllowOrigins, MaxAge: middleware.DefaultCORSConfig().MaxAge},
		RequestTimeout: cfg.Server.RequestTimeout,
		SizeLimit:      middleware.DefaultSizeLimitConfig(),
	})
	r.Setup()

	return &App{Router: r, Services: svc, Metrics: m}, nil
}

// NewOutboxProcessor builds the relay from the outbox table to the broker
func NewOutboxProcessor(cfg *config.Config, store *repository.Store, broker messaging.Broker, log *logger.Logger, m *metrics.Metrics) *worker.OutboxProcessor {
	return worker.NewOutboxProcessor(store.Outbox, broker, worker.OutboxProcessorConfig{
		Channel:       cfg.Redis.Channel,
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
		MaxRetries:    cfg.Outbox.MaxRetries,
	}, log, m)
}

// NewOutboxCleanup builds the pruning worker for delivered events
func NewOutboxCleanup(cfg *config.Config, store *repository.Store, log *logger.Logger) *worker.OutboxCleanupWorker {
	return worker.NewOutboxCleanupWorker(store.Outbox, cfg.Outbox.RetentionDays, cfg.Outbox.CleanupInterval, log)
}
