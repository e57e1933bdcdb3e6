package visit

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-flow/internal/handler"
	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/service/examination"
	"github.com/jwalitptl/clinic-flow/internal/service/intake"
	"github.com/jwalitptl/clinic-flow/internal/service/lifecycle"
	"github.com/jwalitptl/clinic-flow/internal/service/payment"
	"github.com/jwalitptl/clinic-flow/internal/service/serviceorder"
	"github.com/jwalitptl/clinic-flow/pkg/httputil"
)

// Quoter prices a visit at current catalog and medication prices
type Quoter interface {
	Quote(ctx context.Context, visitID uuid.UUID) (*model.Bill, error)
}

// Services groups what the visit screens call into
type Services struct {
	Intake       intake.IntakeService
	Examination  examination.ExaminationService
	Lifecycle    lifecycle.LifecycleService
	ServiceOrder serviceorder.ServiceOrderService
	Billing      Quoter
	Payment      payment.PaymentService
}

type Handler struct {
	svc Services
}

func NewHandler(svc Services) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	visits := r.Group("/visits")
	{
		visits.POST("", h.OpenVisit)
		visits.GET("/:id", h.GetVisit)
		visits.POST("/:id/transitions", h.Transition)
		visits.POST("/:id/priority", h.SetPriority)

		visits.PUT("/:id/exam", h.SaveExamNotes)
		visits.POST("/:id/finish", h.FinishExam)
		visits.PUT("/:id/prescription", h.SavePrescription)
		visits.GET("/:id/prescription", h.GetPrescription)
		visits.GET("/:id/prescription/print", h.PrintPrescription)

		visits.POST("/:id/services", h.OrderServices)
		visits.GET("/:id/services", h.ListServices)

		visits.GET("/:id/bill", h.GetBill)
		visits.POST("/:id/payment", h.Pay)
	}

	r.GET("/doctors/me/active", h.ActiveSession)
}

func (h *Handler) OpenVisit(c *gin.Context) {
	var req model.OpenVisitRequest
	if !handler.Bind(c, &req) {
		return
	}

	visit, err := h.svc.Intake.Open(c.Request.Context(), &req, handler.Actor(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, visit)
}

func (h *Handler) GetVisit(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	detail, err := h.svc.Examination.Detail(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, detail)
}

// Transition moves the visit along one edge. A 409 carries the visit as it
// stands now when another screen got there first.
func (h *Handler) Transition(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.TransitionRequestBody
	if !handler.Bind(c, &req) {
		return
	}

	visit, err := h.svc.Lifecycle.Transition(c.Request.Context(), lifecycle.TransitionRequest{
		VisitID: id,
		From:    req.From,
		To:      req.To,
		Actor:   handler.Actor(c),
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, visit)
}

func (h *Handler) SetPriority(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.PriorityRequest
	if !handler.Bind(c, &req) {
		return
	}

	visit, err := h.svc.Intake.Prioritize(c.Request.Context(), id, req.IsPriority, handler.Actor(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, visit)
}

func (h *Handler) SaveExamNotes(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.ExamNotesRequest
	if !handler.Bind(c, &req) {
		return
	}

	visit, err := h.svc.Examination.SaveNotes(c.Request.Context(), id, &req, handler.Actor(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, visit)
}

func (h *Handler) FinishExam(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.FinishExamRequest
	if !handler.Bind(c, &req) {
		return
	}

	visit, err := h.svc.Examination.Finish(c.Request.Context(), id, &req, handler.Actor(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, visit)
}

func (h *Handler) SavePrescription(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.SavePrescriptionRequest
	if !handler.Bind(c, &req) {
		return
	}

	p, err := h.svc.Examination.SavePrescription(c.Request.Context(), id, &req, handler.Actor(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

func (h *Handler) GetPrescription(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	p, err := h.svc.Examination.GetPrescription(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

func (h *Handler) OrderServices(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.OrderServicesRequest
	if !handler.Bind(c, &req) {
		return
	}

	visit, orders, err := h.svc.ServiceOrder.Order(c.Request.Context(), serviceorder.OrderRequest{
		VisitID:      id,
		ServiceTypes: req.ServiceTypes,
		Reason:       req.Reason,
		Actor:        handler.Actor(c),
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, gin.H{"visit": visit, "services": orders})
}

func (h *Handler) ListServices(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	orders, err := h.svc.ServiceOrder.ListForVisit(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, orders)
}

func (h *Handler) GetBill(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	bill, err := h.svc.Billing.Quote(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, bill)
}

// Pay closes the visit. A 400 "bill changed" carries the fresh bill so the
// receptionist can confirm again.
func (h *Handler) Pay(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.PaymentRequest
	if !handler.Bind(c, &req) {
		return
	}

	visit, bill, err := h.svc.Payment.Pay(c.Request.Context(), payment.PayRequest{
		VisitID:        id,
		ConfirmedTotal: *req.ConfirmedTotal,
		Actor:          handler.Actor(c),
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"visit": visit, "bill": bill})
}

// ActiveSession lists the visits this doctor was examining, so a reloaded
// screen can pick up where it left off.
func (h *Handler) ActiveSession(c *gin.Context) {
	visits, err := h.svc.Examination.ActiveSession(c.Request.Context(), handler.Actor(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, visits)
}
