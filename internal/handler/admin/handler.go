package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-flow/internal/handler"
	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/service/admin"
	"github.com/jwalitptl/clinic-flow/pkg/httputil"
)

// Handler serves the configuration screens. The router mounts it behind
// the Admin role guard; catalog and medication lists are also mounted for
// every role since the order and prescription forms read them.
type Handler struct {
	service *admin.Service
}

func NewHandler(service *admin.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	staff := r.Group("/staff")
	{
		staff.POST("", h.CreateStaff)
		staff.GET("", h.ListStaff)
		staff.GET("/:id", h.GetStaff)
		staff.PUT("/:id", h.UpdateStaff)
		staff.POST("/:id/toggle", h.ToggleStaff)
	}

	catalog := r.Group("/catalog")
	{
		catalog.POST("", h.CreateCatalogEntry)
		catalog.GET("", h.ListCatalog)
		catalog.PUT("/:id", h.UpdateCatalogEntry)
	}

	meds := r.Group("/medications")
	{
		meds.POST("", h.CreateMedication)
		meds.GET("", h.ListMedications)
		meds.PUT("/:id", h.UpdateMedication)
	}
}

// RegisterReferenceRoutes exposes the read-only reference lists
func (h *Handler) RegisterReferenceRoutes(r *gin.RouterGroup) {
	r.GET("/catalog", h.ListCatalog)
	r.GET("/medications", h.ListMedications)
}

func (h *Handler) CreateStaff(c *gin.Context) {
	var req model.CreateStaffRequest
	if !handler.Bind(c, &req) {
		return
	}

	staff, err := h.service.CreateStaff(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, staff)
}

func (h *Handler) ListStaff(c *gin.Context) {
	staff, err := h.service.ListStaff(c.Request.Context(), handler.ActiveOnly(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, staff)
}

func (h *Handler) GetStaff(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	staff, err := h.service.GetStaff(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, staff)
}

func (h *Handler) UpdateStaff(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateStaffRequest
	if !handler.Bind(c, &req) {
		return
	}

	staff, err := h.service.UpdateStaff(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, staff)
}

func (h *Handler) ToggleStaff(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	staff, err := h.service.ToggleStaff(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, staff)
}

func (h *Handler) CreateCatalogEntry(c *gin.Context) {
	var req model.CreateCatalogEntryRequest
	if !handler.Bind(c, &req) {
		return
	}

	entry, err := h.service.CreateCatalogEntry(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, entry)
}

func (h *Handler) ListCatalog(c *gin.Context) {
	entries, err := h.service.ListCatalog(c.Request.Context(), handler.ActiveOnly(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, entries)
}

func (h *Handler) UpdateCatalogEntry(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateCatalogEntryRequest
	if !handler.Bind(c, &req) {
		return
	}

	entry, err := h.service.UpdateCatalogEntry(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, entry)
}

func (h *Handler) CreateMedication(c *gin.Context) {
	var req model.CreateMedicationRequest
	if !handler.Bind(c, &req) {
		return
	}

	med, err := h.service.CreateMedication(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, med)
}

func (h *Handler) ListMedications(c *gin.Context) {
	meds, err := h.service.ListMedications(c.Request.Context(), handler.ActiveOnly(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, meds)
}

func (h *Handler) UpdateMedication(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.UpdateMedicationRequest
	if !handler.Bind(c, &req) {
		return
	}

	med, err := h.service.UpdateMedication(c.Request.Context(), id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, med)
}
