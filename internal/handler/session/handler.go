package session

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-flow/internal/handler"
	"github.com/jwalitptl/clinic-flow/internal/service/session"
	"github.com/jwalitptl/clinic-flow/pkg/httputil"
)

type Handler struct {
	svc session.SessionService
}

func NewHandler(svc session.SessionService) *Handler {
	return &Handler{svc: svc}
}

type loginRequest struct {
	StaffID uuid.UUID `json:"staff_id" binding:"required"`
	PIN     string    `json:"pin" binding:"required"`
}

// RegisterRoutes mounts the login endpoint, which must stay outside the
// session middleware.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/sessions", h.Login)
}

// RegisterProtectedRoutes mounts endpoints that need a session
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/sessions/me", h.Me)
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if !handler.Bind(c, &req) {
		return
	}

	sess, err := h.svc.Login(c.Request.Context(), req.StaffID, req.PIN)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, sess)
}

func (h *Handler) Me(c *gin.Context) {
	httputil.RespondWithSuccess(c, handler.Actor(c))
}
