package audit

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-flow/internal/handler"
	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/pkg/errors"
	"github.com/jwalitptl/clinic-flow/pkg/httputil"
)

// HistoryService reads the append-only transition log of a visit
type HistoryService interface {
	VisitHistory(ctx context.Context, visitID uuid.UUID) ([]*model.VisitTransition, error)
}

type Handler struct {
	service HistoryService
}

func NewHandler(service HistoryService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/visits/:id/transitions", h.ListTransitions)
}

// ListTransitions returns who moved the visit and when, as JSON or as a
// CSV download with ?format=csv.
func (h *Handler) ListTransitions(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	format := c.DefaultQuery("format", "json")
	if format != "csv" && format != "json" {
		httputil.RespondWithError(c, errors.Validation("unsupported format", nil))
		return
	}

	entries, err := h.service.VisitHistory(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	if format == "json" {
		httputil.RespondWithSuccess(c, entries)
		return
	}

	filename := fmt.Sprintf("visit_%s_transitions.csv", id)
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Status(http.StatusOK)

	writer := csv.NewWriter(c.Writer)
	writer.Write([]string{"ID", "From", "To", "Actor ID", "Actor Name", "Actor Role", "Created At"})
	for _, e := range entries {
		writer.Write([]string{
			e.ID.String(),
			string(e.FromStatus),
			string(e.ToStatus),
			e.ActorID.String(),
			e.ActorName,
			string(e.ActorRole),
			e.CreatedAt.Format(time.RFC3339),
		})
	}
	writer.Flush()
}
