package serviceorder

import (
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/clinic-flow/internal/handler"
	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/service/serviceorder"
	"github.com/jwalitptl/clinic-flow/pkg/errors"
	"github.com/jwalitptl/clinic-flow/pkg/httputil"
	"github.com/jwalitptl/clinic-flow/pkg/imagestore"
)

type Handler struct {
	service serviceorder.ServiceOrderService
}

func NewHandler(service serviceorder.ServiceOrderService) *Handler {
	return &Handler{service: service}
}

// CompleteRoute is the route that carries result images
const CompleteRoute = "/services/:id/complete"

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	services := r.Group("/services")
	{
		services.POST("/:id/complete", h.Complete)
		services.POST("/:id/skip", h.Skip)
	}
}

func (h *Handler) Complete(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}
	var req model.CompleteServiceRequest
	if !handler.Bind(c, &req) {
		return
	}

	image, err := decodeImage(id.String(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	res, err := h.service.Complete(c.Request.Context(), serviceorder.CompleteRequest{
		ServiceID:  id,
		ResultText: req.ResultText,
		Image:      image,
		Actor:      handler.Actor(c),
	})
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, res)
}

func (h *Handler) Skip(c *gin.Context) {
	id, ok := handler.ParamID(c, "id")
	if !ok {
		return
	}

	res, err := h.service.Skip(c.Request.Context(), id, handler.Actor(c))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, res)
}

func decodeImage(serviceID string, req *model.CompleteServiceRequest) (*imagestore.Image, error) {
	if strings.TrimSpace(req.Image) == "" {
		return nil, nil
	}
	data, contentType, err := imagestore.DecodeDataURL(req.Image)
	if err != nil {
		return nil, errors.Validation("image is not valid base64", err)
	}
	if len(data) > imagestore.MaxImageSize {
		return nil, errors.Validation("image is too large", nil)
	}

	name := path.Base(strings.TrimSpace(req.FileName))
	if name == "" || name == "." || name == "/" {
		name = "result-" + serviceID
	}
	return &imagestore.Image{FileName: name, ContentType: contentType, Data: data}, nil
}
