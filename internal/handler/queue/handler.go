package queue

import (
	"encoding/json"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-flow/internal/handler"
	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/service/queue"
	"github.com/jwalitptl/clinic-flow/pkg/errors"
	"github.com/jwalitptl/clinic-flow/pkg/httputil"
	"github.com/jwalitptl/clinic-flow/pkg/messaging"
)

const (
	// EventsRoute is the long-lived stream route; it is exempt from the
	// request timeout.
	EventsRoute = "/api/v1/queues/events"

	heartbeatInterval = 30 * time.Second
)

type Handler struct {
	service queue.QueueService
	broker  messaging.Broker
	channel string
}

// NewHandler serves queue snapshots. broker may be nil, in which case the
// event stream answers 503 and screens fall back to polling.
func NewHandler(service queue.QueueService, broker messaging.Broker, channel string) *Handler {
	return &Handler{service: service, broker: broker, channel: channel}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	queues := r.Group("/queues")
	{
		queues.GET("/events", h.StreamEvents)
		queues.GET("/:status", h.GetQueue)
	}
}

// GetQueue returns one snapshot. ?doctor=me narrows to the caller's
// patients, ?service_type= to visits with that order still pending.
func (h *Handler) GetQueue(c *gin.Context) {
	filter := model.QueueFilter{
		Status:      model.VisitStatus(c.Param("status")),
		ServiceType: c.Query("service_type"),
	}

	if doctor := c.Query("doctor"); doctor != "" {
		var id uuid.UUID
		if doctor == "me" {
			id = handler.Actor(c).ID
		} else {
			parsed, err := uuid.Parse(doctor)
			if err != nil {
				httputil.RespondWithError(c, errors.Validation("invalid doctor", err))
				return
			}
			id = parsed
		}
		filter.DoctorID = &id
	}

	q, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, q)
}

// envelope mirrors messaging.Message with the payload left raw
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// StreamEvents relays visit events as server-sent events. ?status= limits
// the stream to moves into or out of one status.
func (h *Handler) StreamEvents(c *gin.Context) {
	if h.broker == nil {
		httputil.RespondWithError(c, errors.TransientIO("event stream unavailable", nil))
		return
	}
	status := model.VisitStatus(c.Query("status"))
	if status != "" && !status.Valid() {
		httputil.RespondWithError(c, errors.Validation("unknown status", nil))
		return
	}

	ctx := c.Request.Context()
	messages, err := h.broker.Subscribe(ctx, h.channel)
	if err != nil {
		httputil.RespondWithError(c, errors.TransientIO("event stream unavailable", err))
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("connected", gin.H{"timestamp": time.Now()})
	c.Writer.Flush()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
			c.SSEvent("heartbeat", gin.H{"timestamp": time.Now()})
			return true
		case raw, ok := <-messages:
			if !ok {
				return false
			}
			var msg envelope
			if err := json.Unmarshal(raw, &msg); err != nil {
				log.Warn().Err(err).Msg("Dropping malformed queue event")
				return true
			}
			if !relevant(msg, status) {
				return true
			}
			c.SSEvent(msg.Type, msg.Payload)
			return true
		}
	})
}

func relevant(msg envelope, status model.VisitStatus) bool {
	if msg.Type != model.EventVisitStatusChanged && msg.Type != model.EventVisitOpened {
		return false
	}
	if status == "" {
		return true
	}
	var change model.VisitStatusChanged
	if err := json.Unmarshal(msg.Payload, &change); err != nil {
		return false
	}
	return change.From == status || change.To == status
}
