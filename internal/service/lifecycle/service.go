package lifecycle

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository"
	"github.com/jwalitptl/clinic-flow/pkg/errors"
	"github.com/jwalitptl/clinic-flow/pkg/metrics"
)

// TransitionRequest asks for a move along one edge of the transition table.
// From is the status the caller last saw.
type TransitionRequest struct {
	VisitID uuid.UUID
	From    model.VisitStatus
	To      model.VisitStatus
	Actor   model.Actor
}

// CloseRequest moves a visit from ReadyForPayment to Done, stamping the
// total that billing confirmed.
type CloseRequest struct {
	VisitID     uuid.UUID
	Actor       model.Actor
	TotalAmount int64
}

// ForceRequest moves an open visit to To from whatever status it is in now,
// bypassing the transition table. Orders and Reason commit with the move.
type ForceRequest struct {
	VisitID   uuid.UUID
	To        model.VisitStatus
	Actor     model.Actor
	Reason    *string
	NewOrders []*model.ServiceOrder
}

type LifecycleService interface {
	Transition(ctx context.Context, req TransitionRequest) (*model.Visit, error)
	Force(ctx context.Context, req ForceRequest) (*model.Visit, error)
}

type Service struct {
	visits  repository.VisitRepository
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewService(visits repository.VisitRepository, m *metrics.Metrics) *Service {
	return &Service{visits: visits, metrics: m, now: time.Now}
}

// Transition takes any edge except the one into Done, which only payment
// may take through Close.
func (s *Service) Transition(ctx context.Context, req TransitionRequest) (*model.Visit, error) {
	if req.To == model.StatusDone {
		s.observe(req.From, req.To, "forbidden")
		return nil, errors.Validation("visits are closed through payment", nil)
	}
	return s.transition(ctx, req, nil)
}

// Close is the payment path into Done. The caller has already checked the
// total against the current bill.
func (s *Service) Close(ctx context.Context, req CloseRequest) (*model.Visit, error) {
	if req.TotalAmount < 0 {
		return nil, errors.Validation("total amount must not be negative", nil)
	}
	total := req.TotalAmount
	return s.transition(ctx, TransitionRequest{
		VisitID: req.VisitID,
		From:    model.StatusReadyForPayment,
		To:      model.StatusDone,
		Actor:   req.Actor,
	}, &total)
}

func (s *Service) transition(ctx context.Context, req TransitionRequest, total *int64) (*model.Visit, error) {
	if req.Actor.IsZero() {
		return nil, errors.Validation("actor is required", nil)
	}
	roles, ok := AllowedRoles(req.From, req.To)
	if !ok {
		s.observe(req.From, req.To, "invalid")
		return nil, errors.InvalidTransition(string(req.From), string(req.To))
	}
	if !hasRole(roles, req.Actor.Role) {
		s.observe(req.From, req.To, "forbidden")
		return nil, errors.Forbidden(fmt.Sprintf("%s may not move a visit from %s to %s", req.Actor.Role, req.From, req.To))
	}

	visit, err := s.visits.Get(ctx, req.VisitID)
	if err != nil {
		return nil, mapRepoError(err, nil)
	}

	change := repository.StatusChange{
		VisitID:     req.VisitID,
		From:        req.From,
		To:          req.To,
		Actor:       req.Actor,
		At:          s.now(),
		StampDoctor: req.To == model.StatusExaming,
	}
	if req.To == model.StatusDone {
		change.TotalAmount = total
	}
	return s.apply(ctx, visit.PatientID, change)
}

func (s *Service) Force(ctx context.Context, req ForceRequest) (*model.Visit, error) {
	if req.Actor.IsZero() {
		return nil, errors.Validation("actor is required", nil)
	}
	if !req.To.IsOpen() {
		return nil, errors.Validation(fmt.Sprintf("cannot force a visit into %s", req.To), nil)
	}

	visit, err := s.visits.Get(ctx, req.VisitID)
	if err != nil {
		return nil, mapRepoError(err, nil)
	}
	if !visit.Status.IsOpen() {
		s.observe(visit.Status, req.To, "invalid")
		return nil, errors.InvalidTransition(string(visit.Status), string(req.To))
	}

	return s.apply(ctx, visit.PatientID, repository.StatusChange{
		VisitID:     req.VisitID,
		From:        visit.Status,
		To:          req.To,
		Actor:       req.Actor,
		At:          s.now(),
		StampDoctor: req.To == model.StatusExaming && req.Actor.Role == model.RoleDoctor,
		Reason:      req.Reason,
		NewOrders:   req.NewOrders,
	})
}

func (s *Service) apply(ctx context.Context, patientID uuid.UUID, change repository.StatusChange) (*model.Visit, error) {
	event, err := model.NewOutboxEvent(model.EventVisitStatusChanged, model.VisitStatusChanged{
		VisitID:   change.VisitID,
		PatientID: patientID,
		From:      change.From,
		To:        change.To,
		ActorID:   change.Actor.ID,
		ActorRole: change.Actor.Role,
		At:        change.At,
	}, change.At)
	if err != nil {
		return nil, errors.Internal(err)
	}

	visit, err := s.visits.ApplyStatusChange(ctx, change, event)
	if err != nil {
		if stderrors.Is(err, repository.ErrStatusConflict) {
			s.observe(change.From, change.To, "conflict")
		} else {
			s.observe(change.From, change.To, "error")
		}
		return nil, mapRepoError(err, visit)
	}
	s.observe(change.From, change.To, "ok")
	return visit, nil
}

func (s *Service) observe(from, to model.VisitStatus, result string) {
	if s.metrics == nil {
		return
	}
	s.metrics.Transitions.WithLabelValues(string(from), string(to), result).Inc()
}

func mapRepoError(err error, current *model.Visit) error {
	switch {
	case stderrors.Is(err, repository.ErrNotFound):
		return errors.NotFound("visit", err)
	case stderrors.Is(err, repository.ErrStatusConflict):
		status := "unknown"
		if current != nil {
			status = string(current.Status)
		}
		return errors.ConcurrentModification(fmt.Sprintf("visit is now %s", status), current)
	case stderrors.Is(err, repository.ErrActiveVisitExists):
		return errors.DuplicateActiveVisit("open")
	default:
		return errors.Internal(err)
	}
}
