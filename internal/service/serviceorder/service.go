package serviceorder

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository"
	"github.com/jwalitptl/clinic-flow/internal/service/lifecycle"
	"github.com/jwalitptl/clinic-flow/pkg/errors"
	"github.com/jwalitptl/clinic-flow/pkg/imagestore"
	"github.com/jwalitptl/clinic-flow/pkg/metrics"
)

type OrderRequest struct {
	VisitID      uuid.UUID
	ServiceTypes []string
	Reason       *string
	Actor        model.Actor
}

type CompleteRequest struct {
	ServiceID  uuid.UUID
	ResultText string
	// Image is uploaded before the order is resolved when set
	Image *imagestore.Image
	Actor model.Actor
}

// Result is a resolved order and, when it was the last pending one, the
// visit after it returned to the doctor.
type Result struct {
	Order *model.ServiceOrder `json:"order"`
	Visit *model.Visit        `json:"visit,omitempty"`
}

type ServiceOrderService interface {
	Order(ctx context.Context, req OrderRequest) (*model.Visit, []*model.ServiceOrder, error)
	Complete(ctx context.Context, req CompleteRequest) (*Result, error)
	Skip(ctx context.Context, serviceID uuid.UUID, actor model.Actor) (*Result, error)
	ListForVisit(ctx context.Context, visitID uuid.UUID) ([]*model.ServiceOrder, error)
}

type Service struct {
	orders       repository.ServiceOrderRepository
	catalog      repository.CatalogRepository
	lifecycle    *lifecycle.Service
	uploader     imagestore.Uploader
	consultation string
	metrics      *metrics.Metrics
	now          func() time.Time
}

func NewService(
	orders repository.ServiceOrderRepository,
	catalog repository.CatalogRepository,
	lc *lifecycle.Service,
	uploader imagestore.Uploader,
	consultationService string,
	m *metrics.Metrics,
) *Service {
	return &Service{
		orders:       orders,
		catalog:      catalog,
		lifecycle:    lc,
		uploader:     uploader,
		consultation: consultationService,
		metrics:      m,
		now:          time.Now,
	}
}

// Order creates one pending order per service type and moves the visit to
// WaitingForService in the same write.
func (s *Service) Order(ctx context.Context, req OrderRequest) (*model.Visit, []*model.ServiceOrder, error) {
	if req.Actor.IsZero() {
		return nil, nil, errors.Validation("actor is required", nil)
	}
	if req.Actor.Role != model.RoleDoctor {
		return nil, nil, errors.Forbidden("only doctors may order services")
	}

	names, err := s.resolveTypes(ctx, req.ServiceTypes)
	if err != nil {
		return nil, nil, err
	}

	now := s.now()
	orders := make([]*model.ServiceOrder, 0, len(names))
	for _, name := range names {
		orders = append(orders, &model.ServiceOrder{
			Base:        model.NewBase(now),
			VisitID:     req.VisitID,
			ServiceType: name,
			Status:      model.ServicePending,
		})
	}

	visit, err := s.lifecycle.Force(ctx, lifecycle.ForceRequest{
		VisitID:   req.VisitID,
		To:        model.StatusWaitingForService,
		Actor:     req.Actor,
		Reason:    req.Reason,
		NewOrders: orders,
	})
	if err != nil {
		return nil, nil, err
	}
	return visit, orders, nil
}

// resolveTypes maps requested names onto active catalog entries, dropping
// duplicates and keeping request order.
func (s *Service) resolveTypes(ctx context.Context, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return nil, errors.Validation("at least one service type is required", nil)
	}

	entries, err := s.catalog.List(ctx, true)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("failed to load catalog: %w", err))
	}
	byName := make(map[string]string, len(entries))
	for _, e := range entries {
		byName[strings.ToLower(e.Name)] = e.Name
	}

	seen := make(map[string]bool, len(requested))
	out := make([]string, 0, len(requested))
	for _, raw := range requested {
		key := strings.ToLower(strings.TrimSpace(raw))
		if key == "" {
			return nil, errors.Validation("service type must not be empty", nil)
		}
		if s.consultation != "" && key == strings.ToLower(s.consultation) {
			return nil, errors.Validation(fmt.Sprintf("%q is billed automatically and cannot be ordered", raw), nil)
		}
		name, ok := byName[key]
		if !ok {
			return nil, errors.Validation(fmt.Sprintf("unknown service type %q", raw), nil)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, name)
	}
	return out, nil
}

func (s *Service) Complete(ctx context.Context, req CompleteRequest) (*Result, error) {
	order, err := s.pendingOrder(ctx, req.ServiceID, req.Actor)
	if err != nil {
		return nil, err
	}

	var imageURL string
	if req.Image != nil {
		if s.uploader == nil {
			return nil, errors.TransientIO("image store is not configured", nil)
		}
		if imageURL, err = s.uploader.Upload(ctx, *req.Image); err != nil {
			return nil, err
		}
	}

	return s.resolve(ctx, order, model.ServiceResolution{
		ID:         req.ServiceID,
		Status:     model.ServiceCompleted,
		ResultText: req.ResultText,
		ImageURL:   imageURL,
		Tech:       req.Actor,
	})
}

func (s *Service) Skip(ctx context.Context, serviceID uuid.UUID, actor model.Actor) (*Result, error) {
	order, err := s.pendingOrder(ctx, serviceID, actor)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, order, model.ServiceResolution{
		ID:     serviceID,
		Status: model.ServiceSkipped,
		Tech:   actor,
	})
}

func (s *Service) ListForVisit(ctx context.Context, visitID uuid.UUID) ([]*model.ServiceOrder, error) {
	orders, err := s.orders.ListByVisit(ctx, visitID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if orders == nil {
		orders = []*model.ServiceOrder{}
	}
	return orders, nil
}

func (s *Service) pendingOrder(ctx context.Context, id uuid.UUID, actor model.Actor) (*model.ServiceOrder, error) {
	if actor.IsZero() {
		return nil, errors.Validation("actor is required", nil)
	}
	if actor.Role != model.RoleTechnician {
		return nil, errors.Forbidden("only technicians may resolve service orders")
	}

	order, err := s.orders.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound("service order", err)
		}
		return nil, errors.Internal(err)
	}
	if order.Status != model.ServicePending {
		return nil, errors.InvalidTransition(string(order.Status), "resolved")
	}
	return order, nil
}

func (s *Service) resolve(ctx context.Context, order *model.ServiceOrder, res model.ServiceResolution) (*Result, error) {
	resolved, err := s.orders.Resolve(ctx, res)
	switch {
	case stderrors.Is(err, repository.ErrStatusConflict):
		from := model.ServicePending
		if resolved != nil {
			from = resolved.Status
		}
		return nil, errors.InvalidTransition(string(from), string(res.Status))
	case stderrors.Is(err, repository.ErrNotFound):
		return nil, errors.NotFound("service order", err)
	case err != nil:
		return nil, errors.Internal(err)
	}
	if s.metrics != nil {
		s.metrics.ServiceResolutions.WithLabelValues(string(res.Status)).Inc()
	}

	result := &Result{Order: resolved}

	pending, err := s.orders.CountPending(ctx, order.VisitID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if pending > 0 {
		return result, nil
	}

	visit, err := s.lifecycle.Transition(ctx, lifecycle.TransitionRequest{
		VisitID: order.VisitID,
		From:    model.StatusWaitingForService,
		To:      model.StatusReturnToDoctor,
		Actor:   res.Tech,
	})
	if err != nil {
		// another technician resolved the last order concurrently and
		// already sent the visit back
		if appErr, ok := errors.As(err); ok && appErr.Kind == errors.KindConcurrentModification {
			if current, ok := appErr.Details.(*model.Visit); ok {
				result.Visit = current
			}
			return result, nil
		}
		return nil, err
	}
	result.Visit = visit
	return result, nil
}
