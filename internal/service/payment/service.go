package payment

import (
	"context"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/service/billing"
	"github.com/jwalitptl/clinic-flow/internal/service/lifecycle"
	"github.com/jwalitptl/clinic-flow/pkg/errors"
)

type PayRequest struct {
	VisitID        uuid.UUID
	ConfirmedTotal int64
	Actor          model.Actor
}

type PaymentService interface {
	Pay(ctx context.Context, req PayRequest) (*model.Visit, *model.Bill, error)
}

type Service struct {
	billing   *billing.Service
	lifecycle *lifecycle.Service
}

func NewService(b *billing.Service, lc *lifecycle.Service) *Service {
	return &Service{billing: b, lifecycle: lc}
}

// Pay closes the visit at the total the receptionist confirmed. Prices are
// re-read, so a bill that changed since it was shown is rejected.
func (s *Service) Pay(ctx context.Context, req PayRequest) (*model.Visit, *model.Bill, error) {
	if req.Actor.IsZero() {
		return nil, nil, errors.Validation("actor is required", nil)
	}
	if req.ConfirmedTotal < 0 {
		return nil, nil, errors.Validation("confirmed total must not be negative", nil)
	}

	bill, err := s.billing.Quote(ctx, req.VisitID)
	if err != nil {
		return nil, nil, err
	}
	if bill.Total != req.ConfirmedTotal {
		appErr := errors.Validation("bill changed", nil)
		appErr.Details = bill
		return nil, nil, appErr
	}

	visit, err := s.lifecycle.Close(ctx, lifecycle.CloseRequest{
		VisitID:     req.VisitID,
		Actor:       req.Actor,
		TotalAmount: bill.Total,
	})
	if err != nil {
		return nil, nil, err
	}
	return visit, bill, nil
}
