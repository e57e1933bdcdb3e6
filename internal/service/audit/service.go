package audit

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository"
	"github.com/jwalitptl/clinic-flow/pkg/errors"
)

// Service reads the append-only transition log
type Service struct {
	visits repository.VisitRepository
}

func NewService(visits repository.VisitRepository) *Service {
	return &Service{visits: visits}
}

func (s *Service) VisitHistory(ctx context.Context, visitID uuid.UUID) ([]*model.VisitTransition, error) {
	if _, err := s.visits.Get(ctx, visitID); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound("visit", err)
		}
		return nil, errors.Internal(err)
	}
	entries, err := s.visits.ListTransitions(ctx, visitID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if entries == nil {
		entries = []*model.VisitTransition{}
	}
	return entries, nil
}
