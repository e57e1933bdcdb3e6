package billing

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository"
	"github.com/jwalitptl/clinic-flow/pkg/errors"
)

type Config struct {
	ConsultationService string
	FallbackFee         int64
}

type Service struct {
	store *repository.Store
	cfg   Config
}

func NewService(store *repository.Store, cfg Config) *Service {
	if cfg.FallbackFee <= 0 {
		cfg.FallbackFee = DefaultConsultationFee
	}
	return &Service{store: store, cfg: cfg}
}

// ConsultationService is the catalog name billed as the exam fee
func (s *Service) ConsultationService() string {
	return s.cfg.ConsultationService
}

// Quote prices the visit at current catalog and medication prices
func (s *Service) Quote(ctx context.Context, visitID uuid.UUID) (*model.Bill, error) {
	if _, err := s.store.Visits.Get(ctx, visitID); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, errors.NotFound("visit", err)
		}
		return nil, errors.Internal(err)
	}

	orders, err := s.store.ServiceOrders.ListByVisit(ctx, visitID)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("failed to load services: %w", err))
	}
	catalog, err := s.store.Catalog.List(ctx, true)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("failed to load catalog: %w", err))
	}

	var lines []model.MedicationLine
	rx, err := s.store.Prescriptions.GetByVisit(ctx, visitID)
	switch {
	case err == nil:
		lines = rx.Lines
	case stderrors.Is(err, repository.ErrNotFound):
	default:
		return nil, errors.Internal(fmt.Errorf("failed to load prescription: %w", err))
	}

	var meds []*model.Medication
	if len(lines) > 0 {
		if meds, err = s.store.Medications.List(ctx, false); err != nil {
			return nil, errors.Internal(fmt.Errorf("failed to load medications: %w", err))
		}
	}

	bill := Calculate(Input{
		VisitID:             visitID,
		Orders:              orders,
		Catalog:             catalog,
		ConsultationService: s.cfg.ConsultationService,
		FallbackFee:         s.cfg.FallbackFee,
		Lines:               lines,
		Medications:         meds,
	})
	return &bill, nil
}
