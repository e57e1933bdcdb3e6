// Package admin manages the reference data behind the clinic screens: staff
// roster, service catalog and medication table.
package admin

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository"
	"github.com/jwalitptl/clinic-flow/pkg/errors"
	"github.com/jwalitptl/clinic-flow/pkg/security"
)

// RosterInvalidator is told when a staff record changes so cached sessions
// see the new role or active flag.
type RosterInvalidator interface {
	Invalidate(staffID uuid.UUID)
}

type Service struct {
	staff       repository.StaffRepository
	catalog     repository.CatalogRepository
	medications repository.MedicationRepository
	hasher      security.PINHasher
	roster      RosterInvalidator
	now         func() time.Time
}

func NewService(store *repository.Store, hasher security.PINHasher, roster RosterInvalidator) *Service {
	return &Service{
		staff:       store.Staff,
		catalog:     store.Catalog,
		medications: store.Medications,
		hasher:      hasher,
		roster:      roster,
		now:         time.Now,
	}
}

// Staff

func (s *Service) CreateStaff(ctx context.Context, req *model.CreateStaffRequest) (*model.Staff, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.Validation("name is required", nil)
	}
	if !req.Role.Valid() {
		return nil, errors.Validation("unknown role", nil)
	}

	staff := &model.Staff{Base: model.NewBase(s.now()), Name: name, Role: req.Role, IsActive: true}
	if req.PIN != "" {
		hash, err := s.hashPIN(req.PIN)
		if err != nil {
			return nil, err
		}
		staff.PINHash = hash
	}
	if err := s.staff.Create(ctx, staff); err != nil {
		return nil, errors.Internal(err)
	}
	return staff, nil
}

func (s *Service) GetStaff(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	staff, err := s.staff.Get(ctx, id)
	if err != nil {
		return nil, mapErr("staff", err)
	}
	return staff, nil
}

func (s *Service) ListStaff(ctx context.Context, activeOnly bool) ([]*model.Staff, error) {
	out, err := s.staff.List(ctx, activeOnly)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if out == nil {
		out = []*model.Staff{}
	}
	return out, nil
}

func (s *Service) UpdateStaff(ctx context.Context, id uuid.UUID, req *model.UpdateStaffRequest) (*model.Staff, error) {
	staff, err := s.staff.Get(ctx, id)
	if err != nil {
		return nil, mapErr("staff", err)
	}
	if req.Name != nil {
		if staff.Name = strings.TrimSpace(*req.Name); staff.Name == "" {
			return nil, errors.Validation("name is required", nil)
		}
	}
	if req.Role != nil {
		if !req.Role.Valid() {
			return nil, errors.Validation("unknown role", nil)
		}
		staff.Role = *req.Role
	}
	if req.IsActive != nil {
		staff.IsActive = *req.IsActive
	}
	if req.PIN != nil {
		if staff.PINHash, err = s.hashPIN(*req.PIN); err != nil {
			return nil, err
		}
	}
	if err := s.staff.Update(ctx, staff); err != nil {
		return nil, mapErr("staff", err)
	}
	s.invalidate(id)
	return staff, nil
}

// ToggleStaff flips the active flag. Inactive staff cannot log in and are
// kept for the audit trail.
func (s *Service) ToggleStaff(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	staff, err := s.staff.Get(ctx, id)
	if err != nil {
		return nil, mapErr("staff", err)
	}
	active := !staff.IsActive
	return s.UpdateStaff(ctx, id, &model.UpdateStaffRequest{IsActive: &active})
}

func (s *Service) hashPIN(pin string) (string, error) {
	hash, err := s.hasher.Hash(pin)
	if stderrors.Is(err, security.ErrPINTooShort) {
		return "", errors.Validation("pin must be at least 4 characters", err)
	}
	if err != nil {
		return "", errors.Internal(err)
	}
	return hash, nil
}

func (s *Service) invalidate(id uuid.UUID) {
	if s.roster != nil {
		s.roster.Invalidate(id)
	}
}

// Service catalog

func (s *Service) CreateCatalogEntry(ctx context.Context, req *model.CreateCatalogEntryRequest) (*model.CatalogEntry, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.Validation("name is required", nil)
	}
	if req.Price < 0 {
		return nil, errors.Validation("price must not be negative", nil)
	}
	entry := &model.CatalogEntry{Base: model.NewBase(s.now()), Name: name, Price: req.Price, IsActive: true}
	if err := s.catalog.Create(ctx, entry); err != nil {
		return nil, mapErr("catalog entry", err)
	}
	return entry, nil
}

func (s *Service) ListCatalog(ctx context.Context, activeOnly bool) ([]*model.CatalogEntry, error) {
	out, err := s.catalog.List(ctx, activeOnly)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if out == nil {
		out = []*model.CatalogEntry{}
	}
	return out, nil
}

func (s *Service) UpdateCatalogEntry(ctx context.Context, id uuid.UUID, req *model.UpdateCatalogEntryRequest) (*model.CatalogEntry, error) {
	entry, err := s.catalog.Get(ctx, id)
	if err != nil {
		return nil, mapErr("catalog entry", err)
	}
	if req.Name != nil {
		if entry.Name = strings.TrimSpace(*req.Name); entry.Name == "" {
			return nil, errors.Validation("name is required", nil)
		}
	}
	if req.Price != nil {
		if *req.Price < 0 {
			return nil, errors.Validation("price must not be negative", nil)
		}
		entry.Price = *req.Price
	}
	if req.IsActive != nil {
		entry.IsActive = *req.IsActive
	}
	if err := s.catalog.Update(ctx, entry); err != nil {
		return nil, mapErr("catalog entry", err)
	}
	return entry, nil
}

// Medications

func (s *Service) CreateMedication(ctx context.Context, req *model.CreateMedicationRequest) (*model.Medication, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.Validation("name is required", nil)
	}
	if req.Price != nil && *req.Price < 0 {
		return nil, errors.Validation("price must not be negative", nil)
	}
	med := &model.Medication{
		Base:     model.NewBase(s.now()),
		Name:     name,
		Unit:     strings.TrimSpace(req.Unit),
		Price:    req.Price,
		IsActive: true,
	}
	if err := s.medications.Create(ctx, med); err != nil {
		return nil, mapErr("medication", err)
	}
	return med, nil
}

func (s *Service) ListMedications(ctx context.Context, activeOnly bool) ([]*model.Medication, error) {
	out, err := s.medications.List(ctx, activeOnly)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if out == nil {
		out = []*model.Medication{}
	}
	return out, nil
}

func (s *Service) UpdateMedication(ctx context.Context, id uuid.UUID, req *model.UpdateMedicationRequest) (*model.Medication, error) {
	med, err := s.medications.Get(ctx, id)
	if err != nil {
		return nil, mapErr("medication", err)
	}
	if req.Name != nil {
		if med.Name = strings.TrimSpace(*req.Name); med.Name == "" {
			return nil, errors.Validation("name is required", nil)
		}
	}
	if req.Unit != nil {
		med.Unit = strings.TrimSpace(*req.Unit)
	}
	switch {
	case req.ClearPrice:
		med.Price = nil
	case req.Price != nil:
		if *req.Price < 0 {
			return nil, errors.Validation("price must not be negative", nil)
		}
		price := *req.Price
		med.Price = &price
	}
	if req.IsActive != nil {
		med.IsActive = *req.IsActive
	}
	if err := s.medications.Update(ctx, med); err != nil {
		return nil, mapErr("medication", err)
	}
	return med, nil
}

func mapErr(resource string, err error) error {
	switch {
	case stderrors.Is(err, repository.ErrNotFound):
		return errors.NotFound(resource, err)
	case stderrors.Is(err, repository.ErrDuplicateName):
		return errors.Validation(resource+" name already exists", err)
	default:
		return errors.Internal(err)
	}
}
