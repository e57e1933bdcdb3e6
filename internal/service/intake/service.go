package intake

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository"
	"github.com/jwalitptl/clinic-flow/pkg/errors"
)

const (
	SearchLimit  = 5
	HistoryLimit = 3
)

type IntakeService interface {
	Search(ctx context.Context, term string) ([]*model.Patient, error)
	Register(ctx context.Context, req *model.RegisterPatientRequest, actor model.Actor) (*model.Patient, *model.Visit, error)
	Open(ctx context.Context, req *model.OpenVisitRequest, actor model.Actor) (*model.Visit, error)
	History(ctx context.Context, patientID uuid.UUID) ([]*model.Visit, error)
	Prioritize(ctx context.Context, visitID uuid.UUID, priority bool, actor model.Actor) (*model.Visit, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	UpdatePatient(ctx context.Context, id uuid.UUID, req *model.UpdatePatientRequest, actor model.Actor) (*model.Patient, error)
	DeletePatient(ctx context.Context, id uuid.UUID, actor model.Actor) error
}

type Service struct {
	patients repository.PatientRepository
	visits   repository.VisitRepository
	now      func() time.Time
}

func NewService(patients repository.PatientRepository, visits repository.VisitRepository) *Service {
	return &Service{patients: patients, visits: visits, now: time.Now}
}

// Search matches national id, name or phone by substring
func (s *Service) Search(ctx context.Context, term string) ([]*model.Patient, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return []*model.Patient{}, nil
	}
	patients, err := s.patients.Search(ctx, term, SearchLimit)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if patients == nil {
		patients = []*model.Patient{}
	}
	return patients, nil
}

// Register creates a patient and opens their first visit in one write, so a
// failed open leaves no patient behind.
func (s *Service) Register(ctx context.Context, req *model.RegisterPatientRequest, actor model.Actor) (*model.Patient, *model.Visit, error) {
	if err := requireRole(actor, model.RoleReceptionist); err != nil {
		return nil, nil, err
	}

	patient := newPatient(&req.Patient, s.now())
	if patient.FullName == "" {
		return nil, nil, errors.Validation("full name is required", nil)
	}
	visit, event, err := s.newVisit(patient.ID, req.Reason, req.IsPriority, actor)
	if err != nil {
		return nil, nil, err
	}
	if err := s.visits.CreateWithPatient(ctx, patient, visit, event); err != nil {
		return nil, nil, errors.Internal(fmt.Errorf("failed to register patient: %w", err))
	}
	return patient, visit, nil
}

// Open starts a visit for an existing patient. A patient holds at most one
// open visit at a time.
func (s *Service) Open(ctx context.Context, req *model.OpenVisitRequest, actor model.Actor) (*model.Visit, error) {
	if err := requireRole(actor, model.RoleReceptionist); err != nil {
		return nil, err
	}
	if _, err := s.patients.Get(ctx, req.PatientID); err != nil {
		return nil, notFound("patient", err)
	}

	visit, event, err := s.newVisit(req.PatientID, req.Reason, req.IsPriority, actor)
	if err != nil {
		return nil, err
	}
	err = s.visits.Create(ctx, visit, event)
	switch {
	case err == nil:
		return visit, nil
	case stderrors.Is(err, repository.ErrActiveVisitExists):
		status := "open"
		if existing, findErr := s.visits.FindOpenByPatient(ctx, req.PatientID); findErr == nil {
			status = string(existing.Status)
		}
		return nil, errors.DuplicateActiveVisit(status)
	case stderrors.Is(err, repository.ErrNotFound):
		return nil, errors.NotFound("patient", err)
	default:
		return nil, errors.Internal(fmt.Errorf("failed to open visit: %w", err))
	}
}

func (s *Service) newVisit(patientID uuid.UUID, reason string, priority bool, actor model.Actor) (*model.Visit, *model.OutboxEvent, error) {
	now := s.now()
	visit := &model.Visit{
		Base:          model.NewBase(now),
		PatientID:     patientID,
		Status:        model.StatusWaitingForExam,
		ReceptionBy:   actor.ID,
		ReceptionName: actor.Name,
		Reason:        strings.TrimSpace(reason),
		IsPriority:    priority,
	}

	event, err := model.NewOutboxEvent(model.EventVisitOpened, model.VisitStatusChanged{
		VisitID:   visit.ID,
		PatientID: patientID,
		To:        visit.Status,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		At:        now,
	}, now)
	if err != nil {
		return nil, nil, errors.Internal(err)
	}
	return visit, event, nil
}

// History returns the patient's most recent visits, newest first
func (s *Service) History(ctx context.Context, patientID uuid.UUID) ([]*model.Visit, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, notFound("patient", err)
	}
	visits, err := s.visits.ListByPatient(ctx, patientID, HistoryLimit)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if visits == nil {
		visits = []*model.Visit{}
	}
	return visits, nil
}

func (s *Service) Prioritize(ctx context.Context, visitID uuid.UUID, priority bool, actor model.Actor) (*model.Visit, error) {
	if err := requireRole(actor, model.RoleReceptionist); err != nil {
		return nil, err
	}
	visit, err := s.visits.Get(ctx, visitID)
	if err != nil {
		return nil, notFound("visit", err)
	}
	if !visit.Status.IsOpen() {
		return nil, errors.Validation(fmt.Sprintf("visit is %s", visit.Status), nil)
	}
	updated, err := s.visits.SetPriority(ctx, visitID, priority)
	if err != nil {
		return nil, notFound("visit", err)
	}
	return updated, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	patient, err := s.patients.Get(ctx, id)
	if err != nil {
		return nil, notFound("patient", err)
	}
	return patient, nil
}

func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, req *model.UpdatePatientRequest, actor model.Actor) (*model.Patient, error) {
	if err := requireRole(actor, model.RoleReceptionist, model.RoleAdmin); err != nil {
		return nil, err
	}
	patient, err := s.patients.Get(ctx, id)
	if err != nil {
		return nil, notFound("patient", err)
	}
	req.Apply(patient)
	if strings.TrimSpace(patient.FullName) == "" {
		return nil, errors.Validation("full name is required", nil)
	}
	if err := s.patients.Update(ctx, patient); err != nil {
		return nil, notFound("patient", err)
	}
	return patient, nil
}

// DeletePatient removes the patient and everything recorded against them
func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID, actor model.Actor) error {
	if err := requireRole(actor, model.RoleAdmin); err != nil {
		return err
	}
	now := s.now()
	event, err := model.NewOutboxEvent(model.EventPatientDeleted, model.PatientDeleted{
		PatientID: id,
		ActorID:   actor.ID,
		At:        now,
	}, now)
	if err != nil {
		return errors.Internal(err)
	}
	if err := s.patients.Delete(ctx, id, event); err != nil {
		return notFound("patient", err)
	}
	return nil
}

func newPatient(req *model.CreatePatientRequest, now time.Time) *model.Patient {
	return &model.Patient{
		Base:        model.NewBase(now),
		NationalID:  strings.TrimSpace(req.NationalID),
		FullName:    strings.TrimSpace(req.FullName),
		DateOfBirth: req.DateOfBirth,
		Gender:      req.Gender,
		Phone:       strings.TrimSpace(req.Phone),
		Address:     strings.TrimSpace(req.Address),
	}
}

func requireRole(actor model.Actor, roles ...model.Role) error {
	if actor.IsZero() {
		return errors.Validation("actor is required", nil)
	}
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return errors.Forbidden(fmt.Sprintf("%s may not perform this action", actor.Role))
}

func notFound(resource string, err error) error {
	if stderrors.Is(err, repository.ErrNotFound) {
		return errors.NotFound(resource, err)
	}
	return errors.Internal(err)
}
