package examination

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
	"github.com/jwalitptl/clinic-flow/pkg/validator"
)

// PrescriptionDocument is everything the printable prescription shows
type PrescriptionDocument struct {
	Visit      *model.Visit
	Patient    *model.Patient
	Lines      []DocumentLine
	PrintedAt  time.Time
	DoctorName string
}

type DocumentLine struct {
	model.MedicationLine
	Unit string
}

type ExaminationService interface {
	Detail(ctx context.Context, visitID uuid.UUID) (*model.VisitDetail, error)
	SaveNotes(ctx context.Context, visitID uuid.UUID, req *model.ExamNotesRequest, actor model.Actor) (*model.Visit, error)
	SavePrescription(ctx context.Context, visitID uuid.UUID, req *model.SavePrescriptionRequest, actor model.Actor) (*model.Prescription, error)
	GetPrescription(ctx context.Context, visitID uuid.UUID) (*model.Prescription, error)
	Finish(ctx context.Context, visitID uuid.UUID, req *model.FinishExamRequest, actor model.Actor) (*model.Visit, error)
	ActiveSession(ctx context.Context, actor model.Actor) ([]*model.Visit, error)
	PrintDocument(ctx context.Context, visitID uuid.UUID) (*PrescriptionDocument, error)
}

type Service struct {
	store     *repository.Store
	lifecycle *lifecycle.Service
	now       func() time.Time
}

func NewService(store *repository.Store, lc *lifecycle.Service) *Service {
	return &Service{store: store, lifecycle: lc, now: time.Now}
}

// Detail loads a visit with its patient, orders and prescription
func (s *Service) Detail(ctx context.Context, visitID uuid.UUID) (*model.VisitDetail, error) {
	visit, err := s.store.Visits.Get(ctx, visitID)
	if err != nil {
		return nil, notFound("visit", err)
	}
	patient, err := s.store.Patients.Get(ctx, visit.PatientID)
	if err != nil {
		return nil, notFound("patient", err)
	}
	orders, err := s.store.ServiceOrders.ListByVisit(ctx, visitID)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if orders == nil {
		orders = []*model.ServiceOrder{}
	}

	detail := &model.VisitDetail{Visit: visit, Patient: patient, Services: orders}
	rx, err := s.store.Prescriptions.GetByVisit(ctx, visitID)
	switch {
	case err == nil:
		detail.Prescription = rx
	case !stderrors.Is(err, repository.ErrNotFound):
		return nil, errors.Internal(err)
	}
	return detail, nil
}

// SaveNotes records the exam reason and conclusion. The saving doctor
// becomes the attending doctor only if nobody claimed the visit.
func (s *Service) SaveNotes(ctx context.Context, visitID uuid.UUID, req *model.ExamNotesRequest, actor model.Actor) (*model.Visit, error) {
	if err := requireDoctor(actor); err != nil {
		return nil, err
	}
	visit, err := s.openVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if err := checkClaim(visit, actor); err != nil {
		return nil, err
	}
	return s.writeNotes(ctx, visitID, req.Reason, req.Conclusion, actor)
}

func (s *Service) writeNotes(ctx context.Context, visitID uuid.UUID, reason, conclusion *string, actor model.Actor) (*model.Visit, error) {
	visit, err := s.store.Visits.UpdateNotes(ctx, visitID, trim(reason), trim(conclusion), &actor)
	if err != nil {
		return nil, notFound("visit", err)
	}
	return visit, nil
}

// SavePrescription replaces the visit's prescription lines
func (s *Service) SavePrescription(ctx context.Context, visitID uuid.UUID, req *model.SavePrescriptionRequest, actor model.Actor) (*model.Prescription, error) {
	if err := requireDoctor(actor); err != nil {
		return nil, err
	}
	if err := validator.Struct(req); err != nil {
		return nil, err
	}
	visit, err := s.openVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if err := checkClaim(visit, actor); err != nil {
		return nil, err
	}

	lines := make(model.MedicationLines, 0, len(req.Lines))
	for _, l := range req.Lines {
		l.Name = strings.TrimSpace(l.Name)
		l.Dose = strings.TrimSpace(l.Dose)
		lines = append(lines, l)
	}

	rx := &model.Prescription{VisitID: visitID, Lines: lines}
	if err := s.store.Prescriptions.Upsert(ctx, rx); err != nil {
		return nil, notFound("visit", err)
	}
	return rx, nil
}

func (s *Service) GetPrescription(ctx context.Context, visitID uuid.UUID) (*model.Prescription, error) {
	rx, err := s.store.Prescriptions.GetByVisit(ctx, visitID)
	if err != nil {
		return nil, notFound("prescription", err)
	}
	return rx, nil
}

// Finish sends the visit to payment and then saves any notes sent with the
// request. A stale From fails before anything is written.
func (s *Service) Finish(ctx context.Context, visitID uuid.UUID, req *model.FinishExamRequest, actor model.Actor) (*model.Visit, error) {
	if err := requireDoctor(actor); err != nil {
		return nil, err
	}
	visit, err := s.openVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if err := checkClaim(visit, actor); err != nil {
		return nil, err
	}

	visit, err = s.lifecycle.Transition(ctx, lifecycle.TransitionRequest{
		VisitID: visitID,
		From:    req.From,
		To:      model.StatusReadyForPayment,
		Actor:   actor,
	})
	if err != nil || (req.Reason == nil && req.Conclusion == nil) {
		return visit, err
	}
	return s.writeNotes(ctx, visitID, req.Reason, req.Conclusion, actor)
}

// ActiveSession lists the visits this doctor is examining right now, so a
// reloaded screen can pick up where it left off.
func (s *Service) ActiveSession(ctx context.Context, actor model.Actor) ([]*model.Visit, error) {
	if err := requireDoctor(actor); err != nil {
		return nil, err
	}
	visits, err := s.store.Visits.ListByDoctor(ctx, actor.ID, model.StatusExaming)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if visits == nil {
		visits = []*model.Visit{}
	}
	return visits, nil
}

func (s *Service) PrintDocument(ctx context.Context, visitID uuid.UUID) (*PrescriptionDocument, error) {
	detail, err := s.Detail(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if detail.Prescription == nil {
		return nil, errors.NotFound("prescription", nil)
	}

	meds, err := s.store.Medications.List(ctx, false)
	if err != nil {
		return nil, errors.Internal(fmt.Errorf("failed to load medications: %w", err))
	}
	units := make(map[string]string, len(meds))
	for _, m := range meds {
		units[strings.ToLower(m.Name)] = m.Unit
	}

	doc := &PrescriptionDocument{
		Visit:      detail.Visit,
		Patient:    detail.Patient,
		PrintedAt:  s.now(),
		DoctorName: detail.Visit.DoctorName,
		Lines:      make([]DocumentLine, 0, len(detail.Prescription.Lines)),
	}
	for _, l := range detail.Prescription.Lines {
		doc.Lines = append(doc.Lines, DocumentLine{MedicationLine: l, Unit: units[strings.ToLower(l.Name)]})
	}
	return doc, nil
}

func (s *Service) openVisit(ctx context.Context, visitID uuid.UUID) (*model.Visit, error) {
	visit, err := s.store.Visits.Get(ctx, visitID)
	if err != nil {
		return nil, notFound("visit", err)
	}
	if !visit.Status.IsOpen() {
		return nil, errors.Validation(fmt.Sprintf("visit is %s", visit.Status), nil)
	}
	return visit, nil
}

// checkClaim refuses a doctor who is not the one examining the visit.
func checkClaim(visit *model.Visit, actor model.Actor) error {
	if visit.Status != model.StatusExaming || visit.DoctorBy == nil || *visit.DoctorBy == actor.ID {
		return nil
	}
	return errors.ConcurrentModification(fmt.Sprintf("visit is being examined by %s", visit.DoctorName), visit)
}

func requireDoctor(actor model.Actor) error {
	if actor.IsZero() {
		return errors.Validation("actor is required", nil)
	}
	if actor.Role != model.RoleDoctor {
		return errors.Forbidden("only doctors may examine")
	}
	return nil
}

func trim(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func notFound(resource string, err error) error {
	if stderrors.Is(err, repository.ErrNotFound) {
		return errors.NotFound(resource, err)
	}
	return errors.Internal(err)
}
