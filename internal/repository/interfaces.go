package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-flow/internal/model"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrStatusConflict means a conditional write found the record in a
	// different state than the caller expected.
	ErrStatusConflict = errors.New("status conflict")
	// ErrActiveVisitExists means the patient already has an open visit
	ErrActiveVisitExists = errors.New("patient has an open visit")
	ErrDuplicateName     = errors.New("name already exists")
)

// StatusChange is one guarded visit status write together with everything
// that must commit with it.
type StatusChange struct {
	VisitID uuid.UUID
	From    model.VisitStatus
	To      model.VisitStatus
	Actor   model.Actor
	At      time.Time

	// StampDoctor records the actor as attending doctor
	StampDoctor bool
	TotalAmount *int64
	Reason      *string
	NewOrders   []*model.ServiceOrder
}

// All repository interfaces in one file
type (
	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		// Delete removes the patient with every visit, order, prescription
		// and transition that belongs to it.
		Delete(ctx context.Context, id uuid.UUID, event *model.OutboxEvent) error
		Search(ctx context.Context, term string, limit int) ([]*model.Patient, error)
	}

	VisitRepository interface {
		// Create inserts a visit, failing with ErrActiveVisitExists when the
		// patient already has an open one.
		Create(ctx context.Context, visit *model.Visit, event *model.OutboxEvent) error
		// CreateWithPatient inserts a new patient and their first visit in one
		// write. Neither is stored if either insert fails.
		CreateWithPatient(ctx context.Context, patient *model.Patient, visit *model.Visit, event *model.OutboxEvent) error
		Get(ctx context.Context, id uuid.UUID) (*model.Visit, error)
		FindOpenByPatient(ctx context.Context, patientID uuid.UUID) (*model.Visit, error)
		ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*model.Visit, error)
		ListByDoctor(ctx context.Context, doctorID uuid.UUID, status model.VisitStatus) ([]*model.Visit, error)
		// UpdateNotes writes the non-nil notes. doctor is stamped only when the
		// visit has no attending doctor yet.
		UpdateNotes(ctx context.Context, id uuid.UUID, reason, conclusion *string, doctor *model.Actor) (*model.Visit, error)
		SetPriority(ctx context.Context, id uuid.UUID, priority bool) (*model.Visit, error)
		// ApplyStatusChange performs the guarded update. On ErrStatusConflict
		// the returned visit is the current record.
		ApplyStatusChange(ctx context.Context, change StatusChange, event *model.OutboxEvent) (*model.Visit, error)
		ListTransitions(ctx context.Context, visitID uuid.UUID) ([]*model.VisitTransition, error)
	}

	ServiceOrderRepository interface {
		Get(ctx context.Context, id uuid.UUID) (*model.ServiceOrder, error)
		ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*model.ServiceOrder, error)
		// Resolve moves a Pending order to its terminal status, returning
		// ErrStatusConflict with the current order when it is no longer
		// Pending.
		Resolve(ctx context.Context, res model.ServiceResolution) (*model.ServiceOrder, error)
		CountPending(ctx context.Context, visitID uuid.UUID) (int, error)
	}

	PrescriptionRepository interface {
		GetByVisit(ctx context.Context, visitID uuid.UUID) (*model.Prescription, error)
		Upsert(ctx context.Context, p *model.Prescription) error
	}

	StaffRepository interface {
		Create(ctx context.Context, staff *model.Staff) error
		Get(ctx context.Context, id uuid.UUID) (*model.Staff, error)
		Update(ctx context.Context, staff *model.Staff) error
		List(ctx context.Context, activeOnly bool) ([]*model.Staff, error)
	}

	CatalogRepository interface {
		Create(ctx context.Context, entry *model.CatalogEntry) error
		Get(ctx context.Context, id uuid.UUID) (*model.CatalogEntry, error)
		Update(ctx context.Context, entry *model.CatalogEntry) error
		List(ctx context.Context, activeOnly bool) ([]*model.CatalogEntry, error)
	}

	MedicationRepository interface {
		Create(ctx context.Context, med *model.Medication) error
		Get(ctx context.Context, id uuid.UUID) (*model.Medication, error)
		Update(ctx context.Context, med *model.Medication) error
		List(ctx context.Context, activeOnly bool) ([]*model.Medication, error)
	}

	QueueRepository interface {
		// Snapshot reads visits, their patients and orders in one consistent
		// read, ordered priority first then oldest first.
		Snapshot(ctx context.Context, filter model.QueueFilter) ([]*model.QueueEntry, error)
	}

	OutboxRepository interface {
		GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkRetry(ctx context.Context, id uuid.UUID, errorMessage string, retryAt time.Time) error
		MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)

// Store groups every repository behind one backend
type Store struct {
	Patients      PatientRepository
	Visits        VisitRepository
	ServiceOrders ServiceOrderRepository
	Prescriptions PrescriptionRepository
	Staff         StaffRepository
	Catalog       CatalogRepository
	Medications   MedicationRepository
	Queues        QueueRepository
	Outbox        OutboxRepository
	Ping          func(ctx context.Context) error
}
