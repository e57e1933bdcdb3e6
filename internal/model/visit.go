package model

import (
	"time"

	"github.com/google/uuid"
)

type VisitStatus string

const (
	StatusWaitingForExam    VisitStatus = "WaitingForExam"
	StatusExaming           VisitStatus = "Examing"
	StatusWaitingForService VisitStatus = "WaitingForService"
	StatusReturnToDoctor    VisitStatus = "ReturnToDoctor"
	StatusReadyForPayment   VisitStatus = "ReadyForPayment"
	StatusDone              VisitStatus = "Done"
	StatusMissed            VisitStatus = "Missed"
)

var AllStatuses = []VisitStatus{
	StatusWaitingForExam,
	StatusExaming,
	StatusWaitingForService,
	StatusReturnToDoctor,
	StatusReadyForPayment,
	StatusDone,
	StatusMissed,
}

func (s VisitStatus) Valid() bool {
	for _, v := range AllStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsOpen reports whether a visit in this status still occupies the patient.
// Done and Missed are closed; Missed may be restored.
func (s VisitStatus) IsOpen() bool {
	return s.Valid() && s != StatusDone && s != StatusMissed
}

// ClosedStatuses lists the statuses that do not count as an open visit
var ClosedStatuses = []VisitStatus{StatusDone, StatusMissed}

type Visit struct {
	Base
	PatientID     uuid.UUID   `db:"patient_id" json:"patient_id"`
	Status        VisitStatus `db:"status" json:"status"`
	ReceptionBy   uuid.UUID   `db:"reception_by" json:"reception_by"`
	ReceptionName string      `db:"reception_name" json:"reception_name"`
	DoctorBy      *uuid.UUID  `db:"doctor_by" json:"doctor_by,omitempty"`
	DoctorName    string      `db:"doctor_name" json:"doctor_name,omitempty"`
	Reason        string      `db:"reason" json:"reason"`
	Conclusion    string      `db:"conclusion" json:"conclusion"`
	TotalAmount   *int64      `db:"total_amount" json:"total_amount,omitempty"`
	IsPriority    bool        `db:"is_priority" json:"is_priority"`
}

// VisitTransition is one append-only audit entry
type VisitTransition struct {
	ID         uuid.UUID   `db:"id" json:"id"`
	VisitID    uuid.UUID   `db:"visit_id" json:"visit_id"`
	FromStatus VisitStatus `db:"from_status" json:"from_status"`
	ToStatus   VisitStatus `db:"to_status" json:"to_status"`
	ActorID    uuid.UUID   `db:"actor_id" json:"actor_id"`
	ActorName  string      `db:"actor_name" json:"actor_name"`
	ActorRole  Role        `db:"actor_role" json:"actor_role"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}

type OpenVisitRequest struct {
	PatientID  uuid.UUID `json:"patient_id" binding:"required"`
	Reason     string    `json:"reason" binding:"max=2000"`
	IsPriority bool      `json:"is_priority"`
}

type RegisterPatientRequest struct {
	Patient    CreatePatientRequest `json:"patient" binding:"required"`
	Reason     string               `json:"reason" binding:"max=2000"`
	IsPriority bool                 `json:"is_priority"`
}

type TransitionRequestBody struct {
	From VisitStatus `json:"from" binding:"required"`
	To   VisitStatus `json:"to" binding:"required"`
}

type PriorityRequest struct {
	IsPriority bool `json:"is_priority"`
}

type ExamNotesRequest struct {
	Reason     *string `json:"reason" binding:"omitempty,max=2000"`
	Conclusion *string `json:"conclusion" binding:"omitempty,max=4000"`
}

type FinishExamRequest struct {
	From       VisitStatus `json:"from" binding:"required"`
	Reason     *string     `json:"reason" binding:"omitempty,max=2000"`
	Conclusion *string     `json:"conclusion" binding:"omitempty,max=4000"`
}

// VisitDetail bundles a visit with everything a screen shows next to it
type VisitDetail struct {
	Visit        *Visit          `json:"visit"`
	Patient      *Patient        `json:"patient"`
	Services     []*ServiceOrder `json:"services"`
	Prescription *Prescription   `json:"prescription,omitempty"`
}
