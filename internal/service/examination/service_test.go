package examination

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository"
	"github.com/jwalitptl/clinic-flow/internal/repository/memory"
	"github.com/jwalitptl/clinic-flow/internal/service/lifecycle"
	"github.com/jwalitptl/clinic-flow/pkg/errors"
	"github.com/jwalitptl/clinic-flow/pkg/metrics"
)

var (
	doctor       = model.Actor{ID: uuid.New(), Name: "Dr. Tran", Role: model.RoleDoctor}
	receptionist = model.Actor{ID: uuid.New(), Name: "Mai", Role: model.RoleReceptionist}
)

func setup(t *testing.T, status model.VisitStatus) (*Service, *repository.Store, *model.Visit) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	p := &model.Patient{FullName: "Dang Van G"}
	require.NoError(t, store.Patients.Create(ctx, p))
	v := &model.Visit{PatientID: p.ID, Status: status}
	require.NoError(t, store.Visits.Create(ctx, v, nil))
	return NewService(store, lifecycle.NewService(store.Visits, metrics.New("test"))), store, v
}

func strPtr(s string) *string { return &s }

func TestSaveNotesStampsDoctor(t *testing.T) {
	svc, _, v := setup(t, model.StatusExaming)

	visit, err := svc.SaveNotes(context.Background(), v.ID, &model.ExamNotesRequest{
		Reason:     strPtr(" headache "),
		Conclusion: strPtr("migraine"),
	}, doctor)
	require.NoError(t, err)
	assert.Equal(t, "headache", visit.Reason)
	assert.Equal(t, "migraine", visit.Conclusion)
	require.NotNil(t, visit.DoctorBy)
	assert.Equal(t, doctor.ID, *visit.DoctorBy)

	_, err = svc.SaveNotes(context.Background(), v.ID, &model.ExamNotesRequest{}, receptionist)
	assert.True(t, errors.Is(err, errors.KindForbidden))
}

func TestSaveNotesOnClosedVisit(t *testing.T) {
	svc, _, v := setup(t, model.StatusDone)
	_, err := svc.SaveNotes(context.Background(), v.ID, &model.ExamNotesRequest{Reason: strPtr("x")}, doctor)
	assert.True(t, errors.Is(err, errors.KindValidation))
}

func TestSavePrescriptionUpserts(t *testing.T) {
	svc, _, v := setup(t, model.StatusExaming)
	ctx := context.Background()

	first, err := svc.SavePrescription(ctx, v.ID, &model.SavePrescriptionRequest{Lines: []model.MedicationLine{
		{Name: "Paracetamol", Dose: "500mg x3", Quantity: 10},
	}}, doctor)
	require.NoError(t, err)

	second, err := svc.SavePrescription(ctx, v.ID, &model.SavePrescriptionRequest{Lines: []model.MedicationLine{
		{Name: "Ibuprofen", Dose: "200mg x2", Quantity: 6},
		{Name: "Vitamin C", Quantity: 20},
	}}, doctor)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	rx, err := svc.GetPrescription(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, rx.Lines, 2)
	assert.Equal(t, "Ibuprofen", rx.Lines[0].Name)
}

func TestSavePrescriptionValidatesLines(t *testing.T) {
	svc, _, v := setup(t, model.StatusExaming)
	_, err := svc.SavePrescription(context.Background(), v.ID, &model.SavePrescriptionRequest{Lines: []model.MedicationLine{
		{Name: "", Quantity: -2},
	}}, doctor)
	require.True(t, errors.Is(err, errors.KindValidation))

	_, err = svc.GetPrescription(context.Background(), v.ID)
	assert.True(t, errors.Is(err, errors.KindNotFound))
}

func TestFinishMovesToPaymentWithNotes(t *testing.T) {
	svc, store, v := setup(t, model.StatusExaming)

	visit, err := svc.Finish(context.Background(), v.ID, &model.FinishExamRequest{
		From:       model.StatusExaming,
		Conclusion: strPtr("recovered"),
	}, doctor)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReadyForPayment, visit.Status)

	stored, err := store.Visits.Get(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, "recovered", stored.Conclusion)
}

func TestFinishWithStaleStatus(t *testing.T) {
	svc, store, v := setup(t, model.StatusReturnToDoctor)
	_, err := svc.Finish(context.Background(), v.ID, &model.FinishExamRequest{
		From:       model.StatusExaming,
		Conclusion: strPtr("stale screen"),
	}, doctor)
	assert.True(t, errors.Is(err, errors.KindConcurrentModification))

	stored, err := store.Visits.Get(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReturnToDoctor, stored.Status)
	assert.Empty(t, stored.Conclusion)
}

func TestOtherDoctorCannotTakeOverExam(t *testing.T) {
	ctx := context.Background()
	svc, store, v := setup(t, model.StatusWaitingForExam)
	lc := lifecycle.NewService(store.Visits, metrics.New("test"))
	other := model.Actor{ID: uuid.New(), Name: "Dr. Le", Role: model.RoleDoctor}

	_, err := lc.Transition(ctx, lifecycle.TransitionRequest{
		VisitID: v.ID, From: model.StatusWaitingForExam, To: model.StatusExaming, Actor: doctor,
	})
	require.NoError(t, err)
	_, err = lc.Transition(ctx, lifecycle.TransitionRequest{
		VisitID: v.ID, From: model.StatusWaitingForExam, To: model.StatusExaming, Actor: other,
	})
	require.True(t, errors.Is(err, errors.KindConcurrentModification))

	_, err = svc.SaveNotes(ctx, v.ID, &model.ExamNotesRequest{Reason: strPtr("cough")}, other)
	assert.True(t, errors.Is(err, errors.KindConcurrentModification))
	appErr, _ := errors.As(err)
	current, ok := appErr.Details.(*model.Visit)
	require.True(t, ok)
	assert.Equal(t, doctor.ID, *current.DoctorBy)

	_, err = svc.SavePrescription(ctx, v.ID, &model.SavePrescriptionRequest{Lines: []model.MedicationLine{
		{Name: "Paracetamol", Quantity: 10},
	}}, other)
	assert.True(t, errors.Is(err, errors.KindConcurrentModification))

	_, err = svc.Finish(ctx, v.ID, &model.FinishExamRequest{From: model.StatusExaming}, other)
	assert.True(t, errors.Is(err, errors.KindConcurrentModification))

	stored, err := store.Visits.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExaming, stored.Status)
	assert.Equal(t, doctor.ID, *stored.DoctorBy)
	assert.Empty(t, stored.Reason)

	active, err := svc.ActiveSession(ctx, doctor)
	require.NoError(t, err)
	assert.Len(t, active, 1)
	active, err = svc.ActiveSession(ctx, other)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestSaveNotesKeepsAttendingDoctor(t *testing.T) {
	ctx := context.Background()
	svc, store, v := setup(t, model.StatusWaitingForExam)
	lc := lifecycle.NewService(store.Visits, metrics.New("test"))
	other := model.Actor{ID: uuid.New(), Name: "Dr. Le", Role: model.RoleDoctor}

	_, err := lc.Transition(ctx, lifecycle.TransitionRequest{
		VisitID: v.ID, From: model.StatusWaitingForExam, To: model.StatusExaming, Actor: doctor,
	})
	require.NoError(t, err)
	_, err = svc.Finish(ctx, v.ID, &model.FinishExamRequest{From: model.StatusExaming}, doctor)
	require.NoError(t, err)

	// once out of the exam room any doctor may amend the notes
	visit, err := svc.SaveNotes(ctx, v.ID, &model.ExamNotesRequest{Conclusion: strPtr("flu")}, other)
	require.NoError(t, err)
	assert.Equal(t, "flu", visit.Conclusion)
	assert.Equal(t, doctor.ID, *visit.DoctorBy)
	assert.Equal(t, doctor.Name, visit.DoctorName)
}

func TestActiveSession(t *testing.T) {
	svc, store, v := setup(t, model.StatusWaitingForExam)
	lc := lifecycle.NewService(store.Visits, metrics.New("test"))
	_, err := lc.Transition(context.Background(), lifecycle.TransitionRequest{
		VisitID: v.ID, From: model.StatusWaitingForExam, To: model.StatusExaming, Actor: doctor,
	})
	require.NoError(t, err)

	active, err := svc.ActiveSession(context.Background(), doctor)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, v.ID, active[0].ID)

	other := model.Actor{ID: uuid.New(), Name: "Dr. Le", Role: model.RoleDoctor}
	active, err = svc.ActiveSession(context.Background(), other)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestPrintDocument(t *testing.T) {
	svc, store, v := setup(t, model.StatusExaming)
	ctx := context.Background()
	require.NoError(t, store.Medications.Create(ctx, &model.Medication{Name: "Paracetamol", Unit: "tablet", IsActive: true}))

	_, err := svc.PrintDocument(ctx, v.ID)
	assert.True(t, errors.Is(err, errors.KindNotFound))

	_, err = svc.SavePrescription(ctx, v.ID, &model.SavePrescriptionRequest{Lines: []model.MedicationLine{
		{Name: "paracetamol", Dose: "500mg", Quantity: 10},
	}}, doctor)
	require.NoError(t, err)

	doc, err := svc.PrintDocument(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dang Van G", doc.Patient.FullName)
	require.Len(t, doc.Lines, 1)
	assert.Equal(t, "tablet", doc.Lines[0].Unit)
}
