package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository"
)

func seedVisit(t *testing.T, store *repository.Store, status model.VisitStatus) (*model.Patient, *model.Visit) {
	t.Helper()
	ctx := context.Background()
	p := &model.Patient{FullName: "Nguyen Van A", NationalID: "079123"}
	require.NoError(t, store.Patients.Create(ctx, p))
	v := &model.Visit{PatientID: p.ID, Status: status}
	require.NoError(t, store.Visits.Create(ctx, v, nil))
	return p, v
}

func TestApplyStatusChangeIsConditional(t *testing.T) {
	store := NewStore()
	_, v := seedVisit(t, store, model.StatusWaitingForExam)
	doctor := model.Actor{ID: uuid.New(), Name: "Dr. Tran", Role: model.RoleDoctor}

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Visits.ApplyStatusChange(context.Background(), repository.StatusChange{
				VisitID:     v.ID,
				From:        model.StatusWaitingForExam,
				To:          model.StatusExaming,
				Actor:       doctor,
				StampDoctor: true,
			}, nil)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var ok, conflict int
	for err := range results {
		switch err {
		case nil:
			ok++
		case repository.ErrStatusConflict:
			conflict++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflict)

	got, err := store.Visits.Get(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExaming, got.Status)
	require.NotNil(t, got.DoctorBy)
	assert.Equal(t, doctor.ID, *got.DoctorBy)

	history, err := store.Visits.ListTransitions(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestVisitCreateRejectsSecondOpenVisit(t *testing.T) {
	store := NewStore()
	p, _ := seedVisit(t, store, model.StatusExaming)

	err := store.Visits.Create(context.Background(), &model.Visit{PatientID: p.ID, Status: model.StatusWaitingForExam}, nil)
	assert.ErrorIs(t, err, repository.ErrActiveVisitExists)
}

func TestCreateWithPatientStoresBoth(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	p := &model.Patient{FullName: "Vo Thi F"}
	v := &model.Visit{Status: model.StatusWaitingForExam}
	event, err := model.NewOutboxEvent(model.EventVisitOpened, map[string]string{"visit": "new"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, store.Visits.CreateWithPatient(ctx, p, v, event))

	got, err := store.Patients.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Vo Thi F", got.FullName)

	open, err := store.Visits.FindOpenByPatient(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, open.ID)

	events, err := store.Outbox.GetPendingEventsWithLock(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestPatientDeleteCascades(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	p, v := seedVisit(t, store, model.StatusExaming)

	order := &model.ServiceOrder{Base: model.NewBase(time.Now()), VisitID: v.ID, ServiceType: "X-Ray", Status: model.ServicePending}
	_, err := store.Visits.ApplyStatusChange(ctx, repository.StatusChange{
		VisitID:   v.ID,
		From:      model.StatusExaming,
		To:        model.StatusWaitingForService,
		Actor:     model.Actor{ID: uuid.New(), Role: model.RoleDoctor},
		NewOrders: []*model.ServiceOrder{order},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, store.Prescriptions.Upsert(ctx, &model.Prescription{VisitID: v.ID}))

	require.NoError(t, store.Patients.Delete(ctx, p.ID, nil))

	_, err = store.Visits.Get(ctx, v.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = store.ServiceOrders.Get(ctx, order.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = store.Prescriptions.GetByVisit(ctx, v.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	history, _ := store.Visits.ListTransitions(ctx, v.ID)
	assert.Empty(t, history)
}

func TestSnapshotOrdersPriorityFirst(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		p := &model.Patient{FullName: "P"}
		require.NoError(t, store.Patients.Create(ctx, p))
		v := &model.Visit{
			Base:      model.NewBase(time.Now().Add(time.Duration(i) * time.Minute)),
			PatientID: p.ID,
			Status:    model.StatusWaitingForExam,
		}
		require.NoError(t, store.Visits.Create(ctx, v, nil))
		ids = append(ids, v.ID)
	}
	_, err := store.Visits.SetPriority(ctx, ids[2], true)
	require.NoError(t, err)

	entries, err := store.Queues.Snapshot(ctx, model.QueueFilter{Status: model.StatusWaitingForExam})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, ids[2], entries[0].Visit.ID)
	assert.Equal(t, ids[0], entries[1].Visit.ID)
	assert.Equal(t, ids[1], entries[2].Visit.ID)
	assert.NotNil(t, entries[0].Patient)
}

func TestResolveOnlyPending(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	_, v := seedVisit(t, store, model.StatusExaming)
	order := &model.ServiceOrder{Base: model.NewBase(time.Now()), VisitID: v.ID, ServiceType: "ECG", Status: model.ServicePending}
	_, err := store.Visits.ApplyStatusChange(ctx, repository.StatusChange{
		VisitID: v.ID, From: model.StatusExaming, To: model.StatusWaitingForService,
		Actor: model.Actor{ID: uuid.New(), Role: model.RoleDoctor}, NewOrders: []*model.ServiceOrder{order},
	}, nil)
	require.NoError(t, err)

	tech := model.Actor{ID: uuid.New(), Name: "Tech", Role: model.RoleTechnician}
	_, err = store.ServiceOrders.Resolve(ctx, model.ServiceResolution{ID: order.ID, Status: model.ServiceSkipped, Tech: tech})
	require.NoError(t, err)

	current, err := store.ServiceOrders.Resolve(ctx, model.ServiceResolution{ID: order.ID, Status: model.ServiceCompleted, Tech: tech})
	assert.ErrorIs(t, err, repository.ErrStatusConflict)
	assert.Equal(t, model.ServiceSkipped, current.Status)

	n, err := store.ServiceOrders.CountPending(ctx, v.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}
