package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository"
	"github.com/jwalitptl/clinic-flow/internal/repository/memory"
	"github.com/jwalitptl/clinic-flow/pkg/errors"
)

func addVisit(t *testing.T, store *repository.Store, name string, status model.VisitStatus, at time.Time, priority bool) *model.Visit {
	t.Helper()
	ctx := context.Background()
	p := &model.Patient{FullName: name}
	require.NoError(t, store.Patients.Create(ctx, p))
	v := &model.Visit{Base: model.NewBase(at), PatientID: p.ID, Status: status, IsPriority: priority}
	require.NoError(t, store.Visits.Create(ctx, v, nil))
	return v
}

func TestListOrdersPriorityFirst(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store.Queues, 0)
	start := time.Now().Add(-time.Hour)

	first := addVisit(t, store, "A", model.StatusWaitingForExam, start, false)
	second := addVisit(t, store, "B", model.StatusWaitingForExam, start.Add(time.Minute), false)
	urgent := addVisit(t, store, "C", model.StatusWaitingForExam, start.Add(2*time.Minute), true)
	addVisit(t, store, "D", model.StatusExaming, start, false)

	q, err := svc.List(context.Background(), model.QueueFilter{Status: model.StatusWaitingForExam})
	require.NoError(t, err)
	assert.Equal(t, 5, q.PollIntervalSeconds)
	require.Len(t, q.Entries, 3)
	assert.Equal(t, urgent.ID, q.Entries[0].Visit.ID)
	assert.Equal(t, first.ID, q.Entries[1].Visit.ID)
	assert.Equal(t, second.ID, q.Entries[2].Visit.ID)
	assert.Equal(t, "C", q.Entries[0].Patient.FullName)
}

func TestListFilters(t *testing.T) {
	store := memory.NewStore()
	svc := NewService(store.Queues, 2*time.Second)
	ctx := context.Background()
	now := time.Now()

	xray := addVisit(t, store, "A", model.StatusWaitingForService, now, false)
	echo := addVisit(t, store, "B", model.StatusWaitingForService, now.Add(time.Second), false)
	for _, o := range []struct {
		visit *model.Visit
		kind  string
	}{{xray, "X-Ray"}, {echo, "Ultrasound"}} {
		_, err := store.Visits.ApplyStatusChange(ctx, repository.StatusChange{
			VisitID: o.visit.ID, From: model.StatusWaitingForService, To: model.StatusWaitingForService,
			Actor: model.Actor{ID: uuid.New(), Role: model.RoleDoctor},
			NewOrders: []*model.ServiceOrder{{
				Base: model.NewBase(now), VisitID: o.visit.ID, ServiceType: o.kind, Status: model.ServicePending,
			}},
		}, nil)
		require.NoError(t, err)
	}

	q, err := svc.List(ctx, model.QueueFilter{Status: model.StatusWaitingForService, ServiceType: "X-Ray"})
	require.NoError(t, err)
	require.Len(t, q.Entries, 1)
	assert.Equal(t, xray.ID, q.Entries[0].Visit.ID)
	assert.Len(t, q.Entries[0].Services, 1)
	assert.Equal(t, 2, q.PollIntervalSeconds)

	doctorID := uuid.New()
	q, err = svc.List(ctx, model.QueueFilter{Status: model.StatusWaitingForService, DoctorID: &doctorID})
	require.NoError(t, err)
	assert.Empty(t, q.Entries)
}

func TestListUnknownStatus(t *testing.T) {
	svc := NewService(memory.NewStore().Queues, 0)
	_, err := svc.List(context.Background(), model.QueueFilter{Status: "Sleeping"})
	assert.True(t, errors.Is(err, errors.KindValidation))
}
