package audit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository"
	"github.com/jwalitptl/clinic-flow/internal/repository/memory"
	"github.com/jwalitptl/clinic-flow/pkg/errors"
)

func TestVisitHistory(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := NewService(store.Visits)

	p := &model.Patient{FullName: "Ngo Van I"}
	require.NoError(t, store.Patients.Create(ctx, p))
	v := &model.Visit{PatientID: p.ID, Status: model.StatusWaitingForExam}
	require.NoError(t, store.Visits.Create(ctx, v, nil))

	entries, err := svc.VisitHistory(ctx, v.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	doctor := model.Actor{ID: uuid.New(), Name: "Dr. Tran", Role: model.RoleDoctor}
	_, err = store.Visits.ApplyStatusChange(ctx, repository.StatusChange{
		VisitID: v.ID, From: model.StatusWaitingForExam, To: model.StatusExaming, Actor: doctor,
	}, nil)
	require.NoError(t, err)

	entries, err = svc.VisitHistory(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Dr. Tran", entries[0].ActorName)

	_, err = svc.VisitHistory(ctx, uuid.New())
	assert.True(t, errors.Is(err, errors.KindNotFound))
}
