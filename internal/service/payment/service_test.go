package payment

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository"
	"github.com/jwalitptl/clinic-flow/internal/repository/memory"
	"github.com/jwalitptl/clinic-flow/internal/service/billing"
	"github.com/jwalitptl/clinic-flow/internal/service/lifecycle"
	"github.com/jwalitptl/clinic-flow/pkg/errors"
	"github.com/jwalitptl/clinic-flow/pkg/metrics"
)

var receptionist = model.Actor{ID: uuid.New(), Name: "Mai", Role: model.RoleReceptionist}

func setup(t *testing.T, status model.VisitStatus) (*Service, *billing.Service, *repository.Store, *model.Visit) {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()

	consult := &model.CatalogEntry{Name: "Consultation", Price: 100000, IsActive: true}
	require.NoError(t, store.Catalog.Create(ctx, consult))
	require.NoError(t, store.Catalog.Create(ctx, &model.CatalogEntry{Name: "X-Ray", Price: 200000, IsActive: true}))
	price := int64(3000)
	require.NoError(t, store.Medications.Create(ctx, &model.Medication{Name: "Amoxicillin", Price: &price, IsActive: true}))

	p := &model.Patient{FullName: "Bui Thi H"}
	require.NoError(t, store.Patients.Create(ctx, p))
	v := &model.Visit{PatientID: p.ID, Status: status}
	require.NoError(t, store.Visits.Create(ctx, v, nil))

	orderBase := model.NewBase(v.CreatedAt)
	_, err := store.Visits.ApplyStatusChange(ctx, repository.StatusChange{
		VisitID: v.ID, From: status, To: status, Actor: receptionist,
		NewOrders: []*model.ServiceOrder{{Base: orderBase, VisitID: v.ID, ServiceType: "X-Ray", Status: model.ServiceCompleted}},
	}, nil)
	require.NoError(t, err)
	require.NoError(t, store.Prescriptions.Upsert(ctx, &model.Prescription{VisitID: v.ID, Lines: model.MedicationLines{
		{Name: "Amoxicillin", Dose: "500mg", Quantity: 10},
	}}))

	b := billing.NewService(store, billing.Config{ConsultationService: "Consultation", FallbackFee: 50000})
	return NewService(b, lifecycle.NewService(store.Visits, metrics.New("test"))), b, store, v
}

func TestQuote(t *testing.T) {
	_, b, _, v := setup(t, model.StatusReadyForPayment)

	bill, err := b.Quote(context.Background(), v.ID)
	require.NoError(t, err)
	require.Len(t, bill.Items, 3)
	assert.Equal(t, int64(100000+200000+30000), bill.Total)

	_, err = b.Quote(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, errors.KindNotFound))
}

func TestPayClosesVisit(t *testing.T) {
	svc, _, _, v := setup(t, model.StatusReadyForPayment)

	visit, bill, err := svc.Pay(context.Background(), PayRequest{VisitID: v.ID, ConfirmedTotal: 330000, Actor: receptionist})
	require.NoError(t, err)
	assert.Equal(t, model.StatusDone, visit.Status)
	require.NotNil(t, visit.TotalAmount)
	assert.Equal(t, bill.Total, *visit.TotalAmount)
}

func TestPayRejectsChangedBill(t *testing.T) {
	svc, _, store, v := setup(t, model.StatusReadyForPayment)
	ctx := context.Background()

	entries, err := store.Catalog.List(ctx, false)
	require.NoError(t, err)
	for _, e := range entries {
		if e.Name == "X-Ray" {
			e.Price = 250000
			require.NoError(t, store.Catalog.Update(ctx, e))
		}
	}

	_, _, err = svc.Pay(ctx, PayRequest{VisitID: v.ID, ConfirmedTotal: 330000, Actor: receptionist})
	require.True(t, errors.Is(err, errors.KindValidation))
	appErr, _ := errors.As(err)
	assert.Equal(t, "bill changed", appErr.Message)
	current, ok := appErr.Details.(*model.Bill)
	require.True(t, ok)
	assert.Equal(t, int64(380000), current.Total)

	stored, err := store.Visits.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReadyForPayment, stored.Status)
}

func TestPayRequiresReceptionist(t *testing.T) {
	svc, _, _, v := setup(t, model.StatusReadyForPayment)
	doctor := model.Actor{ID: uuid.New(), Name: "Dr. Tran", Role: model.RoleDoctor}

	_, _, err := svc.Pay(context.Background(), PayRequest{VisitID: v.ID, ConfirmedTotal: 330000, Actor: doctor})
	assert.True(t, errors.Is(err, errors.KindForbidden))
}

func TestPayWrongStatus(t *testing.T) {
	svc, _, _, v := setup(t, model.StatusExaming)
	_, _, err := svc.Pay(context.Background(), PayRequest{VisitID: v.ID, ConfirmedTotal: 330000, Actor: receptionist})
	assert.True(t, errors.Is(err, errors.KindConcurrentModification))
}
