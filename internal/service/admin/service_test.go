package admin

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository/memory"
	"github.com/jwalitptl/clinic-flow/pkg/errors"
	"github.com/jwalitptl/clinic-flow/pkg/security"
)

type recordingRoster struct {
	invalidated []uuid.UUID
}

func (r *recordingRoster) Invalidate(id uuid.UUID) {
	r.invalidated = append(r.invalidated, id)
}

func setup() (*Service, *recordingRoster) {
	roster := &recordingRoster{}
	return NewService(memory.NewStore(), security.NewBcryptHasher(4), roster), roster
}

func TestStaffLifecycle(t *testing.T) {
	svc, roster := setup()
	ctx := context.Background()

	staff, err := svc.CreateStaff(ctx, &model.CreateStaffRequest{Name: " Dr. Tran ", Role: model.RoleDoctor, PIN: "1234"})
	require.NoError(t, err)
	assert.Equal(t, "Dr. Tran", staff.Name)
	assert.True(t, staff.IsActive)
	assert.NotEqual(t, "1234", staff.PINHash)
	assert.NoError(t, security.NewBcryptHasher(4).Compare(staff.PINHash, "1234"))

	toggled, err := svc.ToggleStaff(ctx, staff.ID)
	require.NoError(t, err)
	assert.False(t, toggled.IsActive)
	assert.Contains(t, roster.invalidated, staff.ID)

	active, err := svc.ListStaff(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.ListStaff(ctx, false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStaffValidation(t *testing.T) {
	svc, _ := setup()
	ctx := context.Background()

	_, err := svc.CreateStaff(ctx, &model.CreateStaffRequest{Name: "A", Role: "Janitor"})
	assert.True(t, errors.Is(err, errors.KindValidation))

	_, err = svc.CreateStaff(ctx, &model.CreateStaffRequest{Name: "A", Role: model.RoleTechnician, PIN: "12"})
	assert.True(t, errors.Is(err, errors.KindValidation))

	_, err = svc.UpdateStaff(ctx, uuid.New(), &model.UpdateStaffRequest{})
	assert.True(t, errors.Is(err, errors.KindNotFound))
}

func TestCatalogDuplicateNames(t *testing.T) {
	svc, _ := setup()
	ctx := context.Background()

	xray, err := svc.CreateCatalogEntry(ctx, &model.CreateCatalogEntryRequest{Name: "X-Ray", Price: 200000})
	require.NoError(t, err)

	_, err = svc.CreateCatalogEntry(ctx, &model.CreateCatalogEntryRequest{Name: "x-ray", Price: 1})
	assert.True(t, errors.Is(err, errors.KindValidation))

	price := int64(220000)
	inactive := false
	updated, err := svc.UpdateCatalogEntry(ctx, xray.ID, &model.UpdateCatalogEntryRequest{Price: &price, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, price, updated.Price)

	active, err := svc.ListCatalog(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestMedicationPrice(t *testing.T) {
	svc, _ := setup()
	ctx := context.Background()
	price := int64(2000)

	med, err := svc.CreateMedication(ctx, &model.CreateMedicationRequest{Name: "Paracetamol", Unit: "tablet", Price: &price})
	require.NoError(t, err)
	require.NotNil(t, med.Price)

	updated, err := svc.UpdateMedication(ctx, med.ID, &model.UpdateMedicationRequest{ClearPrice: true})
	require.NoError(t, err)
	assert.Nil(t, updated.Price)

	meds, err := svc.ListMedications(ctx, false)
	require.NoError(t, err)
	require.Len(t, meds, 1)
	assert.Nil(t, meds[0].Price)
}
