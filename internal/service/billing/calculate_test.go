package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-flow/internal/model"
)

func price(v int64) *int64 { return &v }

func catalog() []*model.CatalogEntry {
	return []*model.CatalogEntry{
		{Name: "Consultation", Price: 100000},
		{Name: "X-Ray", Price: 200000},
		{Name: "Ultrasound", Price: 150000},
	}
}

func TestCalculateConsultationOnly(t *testing.T) {
	bill := Calculate(Input{Catalog: catalog(), ConsultationService: "Consultation", FallbackFee: 50000})
	require.Len(t, bill.Items, 1)
	assert.Equal(t, int64(100000), bill.Items[0].LineTotal)
	assert.Equal(t, int64(100000), bill.Total)
}

func TestCalculateFallbackFee(t *testing.T) {
	bill := Calculate(Input{ConsultationService: "Consultation", FallbackFee: 50000})
	assert.Equal(t, int64(50000), bill.Total)
	assert.Equal(t, "Consultation", bill.Items[0].Name)
}

func TestCalculateServicesAndMedications(t *testing.T) {
	bill := Calculate(Input{
		Catalog:             catalog(),
		ConsultationService: "Consultation",
		FallbackFee:         50000,
		Orders: []*model.ServiceOrder{
			{ServiceType: "X-Ray", Status: model.ServiceCompleted},
			{ServiceType: "Ultrasound", Status: model.ServiceSkipped},
			{ServiceType: "Endoscopy", Status: model.ServiceCompleted},
		},
		Lines: []model.MedicationLine{
			{Name: "Paracetamol", Dose: "1 tab x3", Quantity: 10},
			{Name: "Herbal tea", Dose: "daily", Quantity: 2},
		},
		Medications: []*model.Medication{
			{Name: "paracetamol", Price: price(2000)},
			{Name: "Herbal tea"},
		},
	})

	require.Len(t, bill.Items, 5)
	assert.Equal(t, "X-Ray", bill.Items[1].Name)
	assert.Equal(t, int64(200000), bill.Items[1].LineTotal)
	assert.Equal(t, "Endoscopy", bill.Items[2].Name)
	assert.Zero(t, bill.Items[2].LineTotal, "unknown services price at zero")

	assert.Equal(t, int64(20000), bill.Items[3].LineTotal)
	assert.False(t, bill.Items[3].SelfProcured)
	assert.True(t, bill.Items[4].SelfProcured)
	assert.Zero(t, bill.Items[4].LineTotal)

	assert.Equal(t, int64(100000+200000+20000), bill.Total)
}

func TestCalculateZeroPricedMedicationIsSelfProcured(t *testing.T) {
	bill := Calculate(Input{
		Catalog:             catalog(),
		ConsultationService: "Consultation",
		Lines: []model.MedicationLine{
			{Name: "Vitamin C", Quantity: 20},
			{Name: "Zinc", Quantity: 5},
		},
		Medications: []*model.Medication{
			{Name: "Vitamin C", Price: price(0)},
			{Name: "Zinc", Price: price(-100)},
		},
	})

	require.Len(t, bill.Items, 3)
	for _, it := range bill.Items[1:] {
		assert.True(t, it.SelfProcured, it.Name)
		assert.Zero(t, it.UnitPrice, it.Name)
		assert.Zero(t, it.LineTotal, it.Name)
	}
	assert.Equal(t, int64(100000), bill.Total)
}

func TestCalculateIsDeterministic(t *testing.T) {
	in := Input{
		Catalog:             catalog(),
		ConsultationService: "Consultation",
		Orders:              []*model.ServiceOrder{{ServiceType: "X-Ray", Status: model.ServicePending}},
	}
	assert.Equal(t, Calculate(in), Calculate(in))
}
