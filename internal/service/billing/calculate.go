// Package billing prices a visit from the current catalog and medication
// table. Calculate is pure; Service loads its inputs.
package billing

import (
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-flow/internal/model"
)

const DefaultConsultationFee int64 = 50000

type Input struct {
	VisitID uuid.UUID
	Orders  []*model.ServiceOrder
	Catalog []*model.CatalogEntry
	// ConsultationService names the catalog entry billed as the exam fee
	ConsultationService string
	FallbackFee         int64
	Lines               []model.MedicationLine
	Medications         []*model.Medication
}

func Calculate(in Input) model.Bill {
	prices := make(map[string]int64, len(in.Catalog))
	for _, e := range in.Catalog {
		prices[normalize(e.Name)] = e.Price
	}
	medPrices := make(map[string]*int64, len(in.Medications))
	for _, m := range in.Medications {
		medPrices[normalize(m.Name)] = m.Price
	}

	fee, ok := prices[normalize(in.ConsultationService)]
	if !ok {
		fee = in.FallbackFee
	}
	name := in.ConsultationService
	if name == "" {
		name = "Consultation"
	}

	bill := model.Bill{VisitID: in.VisitID, Items: make([]model.BillItem, 0, 1+len(in.Orders)+len(in.Lines))}
	bill.Items = append(bill.Items, model.BillItem{
		Name:      name,
		Quantity:  1,
		UnitPrice: fee,
		LineTotal: fee,
		Kind:      model.BillItemService,
	})

	for _, o := range in.Orders {
		if o.Status == model.ServiceSkipped {
			continue
		}
		price := prices[normalize(o.ServiceType)]
		bill.Items = append(bill.Items, model.BillItem{
			Name:      o.ServiceType,
			Quantity:  1,
			UnitPrice: price,
			LineTotal: price,
			Kind:      model.BillItemService,
		})
	}

	for _, l := range in.Lines {
		item := model.BillItem{Name: l.Name, Quantity: l.Quantity, Kind: model.BillItemMedication}
		// a zero price means the pharmacy does not stock it
		if price := medPrices[normalize(l.Name)]; price != nil && *price > 0 {
			item.UnitPrice = *price
			item.LineTotal = *price * int64(l.Quantity)
		} else {
			item.SelfProcured = true
		}
		bill.Items = append(bill.Items, item)
	}

	for _, it := range bill.Items {
		bill.Total += it.LineTotal
	}
	return bill
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
