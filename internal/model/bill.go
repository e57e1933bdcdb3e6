package model

import (
	"github.com/google/uuid"
)

type BillItemKind string

const (
	BillItemService    BillItemKind = "Service"
	BillItemMedication BillItemKind = "Medication"
)

type BillItem struct {
	Name         string       `json:"name"`
	Quantity     int          `json:"quantity"`
	UnitPrice    int64        `json:"unit_price"`
	LineTotal    int64        `json:"line_total"`
	Kind         BillItemKind `json:"kind"`
	SelfProcured bool         `json:"self_procured,omitempty"`
}

type Bill struct {
	VisitID uuid.UUID  `json:"visit_id"`
	Items   []BillItem `json:"items"`
	Total   int64      `json:"total"`
}

type PaymentRequest struct {
	ConfirmedTotal *int64 `json:"confirmed_total" binding:"required,gte=0"`
}
