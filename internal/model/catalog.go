package model

// CatalogEntry is an orderable service type and its current price
type CatalogEntry struct {
	Base
	Name     string `db:"name" json:"name"`
	Price    int64  `db:"price" json:"price"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

type CreateCatalogEntryRequest struct {
	Name  string `json:"name" binding:"required,max=200"`
	Price int64  `json:"price" binding:"gte=0"`
}

type UpdateCatalogEntryRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=1,max=200"`
	Price    *int64  `json:"price" binding:"omitempty,gte=0"`
	IsActive *bool   `json:"is_active"`
}

// Medication is reference data for prescribing and billing. A nil Price
// means the clinic does not stock it.
type Medication struct {
	Base
	Name     string `db:"name" json:"name"`
	Unit     string `db:"unit" json:"unit"`
	Price    *int64 `db:"price" json:"price,omitempty"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

type CreateMedicationRequest struct {
	Name  string `json:"name" binding:"required,max=200"`
	Unit  string `json:"unit" binding:"max=50"`
	Price *int64 `json:"price" binding:"omitempty,gte=0"`
}

type UpdateMedicationRequest struct {
	Name       *string `json:"name" binding:"omitempty,min=1,max=200"`
	Unit       *string `json:"unit" binding:"omitempty,max=50"`
	Price      *int64  `json:"price" binding:"omitempty,gte=0"`
	ClearPrice bool    `json:"clear_price"`
	IsActive   *bool   `json:"is_active"`
}
