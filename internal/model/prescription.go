package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// MedicationLine is one prescribed item
type MedicationLine struct {
	Name     string `json:"name" validate:"required,max=200"`
	Dose     string `json:"dose" validate:"max=500"`
	Quantity int    `json:"quantity" validate:"gte=0"`
}

// MedicationLines is stored as a JSONB array
type MedicationLines []MedicationLine

func (l MedicationLines) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func (l *MedicationLines) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = MedicationLines{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into MedicationLines", src)
	}
	return json.Unmarshal(data, l)
}

type Prescription struct {
	Base
	VisitID uuid.UUID       `db:"visit_id" json:"visit_id"`
	Lines   MedicationLines `db:"lines" json:"lines"`
}

type SavePrescriptionRequest struct {
	Lines []MedicationLine `json:"lines" validate:"dive"`
}
