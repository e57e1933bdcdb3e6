package model

import (
	"time"
)

type Patient struct {
	Base
	NationalID  string     `db:"national_id" json:"national_id"`
	FullName    string     `db:"full_name" json:"full_name"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender      string     `db:"gender" json:"gender"`
	Phone       string     `db:"phone" json:"phone"`
	Address     string     `db:"address" json:"address"`
}

type CreatePatientRequest struct {
	NationalID  string     `json:"national_id" binding:"max=32"`
	FullName    string     `json:"full_name" binding:"required,max=200"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Gender      string     `json:"gender" binding:"omitempty,oneof=Male Female Other"`
	Phone       string     `json:"phone" binding:"max=32"`
	Address     string     `json:"address" binding:"max=500"`
}

type UpdatePatientRequest struct {
	NationalID  *string    `json:"national_id" binding:"omitempty,max=32"`
	FullName    *string    `json:"full_name" binding:"omitempty,min=1,max=200"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Gender      *string    `json:"gender" binding:"omitempty,oneof=Male Female Other"`
	Phone       *string    `json:"phone" binding:"omitempty,max=32"`
	Address     *string    `json:"address" binding:"omitempty,max=500"`
}

// Apply copies the set fields of req onto p
func (req *UpdatePatientRequest) Apply(p *Patient) {
	if req.NationalID != nil {
		p.NationalID = *req.NationalID
	}
	if req.FullName != nil {
		p.FullName = *req.FullName
	}
	if req.DateOfBirth != nil {
		p.DateOfBirth = req.DateOfBirth
	}
	if req.Gender != nil {
		p.Gender = *req.Gender
	}
	if req.Phone != nil {
		p.Phone = *req.Phone
	}
	if req.Address != nil {
		p.Address = *req.Address
	}
}
