package model

import (
	"github.com/google/uuid"
)

type Role string

const (
	RoleReceptionist Role = "Receptionist"
	RoleDoctor       Role = "Doctor"
	RoleTechnician   Role = "Technician"
	RoleAdmin        Role = "Admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleReceptionist, RoleDoctor, RoleTechnician, RoleAdmin:
		return true
	}
	return false
}

type Staff struct {
	Base
	Name     string `db:"name" json:"name"`
	Role     Role   `db:"role" json:"role"`
	IsActive bool   `db:"is_active" json:"is_active"`
	PINHash  string `db:"pin_hash" json:"-"`
}

// Actor returns the identity recorded against changes this staff member makes
func (s *Staff) Actor() Actor {
	return Actor{ID: s.ID, Name: s.Name, Role: s.Role}
}

// Actor is the acting staff member passed explicitly into every mutating
// operation.
type Actor struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Role Role      `json:"role"`
}

func (a Actor) IsZero() bool {
	return a.ID == uuid.Nil || a.Role == ""
}

type CreateStaffRequest struct {
	Name string `json:"name" binding:"required"`
	Role Role   `json:"role" binding:"required,oneof=Receptionist Doctor Technician Admin"`
	PIN  string `json:"pin" binding:"omitempty,min=4"`
}

type UpdateStaffRequest struct {
	Name     *string `json:"name"`
	Role     *Role   `json:"role" binding:"omitempty,oneof=Receptionist Doctor Technician Admin"`
	PIN      *string `json:"pin" binding:"omitempty,min=4"`
	IsActive *bool   `json:"is_active"`
}
