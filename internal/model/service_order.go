package model

import (
	"github.com/google/uuid"
)

type ServiceOrderStatus string

const (
	ServicePending   ServiceOrderStatus = "Pending"
	ServiceCompleted ServiceOrderStatus = "Completed"
	ServiceSkipped   ServiceOrderStatus = "Skipped"
)

type ServiceOrder struct {
	Base
	VisitID     uuid.UUID          `db:"visit_id" json:"visit_id"`
	ServiceType string             `db:"service_type" json:"service_type"`
	Status      ServiceOrderStatus `db:"status" json:"status"`
	ResultText  string             `db:"result_text" json:"result_text"`
	ImageURL    string             `db:"image_url" json:"image_url,omitempty"`
	TechBy      *uuid.UUID         `db:"tech_by" json:"tech_by,omitempty"`
	TechName    string             `db:"tech_name" json:"tech_name,omitempty"`
}

// ServiceResolution is the terminal write applied to a pending order
type ServiceResolution struct {
	ID         uuid.UUID
	Status     ServiceOrderStatus
	ResultText string
	ImageURL   string
	Tech       Actor
}

type OrderServicesRequest struct {
	ServiceTypes []string `json:"service_types" binding:"required,min=1,dive,required"`
	Reason       *string  `json:"reason" binding:"omitempty,max=2000"`
}

type CompleteServiceRequest struct {
	ResultText string `json:"result_text" binding:"max=4000"`
	// Image is a data URL or bare base64 payload
	Image    string `json:"image"`
	FileName string `json:"file_name" binding:"max=200"`
}
