package model

import (
	"time"

	"github.com/google/uuid"
)

type QueueFilter struct {
	Status      VisitStatus
	DoctorID    *uuid.UUID
	ServiceType string
}

type QueueEntry struct {
	Visit    *Visit          `json:"visit"`
	Patient  *Patient        `json:"patient"`
	Services []*ServiceOrder `json:"services"`
}

// Queue is one consistent read of a status queue
type Queue struct {
	Status              VisitStatus   `json:"status"`
	Entries             []*QueueEntry `json:"entries"`
	SnapshotAt          time.Time     `json:"snapshot_at"`
	PollIntervalSeconds int           `json:"poll_interval_seconds"`
}
