// Package memory is an in-process repository backend. Every write happens
// under one mutex, which gives the same conditional-update guarantees the
// Postgres backend gets from row locks.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository"
)

type db struct {
	mu sync.RWMutex

	patients      map[uuid.UUID]*model.Patient
	visits        map[uuid.UUID]*model.Visit
	orders        map[uuid.UUID]*model.ServiceOrder
	prescriptions map[uuid.UUID]*model.Prescription
	transitions   []*model.VisitTransition
	staff         map[uuid.UUID]*model.Staff
	catalog       map[uuid.UUID]*model.CatalogEntry
	medications   map[uuid.UUID]*model.Medication
	outbox        []*model.OutboxEvent

	now func() time.Time
}

// NewStore returns every repository backed by one shared in-memory database
func NewStore() *repository.Store {
	d := &db{
		patients:      make(map[uuid.UUID]*model.Patient),
		visits:        make(map[uuid.UUID]*model.Visit),
		orders:        make(map[uuid.UUID]*model.ServiceOrder),
		prescriptions: make(map[uuid.UUID]*model.Prescription),
		staff:         make(map[uuid.UUID]*model.Staff),
		catalog:       make(map[uuid.UUID]*model.CatalogEntry),
		medications:   make(map[uuid.UUID]*model.Medication),
		now:           time.Now,
	}
	return &repository.Store{
		Patients:      &patientRepository{d},
		Visits:        &visitRepository{d},
		ServiceOrders: &serviceOrderRepository{d},
		Prescriptions: &prescriptionRepository{d},
		Staff:         &staffRepository{d},
		Catalog:       &catalogRepository{d},
		Medications:   &medicationRepository{d},
		Queues:        &queueRepository{d},
		Outbox:        &outboxRepository{d},
		Ping:          func(context.Context) error { return nil },
	}
}

func (d *db) appendEvent(event *model.OutboxEvent) {
	if event == nil {
		return
	}
	cp := *event
	d.outbox = append(d.outbox, &cp)
}

type patientRepository struct{ *db }

func (r *patientRepository) Create(ctx context.Context, p *model.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.Base = model.NewBase(r.now())
	}
	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *patientRepository) Update(ctx context.Context, p *model.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.patients[p.ID]
	if !ok {
		return repository.ErrNotFound
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = r.now()
	cp := *p
	r.patients[p.ID] = &cp
	return nil
}

func (r *patientRepository) Delete(ctx context.Context, id uuid.UUID, event *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.patients[id]; !ok {
		return repository.ErrNotFound
	}

	visitIDs := make(map[uuid.UUID]bool)
	for vid, v := range r.visits {
		if v.PatientID == id {
			visitIDs[vid] = true
			delete(r.visits, vid)
			delete(r.prescriptions, vid)
		}
	}
	for oid, o := range r.orders {
		if visitIDs[o.VisitID] {
			delete(r.orders, oid)
		}
	}
	kept := r.transitions[:0]
	for _, t := range r.transitions {
		if !visitIDs[t.VisitID] {
			kept = append(kept, t)
		}
	}
	r.transitions = kept
	delete(r.patients, id)
	r.appendEvent(event)
	return nil
}

func (r *patientRepository) Search(ctx context.Context, term string, limit int) ([]*model.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	term = strings.ToLower(strings.TrimSpace(term))
	var out []*model.Patient
	for _, p := range r.patients {
		if term == "" ||
			strings.Contains(strings.ToLower(p.NationalID), term) ||
			strings.Contains(strings.ToLower(p.FullName), term) ||
			strings.Contains(strings.ToLower(p.Phone), term) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FullName != out[j].FullName {
			return out[i].FullName < out[j].FullName
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
