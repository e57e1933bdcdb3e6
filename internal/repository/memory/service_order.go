package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository"
)

type serviceOrderRepository struct{ *db }

func (r *serviceOrderRepository) Get(ctx context.Context, id uuid.UUID) (*model.ServiceOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *serviceOrderRepository) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*model.ServiceOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listByVisitLocked(visitID), nil
}

func (d *db) listByVisitLocked(visitID uuid.UUID) []*model.ServiceOrder {
	var out []*model.ServiceOrder
	for _, o := range d.orders {
		if o.VisitID == visitID {
			cp := *o
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ServiceType < out[j].ServiceType
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (r *serviceOrderRepository) Resolve(ctx context.Context, res model.ServiceResolution) (*model.ServiceOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[res.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if o.Status != model.ServicePending {
		cp := *o
		return &cp, repository.ErrStatusConflict
	}

	cp := *o
	cp.Status = res.Status
	cp.ResultText = res.ResultText
	cp.ImageURL = res.ImageURL
	tid := res.Tech.ID
	cp.TechBy = &tid
	cp.TechName = res.Tech.Name
	cp.UpdatedAt = r.now()
	r.orders[o.ID] = &cp

	out := cp
	return &out, nil
}

func (r *serviceOrderRepository) CountPending(ctx context.Context, visitID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, o := range r.orders {
		if o.VisitID == visitID && o.Status == model.ServicePending {
			n++
		}
	}
	return n, nil
}

type prescriptionRepository struct{ *db }

func (r *prescriptionRepository) GetByVisit(ctx context.Context, visitID uuid.UUID) (*model.Prescription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.prescriptions[visitID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	cp.Lines = append(model.MedicationLines(nil), p.Lines...)
	return &cp, nil
}

func (r *prescriptionRepository) Upsert(ctx context.Context, p *model.Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.visits[p.VisitID]; !ok {
		return repository.ErrNotFound
	}

	now := r.now()
	if existing, ok := r.prescriptions[p.VisitID]; ok {
		p.Base = existing.Base
	} else {
		p.Base = model.NewBase(now)
	}
	p.UpdatedAt = now

	cp := *p
	cp.Lines = append(model.MedicationLines(nil), p.Lines...)
	r.prescriptions[p.VisitID] = &cp
	return nil
}
