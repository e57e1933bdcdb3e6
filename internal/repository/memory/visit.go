package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository"
)

type visitRepository struct{ *db }

func (r *visitRepository) openVisitLocked(patientID uuid.UUID, except uuid.UUID) *model.Visit {
	for _, v := range r.visits {
		if v.PatientID == patientID && v.ID != except && v.Status.IsOpen() {
			return v
		}
	}
	return nil
}

func (r *visitRepository) Create(ctx context.Context, v *model.Visit, event *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.patients[v.PatientID]; !ok {
		return repository.ErrNotFound
	}
	if r.openVisitLocked(v.PatientID, uuid.Nil) != nil {
		return repository.ErrActiveVisitExists
	}
	if v.ID == uuid.Nil {
		v.Base = model.NewBase(r.now())
	}
	cp := *v
	r.visits[v.ID] = &cp
	r.appendEvent(event)
	return nil
}

func (r *visitRepository) CreateWithPatient(ctx context.Context, p *model.Patient, v *model.Visit, event *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.ID == uuid.Nil {
		p.Base = model.NewBase(r.now())
	}
	if v.ID == uuid.Nil {
		v.Base = model.NewBase(r.now())
	}
	v.PatientID = p.ID

	pc, vc := *p, *v
	r.patients[p.ID] = &pc
	r.visits[v.ID] = &vc
	r.appendEvent(event)
	return nil
}

func (r *visitRepository) Get(ctx context.Context, id uuid.UUID) (*model.Visit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.visits[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (r *visitRepository) FindOpenByPatient(ctx context.Context, patientID uuid.UUID) (*model.Visit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v := r.openVisitLocked(patientID, uuid.Nil)
	if v == nil {
		return nil, repository.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (r *visitRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*model.Visit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Visit
	for _, v := range r.visits {
		if v.PatientID == patientID {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *visitRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, status model.VisitStatus) ([]*model.Visit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Visit
	for _, v := range r.visits {
		if v.DoctorBy != nil && *v.DoctorBy == doctorID && v.Status == status {
			cp := *v
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *visitRepository) UpdateNotes(ctx context.Context, id uuid.UUID, reason, conclusion *string, doctor *model.Actor) (*model.Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.visits[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *v
	if reason != nil {
		cp.Reason = *reason
	}
	if conclusion != nil {
		cp.Conclusion = *conclusion
	}
	if doctor != nil && cp.DoctorBy == nil {
		did := doctor.ID
		cp.DoctorBy = &did
		cp.DoctorName = doctor.Name
	}
	cp.UpdatedAt = r.now()
	r.visits[id] = &cp
	out := cp
	return &out, nil
}

func (r *visitRepository) SetPriority(ctx context.Context, id uuid.UUID, priority bool) (*model.Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.visits[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *v
	cp.IsPriority = priority
	cp.UpdatedAt = r.now()
	r.visits[id] = &cp
	out := cp
	return &out, nil
}

func (r *visitRepository) ApplyStatusChange(ctx context.Context, change repository.StatusChange, event *model.OutboxEvent) (*model.Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.visits[change.VisitID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if v.Status != change.From {
		cp := *v
		return &cp, repository.ErrStatusConflict
	}
	if change.To.IsOpen() && !change.From.IsOpen() && r.openVisitLocked(v.PatientID, v.ID) != nil {
		return nil, repository.ErrActiveVisitExists
	}

	at := change.At
	if at.IsZero() {
		at = r.now()
	}

	cp := *v
	cp.Status = change.To
	cp.UpdatedAt = at
	if change.StampDoctor {
		did := change.Actor.ID
		cp.DoctorBy = &did
		cp.DoctorName = change.Actor.Name
	}
	if change.TotalAmount != nil {
		amount := *change.TotalAmount
		cp.TotalAmount = &amount
	}
	if change.Reason != nil {
		cp.Reason = *change.Reason
	}
	r.visits[v.ID] = &cp

	for _, o := range change.NewOrders {
		oc := *o
		r.orders[o.ID] = &oc
	}

	r.transitions = append(r.transitions, &model.VisitTransition{
		ID:         uuid.New(),
		VisitID:    v.ID,
		FromStatus: change.From,
		ToStatus:   change.To,
		ActorID:    change.Actor.ID,
		ActorName:  change.Actor.Name,
		ActorRole:  change.Actor.Role,
		CreatedAt:  at,
	})
	r.appendEvent(event)

	out := cp
	return &out, nil
}

func (r *visitRepository) ListTransitions(ctx context.Context, visitID uuid.UUID) ([]*model.VisitTransition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.VisitTransition
	for _, t := range r.transitions {
		if t.VisitID == visitID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}
