package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository"
)

type staffRepository struct{ *db }

func (r *staffRepository) Create(ctx context.Context, s *model.Staff) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == uuid.Nil {
		s.Base = model.NewBase(r.now())
	}
	cp := *s
	r.staff[s.ID] = &cp
	return nil
}

func (r *staffRepository) Get(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.staff[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *staffRepository) Update(ctx context.Context, s *model.Staff) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.staff[s.ID]; !ok {
		return repository.ErrNotFound
	}
	s.UpdatedAt = r.now()
	cp := *s
	r.staff[s.ID] = &cp
	return nil
}

func (r *staffRepository) List(ctx context.Context, activeOnly bool) ([]*model.Staff, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Staff
	for _, s := range r.staff {
		if activeOnly && !s.IsActive {
			continue
		}
		cp := *s
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type catalogRepository struct{ *db }

func (r *catalogRepository) nameTakenLocked(name string, except uuid.UUID) bool {
	for _, e := range r.catalog {
		if e.ID != except && strings.EqualFold(e.Name, name) {
			return true
		}
	}
	return false
}

func (r *catalogRepository) Create(ctx context.Context, e *model.CatalogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nameTakenLocked(e.Name, uuid.Nil) {
		return repository.ErrDuplicateName
	}
	if e.ID == uuid.Nil {
		e.Base = model.NewBase(r.now())
	}
	cp := *e
	r.catalog[e.ID] = &cp
	return nil
}

func (r *catalogRepository) Get(ctx context.Context, id uuid.UUID) (*model.CatalogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.catalog[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (r *catalogRepository) Update(ctx context.Context, e *model.CatalogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.catalog[e.ID]; !ok {
		return repository.ErrNotFound
	}
	if r.nameTakenLocked(e.Name, e.ID) {
		return repository.ErrDuplicateName
	}
	e.UpdatedAt = r.now()
	cp := *e
	r.catalog[e.ID] = &cp
	return nil
}

func (r *catalogRepository) List(ctx context.Context, activeOnly bool) ([]*model.CatalogEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.CatalogEntry
	for _, e := range r.catalog {
		if activeOnly && !e.IsActive {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type medicationRepository struct{ *db }

func (r *medicationRepository) nameTakenLocked(name string, except uuid.UUID) bool {
	for _, m := range r.medications {
		if m.ID != except && strings.EqualFold(m.Name, name) {
			return true
		}
	}
	return false
}

func (r *medicationRepository) Create(ctx context.Context, m *model.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.nameTakenLocked(m.Name, uuid.Nil) {
		return repository.ErrDuplicateName
	}
	if m.ID == uuid.Nil {
		m.Base = model.NewBase(r.now())
	}
	cp := *m
	r.medications[m.ID] = &cp
	return nil
}

func (r *medicationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.medications[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *medicationRepository) Update(ctx context.Context, m *model.Medication) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.medications[m.ID]; !ok {
		return repository.ErrNotFound
	}
	if r.nameTakenLocked(m.Name, m.ID) {
		return repository.ErrDuplicateName
	}
	m.UpdatedAt = r.now()
	cp := *m
	r.medications[m.ID] = &cp
	return nil
}

func (r *medicationRepository) List(ctx context.Context, activeOnly bool) ([]*model.Medication, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.Medication
	for _, m := range r.medications {
		if activeOnly && !m.IsActive {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
