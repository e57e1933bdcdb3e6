package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository"
)

type queueRepository struct{ *db }

func (r *queueRepository) Snapshot(ctx context.Context, filter model.QueueFilter) ([]*model.QueueEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var visits []*model.Visit
	for _, v := range r.visits {
		if v.Status != filter.Status {
			continue
		}
		if filter.DoctorID != nil && (v.DoctorBy == nil || *v.DoctorBy != *filter.DoctorID) {
			continue
		}
		visits = append(visits, v)
	}
	sort.Slice(visits, func(i, j int) bool {
		if visits[i].IsPriority != visits[j].IsPriority {
			return visits[i].IsPriority
		}
		return visits[i].CreatedAt.Before(visits[j].CreatedAt)
	})

	entries := make([]*model.QueueEntry, 0, len(visits))
	for _, v := range visits {
		orders := r.listByVisitLocked(v.ID)
		if filter.ServiceType != "" && !hasPendingOfType(orders, filter.ServiceType) {
			continue
		}
		vc := *v
		entry := &model.QueueEntry{Visit: &vc, Services: orders}
		if p, ok := r.patients[v.PatientID]; ok {
			pc := *p
			entry.Patient = &pc
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func hasPendingOfType(orders []*model.ServiceOrder, serviceType string) bool {
	for _, o := range orders {
		if o.ServiceType == serviceType && o.Status == model.ServicePending {
			return true
		}
	}
	return false
}

type outboxRepository struct{ *db }

func (r *outboxRepository) GetPendingEventsWithLock(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var out []*model.OutboxEvent
	for _, e := range r.outbox {
		if len(out) >= limit {
			break
		}
		if e.Status != model.OutboxStatusPending && e.Status != model.OutboxStatusRetry {
			continue
		}
		if e.RetryAt != nil && e.RetryAt.After(now) {
			continue
		}
		// lease the event so a concurrent poll skips it
		lease := now.Add(30 * time.Second)
		e.RetryAt = &lease
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (r *outboxRepository) find(id uuid.UUID) (*model.OutboxEvent, error) {
	for _, e := range r.outbox {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *outboxRepository) MarkProcessed(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.find(id)
	if err != nil {
		return err
	}
	now := r.now()
	e.Status = model.OutboxStatusProcessed
	e.ProcessedAt = &now
	e.RetryAt = nil
	e.UpdatedAt = now
	return nil
}

func (r *outboxRepository) MarkRetry(ctx context.Context, id uuid.UUID, errorMessage string, retryAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.find(id)
	if err != nil {
		return err
	}
	e.Status = model.OutboxStatusRetry
	e.ErrorMessage = &errorMessage
	e.RetryCount++
	e.RetryAt = &retryAt
	e.UpdatedAt = r.now()
	return nil
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, err := r.find(id)
	if err != nil {
		return err
	}
	e.Status = model.OutboxStatusFailed
	e.ErrorMessage = &errorMessage
	e.RetryCount++
	e.RetryAt = nil
	e.UpdatedAt = r.now()
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	kept := r.outbox[:0]
	for _, e := range r.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	r.outbox = kept
	return n, nil
}
