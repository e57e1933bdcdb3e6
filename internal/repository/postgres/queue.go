package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository"
)

type queueRepository struct {
	BaseRepository
}

func NewQueueRepository(base BaseRepository) repository.QueueRepository {
	return &queueRepository{base}
}

// Snapshot reads visits, patients and orders inside one repeatable-read
// transaction so the three result sets agree with each other.
func (r *queueRepository) Snapshot(ctx context.Context, filter model.QueueFilter) ([]*model.QueueEntry, error) {
	ds := r.qb.From("visits").Select(visitColumnList...).
		Where(goqu.Ex{"status": string(filter.Status)})
	if filter.DoctorID != nil {
		ds = ds.Where(goqu.Ex{"doctor_by": filter.DoctorID.String()})
	}
	if filter.ServiceType != "" {
		ds = ds.Where(goqu.L(
			"EXISTS (SELECT 1 FROM services s WHERE s.visit_id = visits.id AND s.service_type = ? AND s.status = ?)",
			filter.ServiceType, string(model.ServicePending),
		))
	}
	ds = ds.Order(goqu.C("is_priority").Desc(), goqu.C("created_at").Asc())

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build queue query: %w", err)
	}

	var entries []*model.QueueEntry
	opts := &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	err = r.WithTx(ctx, opts, func(tx *sqlx.Tx) error {
		var visits []*model.Visit
		if err := tx.SelectContext(ctx, &visits, query, args...); err != nil {
			return fmt.Errorf("failed to load queue: %w", err)
		}
		if len(visits) == 0 {
			return nil
		}

		visitIDs := make([]string, 0, len(visits))
		patientIDs := make([]string, 0, len(visits))
		for _, v := range visits {
			visitIDs = append(visitIDs, v.ID.String())
			patientIDs = append(patientIDs, v.PatientID.String())
		}

		patients, err := r.loadPatients(ctx, tx, patientIDs)
		if err != nil {
			return err
		}
		orders, err := r.loadOrders(ctx, tx, visitIDs)
		if err != nil {
			return err
		}

		entries = make([]*model.QueueEntry, 0, len(visits))
		for _, v := range visits {
			entries = append(entries, &model.QueueEntry{
				Visit:    v,
				Patient:  patients[v.PatientID],
				Services: orders[v.ID],
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *queueRepository) loadPatients(ctx context.Context, tx *sqlx.Tx, ids []string) (map[uuid.UUID]*model.Patient, error) {
	query, args, err := r.qb.From("patients").Select(
		"id", "national_id", "full_name", "date_of_birth", "gender",
		"phone", "address", "created_at", "updated_at",
	).Where(goqu.Ex{"id": ids}).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build patient query: %w", err)
	}

	var patients []*model.Patient
	if err := tx.SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load queue patients: %w", err)
	}
	out := make(map[uuid.UUID]*model.Patient, len(patients))
	for _, p := range patients {
		out[p.ID] = p
	}
	return out, nil
}

func (r *queueRepository) loadOrders(ctx context.Context, tx *sqlx.Tx, visitIDs []string) (map[uuid.UUID][]*model.ServiceOrder, error) {
	query, args, err := r.qb.From("services").Select(
		"id", "visit_id", "service_type", "status", "result_text", "image_url",
		"tech_by", "tech_name", "created_at", "updated_at",
	).Where(goqu.Ex{"visit_id": visitIDs}).
		Order(goqu.C("created_at").Asc(), goqu.C("service_type").Asc()).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build service query: %w", err)
	}

	var orders []*model.ServiceOrder
	if err := tx.SelectContext(ctx, &orders, query, args...); err != nil {
		return nil, fmt.Errorf("failed to load queue services: %w", err)
	}
	out := make(map[uuid.UUID][]*model.ServiceOrder)
	for _, o := range orders {
		out[o.VisitID] = append(out[o.VisitID], o)
	}
	return out, nil
}
