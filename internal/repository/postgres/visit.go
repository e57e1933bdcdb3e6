package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository"
)

const (
	visitColumns = `id, patient_id, status, reception_by, reception_name, doctor_by, doctor_name,
		reason, conclusion, total_amount, is_priority, created_at, updated_at`
	openVisitConstraint = "uq_visits_open_per_patient"
)

var visitColumnList = []interface{}{
	"id", "patient_id", "status", "reception_by", "reception_name", "doctor_by", "doctor_name",
	"reason", "conclusion", "total_amount", "is_priority", "created_at", "updated_at",
}

type visitRepository struct {
	BaseRepository
}

func NewVisitRepository(base BaseRepository) repository.VisitRepository {
	return &visitRepository{base}
}

func (r *visitRepository) Create(ctx context.Context, visit *model.Visit, event *model.OutboxEvent) error {
	return r.WithTx(ctx, nil, func(tx *sqlx.Tx) error {
		if err := insertVisit(ctx, tx, visit); err != nil {
			return err
		}
		return insertEvent(ctx, tx, event)
	})
}

func (r *visitRepository) CreateWithPatient(ctx context.Context, patient *model.Patient, visit *model.Visit, event *model.OutboxEvent) error {
	return r.WithTx(ctx, nil, func(tx *sqlx.Tx) error {
		if err := insertPatient(ctx, tx, patient); err != nil {
			return err
		}
		visit.PatientID = patient.ID
		if err := insertVisit(ctx, tx, visit); err != nil {
			return err
		}
		return insertEvent(ctx, tx, event)
	})
}

func insertVisit(ctx context.Context, tx *sqlx.Tx, visit *model.Visit) error {
	if visit.ID == uuid.Nil {
		visit.Base = model.NewBase(time.Now())
	}

	query := `
		INSERT INTO visits (id, patient_id, status, reception_by, reception_name, reason,
			is_priority, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := tx.ExecContext(ctx, query,
		visit.ID,
		visit.PatientID,
		string(visit.Status),
		visit.ReceptionBy,
		visit.ReceptionName,
		visit.Reason,
		visit.IsPriority,
		visit.CreatedAt,
		visit.UpdatedAt,
	)
	if isUniqueViolation(err, openVisitConstraint) {
		return repository.ErrActiveVisitExists
	}
	if err != nil {
		return fmt.Errorf("failed to create visit: %w", err)
	}
	return nil
}

func (r *visitRepository) Get(ctx context.Context, id uuid.UUID) (*model.Visit, error) {
	var visit model.Visit
	if err := r.db.GetContext(ctx, &visit, `SELECT `+visitColumns+` FROM visits WHERE id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	return &visit, nil
}

func (r *visitRepository) FindOpenByPatient(ctx context.Context, patientID uuid.UUID) (*model.Visit, error) {
	var visit model.Visit
	query := `SELECT ` + visitColumns + ` FROM visits
		WHERE patient_id = $1 AND status NOT IN ('Done', 'Missed')
		ORDER BY created_at DESC LIMIT 1`
	if err := r.db.GetContext(ctx, &visit, query, patientID); err != nil {
		return nil, notFound(err)
	}
	return &visit, nil
}

func (r *visitRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, limit int) ([]*model.Visit, error) {
	ds := r.qb.From("visits").Select(visitColumnList...).
		Where(goqu.Ex{"patient_id": patientID.String()}).
		Order(goqu.C("created_at").Desc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build visit history query: %w", err)
	}

	var visits []*model.Visit
	if err := r.db.SelectContext(ctx, &visits, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	return visits, nil
}

func (r *visitRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID, status model.VisitStatus) ([]*model.Visit, error) {
	query := `SELECT ` + visitColumns + ` FROM visits
		WHERE doctor_by = $1 AND status = $2
		ORDER BY updated_at DESC`
	var visits []*model.Visit
	if err := r.db.SelectContext(ctx, &visits, query, doctorID, string(status)); err != nil {
		return nil, fmt.Errorf("failed to list doctor visits: %w", err)
	}
	return visits, nil
}

func (r *visitRepository) UpdateNotes(ctx context.Context, id uuid.UUID, reason, conclusion *string, doctor *model.Actor) (*model.Visit, error) {
	rec := goqu.Record{"updated_at": time.Now()}
	if reason != nil {
		rec["reason"] = *reason
	}
	if conclusion != nil {
		rec["conclusion"] = *conclusion
	}
	if doctor != nil {
		rec["doctor_by"] = goqu.L("COALESCE(doctor_by, ?)", doctor.ID.String())
		rec["doctor_name"] = goqu.L("CASE WHEN doctor_by IS NULL THEN ? ELSE doctor_name END", doctor.Name)
	}
	return r.updateReturning(ctx, r.db, rec, goqu.Ex{"id": id.String()})
}

func (r *visitRepository) SetPriority(ctx context.Context, id uuid.UUID, priority bool) (*model.Visit, error) {
	rec := goqu.Record{"is_priority": priority, "updated_at": time.Now()}
	return r.updateReturning(ctx, r.db, rec, goqu.Ex{"id": id.String()})
}

func (r *visitRepository) updateReturning(ctx context.Context, q sqlx.QueryerContext, rec goqu.Record, where goqu.Ex) (*model.Visit, error) {
	query, args, err := r.qb.Update("visits").Set(rec).Where(where).
		Returning(visitColumnList...).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build visit update: %w", err)
	}
	var visit model.Visit
	if err := sqlx.GetContext(ctx, q, &visit, query, args...); err != nil {
		return nil, notFound(err)
	}
	return &visit, nil
}

func (r *visitRepository) ApplyStatusChange(ctx context.Context, change repository.StatusChange, event *model.OutboxEvent) (*model.Visit, error) {
	at := change.At
	if at.IsZero() {
		at = time.Now()
	}

	rec := goqu.Record{"status": string(change.To), "updated_at": at}
	if change.StampDoctor {
		rec["doctor_by"] = change.Actor.ID.String()
		rec["doctor_name"] = change.Actor.Name
	}
	if change.TotalAmount != nil {
		rec["total_amount"] = *change.TotalAmount
	}
	if change.Reason != nil {
		rec["reason"] = *change.Reason
	}

	var result *model.Visit
	err := r.WithTx(ctx, nil, func(tx *sqlx.Tx) error {
		updated, err := r.updateReturning(ctx, tx, rec, goqu.Ex{
			"id":     change.VisitID.String(),
			"status": string(change.From),
		})
		switch {
		case errors.Is(err, repository.ErrNotFound):
			var current model.Visit
			if err := tx.GetContext(ctx, &current, `SELECT `+visitColumns+` FROM visits WHERE id = $1`, change.VisitID); err != nil {
				return notFound(err)
			}
			result = &current
			return repository.ErrStatusConflict
		case isUniqueViolation(err, openVisitConstraint):
			return repository.ErrActiveVisitExists
		case err != nil:
			return fmt.Errorf("failed to update visit status: %w", err)
		}

		for _, o := range change.NewOrders {
			if err := insertServiceOrder(ctx, tx, o); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO visit_transitions (id, visit_id, from_status, to_status, actor_id, actor_name, actor_role, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, uuid.New(), change.VisitID, string(change.From), string(change.To),
			change.Actor.ID, change.Actor.Name, string(change.Actor.Role), at)
		if err != nil {
			return fmt.Errorf("failed to record transition: %w", err)
		}

		if err := insertEvent(ctx, tx, event); err != nil {
			return err
		}
		result = updated
		return nil
	})
	if errors.Is(err, repository.ErrStatusConflict) {
		return result, err
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *visitRepository) ListTransitions(ctx context.Context, visitID uuid.UUID) ([]*model.VisitTransition, error) {
	query := `
		SELECT id, visit_id, from_status, to_status, actor_id, actor_name, actor_role, created_at
		FROM visit_transitions
		WHERE visit_id = $1
		ORDER BY created_at ASC
	`
	var out []*model.VisitTransition
	if err := r.db.SelectContext(ctx, &out, query, visitID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	return out, nil
}
