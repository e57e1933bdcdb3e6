package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository"
)

const patientColumns = `id, national_id, full_name, date_of_birth, gender, phone, address, created_at, updated_at`

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	return insertPatient(ctx, r.db, patient)
}

func insertPatient(ctx context.Context, db sqlx.ExecerContext, patient *model.Patient) error {
	if patient.ID == uuid.Nil {
		patient.Base = model.NewBase(time.Now())
	}

	query := `
		INSERT INTO patients (id, national_id, full_name, date_of_birth, gender, phone, address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := db.ExecContext(ctx, query,
		patient.ID,
		patient.NationalID,
		patient.FullName,
		patient.DateOfBirth,
		patient.Gender,
		patient.Phone,
		patient.Address,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
	if err != nil {
		return nil, notFound(err)
	}
	return &patient, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	patient.UpdatedAt = time.Now()
	query := `
		UPDATE patients
		SET national_id = $1, full_name = $2, date_of_birth = $3, gender = $4,
			phone = $5, address = $6, updated_at = $7
		WHERE id = $8
	`
	res, err := r.db.ExecContext(ctx, query,
		patient.NationalID,
		patient.FullName,
		patient.DateOfBirth,
		patient.Gender,
		patient.Phone,
		patient.Address,
		patient.UpdatedAt,
		patient.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	return checkAffected(res)
}

// Delete relies on ON DELETE CASCADE from visits down to services,
// prescriptions and transitions.
func (r *patientRepository) Delete(ctx context.Context, id uuid.UUID, event *model.OutboxEvent) error {
	return r.WithTx(ctx, nil, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete patient: %w", err)
		}
		if err := checkAffected(res); err != nil {
			return err
		}
		return insertEvent(ctx, tx, event)
	})
}

func (r *patientRepository) Search(ctx context.Context, term string, limit int) ([]*model.Patient, error) {
	ds := r.qb.From("patients").Select(
		"id", "national_id", "full_name", "date_of_birth", "gender",
		"phone", "address", "created_at", "updated_at",
	)

	if term = strings.TrimSpace(term); term != "" {
		pattern := "%" + escapeLike(term) + "%"
		ds = ds.Where(goqu.Or(
			goqu.C("national_id").ILike(pattern),
			goqu.C("full_name").ILike(pattern),
			goqu.C("phone").ILike(pattern),
		))
	}
	ds = ds.Order(goqu.C("full_name").Asc(), goqu.C("id").Asc())
	if limit > 0 {
		ds = ds.Limit(uint(limit))
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build search query: %w", err)
	}

	var patients []*model.Patient
	if err := r.db.SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search patients: %w", err)
	}
	return patients, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
