package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository"
)

type staffRepository struct {
	BaseRepository
}

func NewStaffRepository(base BaseRepository) repository.StaffRepository {
	return &staffRepository{base}
}

func (r *staffRepository) Create(ctx context.Context, s *model.Staff) error {
	if s.ID == uuid.Nil {
		s.Base = model.NewBase(time.Now())
	}
	query := `
		INSERT INTO staff (id, name, role, is_active, pin_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query, s.ID, s.Name, string(s.Role), s.IsActive, s.PINHash, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create staff: %w", err)
	}
	return nil
}

func (r *staffRepository) Get(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	var s model.Staff
	query := `SELECT id, name, role, is_active, pin_hash, created_at, updated_at FROM staff WHERE id = $1`
	if err := r.db.GetContext(ctx, &s, query, id); err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *staffRepository) Update(ctx context.Context, s *model.Staff) error {
	s.UpdatedAt = time.Now()
	query := `UPDATE staff SET name = $1, role = $2, is_active = $3, pin_hash = $4, updated_at = $5 WHERE id = $6`
	res, err := r.db.ExecContext(ctx, query, s.Name, string(s.Role), s.IsActive, s.PINHash, s.UpdatedAt, s.ID)
	if err != nil {
		return fmt.Errorf("failed to update staff: %w", err)
	}
	return checkAffected(res)
}

func (r *staffRepository) List(ctx context.Context, activeOnly bool) ([]*model.Staff, error) {
	query := `SELECT id, name, role, is_active, pin_hash, created_at, updated_at FROM staff`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name`

	var out []*model.Staff
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	return out, nil
}

type catalogRepository struct {
	BaseRepository
}

func NewCatalogRepository(base BaseRepository) repository.CatalogRepository {
	return &catalogRepository{base}
}

func (r *catalogRepository) Create(ctx context.Context, e *model.CatalogEntry) error {
	if e.ID == uuid.Nil {
		e.Base = model.NewBase(time.Now())
	}
	query := `
		INSERT INTO service_catalog (id, name, price, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.db.ExecContext(ctx, query, e.ID, e.Name, e.Price, e.IsActive, e.CreatedAt, e.UpdatedAt)
	if isUniqueViolation(err, "uq_service_catalog_name") {
		return repository.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to create catalog entry: %w", err)
	}
	return nil
}

func (r *catalogRepository) Get(ctx context.Context, id uuid.UUID) (*model.CatalogEntry, error) {
	var e model.CatalogEntry
	query := `SELECT id, name, price, is_active, created_at, updated_at FROM service_catalog WHERE id = $1`
	if err := r.db.GetContext(ctx, &e, query, id); err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (r *catalogRepository) Update(ctx context.Context, e *model.CatalogEntry) error {
	e.UpdatedAt = time.Now()
	query := `UPDATE service_catalog SET name = $1, price = $2, is_active = $3, updated_at = $4 WHERE id = $5`
	res, err := r.db.ExecContext(ctx, query, e.Name, e.Price, e.IsActive, e.UpdatedAt, e.ID)
	if isUniqueViolation(err, "uq_service_catalog_name") {
		return repository.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to update catalog entry: %w", err)
	}
	return checkAffected(res)
}

func (r *catalogRepository) List(ctx context.Context, activeOnly bool) ([]*model.CatalogEntry, error) {
	query := `SELECT id, name, price, is_active, created_at, updated_at FROM service_catalog`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name`

	var out []*model.CatalogEntry
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("failed to list catalog: %w", err)
	}
	return out, nil
}

type medicationRepository struct {
	BaseRepository
}

func NewMedicationRepository(base BaseRepository) repository.MedicationRepository {
	return &medicationRepository{base}
}

func (r *medicationRepository) Create(ctx context.Context, m *model.Medication) error {
	if m.ID == uuid.Nil {
		m.Base = model.NewBase(time.Now())
	}
	query := `
		INSERT INTO medications (id, name, unit, price, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query, m.ID, m.Name, m.Unit, m.Price, m.IsActive, m.CreatedAt, m.UpdatedAt)
	if isUniqueViolation(err, "uq_medications_name") {
		return repository.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to create medication: %w", err)
	}
	return nil
}

func (r *medicationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Medication, error) {
	var m model.Medication
	query := `SELECT id, name, unit, price, is_active, created_at, updated_at FROM medications WHERE id = $1`
	if err := r.db.GetContext(ctx, &m, query, id); err != nil {
		return nil, notFound(err)
	}
	return &m, nil
}

func (r *medicationRepository) Update(ctx context.Context, m *model.Medication) error {
	m.UpdatedAt = time.Now()
	query := `UPDATE medications SET name = $1, unit = $2, price = $3, is_active = $4, updated_at = $5 WHERE id = $6`
	res, err := r.db.ExecContext(ctx, query, m.Name, m.Unit, m.Price, m.IsActive, m.UpdatedAt, m.ID)
	if isUniqueViolation(err, "uq_medications_name") {
		return repository.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("failed to update medication: %w", err)
	}
	return checkAffected(res)
}

func (r *medicationRepository) List(ctx context.Context, activeOnly bool) ([]*model.Medication, error) {
	query := `SELECT id, name, unit, price, is_active, created_at, updated_at FROM medications`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY name`

	var out []*model.Medication
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("failed to list medications: %w", err)
	}
	return out, nil
}
