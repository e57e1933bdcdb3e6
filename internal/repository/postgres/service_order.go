package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository"
)

const serviceOrderColumns = `id, visit_id, service_type, status, result_text, image_url, tech_by, tech_name, created_at, updated_at`

type serviceOrderRepository struct {
	BaseRepository
}

func NewServiceOrderRepository(base BaseRepository) repository.ServiceOrderRepository {
	return &serviceOrderRepository{base}
}

func insertServiceOrder(ctx context.Context, tx *sqlx.Tx, o *model.ServiceOrder) error {
	query := `
		INSERT INTO services (id, visit_id, service_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := tx.ExecContext(ctx, query, o.ID, o.VisitID, o.ServiceType, string(o.Status), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create service order: %w", err)
	}
	return nil
}

func (r *serviceOrderRepository) Get(ctx context.Context, id uuid.UUID) (*model.ServiceOrder, error) {
	var order model.ServiceOrder
	if err := r.db.GetContext(ctx, &order, `SELECT `+serviceOrderColumns+` FROM services WHERE id = $1`, id); err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

func (r *serviceOrderRepository) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*model.ServiceOrder, error) {
	query := `SELECT ` + serviceOrderColumns + ` FROM services WHERE visit_id = $1 ORDER BY created_at, service_type`
	var orders []*model.ServiceOrder
	if err := r.db.SelectContext(ctx, &orders, query, visitID); err != nil {
		return nil, fmt.Errorf("failed to list service orders: %w", err)
	}
	return orders, nil
}

func (r *serviceOrderRepository) Resolve(ctx context.Context, res model.ServiceResolution) (*model.ServiceOrder, error) {
	query := `
		UPDATE services
		SET status = $1, result_text = $2, image_url = $3, tech_by = $4, tech_name = $5, updated_at = $6
		WHERE id = $7 AND status = 'Pending'
		RETURNING ` + serviceOrderColumns

	var order model.ServiceOrder
	err := r.db.GetContext(ctx, &order, query,
		string(res.Status),
		res.ResultText,
		res.ImageURL,
		res.Tech.ID,
		res.Tech.Name,
		time.Now(),
		res.ID,
	)
	if err == nil {
		return &order, nil
	}
	if !errors.Is(notFound(err), repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to resolve service order: %w", err)
	}

	current, getErr := r.Get(ctx, res.ID)
	if getErr != nil {
		return nil, getErr
	}
	return current, repository.ErrStatusConflict
}

func (r *serviceOrderRepository) CountPending(ctx context.Context, visitID uuid.UUID) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM services WHERE visit_id = $1 AND status = 'Pending'`, visitID)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending services: %w", err)
	}
	return n, nil
}

type prescriptionRepository struct {
	BaseRepository
}

func NewPrescriptionRepository(base BaseRepository) repository.PrescriptionRepository {
	return &prescriptionRepository{base}
}

func (r *prescriptionRepository) GetByVisit(ctx context.Context, visitID uuid.UUID) (*model.Prescription, error) {
	var p model.Prescription
	query := `SELECT id, visit_id, lines, created_at, updated_at FROM prescriptions WHERE visit_id = $1`
	if err := r.db.GetContext(ctx, &p, query, visitID); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// Upsert keeps a single prescription per visit
func (r *prescriptionRepository) Upsert(ctx context.Context, p *model.Prescription) error {
	now := time.Now()
	if p.ID == uuid.Nil {
		p.Base = model.NewBase(now)
	}
	query := `
		INSERT INTO prescriptions (id, visit_id, lines, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (visit_id) DO UPDATE SET lines = EXCLUDED.lines, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`
	row := r.db.QueryRowxContext(ctx, query, p.ID, p.VisitID, p.Lines, p.CreatedAt, now)
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if isForeignKeyViolation(err) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("failed to save prescription: %w", err)
	}
	return nil
}
