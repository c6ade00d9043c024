package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/frontdesk/internal/domain/triage"
	"github.com/clinic/frontdesk/internal/platform/apperr"
	"github.com/clinic/frontdesk/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

func (r *repoPG) ListTypes(ctx context.Context) ([]AttentionType, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, name FROM attention_type ORDER BY name`)
	if err != nil {
		return nil, err
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (AttentionType, error) {
		var t AttentionType
		err := row.Scan(&t.ID, &t.Name)
		t.Tier = triage.Tier(t.Name)
		return t, err
	})
	return out, err
}

func (r *repoPG) ListStatuses(ctx context.Context) ([]Status, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, code, name FROM attention_status`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Status, error) {
		var s Status
		err := row.Scan(&s.ID, &s.Code, &s.Name)
		return s, err
	})
}

func (r *repoPG) ListAttributes(ctx context.Context) ([]Attribute, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, name, unit FROM attribute ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Attribute, error) {
		var a Attribute
		err := row.Scan(&a.ID, &a.Name, &a.Unit)
		return a, err
	})
}

func (r *repoPG) ListSpecialties(ctx context.Context) ([]Specialty, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, name FROM specialty ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Specialty, error) {
		var s Specialty
		err := row.Scan(&s.ID, &s.Name)
		return s, err
	})
}

const serviceSelect = `
	SELECT s.id, s.name, s.active,
	       COALESCE(array_agg(sp.id ORDER BY sp.name) FILTER (WHERE sp.id IS NOT NULL), '{}'),
	       COALESCE(array_agg(sp.name ORDER BY sp.name) FILTER (WHERE sp.id IS NOT NULL), '{}')
	FROM service s
	LEFT JOIN service_specialty ss ON ss.service_id = s.id
	LEFT JOIN specialty sp ON sp.id = ss.specialty_id`

func scanService(row pgx.Row) (ClinicService, error) {
	var s ClinicService
	var names []string
	if err := row.Scan(&s.ID, &s.Name, &s.Active, &s.SpecialtyIDs, &names); err != nil {
		return s, err
	}
	s.Specialties = make([]Specialty, len(names))
	for i, n := range names {
		s.Specialties[i] = Specialty{ID: s.SpecialtyIDs[i], Name: n}
	}
	return s, nil
}

func (r *repoPG) ListServices(ctx context.Context, activeOnly bool) ([]ClinicService, error) {
	q := serviceSelect
	if activeOnly {
		q += ` WHERE s.active`
	}
	q += ` GROUP BY s.id ORDER BY s.name`
	rows, err := r.conn(ctx).Query(ctx, q)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ClinicService, error) {
		return scanService(row)
	})
}

func (r *repoPG) GetService(ctx context.Context, id uuid.UUID) (*ClinicService, error) {
	s, err := scanService(r.conn(ctx).QueryRow(ctx, serviceSelect+` WHERE s.id = $1 GROUP BY s.id`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("service")
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repoPG) GetType(ctx context.Context, id uuid.UUID) (*AttentionType, error) {
	var t AttentionType
	err := r.conn(ctx).QueryRow(ctx, `SELECT id, name FROM attention_type WHERE id = $1`, id).Scan(&t.ID, &t.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("attention type")
	}
	if err != nil {
		return nil, err
	}
	t.Tier = triage.Tier(t.Name)
	return &t, nil
}

func (r *repoPG) replaceLinks(ctx context.Context, s *ClinicService) error {
	q := r.conn(ctx)
	if _, err := q.Exec(ctx, `DELETE FROM service_specialty WHERE service_id = $1`, s.ID); err != nil {
		return fmt.Errorf("clear service specialties: %w", err)
	}
	if len(s.SpecialtyIDs) == 0 {
		return nil
	}
	_, err := q.Exec(ctx, `
		INSERT INTO service_specialty (service_id, specialty_id)
		SELECT $1, unnest($2::uuid[])`, s.ID, s.SpecialtyIDs)
	if err != nil {
		return fmt.Errorf("link service specialties: %w", err)
	}
	return nil
}

func (r *repoPG) CreateService(ctx context.Context, s *ClinicService) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `INSERT INTO service (id, name, active) VALUES ($1, $2, $3)`, s.ID, s.Name, s.Active)
	if _, dup := db.UniqueViolation(err); dup {
		return apperr.Validation("name", "a service with this name already exists")
	}
	if err != nil {
		return err
	}
	return r.replaceLinks(ctx, s)
}

func (r *repoPG) UpdateService(ctx context.Context, s *ClinicService) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE service SET name = $2, active = $3 WHERE id = $1`, s.ID, s.Name, s.Active)
	if _, dup := db.UniqueViolation(err); dup {
		return apperr.Validation("name", "a service with this name already exists")
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("service")
	}
	return r.replaceLinks(ctx, s)
}

func (r *repoPG) CreateSpecialty(ctx context.Context, s *Specialty) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `INSERT INTO specialty (id, name) VALUES ($1, $2)`, s.ID, s.Name)
	if _, dup := db.UniqueViolation(err); dup {
		return apperr.Validation("name", "a specialty with this name already exists")
	}
	return err
}
