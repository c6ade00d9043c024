package professional

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/frontdesk/internal/domain/availability"
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

const profCols = `pr.id, pr.person_id, pe.first_name, pe.last_name, pe.email,
	pr.specialty_id, sp.name, pr.license_number, pr.employment_status, pr.user_id,
	pr.created_at, pr.updated_at`

const profFrom = `professional pr
	JOIN person pe ON pe.id = pr.person_id
	JOIN specialty sp ON sp.id = pr.specialty_id`

func scanProfessional(row pgx.Row) (*Professional, error) {
	var p Professional
	err := row.Scan(&p.ID, &p.PersonID, &p.FirstName, &p.LastName, &p.Email,
		&p.SpecialtyID, &p.SpecialtyName, &p.LicenseNumber, &p.EmploymentStatus, &p.UserID,
		&p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func mapWriteErr(err error) error {
	if _, dup := db.UniqueViolation(err); dup {
		return apperr.Validation("person_id", "this person is already registered as a professional")
	}
	if constraint, fk := db.ForeignKeyViolation(err); fk {
		switch constraint {
		case "professional_specialty_id_fkey":
			return apperr.Validation("specialty_id", "unknown specialty")
		default:
			return apperr.Validation("person_id", "unknown person")
		}
	}
	return err
}

func (r *repoPG) Create(ctx context.Context, p *Professional) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO professional (id, person_id, specialty_id, license_number, employment_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`,
		p.ID, p.PersonID, p.SpecialtyID, p.LicenseNumber, p.EmploymentStatus,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapWriteErr(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Professional, error) {
	p, err := scanProfessional(r.conn(ctx).QueryRow(ctx,
		`SELECT `+profCols+` FROM `+profFrom+` WHERE pr.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("professional")
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, p *Professional) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE professional SET specialty_id = $2, license_number = $3,
			employment_status = $4, updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.SpecialtyID, p.LicenseNumber, p.EmploymentStatus)
	if err != nil {
		return mapWriteErr(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("professional")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, q ListQuery) ([]*Professional, int, error) {
	ds := db.Dialect.From(goqu.L(profFrom)).Prepared(true)
	if q.Search != "" {
		pattern := db.ContainsPattern(q.Search)
		ds = ds.Where(goqu.Or(
			goqu.L("pe.first_name || ' ' || pe.last_name").ILike(pattern),
			goqu.L("pr.license_number").ILike(pattern),
		))
	}
	if q.SpecialtyID != nil {
		ds = ds.Where(goqu.L("pr.specialty_id::text = ?", q.SpecialtyID.String()))
	}

	countSQL, countArgs, err := ds.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listSQL, args, err := ds.Select(goqu.L(profCols)).
		Order(goqu.L("pe.last_name").Asc(), goqu.L("pe.first_name").Asc()).
		Limit(uint(q.Limit)).Offset(uint(q.Offset)).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build list: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Professional, error) {
		return scanProfessional(row)
	})
	return items, total, err
}

func (r *repoPG) ByService(ctx context.Context, serviceID uuid.UUID) ([]*Professional, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+profCols+` FROM `+profFrom+`
		JOIN service_specialty ss ON ss.specialty_id = pr.specialty_id
		WHERE ss.service_id = $1 AND pr.employment_status = 'active' AND pe.deleted_at IS NULL
		ORDER BY pe.last_name, pe.first_name`, serviceID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Professional, error) {
		return scanProfessional(row)
	})
}

func (r *repoPG) SetUser(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE professional SET user_id = $2, updated_at = NOW() WHERE id = $1`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("professional")
	}
	return nil
}

// Times travel as seconds after midnight on the way out and as text on
// the way in, so pgtype.Time never leaks into the domain.
func (r *repoPG) Windows(ctx context.Context, ids ...uuid.UUID) (map[uuid.UUID][]availability.Window, error) {
	out := make(map[uuid.UUID][]availability.Window, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT professional_id, day_of_week,
		       FLOOR(EXTRACT(EPOCH FROM start_time))::int,
		       FLOOR(EXTRACT(EPOCH FROM end_time))::int
		FROM availability_window
		WHERE professional_id = ANY($1)
		ORDER BY day_of_week, start_time`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id         uuid.UUID
			w          availability.Window
			start, end int
		)
		if err := rows.Scan(&id, &w.Day, &start, &end); err != nil {
			return nil, err
		}
		w.Start, w.End = availability.FromSeconds(start), availability.FromSeconds(end)
		out[id] = append(out[id], w)
	}
	return out, rows.Err()
}

func (r *repoPG) ReplaceWindows(ctx context.Context, id uuid.UUID, windows []availability.Window) error {
	q := r.conn(ctx)
	if _, err := q.Exec(ctx, `DELETE FROM availability_window WHERE professional_id = $1`, id); err != nil {
		return fmt.Errorf("clear availability: %w", err)
	}
	for _, w := range windows {
		_, err := q.Exec(ctx, `
			INSERT INTO availability_window (professional_id, day_of_week, start_time, end_time)
			VALUES ($1, $2, $3::time, $4::time)`,
			id, w.Day, w.Start.String(), w.End.String())
		if err != nil {
			return fmt.Errorf("insert availability: %w", err)
		}
	}
	return nil
}
