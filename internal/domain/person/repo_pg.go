package person

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/frontdesk/internal/platform/apperr"
	"github.com/clinic/frontdesk/internal/platform/db"
)

// numberingLockKey scopes pg_advisory_xact_lock to placeholder numbering.
const numberingLockKey int64 = 0x70657273

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const personCols = `id, first_name, last_name, document_type, document_number,
	to_char(birth_date, 'YYYY-MM-DD'), gender, marital_status, phone, email, address,
	emergency_created, created_at, updated_at, deleted_at`

func scanPerson(row pgx.Row) (*Person, error) {
	var p Person
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.DocumentType, &p.DocumentNumber,
		&p.BirthDate, &p.Gender, &p.MaritalStatus, &p.Phone, &p.Email, &p.Address,
		&p.EmergencyCreated, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	return &p, err
}

func documentTaken(err error) error {
	if _, dup := db.UniqueViolation(err); dup {
		return ErrDocumentTaken
	}
	return err
}

func (r *repoPG) Create(ctx context.Context, p *Person) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO person (id, first_name, last_name, document_type, document_number,
			birth_date, gender, marital_status, phone, email, address, emergency_created)
		VALUES ($1, $2, $3, $4, $5, $6::date, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.DocumentType, p.DocumentNumber,
		p.BirthDate, p.Gender, p.MaritalStatus, p.Phone, p.Email, p.Address, p.EmergencyCreated,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return documentTaken(err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Person, error) {
	p, err := scanPerson(r.conn(ctx).QueryRow(ctx,
		`SELECT `+personCols+` FROM person WHERE id = $1 AND deleted_at IS NULL`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("patient")
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) Update(ctx context.Context, p *Person) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE person SET first_name = $2, last_name = $3, document_type = $4,
			document_number = $5, birth_date = $6::date, gender = $7, marital_status = $8,
			phone = $9, email = $10, address = $11, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING emergency_created, created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.DocumentType, p.DocumentNumber,
		p.BirthDate, p.Gender, p.MaritalStatus, p.Phone, p.Email, p.Address,
	).Scan(&p.EmergencyCreated, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("patient")
	}
	return documentTaken(err)
}

func (r *repoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE person SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, q ListQuery) ([]*Person, int, error) {
	ds := db.Select("person").Where(goqu.C("deleted_at").IsNull())
	if q.Search != "" {
		pattern := db.ContainsPattern(q.Search)
		ds = ds.Where(goqu.Or(
			goqu.L("first_name || ' ' || last_name").ILike(pattern),
			goqu.C("document_number").ILike(pattern),
		))
	}

	countSQL, countArgs, err := ds.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listSQL, args, err := ds.Select(goqu.L(personCols)).
		Order(goqu.C("last_name").Asc(), goqu.C("first_name").Asc()).
		Limit(uint(q.Limit)).Offset(uint(q.Offset)).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build list: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Person, error) {
		return scanPerson(row)
	})
	return items, total, err
}

func (r *repoPG) NumericDocumentNumbers(ctx context.Context) ([]int64, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT document_number::bigint FROM person
		WHERE document_number ~ '^[0-9]{1,18}$'`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (r *repoPG) LockNumbering(ctx context.Context) error {
	return db.AdvisoryXactLock(ctx, numberingLockKey)
}
