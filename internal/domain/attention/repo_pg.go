package attention

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/frontdesk/internal/domain/availability"
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

// Soft-deleted patients are joined on purpose: their past attentions stay
// visible.
func rowsDataset() *goqu.SelectDataset {
	return db.Dialect.From(goqu.T("attention").As("a")).Prepared(true).
		Join(goqu.T("person").As("pe"), goqu.On(goqu.I("pe.id").Eq(goqu.I("a.person_id")))).
		Join(goqu.T("professional").As("pr"), goqu.On(goqu.I("pr.id").Eq(goqu.I("a.professional_id")))).
		Join(goqu.T("person").As("pp"), goqu.On(goqu.I("pp.id").Eq(goqu.I("pr.person_id")))).
		Join(goqu.T("service").As("s"), goqu.On(goqu.I("s.id").Eq(goqu.I("a.service_id")))).
		Join(goqu.T("attention_type").As("t"), goqu.On(goqu.I("t.id").Eq(goqu.I("a.type_id")))).
		Join(goqu.T("attention_status").As("st"), goqu.On(goqu.I("st.id").Eq(goqu.I("a.status_id"))))
}

const rowCols = `a.id, to_char(a.date, 'YYYY-MM-DD'), FLOOR(EXTRACT(EPOCH FROM a.time))::int,
	pe.id, pe.first_name || ' ' || pe.last_name, pe.document_number,
	pr.id, pp.first_name || ' ' || pp.last_name,
	s.id, s.name, t.id, t.name, st.id, st.code, st.name,
	a.motive, a.derived_from_id, a.created_at`

const detailCols = rowCols + `, a.diagnosis, a.observations, a.care_note, a.treatment, a.started_at, a.ended_at`

func rowDest(row *Row, secs *int) []any {
	return []any{&row.ID, &row.Date, secs,
		&row.PatientID, &row.PatientName, &row.DocumentNumber,
		&row.ProfessionalID, &row.ProfessionalName,
		&row.ServiceID, &row.ServiceName, &row.TypeID, &row.TypeName,
		&row.StatusID, &row.Status, &row.StatusName,
		&row.Motive, &row.DerivedFromID, &row.CreatedAt}
}

func finishRow(row *Row, secs int) {
	row.Time = availability.FromSeconds(secs)
	row.Tier = triage.Tier(row.TypeName)
}

func scanRow(s pgx.Row) (Row, error) {
	var (
		row  Row
		secs int
	)
	if err := s.Scan(rowDest(&row, &secs)...); err != nil {
		return row, err
	}
	finishRow(&row, secs)
	return row, nil
}

func scanDetail(s pgx.Row) (*Detail, error) {
	var (
		d    Detail
		secs int
	)
	dest := append(rowDest(&d.Row, &secs),
		&d.Diagnosis, &d.Observations, &d.CareNote, &d.Treatment, &d.StartedAt, &d.EndedAt)
	if err := s.Scan(dest...); err != nil {
		return nil, err
	}
	finishRow(&d.Row, secs)
	return &d, nil
}

func queueFilters(ds *goqu.SelectDataset, q QueueQuery) *goqu.SelectDataset {
	if q.Date != nil {
		ds = ds.Where(goqu.I("a.date").Eq(q.Date.Format(availability.DateLayout)))
	}
	if len(q.StatusIDs) > 0 {
		ids := make([]string, len(q.StatusIDs))
		for i, id := range q.StatusIDs {
			ids[i] = id.String()
		}
		ds = ds.Where(goqu.L("a.status_id::text").In(ids))
	}
	if q.ProfessionalID != nil {
		ds = ds.Where(goqu.L("a.professional_id::text").Eq(q.ProfessionalID.String()))
	}
	if q.Search != "" {
		pattern := db.ContainsPattern(q.Search)
		ds = ds.Where(goqu.Or(
			goqu.L("pe.first_name || ' ' || pe.last_name").ILike(pattern),
			goqu.L("pp.first_name || ' ' || pp.last_name").ILike(pattern),
		))
	}
	return ds
}

// queueOrder is tier, then arrival, then creation. The tier CASE comes from
// the same table triage.Tier reads.
func queueOrder() []exp.OrderedExpression {
	return []exp.OrderedExpression{
		triage.TierCase(goqu.I("t.name")).Asc(),
		goqu.I("a.date").Asc(),
		goqu.I("a.time").Asc(),
		goqu.I("a.created_at").Asc(),
	}
}

func (r *repoPG) Queue(ctx context.Context, q QueueQuery) ([]Row, int, error) {
	ds := queueFilters(rowsDataset(), q)

	countSQL, countArgs, err := ds.Select(goqu.COUNT("*")).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build queue count: %w", err)
	}
	var total int
	if err := r.conn(ctx).QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listSQL, args, err := ds.Select(goqu.L(rowCols)).
		Order(queueOrder()...).
		Limit(uint(q.Limit)).Offset(uint(q.Offset)).
		ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build queue: %w", err)
	}
	rows, err := r.conn(ctx).Query(ctx, listSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Row, error) {
		return scanRow(row)
	})
	return items, total, err
}

func (r *repoPG) Row(ctx context.Context, id uuid.UUID) (*Row, error) {
	sql, args, err := rowsDataset().Select(goqu.L(rowCols)).
		Where(goqu.L("a.id::text").Eq(id.String())).ToSQL()
	if err != nil {
		return nil, err
	}
	row, err := scanRow(r.conn(ctx).QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("attention")
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repoPG) Detail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	sql, args, err := rowsDataset().Select(goqu.L(detailCols)).
		Where(goqu.L("a.id::text").Eq(id.String())).ToSQL()
	if err != nil {
		return nil, err
	}
	d, err := scanDetail(r.conn(ctx).QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("attention")
	}
	return d, err
}

func (r *repoPG) PatientDetails(ctx context.Context, personID uuid.UUID) ([]*Detail, error) {
	sql, args, err := rowsDataset().Select(goqu.L(detailCols)).
		Where(goqu.L("a.person_id::text").Eq(personID.String())).
		Order(goqu.I("a.date").Desc(), goqu.I("a.time").Desc(), goqu.I("a.created_at").Desc()).
		ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*Detail, error) {
		return scanDetail(row)
	})
}

func (r *repoPG) Patient(ctx context.Context, personID uuid.UUID) (*PatientSummary, error) {
	var p PatientSummary
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, first_name || ' ' || last_name, document_type, document_number,
		       to_char(birth_date, 'YYYY-MM-DD'), gender, phone, deleted_at IS NOT NULL
		FROM person WHERE id = $1`, personID,
	).Scan(&p.ID, &p.FullName, &p.DocumentType, &p.DocumentNumber, &p.BirthDate, &p.Gender, &p.Phone, &p.Deleted)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("patient")
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repoPG) Create(ctx context.Context, a *Attention) error {
	a.ID = uuid.New()
	a.Version = 1
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO attention (id, person_id, professional_id, service_id, type_id, status_id,
			date, time, motive, diagnosis, started_at, derived_from_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8::time, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		a.ID, a.PersonID, a.ProfessionalID, a.ServiceID, a.TypeID, a.StatusID,
		a.Date, a.Time.String(), a.Motive, a.Diagnosis, a.StartedAt, a.DerivedFromID,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if _, dup := db.UniqueViolation(err); dup {
		return apperr.Conflict("this attention was already derived")
	}
	if constraint, fk := db.ForeignKeyViolation(err); fk {
		return apperr.Validation(fkField(constraint), "referenced record does not exist")
	}
	return err
}

func fkField(constraint string) string {
	switch constraint {
	case "attention_person_id_fkey":
		return "patient_id"
	case "attention_professional_id_fkey":
		return "professional_id"
	case "attention_service_id_fkey":
		return "service_id"
	case "attention_type_id_fkey":
		return "type_id"
	case "attention_status_id_fkey":
		return "status_id"
	case "attention_attribute_attribute_id_fkey":
		return "attributes"
	}
	return "id"
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Attention, error) {
	var (
		a    Attention
		secs int
	)
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT a.id, a.person_id, a.professional_id, a.service_id, a.type_id, a.status_id, st.code,
		       to_char(a.date, 'YYYY-MM-DD'), FLOOR(EXTRACT(EPOCH FROM a.time))::int,
		       a.motive, a.diagnosis, a.observations, a.care_note, a.treatment,
		       a.started_at, a.ended_at, a.derived_from_id, a.version, a.created_at, a.updated_at
		FROM attention a
		JOIN attention_status st ON st.id = a.status_id
		WHERE a.id = $1
		FOR UPDATE OF a`, id,
	).Scan(&a.ID, &a.PersonID, &a.ProfessionalID, &a.ServiceID, &a.TypeID, &a.StatusID, &a.Status,
		&a.Date, &secs, &a.Motive, &a.Diagnosis, &a.Observations, &a.CareNote, &a.Treatment,
		&a.StartedAt, &a.EndedAt, &a.DerivedFromID, &a.Version, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("attention")
	}
	if err != nil {
		return nil, err
	}
	a.Time = availability.FromSeconds(secs)
	return &a, nil
}

func (r *repoPG) Update(ctx context.Context, a *Attention) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE attention SET status_id = $3, motive = $4, diagnosis = $5, observations = $6,
			care_note = $7, treatment = $8, started_at = $9, ended_at = $10,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING version, updated_at`,
		a.ID, a.Version, a.StatusID, a.Motive, a.Diagnosis, a.Observations,
		a.CareNote, a.Treatment, a.StartedAt, a.EndedAt,
	).Scan(&a.Version, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Conflict("attention was modified concurrently")
	}
	return err
}

func (r *repoPG) AddAttributes(ctx context.Context, attentionID uuid.UUID, values []AttributeValue) error {
	for _, v := range values {
		_, err := r.conn(ctx).Exec(ctx, `
			INSERT INTO attention_attribute (attention_id, attribute_id, value) VALUES ($1, $2, $3)`,
			attentionID, v.AttributeID, v.Value)
		if _, fk := db.ForeignKeyViolation(err); fk {
			return apperr.Validation("attributes", "unknown attribute "+v.AttributeID.String())
		}
		if err != nil {
			return fmt.Errorf("insert attribute: %w", err)
		}
	}
	return nil
}

func (r *repoPG) Attributes(ctx context.Context, attentionIDs ...uuid.UUID) (map[uuid.UUID][]RecordedAttribute, error) {
	out := make(map[uuid.UUID][]RecordedAttribute, len(attentionIDs))
	if len(attentionIDs) == 0 {
		return out, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT aa.attention_id, at.id, at.name, at.unit, aa.value, aa.created_at
		FROM attention_attribute aa
		JOIN attribute at ON at.id = aa.attribute_id
		WHERE aa.attention_id = ANY($1)
		ORDER BY aa.created_at, at.name`, attentionIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			id uuid.UUID
			ra RecordedAttribute
		)
		if err := rows.Scan(&id, &ra.AttributeID, &ra.Name, &ra.Unit, &ra.Value, &ra.CreatedAt); err != nil {
			return nil, err
		}
		out[id] = append(out[id], ra)
	}
	return out, rows.Err()
}
