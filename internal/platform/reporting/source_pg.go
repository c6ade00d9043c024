package reporting

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/frontdesk/internal/domain/triage"
	"github.com/clinic/frontdesk/internal/platform/db"
)

// Source reads the rows the dashboard aggregates.
type Source interface {
	Facts(ctx context.Context, date string) ([]Fact, error)
	// DailyCounts maps YYYY-MM-DD to the number of attentions booked that
	// day, for days in [from, to].
	DailyCounts(ctx context.Context, from, to string) (map[string]int, error)
	// Run executes a predefined measure.
	Run(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error)
}

type pgSource struct {
	pool *pgxpool.Pool
}

func NewSource(pool *pgxpool.Pool) Source {
	return &pgSource{pool: pool}
}

func (s *pgSource) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, s.pool)
}

func attentions() *goqu.SelectDataset {
	return db.Dialect.From(goqu.T("attention").As("a")).Prepared(true)
}

func (s *pgSource) Facts(ctx context.Context, date string) ([]Fact, error) {
	sql, args, err := attentions().
		Join(goqu.T("attention_type").As("t"), goqu.On(goqu.I("t.id").Eq(goqu.I("a.type_id")))).
		Join(goqu.T("service").As("s"), goqu.On(goqu.I("s.id").Eq(goqu.I("a.service_id")))).
		Join(goqu.T("attention_status").As("st"), goqu.On(goqu.I("st.id").Eq(goqu.I("a.status_id")))).
		Select(goqu.L("to_char(a.date, 'YYYY-MM-DD')"), goqu.I("t.name"), goqu.I("s.name"), goqu.I("st.code"), goqu.I("a.created_at"), goqu.I("a.started_at")).
		Where(goqu.L("a.date = ?::date", date)).
		ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := s.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Fact, error) {
		var f Fact
		var code string
		err := row.Scan(&f.Date, &f.TypeName, &f.ServiceName, &code, &f.CreatedAt, &f.StartedAt)
		f.Status = triage.State(code)
		return f, err
	})
}

func (s *pgSource) DailyCounts(ctx context.Context, from, to string) (map[string]int, error) {
	day := goqu.L("to_char(a.date, 'YYYY-MM-DD')")
	sql, args, err := attentions().
		Select(day, goqu.COUNT(goqu.Star())).
		Where(goqu.L("a.date BETWEEN ?::date AND ?::date", from, to)).
		GroupBy(goqu.I("a.date")).
		ToSQL()
	if err != nil {
		return nil, err
	}
	rows, err := s.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var d string
		var n int
		if err := rows.Scan(&d, &n); err != nil {
			return nil, err
		}
		out[d] = n
	}
	return out, rows.Err()
}

func (s *pgSource) Run(ctx context.Context, sql string, args ...interface{}) ([]map[string]interface{}, error) {
	rows, err := s.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	results := []map[string]interface{}{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(fieldDescs))
		for i, fd := range fieldDescs {
			row[fd.Name] = values[i]
		}
		results = append(results, row)
	}
	return results, rows.Err()
}
