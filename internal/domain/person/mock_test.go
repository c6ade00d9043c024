package person

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/frontdesk/internal/platform/apperr"
)

type mockRepo struct {
	people      map[uuid.UUID]*Person
	locks       int
	failCreates int // number of upcoming creates that hit a concurrent insert
}

func newMockRepo() *mockRepo {
	return &mockRepo{people: make(map[uuid.UUID]*Person)}
}

func (m *mockRepo) Snapshot() func() {
	saved := make(map[uuid.UUID]*Person, len(m.people))
	for k, v := range m.people {
		cp := *v
		saved[k] = &cp
	}
	return func() { m.people = saved }
}

func (m *mockRepo) seed(doc string, deleted bool) *Person {
	p := &Person{ID: uuid.New(), FirstName: "Seed", LastName: doc, DocumentType: "DNI", DocumentNumber: doc}
	if deleted {
		now := time.Now()
		p.DeletedAt = &now
	}
	m.people[p.ID] = p
	return p
}

func (m *mockRepo) Create(_ context.Context, p *Person) error {
	if m.failCreates > 0 {
		m.failCreates--
		return ErrDocumentTaken
	}
	for _, existing := range m.people {
		if existing.DocumentNumber == p.DocumentNumber {
			return ErrDocumentTaken
		}
	}
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.people[p.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Person, error) {
	p, ok := m.people[id]
	if !ok || p.DeletedAt != nil {
		return nil, apperr.NotFound("patient")
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, p *Person) error {
	existing, ok := m.people[p.ID]
	if !ok || existing.DeletedAt != nil {
		return apperr.NotFound("patient")
	}
	for _, other := range m.people {
		if other.ID != p.ID && other.DocumentNumber == p.DocumentNumber {
			return ErrDocumentTaken
		}
	}
	cp := *p
	m.people[p.ID] = &cp
	return nil
}

func (m *mockRepo) SoftDelete(_ context.Context, id uuid.UUID) error {
	p, ok := m.people[id]
	if !ok || p.DeletedAt != nil {
		return apperr.NotFound("patient")
	}
	now := time.Now()
	p.DeletedAt = &now
	return nil
}

func (m *mockRepo) List(_ context.Context, q ListQuery) ([]*Person, int, error) {
	var out []*Person
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	for _, p := range m.people {
		if p.DeletedAt != nil {
			continue
		}
		hay := strings.ToLower(p.FullName() + " " + p.DocumentNumber)
		if needle != "" && !strings.Contains(hay, needle) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	total := len(out)
	if q.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[q.Offset:]
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, total, nil
}

func (m *mockRepo) NumericDocumentNumbers(context.Context) ([]int64, error) {
	var out []int64
	for _, p := range m.people {
		if n, err := strconv.ParseInt(p.DocumentNumber, 10, 64); err == nil && n >= 0 {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockRepo) LockNumbering(context.Context) error {
	m.locks++
	return nil
}
