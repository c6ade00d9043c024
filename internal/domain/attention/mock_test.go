package attention

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinic/frontdesk/internal/domain/catalog"
	"github.com/clinic/frontdesk/internal/domain/person"
	"github.com/clinic/frontdesk/internal/domain/professional"
	"github.com/clinic/frontdesk/internal/domain/triage"
	"github.com/clinic/frontdesk/internal/platform/apperr"
	"github.com/clinic/frontdesk/internal/platform/events"
)

// --- repository ---

type mockRepo struct {
	attentions map[uuid.UUID]*Attention
	attrs      map[uuid.UUID][]RecordedAttribute
	patients   map[uuid.UUID]*PatientSummary
	queue      []Row
	lastQuery  QueueQuery

	failCreate bool
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		attentions: make(map[uuid.UUID]*Attention),
		attrs:      make(map[uuid.UUID][]RecordedAttribute),
		patients:   make(map[uuid.UUID]*PatientSummary),
	}
}

func (m *mockRepo) Snapshot() func() {
	atts := make(map[uuid.UUID]*Attention, len(m.attentions))
	for k, v := range m.attentions {
		cp := *v
		atts[k] = &cp
	}
	attrs := make(map[uuid.UUID][]RecordedAttribute, len(m.attrs))
	for k, v := range m.attrs {
		attrs[k] = append([]RecordedAttribute(nil), v...)
	}
	return func() { m.attentions, m.attrs = atts, attrs }
}

func (m *mockRepo) toRow(a *Attention) *Row {
	return &Row{
		ID: a.ID, Date: a.Date, Time: a.Time,
		PatientID: a.PersonID, PatientName: m.patients[a.PersonID].FullName,
		ProfessionalID: a.ProfessionalID, ServiceID: a.ServiceID, TypeID: a.TypeID,
		StatusID: a.StatusID, Status: a.Status, StatusName: a.Status.DisplayName(),
		Motive: a.Motive, DerivedFromID: a.DerivedFromID, CreatedAt: a.CreatedAt,
	}
}

func (m *mockRepo) Queue(_ context.Context, q QueueQuery) ([]Row, int, error) {
	m.lastQuery = q
	return m.queue, len(m.queue), nil
}

func (m *mockRepo) Row(_ context.Context, id uuid.UUID) (*Row, error) {
	a, ok := m.attentions[id]
	if !ok {
		return nil, apperr.NotFound("attention")
	}
	return m.toRow(a), nil
}

func (m *mockRepo) detail(a *Attention) *Detail {
	return &Detail{
		Row: *m.toRow(a), Diagnosis: a.Diagnosis, Observations: a.Observations,
		CareNote: a.CareNote, Treatment: a.Treatment, StartedAt: a.StartedAt, EndedAt: a.EndedAt,
	}
}

func (m *mockRepo) Detail(_ context.Context, id uuid.UUID) (*Detail, error) {
	a, ok := m.attentions[id]
	if !ok {
		return nil, apperr.NotFound("attention")
	}
	return m.detail(a), nil
}

func (m *mockRepo) PatientDetails(_ context.Context, personID uuid.UUID) ([]*Detail, error) {
	var out []*Detail
	for _, a := range m.attentions {
		if a.PersonID == personID {
			out = append(out, m.detail(a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *mockRepo) Patient(_ context.Context, personID uuid.UUID) (*PatientSummary, error) {
	p, ok := m.patients[personID]
	if !ok {
		return nil, apperr.NotFound("patient")
	}
	cp := *p
	return &cp, nil
}

func (m *mockRepo) Create(_ context.Context, a *Attention) error {
	if m.failCreate {
		return errors.New("insert failed")
	}
	if a.DerivedFromID != nil {
		for _, other := range m.attentions {
			if other.DerivedFromID != nil && *other.DerivedFromID == *a.DerivedFromID {
				return apperr.Conflict("attention was already derived")
			}
		}
	}
	a.ID = uuid.New()
	a.Version = 1
	a.CreatedAt = time.Now().Add(time.Duration(len(m.attentions)) * time.Millisecond)
	a.UpdatedAt = a.CreatedAt
	cp := *a
	m.attentions[a.ID] = &cp
	return nil
}

func (m *mockRepo) GetForUpdate(_ context.Context, id uuid.UUID) (*Attention, error) {
	a, ok := m.attentions[id]
	if !ok {
		return nil, apperr.NotFound("attention")
	}
	cp := *a
	return &cp, nil
}

func (m *mockRepo) Update(_ context.Context, a *Attention) error {
	cur, ok := m.attentions[a.ID]
	if !ok {
		return apperr.NotFound("attention")
	}
	if cur.Version != a.Version {
		return apperr.Conflict("attention was modified concurrently")
	}
	a.Version++
	cp := *a
	m.attentions[a.ID] = &cp
	return nil
}

func (m *mockRepo) AddAttributes(_ context.Context, id uuid.UUID, values []AttributeValue) error {
	for _, v := range values {
		m.attrs[id] = append(m.attrs[id], RecordedAttribute{AttributeID: v.AttributeID, Name: "Peso", Value: v.Value})
	}
	return nil
}

func (m *mockRepo) Attributes(_ context.Context, ids ...uuid.UUID) (map[uuid.UUID][]RecordedAttribute, error) {
	out := make(map[uuid.UUID][]RecordedAttribute)
	for _, id := range ids {
		if v, ok := m.attrs[id]; ok {
			out[id] = v
		}
	}
	return out, nil
}

// --- collaborators ---

type stubCatalog struct {
	statuses map[triage.State]catalog.Status
	types    map[uuid.UUID]*catalog.AttentionType
	services map[uuid.UUID]*catalog.ClinicService
}

func newStubCatalog() *stubCatalog {
	c := &stubCatalog{
		statuses: make(map[triage.State]catalog.Status),
		types:    make(map[uuid.UUID]*catalog.AttentionType),
		services: make(map[uuid.UUID]*catalog.ClinicService),
	}
	for _, st := range triage.States {
		c.statuses[st] = catalog.Status{ID: uuid.New(), Code: st, Name: st.DisplayName()}
	}
	return c
}

func (c *stubCatalog) addService(name string, active bool) *catalog.ClinicService {
	s := &catalog.ClinicService{ID: uuid.New(), Name: name, Active: active}
	c.services[s.ID] = s
	return s
}

func (c *stubCatalog) addType(name string) *catalog.AttentionType {
	t := &catalog.AttentionType{ID: uuid.New(), Name: name, Tier: triage.Tier(name)}
	c.types[t.ID] = t
	return t
}

func (c *stubCatalog) Status(_ context.Context, state triage.State) (catalog.Status, error) {
	st, ok := c.statuses[state]
	if !ok {
		return catalog.Status{}, apperr.NotFound("status")
	}
	return st, nil
}

func (c *stubCatalog) StatusByID(_ context.Context, id uuid.UUID) (catalog.Status, error) {
	for _, st := range c.statuses {
		if st.ID == id {
			return st, nil
		}
	}
	return catalog.Status{}, apperr.NotFound("status")
}

func (c *stubCatalog) StatusIDs(_ context.Context, codes []triage.State) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(codes))
	for _, code := range codes {
		ids = append(ids, c.statuses[code].ID)
	}
	return ids, nil
}

func (c *stubCatalog) Type(_ context.Context, id uuid.UUID) (*catalog.AttentionType, error) {
	t, ok := c.types[id]
	if !ok {
		return nil, apperr.NotFound("attention type")
	}
	return t, nil
}

func (c *stubCatalog) GetService(_ context.Context, id uuid.UUID) (*catalog.ClinicService, error) {
	s, ok := c.services[id]
	if !ok {
		return nil, apperr.NotFound("service")
	}
	return s, nil
}

func (c *stubCatalog) Catalog(context.Context) (*catalog.Catalog, error) {
	cat := &catalog.Catalog{}
	for _, st := range triage.States {
		cat.Statuses = append(cat.Statuses, c.statuses[st])
	}
	return cat, nil
}

type stubProfessionals map[uuid.UUID]*professional.Professional

func (s stubProfessionals) Get(_ context.Context, id uuid.UUID) (*professional.Professional, error) {
	p, ok := s[id]
	if !ok {
		return nil, apperr.NotFound("professional")
	}
	return p, nil
}

func (s stubProfessionals) List(context.Context, professional.ListQuery) ([]*professional.Professional, int, error) {
	out := make([]*professional.Professional, 0, len(s))
	for _, p := range s {
		out = append(out, p)
	}
	return out, len(out), nil
}

type stubPatients map[uuid.UUID]*person.Person

func (s stubPatients) Get(_ context.Context, id uuid.UUID) (*person.Person, error) {
	p, ok := s[id]
	if !ok {
		return nil, apperr.NotFound("patient")
	}
	return p, nil
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Kind)
	}
	return out
}
