package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/frontdesk/internal/domain/triage"
	"github.com/clinic/frontdesk/internal/platform/apperr"
	"github.com/clinic/frontdesk/internal/platform/db/dbtest"
)

type mockRepo struct {
	types       []AttentionType
	statuses    []Status
	specialties []Specialty
	services    map[uuid.UUID]*ClinicService
	statusCalls int
}

func newMockRepo() *mockRepo {
	r := &mockRepo{services: make(map[uuid.UUID]*ClinicService)}
	for _, n := range []string{"Consulta", "Emergencia", "Urgencia"} {
		r.types = append(r.types, AttentionType{ID: uuid.New(), Name: n, Tier: triage.Tier(n)})
	}
	for _, s := range triage.States {
		r.statuses = append(r.statuses, Status{ID: uuid.New(), Code: s, Name: s.DisplayName()})
	}
	r.specialties = []Specialty{{ID: uuid.New(), Name: "Clínica médica"}}
	return r
}

func (m *mockRepo) Snapshot() func() {
	saved := make(map[uuid.UUID]*ClinicService, len(m.services))
	for k, v := range m.services {
		cp := *v
		saved[k] = &cp
	}
	return func() { m.services = saved }
}

func (m *mockRepo) ListTypes(context.Context) ([]AttentionType, error) { return m.types, nil }
func (m *mockRepo) ListStatuses(context.Context) ([]Status, error) {
	m.statusCalls++
	return m.statuses, nil
}
func (m *mockRepo) ListAttributes(context.Context) ([]Attribute, error)  { return nil, nil }
func (m *mockRepo) ListSpecialties(context.Context) ([]Specialty, error) { return m.specialties, nil }
func (m *mockRepo) ListServices(_ context.Context, activeOnly bool) ([]ClinicService, error) {
	var out []ClinicService
	for _, s := range m.services {
		if !activeOnly || s.Active {
			out = append(out, *s)
		}
	}
	return out, nil
}
func (m *mockRepo) GetType(_ context.Context, id uuid.UUID) (*AttentionType, error) {
	for _, t := range m.types {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, apperr.NotFound("attention type")
}
func (m *mockRepo) GetService(_ context.Context, id uuid.UUID) (*ClinicService, error) {
	s, ok := m.services[id]
	if !ok {
		return nil, apperr.NotFound("service")
	}
	return s, nil
}
func (m *mockRepo) CreateService(_ context.Context, s *ClinicService) error {
	for _, existing := range m.services {
		if strings.EqualFold(existing.Name, s.Name) {
			return apperr.Validation("name", "a service with this name already exists")
		}
	}
	s.ID = uuid.New()
	m.services[s.ID] = s
	return nil
}
func (m *mockRepo) UpdateService(_ context.Context, s *ClinicService) error {
	if _, ok := m.services[s.ID]; !ok {
		return apperr.NotFound("service")
	}
	m.services[s.ID] = s
	return nil
}
func (m *mockRepo) CreateSpecialty(_ context.Context, s *Specialty) error {
	s.ID = uuid.New()
	m.specialties = append(m.specialties, *s)
	return nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, dbtest.NewTxRunner(repo)), repo
}

func TestService_StatusLookupIsCached(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	waiting, err := svc.Status(ctx, triage.Waiting)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if waiting.Code != triage.Waiting {
		t.Errorf("expected waiting, got %s", waiting.Code)
	}
	byID, err := svc.StatusByID(ctx, waiting.ID)
	if err != nil || byID.Code != triage.Waiting {
		t.Errorf("StatusByID = %+v, %v", byID, err)
	}
	if _, err := svc.StatusByID(ctx, uuid.New()); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("expected validation error for unknown id, got %v", err)
	}
	if repo.statusCalls != 1 {
		t.Errorf("expected statuses loaded once, got %d", repo.statusCalls)
	}
}

func TestService_MissingStatusRow(t *testing.T) {
	svc, repo := newTestService()
	repo.statuses = repo.statuses[:2]
	if _, err := svc.Status(context.Background(), triage.Waiting); err == nil {
		t.Fatal("expected error when a status row is missing")
	}
}

func TestService_StatusIDs(t *testing.T) {
	svc, _ := newTestService()
	ids, err := svc.StatusIDs(context.Background(), []triage.State{triage.Waiting, triage.Cancelled})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(ids))
	}
	if _, err := svc.StatusIDs(context.Background(), []triage.State{"lost"}); err == nil {
		t.Error("expected error for unknown code")
	}
}

func TestService_CatalogStatusOrder(t *testing.T) {
	svc, _ := newTestService()
	cat, err := svc.Catalog(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for i, st := range cat.Statuses {
		if st.Code != triage.States[i] {
			t.Errorf("Statuses[%d] = %s, want %s", i, st.Code, triage.States[i])
		}
	}
	if len(cat.Types) != 3 {
		t.Errorf("expected 3 types, got %d", len(cat.Types))
	}
}

func TestService_CreateServiceValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	err := svc.CreateService(ctx, &ClinicService{Name: "   "})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	sp := uuid.New()
	err = svc.CreateService(ctx, &ClinicService{Name: "Guardia", SpecialtyIDs: []uuid.UUID{sp, sp}})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected duplicate specialty error, got %v", err)
	}

	s := &ClinicService{Name: " Guardia ", Active: true, SpecialtyIDs: []uuid.UUID{sp}}
	if err := svc.CreateService(ctx, s); err != nil {
		t.Fatalf("CreateService: %v", err)
	}
	if s.Name != "Guardia" {
		t.Errorf("expected trimmed name, got %q", s.Name)
	}
	err = svc.CreateService(ctx, &ClinicService{Name: "guardia"})
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Fields["name"] == "" {
		t.Errorf("expected duplicate name error, got %v", err)
	}
}

func TestHandler_CreateAndGetService(t *testing.T) {
	svc, _ := newTestService()
	h := NewHandler(svc)
	e := echo.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/services", strings.NewReader(`{"name":"Pediatría"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.CreateService(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"active":true`) {
		t.Errorf("new services default to active: %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	if err := h.GetService(c); apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}
}
