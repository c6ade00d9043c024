package attention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinic/frontdesk/internal/domain/availability"
	"github.com/clinic/frontdesk/internal/domain/catalog"
	"github.com/clinic/frontdesk/internal/domain/person"
	"github.com/clinic/frontdesk/internal/domain/professional"
	"github.com/clinic/frontdesk/internal/domain/triage"
	"github.com/clinic/frontdesk/internal/platform/apperr"
	"github.com/clinic/frontdesk/internal/platform/auth"
	"github.com/clinic/frontdesk/internal/platform/blobstore"
	"github.com/clinic/frontdesk/internal/platform/db/dbtest"
	"github.com/clinic/frontdesk/internal/platform/events"
	"github.com/clinic/frontdesk/internal/platform/handoff"
	"github.com/clinic/frontdesk/pkg/pagination"
)

var (
	art    = time.FixedZone("ART", -3*60*60)
	monday = time.Date(2024, 5, 6, 10, 30, 0, 0, art)
)

type testEnv struct {
	repo     *mockRepo
	tx       *dbtest.TxRunner
	cat      *stubCatalog
	events   *recorder
	handoffs *handoff.MemoryStore
	blobs    *blobstore.MemoryStore
	svc      *Service

	guardia, pediatria *catalog.ClinicService
	consulta           *catalog.AttentionType
	gomez, ruiz        *professional.Professional
	patient            *person.Person
}

func newTestEnv() *testEnv {
	env := &testEnv{
		repo:     newMockRepo(),
		cat:      newStubCatalog(),
		events:   &recorder{},
		handoffs: handoff.NewMemoryStore(time.Minute),
		blobs:    blobstore.NewMemoryStore(),
	}
	env.tx = dbtest.NewTxRunner(env.repo)
	env.guardia = env.cat.addService("Guardia", true)
	env.pediatria = env.cat.addService("Pediatría", true)
	env.consulta = env.cat.addType("Consulta")

	env.gomez = &professional.Professional{
		ID: uuid.New(), FirstName: "Ana", LastName: "Gómez",
		Windows: []availability.Window{{Day: 1, Start: availability.MustParse("09:00"), End: availability.MustParse("12:00")}},
	}
	env.ruiz = &professional.Professional{ID: uuid.New(), FirstName: "Luis", LastName: "Ruiz"}
	pros := stubProfessionals{env.gomez.ID: env.gomez, env.ruiz.ID: env.ruiz}

	env.patient = &person.Person{ID: uuid.New(), FirstName: "Juan", LastName: "Pérez", DocumentType: "DNI", DocumentNumber: "30111222"}
	env.repo.patients[env.patient.ID] = &PatientSummary{
		ID: env.patient.ID, FullName: env.patient.FullName(), DocumentType: "DNI", DocumentNumber: "30111222",
	}

	env.svc = NewService(env.repo, env.tx, Deps{
		Catalog:       env.cat,
		Professionals: pros,
		Patients:      stubPatients{env.patient.ID: env.patient},
		Handoffs:      env.handoffs,
		Events:        env.events,
		Blobs:         env.blobs,
		Logger:        zerolog.Nop(),
	}, Options{Location: art, PerPage: 15, ClinicName: "Clínica Central"})
	env.svc.now = func() time.Time { return monday }
	return env
}

func (env *testEnv) request() CreateRequest {
	return CreateRequest{
		ServiceID:      env.guardia.ID,
		TypeID:         env.consulta.ID,
		PatientID:      env.patient.ID,
		ProfessionalID: env.gomez.ID,
	}
}

func (env *testEnv) book(t *testing.T) *Row {
	t.Helper()
	row, err := env.svc.Create(context.Background(), env.request())
	require.NoError(t, err)
	return row
}

func text(s string) *string { return &s }

func finalizeRequest() FinalizeRequest {
	return FinalizeRequest{Motive: text("Fiebre"), CareNote: text("Control en 48h")}
}

func TestCreate_DefaultsToNowAndWaiting(t *testing.T) {
	env := newTestEnv()

	row := env.book(t)

	assert.Equal(t, "2024-05-06", row.Date)
	assert.Equal(t, "10:30", row.Time.String())
	assert.Equal(t, triage.Waiting, row.Status)
	assert.Equal(t, env.cat.statuses[triage.Waiting].ID, row.StatusID)
	assert.Equal(t, []events.Kind{events.AttentionCreated}, env.events.kinds())
}

func TestCreate_InProgressStampsStart(t *testing.T) {
	env := newTestEnv()
	req := env.request()
	id := env.cat.statuses[triage.InProgress].ID
	req.StatusID = &id

	row, err := env.svc.Create(context.Background(), req)
	require.NoError(t, err)

	a := env.repo.attentions[row.ID]
	require.NotNil(t, a.StartedAt)
	assert.True(t, a.StartedAt.Equal(monday))
}

func TestCreate_Validation(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.Create(context.Background(), CreateRequest{Date: "06/05/2024"})

	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, apperr.KindValidation, ae.Kind)
	for _, f := range []string{"service_id", "type_id", "patient_id", "professional_id", "date"} {
		assert.Contains(t, ae.Fields, f)
	}
	assert.Empty(t, env.repo.attentions)
}

func TestCreate_RejectsTerminalStatus(t *testing.T) {
	env := newTestEnv()
	req := env.request()
	id := env.cat.statuses[triage.Attended].ID
	req.StatusID = &id

	_, err := env.svc.Create(context.Background(), req)

	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestCreate_InactiveService(t *testing.T) {
	env := newTestEnv()
	req := env.request()
	req.ServiceID = env.cat.addService("Cerrado", false).ID

	_, err := env.svc.Create(context.Background(), req)

	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestCreate_UnknownPatient(t *testing.T) {
	env := newTestEnv()
	req := env.request()
	req.PatientID = uuid.New()

	_, err := env.svc.Create(context.Background(), req)

	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestCreate_OutsideAvailabilityNeedsConfirmation(t *testing.T) {
	env := newTestEnv()
	req := env.request()
	req.Time = "15:00"

	_, err := env.svc.Create(context.Background(), req)

	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, apperr.KindWarning, ae.Kind)
	assert.Equal(t, "outside_availability", ae.Code)
	assert.Contains(t, ae.Message, "Ana Gómez")
	assert.Empty(t, env.repo.attentions)

	req.ConfirmOutsideHours = true
	row, err := env.svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "15:00", row.Time.String())
}

func TestCreate_NoScheduleWarns(t *testing.T) {
	env := newTestEnv()
	req := env.request()
	req.ProfessionalID = env.ruiz.ID

	_, err := env.svc.Create(context.Background(), req)

	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, apperr.KindWarning, ae.Kind)
	assert.Contains(t, ae.Message, "no availability configured")
}

func TestStartAndCancel(t *testing.T) {
	env := newTestEnv()
	row := env.book(t)
	ctx := context.Background()

	started, err := env.svc.Start(ctx, row.ID)
	require.NoError(t, err)
	assert.Equal(t, triage.InProgress, started.Status)
	require.NotNil(t, env.repo.attentions[row.ID].StartedAt)

	_, err = env.svc.Start(ctx, row.ID)
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	cancelled, err := env.svc.UpdateStatus(ctx, row.ID, env.cat.statuses[triage.Cancelled].ID)
	require.NoError(t, err)
	assert.Equal(t, triage.Cancelled, cancelled.Status)
	assert.NotNil(t, env.repo.attentions[row.ID].EndedAt)
	assert.Equal(t, 3, env.repo.attentions[row.ID].Version)
}

func TestUpdateStatus_Rejected(t *testing.T) {
	env := newTestEnv()
	row := env.book(t)
	ctx := context.Background()

	_, err := env.svc.UpdateStatus(ctx, row.ID, env.cat.statuses[triage.Derived].ID)
	assert.True(t, errors.Is(err, apperr.ErrValidation), "derive must go through finalize")

	_, err = env.svc.UpdateStatus(ctx, row.ID, env.cat.statuses[triage.Waiting].ID)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = env.svc.UpdateStatus(ctx, row.ID, uuid.New())
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
	assert.Equal(t, triage.Waiting, env.repo.attentions[row.ID].Status)
}

func TestFinalize_Attend(t *testing.T) {
	env := newTestEnv()
	row := env.book(t)
	req := finalizeRequest()
	req.Attributes = []AttributeValue{{AttributeID: uuid.New(), Value: " 72.5 "}}

	res, err := env.svc.Finalize(context.Background(), row.ID, req)
	require.NoError(t, err)

	assert.Equal(t, triage.Attended, res.Attention.Status)
	assert.Nil(t, res.Derived)
	a := env.repo.attentions[row.ID]
	assert.Equal(t, "Control en 48h", *a.CareNote)
	require.NotNil(t, a.StartedAt)
	require.NotNil(t, a.EndedAt)
	require.Len(t, env.repo.attrs[row.ID], 1)
	assert.Equal(t, "72.5", env.repo.attrs[row.ID][0].Value)
	assert.Len(t, env.repo.attentions, 1)
	assert.Equal(t, []events.Kind{events.AttentionCreated, events.AttentionUpdated}, env.events.kinds())
}

func TestFinalize_DeriveCreatesWaitingChild(t *testing.T) {
	env := newTestEnv()
	row := env.book(t)
	req := finalizeRequest()
	req.Derive = true
	req.Derivation = &Derivation{ServiceID: env.pediatria.ID, ProfessionalID: env.ruiz.ID}

	res, err := env.svc.Finalize(context.Background(), row.ID, req)
	require.NoError(t, err)

	assert.Equal(t, triage.Derived, res.Attention.Status)
	require.NotNil(t, res.Derived)
	child := res.Derived
	assert.Equal(t, triage.Waiting, child.Status)
	assert.Equal(t, env.pediatria.ID, child.ServiceID)
	assert.Equal(t, env.ruiz.ID, child.ProfessionalID)
	assert.Equal(t, row.PatientID, child.PatientID)
	require.NotNil(t, child.DerivedFromID)
	assert.Equal(t, row.ID, *child.DerivedFromID)
	assert.Equal(t, "Fiebre", *child.Motive, "motive falls back to the parent's")
	assert.Equal(t, "2024-05-06", child.Date)
	assert.Equal(t, []events.Kind{
		events.AttentionCreated, events.AttentionUpdated, events.AttentionCreated,
	}, env.events.kinds())
}

func TestFinalize_SecondCallConflicts(t *testing.T) {
	env := newTestEnv()
	row := env.book(t)
	req := finalizeRequest()
	req.Derive = true
	req.Derivation = &Derivation{ServiceID: env.pediatria.ID, ProfessionalID: env.ruiz.ID}
	ctx := context.Background()

	_, err := env.svc.Finalize(ctx, row.ID, req)
	require.NoError(t, err)
	_, err = env.svc.Finalize(ctx, row.ID, req)

	assert.True(t, errors.Is(err, apperr.ErrConflict))
	assert.Len(t, env.repo.attentions, 2)
}

func TestFinalize_OnlyAssignedProfessional(t *testing.T) {
	env := newTestEnv()
	row := env.book(t)

	asRuiz := auth.WithPrincipal(context.Background(), &auth.Principal{ProfessionalID: &env.ruiz.ID})
	_, err := env.svc.Finalize(asRuiz, row.ID, finalizeRequest())
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
	assert.Equal(t, triage.Waiting, env.repo.attentions[row.ID].Status)
	assert.Equal(t, 1, env.tx.Rolled)

	asGomez := auth.WithPrincipal(context.Background(), &auth.Principal{ProfessionalID: &env.gomez.ID})
	res, err := env.svc.Finalize(asGomez, row.ID, finalizeRequest())
	require.NoError(t, err)
	assert.Equal(t, triage.Attended, res.Attention.Status)
}

func TestFinalize_SuperAdminAndUnlinkedAccountsPass(t *testing.T) {
	env := newTestEnv()
	first, second := env.book(t), env.book(t)

	root := auth.WithPrincipal(context.Background(), &auth.Principal{SuperAdmin: true, ProfessionalID: &env.ruiz.ID})
	_, err := env.svc.Finalize(root, first.ID, finalizeRequest())
	require.NoError(t, err)

	admin := auth.WithPrincipal(context.Background(), &auth.Principal{Role: auth.RoleAdmin})
	_, err = env.svc.Finalize(admin, second.ID, finalizeRequest())
	require.NoError(t, err)
}

func TestFinalize_RollsBackWhenDerivedInsertFails(t *testing.T) {
	env := newTestEnv()
	row := env.book(t)
	env.repo.failCreate = true
	req := finalizeRequest()
	req.Derive = true
	req.Attributes = []AttributeValue{{AttributeID: uuid.New(), Value: "38"}}
	req.Derivation = &Derivation{ServiceID: env.pediatria.ID, ProfessionalID: env.ruiz.ID}

	_, err := env.svc.Finalize(context.Background(), row.ID, req)

	require.Error(t, err)
	assert.Equal(t, 1, env.tx.Rolled)
	a := env.repo.attentions[row.ID]
	assert.Equal(t, triage.Waiting, a.Status)
	assert.Nil(t, a.CareNote)
	assert.Empty(t, env.repo.attrs)
	assert.Len(t, env.repo.attentions, 1)
}

func TestFinalize_ValidatesBeforeTransaction(t *testing.T) {
	env := newTestEnv()
	row := env.book(t)

	_, err := env.svc.Finalize(context.Background(), row.ID, FinalizeRequest{
		Motive:     text("  "),
		Derive:     true,
		Attributes: []AttributeValue{{Value: ""}},
	})

	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	for _, f := range []string{"motive", "care_note", "derivation", "attributes.0.attribute_id", "attributes.0.value"} {
		assert.Contains(t, ae.Fields, f)
	}
	assert.Zero(t, env.tx.Begun)
}

func TestFinalize_DerivationMustMove(t *testing.T) {
	env := newTestEnv()
	row := env.book(t)
	req := finalizeRequest()
	req.Derive = true
	req.Derivation = &Derivation{ServiceID: env.guardia.ID, ProfessionalID: env.gomez.ID}

	_, err := env.svc.Finalize(context.Background(), row.ID, req)

	assert.True(t, errors.Is(err, apperr.ErrValidation))
	assert.Equal(t, triage.Waiting, env.repo.attentions[row.ID].Status)
}

func TestFinalize_EndBeforeStart(t *testing.T) {
	env := newTestEnv()
	row := env.book(t)
	req := finalizeRequest()
	start, end := monday, monday.Add(-time.Hour)
	req.StartedAt, req.EndedAt = &start, &end

	_, err := env.svc.Finalize(context.Background(), row.ID, req)

	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestQueue_EmptyPage(t *testing.T) {
	env := newTestEnv()

	resp, err := env.svc.Queue(context.Background(), "", " pérez ", pagination.New(1, 0, env.svc.PerPage()))
	require.NoError(t, err)

	assert.Equal(t, []Row{}, resp.Data)
	assert.Equal(t, QueueFilters{Search: "pérez", PerPage: 15, Date: "2024-05-06"}, resp.Filters)
	q := env.repo.lastQuery
	require.NotNil(t, q.Date)
	assert.Equal(t, "2024-05-06", q.Date.Format(availability.DateLayout))
	assert.Len(t, q.StatusIDs, 3)
	assert.Nil(t, q.ProfessionalID)
	assert.Equal(t, 15, q.Limit)
}

func TestQueue_InvalidDate(t *testing.T) {
	env := newTestEnv()

	_, err := env.svc.Queue(context.Background(), "mañana", "", pagination.New(1, 10, 10))

	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestMyWaiting(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	p := pagination.New(2, 5, 15)

	_, err := env.svc.MyWaiting(ctx, nil, "", "", p)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	_, err = env.svc.MyWaiting(ctx, &env.gomez.ID, "", "", p)
	require.NoError(t, err)
	q := env.repo.lastQuery
	assert.Nil(t, q.Date, "all dates unless one is asked for")
	assert.Equal(t, []uuid.UUID{env.cat.statuses[triage.Waiting].ID}, q.StatusIDs)
	assert.Equal(t, env.gomez.ID, *q.ProfessionalID)
	assert.Equal(t, 5, q.Offset)

	_, err = env.svc.MyWaiting(ctx, &env.gomez.ID, "2024-05-07", "", p)
	require.NoError(t, err)
	require.NotNil(t, env.repo.lastQuery.Date)
	assert.Equal(t, 7, env.repo.lastQuery.Date.Day())
}

func TestFormData_ConsumesHandoff(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	token, err := handoff.PutJSON(ctx, env.handoffs, env.patient.Recent())
	require.NoError(t, err)

	fd, err := env.svc.FormData(ctx, token)
	require.NoError(t, err)
	require.NotNil(t, fd.RecentPatient)
	assert.Equal(t, env.patient.ID, fd.RecentPatient.ID)
	assert.Len(t, fd.Professionals, 2)
	assert.Equal(t, "2024-05-06", fd.Date)

	fd, err = env.svc.FormData(ctx, token)
	require.NoError(t, err)
	assert.Nil(t, fd.RecentPatient, "tokens are single use")
}

func TestHistory(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	first := env.book(t)
	req := finalizeRequest()
	req.Attributes = []AttributeValue{{AttributeID: uuid.New(), Value: "70"}}
	_, err := env.svc.Finalize(ctx, first.ID, req)
	require.NoError(t, err)
	second := env.book(t)

	h, err := env.svc.History(ctx, second.ID)
	require.NoError(t, err)

	assert.Equal(t, second.ID, h.Attention.ID)
	assert.Equal(t, "Juan Pérez", h.Patient.FullName)
	assert.Equal(t, []RecordedAttribute{}, h.Attention.Attributes)
	require.Len(t, h.Previous, 1)
	assert.Equal(t, first.ID, h.Previous[0].ID)
	assert.Len(t, h.Previous[0].Attributes, 1)
}

func TestHistoryPDF_Archives(t *testing.T) {
	env := newTestEnv()
	row := env.book(t)

	out, key, err := env.svc.HistoryPDF(context.Background(), row.ID)
	require.NoError(t, err)

	assert.True(t, len(out) > 4 && string(out[:4]) == "%PDF")
	assert.Equal(t, ArchiveKey(env.patient.ID, row.ID), key)
	stored, obj, err := env.blobs.Get(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, out, stored)
	assert.Equal(t, "application/pdf", obj.ContentType)
}
