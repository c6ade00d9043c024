package reporting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinic/frontdesk/internal/domain/triage"
	"github.com/clinic/frontdesk/internal/platform/apperr"
)

var base = time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)

func at(min int) *time.Time {
	t := base.Add(time.Duration(min) * time.Minute)
	return &t
}

const day = "2024-05-06"

func fixture() []Fact {
	return []Fact{
		{Date: day, TypeName: "Emergencia", ServiceName: "Guardia", Status: triage.Waiting, CreatedAt: base},
		{Date: day, TypeName: "Urgencia", ServiceName: "Guardia", Status: triage.InProgress, CreatedAt: base, StartedAt: at(10)},
		{Date: day, TypeName: "Emergencia", ServiceName: "Guardia", Status: triage.Attended, CreatedAt: base, StartedAt: at(20)},
		{Date: day, TypeName: "Consulta", ServiceName: "Pediatría", Status: triage.Waiting, CreatedAt: base},
		{Date: day, TypeName: "Consulta", ServiceName: "Pediatría", Status: triage.Attended, CreatedAt: base, StartedAt: at(30)},
		{Date: day, TypeName: "Control", ServiceName: "Clínica", Status: triage.Cancelled, CreatedAt: base},
		// Still waiting from the day before; not part of the day's figures.
		{Date: "2024-05-05", TypeName: "Emergencia", ServiceName: "Guardia", Status: triage.Waiting, CreatedAt: base.AddDate(0, 0, -1)},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(day, fixture())

	assert.Equal(t, 6, s.Total)
	assert.Equal(t, map[string]int{
		"waiting": 2, "in_progress": 1, "attended": 2, "derived": 0, "cancelled": 1,
	}, s.ByStatus)
	assert.Equal(t, 2, s.EmergenciesInProgress)
	assert.Equal(t, 2, s.Attended)
	require.NotNil(t, s.AvgWaitMinutes)
	assert.InDelta(t, 20.0, *s.AvgWaitMinutes, 0.001)
	assert.Equal(t, []Count{{"Guardia", 3}, {"Pediatría", 2}, {"Clínica", 1}}, s.ByService)
	assert.Equal(t, Count{"Consulta", 2}, s.ByType[0])
}

func TestSummarize_TotalsAgree(t *testing.T) {
	s := Summarize(day, fixture())
	sum := 0
	for _, n := range s.ByStatus {
		sum += n
	}
	assert.Equal(t, s.Total, sum)
	sum = 0
	for _, c := range s.ByService {
		sum += c.Total
	}
	assert.Equal(t, s.Total, sum)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize("2024-05-06", nil)

	assert.Zero(t, s.Total)
	assert.Nil(t, s.AvgWaitMinutes)
	assert.Len(t, s.ByStatus, len(triage.States))
	assert.Empty(t, s.ByType)
}

func TestSummarize_NegativeWaitClamped(t *testing.T) {
	s := Summarize(day, []Fact{{Date: day, Status: triage.InProgress, CreatedAt: base, StartedAt: at(-5)}})
	require.NotNil(t, s.AvgWaitMinutes)
	assert.Zero(t, *s.AvgWaitMinutes)
}

func TestSummarize_OtherDatesExcluded(t *testing.T) {
	s := Summarize("2024-05-05", fixture())

	assert.Equal(t, 1, s.Total)
	assert.Equal(t, 1, s.EmergenciesInProgress)
	assert.Equal(t, 1, s.ByStatus["waiting"])
	assert.Nil(t, s.AvgWaitMinutes)

	s = Summarize("2024-05-07", fixture())
	assert.Zero(t, s.Total)
	assert.Zero(t, s.EmergenciesInProgress)
}

func TestTrend_FillsGaps(t *testing.T) {
	pts := Trend(base, 3, map[string]int{"2024-05-04": 4, "2024-05-06": 1})

	assert.Equal(t, []TrendPoint{
		{Date: "2024-05-04", Total: 4},
		{Date: "2024-05-05", Total: 0},
		{Date: "2024-05-06", Total: 1},
	}, pts)
	assert.Len(t, Trend(base, 0, nil), 1)
}

func TestFindMeasure(t *testing.T) {
	for _, m := range PredefinedMeasures {
		assert.NotNil(t, FindMeasure(m.ID))
		assert.Contains(t, m.SQL, "$1::date")
		assert.Contains(t, m.SQL, "$2::date")
	}
	assert.Nil(t, FindMeasure("nope"))
}

type fakeSource struct {
	facts    []Fact
	date     string
	from, to string
	counts   map[string]int
	runArgs  []interface{}
}

func (f *fakeSource) Facts(_ context.Context, date string) ([]Fact, error) {
	f.date = date
	return f.facts, nil
}

func (f *fakeSource) DailyCounts(_ context.Context, from, to string) (map[string]int, error) {
	f.from, f.to = from, to
	return f.counts, nil
}

func (f *fakeSource) Run(_ context.Context, _ string, args ...interface{}) ([]map[string]interface{}, error) {
	f.runArgs = args
	return []map[string]interface{}{{"total": 3}}, nil
}

func newTestHandler(src Source) (*Handler, *echo.Echo) {
	art := time.FixedZone("ART", -3*60*60)
	h := NewHandler(src, art, zerolog.Nop())
	// 01:30 UTC is still the 5th in Buenos Aires.
	h.now = func() time.Time { return time.Date(2024, 5, 6, 1, 30, 0, 0, time.UTC) }
	return h, echo.New()
}

func TestHandler_DashboardDefaultsToLocalToday(t *testing.T) {
	src := &fakeSource{facts: fixture()}
	h, e := newTestHandler(src)
	rec := httptest.NewRecorder()

	require.NoError(t, h.Dashboard(e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil), rec)))

	assert.Equal(t, "2024-05-05", src.date)
	var s Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &s))
	assert.Equal(t, "2024-05-05", s.Date)
	assert.Equal(t, 1, s.Total)
}

func TestHandler_DashboardBadDate(t *testing.T) {
	h, e := newTestHandler(&fakeSource{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard?date=06-05-2024", nil)

	err := h.Dashboard(e.NewContext(req, httptest.NewRecorder()))

	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestHandler_Trend(t *testing.T) {
	src := &fakeSource{counts: map[string]int{"2024-05-10": 2}}
	h, e := newTestHandler(src)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/trend?date=2024-05-10&days=7", nil)

	require.NoError(t, h.DashboardTrend(e.NewContext(req, rec)))

	assert.Equal(t, "2024-05-04", src.from)
	assert.Equal(t, "2024-05-10", src.to)
	assert.True(t, strings.Contains(rec.Body.String(), `{"date":"2024-05-10","total":2}`))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/trend?days=0", nil)
	err := h.DashboardTrend(e.NewContext(req, httptest.NewRecorder()))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestHandler_EvaluateMeasure(t *testing.T) {
	src := &fakeSource{}
	h, e := newTestHandler(src)
	req := httptest.NewRequest(http.MethodGet, "/?to=2024-05-31", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("derivations-by-service")

	require.NoError(t, h.EvaluateMeasure(c))

	assert.Equal(t, []interface{}{"2024-05-02", "2024-05-31"}, src.runArgs)
	var report MeasureReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, "Derivations by service", report.MeasureName)
	assert.Len(t, report.Results, 1)

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("nope")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(h.EvaluateMeasure(c)))
}
