package reporting

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/frontdesk/internal/platform/apperr"
	"github.com/clinic/frontdesk/internal/platform/auth"
)

const (
	defaultTrendDays = 7
	maxTrendDays     = 90
	maxMeasureDays   = 366
)

type MeasureReport struct {
	MeasureID   string                   `json:"measure_id"`
	MeasureName string                   `json:"measure_name"`
	GeneratedAt time.Time                `json:"generated_at"`
	From        string                   `json:"from"`
	To          string                   `json:"to"`
	Results     []map[string]interface{} `json:"results"`
}

type Handler struct {
	src    Source
	loc    *time.Location
	logger zerolog.Logger
	now    func() time.Time
}

func NewHandler(src Source, loc *time.Location, logger zerolog.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{src: src, loc: loc, logger: logger, now: time.Now}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.Require(auth.DashboardRead))
	g.GET("/dashboard", h.Dashboard)
	g.GET("/dashboard/trend", h.DashboardTrend)
	g.GET("/reports/measures", h.ListMeasures)
	g.GET("/reports/measures/:id/evaluate", h.EvaluateMeasure)
}

// day reads a YYYY-MM-DD query param, defaulting to today in the clinic's
// zone.
func (h *Handler) day(c echo.Context, name string) (time.Time, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		n := h.now().In(h.loc)
		return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, h.loc), nil
	}
	d, err := time.ParseInLocation(dateLayout, raw, h.loc)
	if err != nil {
		return time.Time{}, apperr.Validation(name, "expected YYYY-MM-DD")
	}
	return d, nil
}

func (h *Handler) Dashboard(c echo.Context) error {
	d, err := h.day(c, "date")
	if err != nil {
		return err
	}
	date := d.Format(dateLayout)
	facts, err := h.src.Facts(c.Request().Context(), date)
	if err != nil {
		return fmt.Errorf("load dashboard facts: %w", err)
	}
	return c.JSON(http.StatusOK, Summarize(date, facts))
}

func (h *Handler) DashboardTrend(c echo.Context) error {
	end, err := h.day(c, "date")
	if err != nil {
		return err
	}
	days := defaultTrendDays
	if raw := c.QueryParam("days"); raw != "" {
		days, err = strconv.Atoi(raw)
		if err != nil || days < 1 || days > maxTrendDays {
			return apperr.Validation("days", fmt.Sprintf("days must be between 1 and %d", maxTrendDays))
		}
	}
	from := end.AddDate(0, 0, -(days - 1))
	counts, err := h.src.DailyCounts(c.Request().Context(), from.Format(dateLayout), end.Format(dateLayout))
	if err != nil {
		return fmt.Errorf("load daily counts: %w", err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"days": days,
		"data": Trend(end, days, counts),
	})
}

func (h *Handler) ListMeasures(c echo.Context) error {
	return c.JSON(http.StatusOK, PredefinedMeasures)
}

// EvaluateMeasure runs a measure over ?from..?to, which default to the
// last 30 days.
func (h *Handler) EvaluateMeasure(c echo.Context) error {
	m := FindMeasure(c.Param("id"))
	if m == nil {
		return apperr.NotFound("measure")
	}
	to, err := h.day(c, "to")
	if err != nil {
		return err
	}
	from := to.AddDate(0, 0, -29)
	if c.QueryParam("from") != "" {
		if from, err = h.day(c, "from"); err != nil {
			return err
		}
	}
	if from.After(to) {
		return apperr.Validation("from", "from must not be after to")
	}
	if to.Sub(from) > maxMeasureDays*24*time.Hour {
		return apperr.Validation("from", fmt.Sprintf("range must not exceed %d days", maxMeasureDays))
	}

	results, err := h.src.Run(c.Request().Context(), m.SQL, from.Format(dateLayout), to.Format(dateLayout))
	if err != nil {
		h.logger.Error().Err(err).Str("measure", m.ID).Msg("evaluate measure")
		return fmt.Errorf("evaluate %s: %w", m.ID, err)
	}
	return c.JSON(http.StatusOK, MeasureReport{
		MeasureID:   m.ID,
		MeasureName: m.Name,
		GeneratedAt: h.now().UTC(),
		From:        from.Format(dateLayout),
		To:          to.Format(dateLayout),
		Results:     results,
	})
}
