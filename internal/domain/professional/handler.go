package professional

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/frontdesk/internal/domain/availability"
	"github.com/clinic/frontdesk/internal/platform/apperr"
	"github.com/clinic/frontdesk/internal/platform/auth"
	"github.com/clinic/frontdesk/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.Require(auth.ProfessionalRead))
	readGroup.GET("/professionals", h.ListProfessionals)
	readGroup.GET("/professionals/:id", h.GetProfessional)
	readGroup.GET("/professionals/:id/availability", h.CheckAvailability)
	readGroup.GET("/services/:id/professionals", h.ListForService)

	writeGroup := api.Group("", auth.Require(auth.ProfessionalWrite))
	writeGroup.POST("/professionals", h.CreateProfessional)
	writeGroup.PUT("/professionals/:id", h.UpdateProfessional)
	writeGroup.PUT("/professionals/:id/availability", h.SetAvailability)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) CreateProfessional(c echo.Context) error {
	var p Professional
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Create(c.Request().Context(), &p); err != nil {
		return err
	}
	created, err := h.svc.Get(c.Request().Context(), p.ID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (h *Handler) GetProfessional(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateProfessional(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var p Professional
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = id
	if err := h.svc.Update(c.Request().Context(), &p); err != nil {
		return err
	}
	updated, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *Handler) ListProfessionals(c echo.Context) error {
	pg := pagination.FromContext(c)
	q := ListQuery{Search: c.QueryParam("search"), Limit: pg.Limit(), Offset: pg.Offset()}
	if raw := c.QueryParam("specialty_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return apperr.Validation("specialty_id", "invalid specialty_id")
		}
		q.SpecialtyID = &id
	}
	items, total, err := h.svc.List(c.Request().Context(), q)
	if err != nil {
		return err
	}
	if items == nil {
		items = []*Professional{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, pg, total, map[string]interface{}{
		"search":  q.Search,
		"perPage": pg.PerPage,
	}))
}

type availabilityBody struct {
	Windows []availability.Window `json:"availability"`
}

func (h *Handler) SetAvailability(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body availabilityBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if body.Windows == nil {
		body.Windows = []availability.Window{}
	}
	if err := h.svc.SetAvailability(c.Request().Context(), id, body.Windows); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"availability": body.Windows,
		"schedule":     availability.Summary(body.Windows),
	})
}

func (h *Handler) CheckAvailability(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	date, tod, err := availability.ParseMoment(c.QueryParam("date"), c.QueryParam("time"), h.svc.Now())
	if err != nil {
		return apperr.Validation("date", err.Error())
	}
	res, err := h.svc.CheckAvailability(c.Request().Context(), id, date, tod)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) ListForService(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	date, tod, err := availability.ParseMoment(c.QueryParam("date"), c.QueryParam("time"), h.svc.Now())
	if err != nil {
		return apperr.Validation("date", err.Error())
	}
	list, err := h.svc.ForService(c.Request().Context(), id, date, tod)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"data": list,
		"date": date.Format(availability.DateLayout),
		"time": tod,
	})
}
