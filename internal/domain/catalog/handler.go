package catalog

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/clinic/frontdesk/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/catalog", h.GetCatalog)
	api.GET("/services", h.ListServices)
	api.GET("/services/:id", h.GetService)

	write := api.Group("", auth.Require(auth.CatalogWrite))
	write.POST("/services", h.CreateService)
	write.PUT("/services/:id", h.UpdateService)
	write.POST("/specialties", h.CreateSpecialty)
}

func (h *Handler) GetCatalog(c echo.Context) error {
	cat, err := h.svc.Catalog(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cat)
}

func (h *Handler) ListServices(c echo.Context) error {
	all := c.QueryParam("all") == "true"
	list, err := h.svc.ListServices(c.Request().Context(), !all)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": list})
}

func (h *Handler) GetService(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	svc, err := h.svc.GetService(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, svc)
}

func (h *Handler) CreateService(c echo.Context) error {
	var body ClinicService
	body.Active = true
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateService(c.Request().Context(), &body); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, body)
}

func (h *Handler) UpdateService(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var body ClinicService
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	body.ID = id
	if err := h.svc.UpdateService(c.Request().Context(), &body); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, body)
}

func (h *Handler) CreateSpecialty(c echo.Context) error {
	var body Specialty
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.CreateSpecialty(c.Request().Context(), &body); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, body)
}
