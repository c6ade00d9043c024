package attention

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

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
	readGroup := api.Group("", auth.Require(auth.QueueRead))
	readGroup.GET("/attentions", h.ListQueue)
	readGroup.GET("/attentions/:id", h.GetAttention)
	readGroup.GET("/my/waiting", h.MyWaiting)

	createGroup := api.Group("", auth.Require(auth.AttentionCreate))
	createGroup.GET("/attentions/form", h.GetForm)
	createGroup.POST("/attentions", h.CreateAttention)

	statusGroup := api.Group("", auth.Require(auth.AttentionUpdateStatus))
	statusGroup.PUT("/attentions/:id/status", h.UpdateStatus)
	statusGroup.POST("/attentions/:id/start", h.StartAttention)

	finalizeGroup := api.Group("", auth.Require(auth.AttentionFinalize))
	finalizeGroup.POST("/attentions/:id/guardar", h.FinalizeAttention)

	historyGroup := api.Group("", auth.Require(auth.HistoryRead))
	historyGroup.GET("/attentions/:id/history", h.GetHistory)
	historyGroup.GET("/attentions/:id/history.pdf", h.GetHistoryPDF)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func (h *Handler) ListQueue(c echo.Context) error {
	p := pagination.FromContextDefault(c, h.svc.PerPage())
	resp, err := h.svc.Queue(c.Request().Context(), c.QueryParam("date"), c.QueryParam("search"), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) MyWaiting(c echo.Context) error {
	var professionalID *uuid.UUID
	if pr := auth.PrincipalFromContext(c.Request().Context()); pr != nil {
		professionalID = pr.ProfessionalID
	}
	p := pagination.FromContextDefault(c, h.svc.PerPage())
	resp, err := h.svc.MyWaiting(c.Request().Context(), professionalID, c.QueryParam("date"), c.QueryParam("search"), p)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) GetAttention(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	row, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, row)
}

func (h *Handler) GetForm(c echo.Context) error {
	fd, err := h.svc.FormData(c.Request().Context(), c.QueryParam("handoff"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, fd)
}

func (h *Handler) CreateAttention(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	row, err := h.svc.Create(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, row)
}

type statusBody struct {
	StatusID uuid.UUID `json:"status_id"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var body statusBody
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	row, err := h.svc.UpdateStatus(c.Request().Context(), id, body.StatusID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, row)
}

func (h *Handler) StartAttention(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	row, err := h.svc.Start(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, row)
}

func (h *Handler) FinalizeAttention(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req FinalizeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	res, err := h.svc.Finalize(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, res)
}

func (h *Handler) GetHistory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	hist, err := h.svc.History(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, hist)
}

func (h *Handler) GetHistoryPDF(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	out, key, err := h.svc.HistoryPDF(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if key != "" {
		c.Response().Header().Set("X-Archive-Key", key)
	}
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="historia-%s.pdf"`, id))
	return c.Blob(http.StatusOK, "application/pdf", out)
}
