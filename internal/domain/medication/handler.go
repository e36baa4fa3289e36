package medication

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/ehrapp/internal/platform/apperr"
	"github.com/ehr/ehrapp/internal/platform/auth"
	"github.com/ehr/ehrapp/internal/platform/reporting"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/prescription")
	g.POST("/add", h.Add, auth.RequireRole(auth.RoleDoctor))
	g.GET("/pdf/:id", h.PDF, auth.RequireRole(auth.RoleDoctor, auth.RolePatient))
	g.GET("/:patientId", h.List, auth.RequireRole(auth.RoleDoctor, auth.RolePatient))
}

func caller(c echo.Context) (auth.Identity, error) {
	id, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return auth.Identity{}, apperr.ErrUnauthenticated
	}
	return id, nil
}

func (h *Handler) Add(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	var req AddRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(apperr.ErrInvalidInput, "malformed request body")
	}
	rx, err := h.svc.Add(c.Request().Context(), who, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":      "Prescription added successfully",
		"prescription": rx,
	})
}

func (h *Handler) List(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	items, err := h.svc.List(c.Request().Context(), who, c.Param("patientId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) PDF(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Wrap(apperr.ErrNotFound, "prescription %q", c.Param("id"))
	}
	rx, doc, err := h.svc.PDF(c.Request().Context(), who, id)
	if err != nil {
		return err
	}
	return reporting.Attachment(c, reporting.PrescriptionFileName(rx.ID.String()), doc)
}
