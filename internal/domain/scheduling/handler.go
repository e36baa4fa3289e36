package scheduling

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/ehrapp/internal/platform/apperr"
	"github.com/ehr/ehrapp/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/appointments", auth.RequireRole(auth.RoleDoctor, auth.RolePatient))
	g.POST("/book", h.Book)
	g.PUT("/:id/status", h.Transition)
	g.GET("", h.List)
}

func caller(c echo.Context) (auth.Identity, error) {
	id, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return auth.Identity{}, apperr.ErrUnauthenticated
	}
	return id, nil
}

func (h *Handler) Book(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req BookRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(apperr.ErrInvalidInput, "malformed request body")
	}
	a, err := h.svc.Book(c.Request().Context(), id, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":     "Appointment requested successfully.",
		"appointment": a,
	})
}

func (h *Handler) Transition(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	var req StatusRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(apperr.ErrInvalidInput, "malformed request body")
	}
	// A malformed id can name no appointment.
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		id = uuid.Nil
	}
	a, err := h.svc.Transition(c.Request().Context(), who, id, req.Status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message":     "Appointment " + strings.ToLower(string(a.Status)) + " successfully.",
		"appointment": a,
	})
}

func (h *Handler) List(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	items, err := h.svc.List(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}
