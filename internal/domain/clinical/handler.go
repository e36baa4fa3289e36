package clinical

import (
	"net/http"

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
	g := api.Group("/medicalRecords")
	g.POST("/add", h.Add, auth.RequireRole(auth.RoleDoctor))
	g.GET("/my-records", h.MyRecords, auth.RequireRole(auth.RolePatient))
	g.GET("/:patientId", h.PatientRecords, auth.RequireRole(auth.RoleDoctor))
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
	rec, err := h.svc.Add(c.Request().Context(), who, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "Medical record added successfully",
		"record":  rec,
	})
}

func (h *Handler) MyRecords(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	items, err := h.svc.MyRecords(c.Request().Context(), who)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) PatientRecords(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	items, err := h.svc.PatientRecords(c.Request().Context(), who, c.Param("patientId"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}
