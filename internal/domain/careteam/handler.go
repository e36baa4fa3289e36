package careteam

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
	api.POST("/patient/choose-doctor", h.ChooseDoctor, auth.RequireRole(auth.RolePatient))
	api.GET("/doctor/patients", h.ListMyPatients, auth.RequireRole(auth.RoleDoctor))
}

func (h *Handler) ChooseDoctor(c echo.Context) error {
	var req ChooseDoctorRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(apperr.ErrInvalidInput, "malformed request body")
	}
	ctx := c.Request().Context()
	a, err := h.svc.ChooseDoctor(ctx, auth.UserIDFromContext(ctx), req.DoctorID)
	if err != nil {
		return err
	}
	msg := "Patient linked successfully."
	if a.Repaired {
		msg = "Doctor updated for patient."
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": msg,
		"doctor":  a.Doctor,
		"patient": a.Patient,
	})
}

func (h *Handler) ListMyPatients(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.svc.ListMyPatients(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}
