package billing

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
	g := api.Group("/billing")
	g.POST("/add", h.Add, auth.RequireRole(auth.RoleDoctor))
	g.PATCH("/pay/:billingId", h.MarkPaid, auth.RequireRole(auth.RoleDoctor))
	g.GET("/invoice/:billingId", h.Invoice, auth.RequireRole(auth.RoleDoctor, auth.RolePatient))
	g.GET("/:patientId", h.List, auth.RequireRole(auth.RoleDoctor, auth.RolePatient))
}

func caller(c echo.Context) (auth.Identity, error) {
	id, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return auth.Identity{}, apperr.ErrUnauthenticated
	}
	return id, nil
}

// billID parses the path id; a malformed id names no bill.
func billID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("billingId"))
	if err != nil {
		return uuid.Nil, apperr.Wrap(apperr.ErrNotFound, "billing record %q", c.Param("billingId"))
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
	b, err := h.svc.Add(c.Request().Context(), who, req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "Billing record added successfully",
		"bill":    b,
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

func (h *Handler) MarkPaid(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	id, err := billID(c)
	if err != nil {
		return err
	}
	b, err := h.svc.MarkPaid(c.Request().Context(), who, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Payment marked as paid",
		"bill":    b,
	})
}

func (h *Handler) Invoice(c echo.Context) error {
	who, err := caller(c)
	if err != nil {
		return err
	}
	id, err := billID(c)
	if err != nil {
		return err
	}
	b, doc, err := h.svc.Invoice(c.Request().Context(), who, id)
	if err != nil {
		return err
	}
	return reporting.Attachment(c, reporting.InvoiceFileName(b.ID.String()), doc)
}
