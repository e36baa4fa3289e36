package inbox

import (
	"net/http"

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

// RegisterRoutes mounts the notification routes on api, which must already
// authenticate. live upgrades to a WebSocket and may be nil.
func (h *Handler) RegisterRoutes(api *echo.Group, live echo.HandlerFunc) {
	g := api.Group("/notifications")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.GET("/unread-count", h.UnreadCount)
	g.PUT("/read-all", h.MarkAllRead)
	g.PUT("/:id/read", h.MarkRead)
	if live != nil {
		g.GET("/ws", live)
	}
}

func (h *Handler) List(c echo.Context) error {
	items, err := h.svc.List(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Wrap(apperr.ErrInvalidInput, "malformed request body")
	}
	if req.UserID == "" {
		return apperr.Wrap(apperr.ErrMissingField, "userId")
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return apperr.Wrap(apperr.ErrInvalidID, "userId")
	}
	n, err := h.svc.Create(c.Request().Context(), userID, req.Message)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, n)
}

// MarkRead does not verify that the notification belongs to the caller.
func (h *Handler) MarkRead(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Wrap(apperr.ErrInvalidID, "notification id")
	}
	n, err := h.svc.MarkRead(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

func (h *Handler) MarkAllRead(c echo.Context) error {
	marked, err := h.svc.MarkAllRead(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"marked": marked})
}

func (h *Handler) UnreadCount(c echo.Context) error {
	n, err := h.svc.UnreadCount(c.Request().Context(), auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]int{"count": n})
}
