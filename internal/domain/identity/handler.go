package identity

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/ehrapp/internal/platform/apperr"
	"github.com/ehr/ehrapp/internal/platform/auth"
	"github.com/ehr/ehrapp/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the credential-free routes on public and the
// self-service routes on api, which must already authenticate.
func (h *Handler) RegisterRoutes(public, api *echo.Group) {
	public.POST("/auth/register", h.Register)
	public.POST("/auth/login", h.Login)
	public.POST("/auth/forgot-password", h.ForgotPassword)
	public.POST("/auth/reset-password", h.ResetPassword)
	public.GET("/doctors", h.ListDoctors)
	public.GET("/patients", h.ListPatients)
	public.GET("/patients/:id", h.GetPatient)

	api.GET("/auth/me", h.Me)
	api.PATCH("/user/change-name", h.ChangeName)
	api.PATCH("/user/change-email", h.ChangeEmail)
	api.PATCH("/user/change-password", h.ChangePassword)
	api.POST("/user/change-profile-picture", h.ChangeProfilePicture)
}

type messageResponse struct {
	Message string `json:"message"`
}

func bindBody(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return apperr.Wrap(apperr.ErrInvalidInput, "malformed request body")
	}
	return nil
}

// formUpload returns the named multipart file, or nil when the request
// carries none.
func formUpload(c echo.Context, field string) (*Upload, func(), error) {
	if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		return nil, func() {}, nil
	}
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, func() {}, nil
		}
		return nil, func() {}, apperr.Wrap(apperr.ErrInvalidInput, "unreadable %s upload", field)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return &Upload{FileName: fh.Filename, Content: f}, func() { f.Close() }, nil
}

func caller(c echo.Context) (auth.Identity, error) {
	id, ok := auth.IdentityFromContext(c.Request().Context())
	if !ok {
		return auth.Identity{}, apperr.ErrUnauthenticated
	}
	return id, nil
}

func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	picture, closeFn, err := formUpload(c, "profilePicture")
	if err != nil {
		return err
	}
	defer closeFn()

	u, err := h.svc.Register(c.Request().Context(), req, picture)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "User registered successfully!",
		"user":    u.Profile(),
	})
}

func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	resp, err := h.svc.Login(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) Me(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	me, err := h.svc.Me(c.Request().Context(), id.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, me)
}

func (h *Handler) ForgotPassword(c echo.Context) error {
	var req ForgotPasswordRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	link, err := h.svc.ForgotPassword(c.Request().Context(), req.Email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message":   "Password reset initiated",
		"resetLink": link,
	})
}

func (h *Handler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	if err := h.svc.ResetPassword(c.Request().Context(), req); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Password updated successfully"})
}

func (h *Handler) ChangeName(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req ChangeNameRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	if err := h.svc.ChangeName(c.Request().Context(), id.UserID, req.NewName); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Name updated successfully."})
}

func (h *Handler) ChangeEmail(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req ChangeEmailRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	if err := h.svc.ChangeEmail(c.Request().Context(), id.UserID, req); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Email updated successfully."})
}

func (h *Handler) ChangePassword(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	var req ChangePasswordRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	if err := h.svc.ChangePassword(c.Request().Context(), id.UserID, req); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "Password updated successfully."})
}

func (h *Handler) ChangeProfilePicture(c echo.Context) error {
	id, err := caller(c)
	if err != nil {
		return err
	}
	picture, closeFn, err := formUpload(c, "profilePicture")
	if err != nil {
		return err
	}
	defer closeFn()
	if picture == nil {
		return apperr.Wrap(apperr.ErrMissingField, "no file uploaded")
	}

	link, err := h.svc.ChangeProfilePicture(c.Request().Context(), id.UserID, picture)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Profile picture updated successfully.",
		"url":     link,
	})
}

func (h *Handler) ListDoctors(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListDoctors(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	setTotal(c, pg, total)
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ListPatients(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListPatients(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	setTotal(c, pg, total)
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Wrap(apperr.ErrInvalidID, "patient id")
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, p)
}

// Directories answer with a bare array; the full size travels in a header.
// setTotal reports the directory size and, when another page exists, the
// offset to request it with.
func setTotal(c echo.Context, pg pagination.Params, total int) {
	h := c.Response().Header()
	h.Set("X-Total-Count", strconv.Itoa(total))
	if pg.HasNext(total) {
		h.Set("X-Next-Offset", strconv.Itoa(pg.NextOffset()))
	}
}
