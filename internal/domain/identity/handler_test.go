package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/ehrapp/internal/platform/apperr"
	"github.com/ehr/ehrapp/internal/platform/auth"
)

func newTestHandler() (*Handler, *echo.Echo) {
	svc, _, _ := newTestService()
	return NewHandler(svc), echo.New()
}

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func asUser(req *http.Request, u *User) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: u.ID, Role: u.Role}))
}

func TestHandler_Register(t *testing.T) {
	h, e := newTestHandler()
	req := jsonRequest(http.MethodPost, `{"name":"Ada","email":"ada@example.com","password":"pw","role":"doctor"}`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Register(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("response must not carry password material")
	}
}

func TestHandler_Register_Multipart(t *testing.T) {
	h, e := newTestHandler()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range map[string]string{"name": "Ada", "email": "ada@example.com", "password": "pw", "role": "patient"} {
		_ = w.WriteField(k, v)
	}
	fw, _ := w.CreateFormFile("profilePicture", "me.png")
	_, _ = fw.Write(pngBytes)
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Register(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out struct {
		User Profile `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.HasPrefix(out.User.ProfilePicture, "/api/blobs/") {
		t.Errorf("expected stored picture URL, got %q", out.User.ProfilePicture)
	}
}

func TestHandler_Register_InvalidRole(t *testing.T) {
	h, e := newTestHandler()
	req := jsonRequest(http.MethodPost, `{"name":"Ada","email":"ada@example.com","password":"pw","role":"admin"}`)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.Register(c)
	if !errors.Is(err, apperr.ErrInvalidRole) {
		t.Errorf("expected ErrInvalidRole, got %v", err)
	}
}

func TestHandler_Login(t *testing.T) {
	h, e := newTestHandler()
	mustRegister(t, h.svc, "Ada", "ada@example.com", "doctor")

	req := jsonRequest(http.MethodPost, `{"email":"ada@example.com","password":"s3cret"}`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Login(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Token == "" || out.User.Email != "ada@example.com" {
		t.Errorf("unexpected response %+v", out)
	}
}

func TestHandler_Login_BadCredentials(t *testing.T) {
	h, e := newTestHandler()
	req := jsonRequest(http.MethodPost, `{"email":"ada@example.com","password":"nope"}`)
	c := e.NewContext(req, httptest.NewRecorder())

	err := h.Login(c)
	if apperr.KindOf(err).HTTPStatus() != http.StatusBadRequest {
		t.Errorf("expected 400, got %v", err)
	}
}

func TestHandler_Me(t *testing.T) {
	h, e := newTestHandler()
	u := mustRegister(t, h.svc, "Ada", "ada@example.com", "patient")

	req := asUser(httptest.NewRequest(http.MethodGet, "/", nil), u)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Me(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"email":"ada@example.com"`) {
		t.Errorf("unexpected body %s", body)
	}
	if strings.Contains(body, "PasswordHash") || strings.Contains(body, "$2a$") {
		t.Error("password hash leaked")
	}
}

func TestHandler_Me_Unauthenticated(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	if err := h.Me(c); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestHandler_ForgotAndResetPassword(t *testing.T) {
	h, e := newTestHandler()
	mustRegister(t, h.svc, "Ada", "ada@example.com", "patient")

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"email":"ada@example.com"}`), rec)
	if err := h.ForgotPassword(c); err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	var issued map[string]string
	_ = json.Unmarshal(rec.Body.Bytes(), &issued)
	token := resetToken(t, issued["resetLink"])

	body, _ := json.Marshal(ResetPasswordRequest{Email: "ada@example.com", Token: token, Password: "fresh"})
	rec = httptest.NewRecorder()
	c = e.NewContext(jsonRequest(http.MethodPost, string(body)), rec)
	if err := h.ResetPassword(c); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestHandler_ChangeName(t *testing.T) {
	h, e := newTestHandler()
	u := mustRegister(t, h.svc, "Ada", "ada@example.com", "patient")

	req := asUser(jsonRequest(http.MethodPatch, `{"newName":"Ada L"}`), u)
	rec := httptest.NewRecorder()
	if err := h.ChangeName(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	me, _ := h.svc.Me(context.Background(), u.ID)
	if me.Name != "Ada L" {
		t.Errorf("name = %q", me.Name)
	}
}

func TestHandler_ChangeEmail_WrongPassword(t *testing.T) {
	h, e := newTestHandler()
	u := mustRegister(t, h.svc, "Ada", "ada@example.com", "patient")

	req := asUser(jsonRequest(http.MethodPatch, `{"newEmail":"x@example.com","password":"bad"}`), u)
	err := h.ChangeEmail(e.NewContext(req, httptest.NewRecorder()))
	if apperr.KindOf(err).HTTPStatus() != http.StatusUnauthorized {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestHandler_ChangeProfilePicture_NoFile(t *testing.T) {
	h, e := newTestHandler()
	u := mustRegister(t, h.svc, "Ada", "ada@example.com", "patient")

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("unrelated", "x")
	w.Close()
	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())

	err := h.ChangeProfilePicture(e.NewContext(asUser(req, u), httptest.NewRecorder()))
	if !errors.Is(err, apperr.ErrMissingField) {
		t.Errorf("expected ErrMissingField, got %v", err)
	}
}

func TestHandler_ListDoctors(t *testing.T) {
	h, e := newTestHandler()
	mustRegister(t, h.svc, "Dr A", "a@example.com", "doctor")
	mustRegister(t, h.svc, "Dr B", "b@example.com", "doctor")
	mustRegister(t, h.svc, "Pat", "p@example.com", "patient")

	req := httptest.NewRequest(http.MethodGet, "/?limit=1", nil)
	rec := httptest.NewRecorder()
	if err := h.ListDoctors(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out []Profile
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 1 {
		t.Errorf("expected one doctor on the page, got %d", len(out))
	}
	if rec.Header().Get("X-Total-Count") != "2" {
		t.Errorf("expected total 2, got %q", rec.Header().Get("X-Total-Count"))
	}
	if rec.Header().Get("X-Next-Offset") != "1" {
		t.Errorf("expected next offset 1, got %q", rec.Header().Get("X-Next-Offset"))
	}
}

func TestHandler_GetPatient_InvalidID(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("bogus")

	if err := h.GetPatient(c); !errors.Is(err, apperr.ErrInvalidID) {
		t.Errorf("expected ErrInvalidID, got %v", err)
	}
}

func TestHandler_GetPatient_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())

	if err := h.GetPatient(c); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
