package careteam

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/ehr/ehrapp/internal/platform/apperr"
	"github.com/ehr/ehrapp/internal/platform/auth"
)

func newTestHandler() (*Handler, *mockLinkRepo, *echo.Echo) {
	svc, repo, _ := newTestService()
	return NewHandler(svc), repo, echo.New()
}

func asMember(req *http.Request, m *Member) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: m.ID, Role: m.Role}))
}

func TestHandler_ChooseDoctor(t *testing.T) {
	h, repo, e := newTestHandler()
	d := repo.add("House", auth.RoleDoctor)
	p := repo.add("Pat", auth.RolePatient)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"doctorID":"`+d.ID.String()+`"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	if err := h.ChooseDoctor(e.NewContext(asMember(req, p), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if out["message"] != "Patient linked successfully." {
		t.Errorf("unexpected message %v", out["message"])
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"doctorID":"`+d.ID.String()+`"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if err := h.ChooseDoctor(e.NewContext(asMember(req, p), rec)); err != nil {
		t.Fatalf("repeat: %v", err)
	}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if out["message"] != "Doctor updated for patient." {
		t.Errorf("unexpected repeat message %v", out["message"])
	}
}

func TestHandler_ChooseDoctor_UnknownDoctor(t *testing.T) {
	h, repo, e := newTestHandler()
	p := repo.add("Pat", auth.RolePatient)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"doctorID":"abc"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	err := h.ChooseDoctor(e.NewContext(asMember(req, p), httptest.NewRecorder()))
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHandler_ListMyPatients(t *testing.T) {
	h, repo, e := newTestHandler()
	d := repo.add("House", auth.RoleDoctor)
	p := repo.add("Pat", auth.RolePatient)
	if _, err := h.svc.ChooseDoctor(httptest.NewRequest(http.MethodGet, "/", nil).Context(), p.ID, d.ID.String()); err != nil {
		t.Fatal(err)
	}

	rec := httptest.NewRecorder()
	if err := h.ListMyPatients(e.NewContext(asMember(httptest.NewRequest(http.MethodGet, "/", nil), d), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var items []Member
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(items) != 1 || items[0].ID != p.ID {
		t.Errorf("unexpected patients %+v", items)
	}
}

func TestHandler_RoutesAreRoleGated(t *testing.T) {
	h, repo, e := newTestHandler()
	d := repo.add("House", auth.RoleDoctor)

	// Simulate the authentication layer with a fixed doctor identity.
	api := e.Group("/api", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.SetRequest(asMember(c.Request(), d))
			return next(c)
		}
	})
	h.RegisterRoutes(api)

	var gotErr error
	e.HTTPErrorHandler = func(err error, c echo.Context) { gotErr = err }

	req := httptest.NewRequest(http.MethodPost, "/api/patient/choose-doctor", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	e.ServeHTTP(httptest.NewRecorder(), req)

	if !errors.Is(gotErr, apperr.ErrForbidden) {
		t.Errorf("doctor choosing a doctor: expected ErrForbidden, got %v", gotErr)
	}
}
