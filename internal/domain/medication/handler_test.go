package medication

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

func newTestHandler() (*Handler, *mockPrescriptionRepo, *echo.Echo) {
	svc, repo := newTestService()
	return NewHandler(svc), repo, echo.New()
}

func request(method, body string, who auth.Identity) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req.WithContext(auth.WithIdentity(req.Context(), who))
}

func TestHandler_Add(t *testing.T) {
	h, repo, e := newTestHandler()
	d := repo.add("House", auth.RoleDoctor)
	p := repo.add("Pat", auth.RolePatient)

	body := `{"patientId":"` + p.UserID.String() + `","diagnosis":"Flu","medicines":[{"medicineName":"Oseltamivir","dosage":"75mg","frequency":"2x daily","duration":"5 days"}]}`
	rec := httptest.NewRecorder()
	if err := h.Add(e.NewContext(request(http.MethodPost, body, d), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
	var out struct {
		Message      string       `json:"message"`
		Prescription Prescription `json:"prescription"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if out.Message != "Prescription added successfully" || len(out.Prescription.Medicines) != 1 {
		t.Errorf("unexpected response %+v", out)
	}
}

func TestHandler_List(t *testing.T) {
	h, repo, e := newTestHandler()
	d := repo.add("House", auth.RoleDoctor)
	p := repo.add("Pat", auth.RolePatient)
	prescribe(t, h.svc, d, p)

	rec := httptest.NewRecorder()
	c := e.NewContext(request(http.MethodGet, "", d), rec)
	c.SetParamNames("patientId")
	c.SetParamValues(p.UserID.String())
	if err := h.List(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var out []Prescription
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	if len(out) != 1 || out[0].Doctor == nil || out[0].Doctor.Name != "House" {
		t.Errorf("unexpected list %+v", out)
	}
}

func TestHandler_PDF(t *testing.T) {
	h, repo, e := newTestHandler()
	d := repo.add("House", auth.RoleDoctor)
	p := repo.add("Pat", auth.RolePatient)
	rx := prescribe(t, h.svc, d, p)

	rec := httptest.NewRecorder()
	c := e.NewContext(request(http.MethodGet, "", p), rec)
	c.SetParamNames("id")
	c.SetParamValues(rx.ID.String())
	if err := h.PDF(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Header().Get(echo.HeaderContentDisposition); got != "attachment; filename=prescription_"+rx.ID.String()+".pdf" {
		t.Errorf("Content-Disposition = %q", got)
	}
	if got := rec.Header().Get(echo.HeaderContentType); got != "application/pdf" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestHandler_PDF_MalformedID(t *testing.T) {
	h, repo, e := newTestHandler()
	d := repo.add("House", auth.RoleDoctor)

	c := e.NewContext(request(http.MethodGet, "", d), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("bad")
	if err := h.PDF(c); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
