package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// AuditEntry describes one access to patient data.
type AuditEntry struct {
	UserID     string
	UserRole   string
	Resource   string
	PatientID  string
	Action     string
	Path       string
	Method     string
	RemoteIP   string
	RequestID  string
	StatusCode int
	Timestamp  time.Time
}

// auditedResources maps the first path segment under /api to the resource
// name written to the audit trail.
var auditedResources = map[string]string{
	"medicalRecords": "medical_record",
	"prescription":   "prescription",
	"billing":        "billing",
	"appointments":   "appointment",
	"patients":       "patient",
}

// Audit emits a phi_access log line after every request that touches
// clinical or financial data. The user id and role come from the values the
// authentication middleware stores on the echo context.
func Audit(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			resource, ok := auditedResource(req.URL.Path)
			if !ok {
				return next(c)
			}

			err := next(c)

			entry := AuditEntry{
				Resource:   resource,
				PatientID:  c.Param("patientId"),
				Action:     methodToAction(req.Method),
				Path:       req.URL.Path,
				Method:     req.Method,
				RemoteIP:   c.RealIP(),
				StatusCode: c.Response().Status,
				Timestamp:  time.Now().UTC(),
			}
			if err != nil {
				entry.StatusCode, _ = resolveError(err, false)
			}
			entry.UserID, _ = c.Get("user_id").(string)
			entry.UserRole, _ = c.Get("user_role").(string)
			entry.RequestID, _ = c.Get("request_id").(string)

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("user_role", entry.UserRole).
				Str("resource", entry.Resource).
				Str("patient_id", entry.PatientID).
				Str("action", entry.Action).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.RemoteIP).
				Int("status", entry.StatusCode).
				Msg("phi_access")

			return err
		}
	}
}

func auditedResource(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, "/api/")
	if !ok {
		return "", false
	}
	segment, _, _ := strings.Cut(rest, "/")
	resource, ok := auditedResources[segment]
	return resource, ok
}

func methodToAction(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return "read"
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
