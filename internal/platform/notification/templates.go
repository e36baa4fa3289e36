// Package notification renders the user-facing texts of in-app notifications.
package notification

import (
	"fmt"
	"strings"
	"sync"
)

// Template IDs.
const (
	AppointmentRequested = "appointment-requested"
	AppointmentStatus    = "appointment-status"
	PatientAssigned      = "patient-assigned"
	DoctorConfirmed      = "doctor-confirmed"
	PasswordReset        = "password-reset"
)

// TemplateEngine holds message templates with {{key}} placeholders.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]string
}

// NewTemplateEngine returns an engine with the built-in templates registered.
func NewTemplateEngine() *TemplateEngine {
	return &TemplateEngine{templates: map[string]string{
		AppointmentRequested: "New appointment request from {{initiator}} for {{date}} at {{time}}.",
		AppointmentStatus:    "Your appointment has been {{status}} by the {{actor}}.",
		PatientAssigned:      "You have been assigned a new patient: {{patient_name}}.",
		DoctorConfirmed:      "Your doctor selection is confirmed: Dr. {{doctor_name}}.",
		PasswordReset:        "Use the following link to reset your password: {{reset_link}}",
	}}
}

// Register adds or replaces a template.
func (e *TemplateEngine) Register(id, body string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[id] = body
}

// Render substitutes data into the template. Every placeholder must be
// supplied; a leftover {{...}} is an error rather than text shown to a user.
func (e *TemplateEngine) Render(id string, data map[string]string) (string, error) {
	e.mu.RLock()
	body, ok := e.templates[id]
	e.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("template %q not found", id)
	}

	for k, v := range data {
		body = strings.ReplaceAll(body, "{{"+k+"}}", v)
	}
	if i := strings.Index(body, "{{"); i >= 0 {
		end := strings.Index(body[i:], "}}")
		if end > 0 {
			return "", fmt.Errorf("template %q: no value for %s", id, body[i:i+end+2])
		}
	}
	return body, nil
}
