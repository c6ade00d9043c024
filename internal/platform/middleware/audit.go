package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinic/frontdesk/internal/platform/auth"
)

const apiPrefix = "/api/v1/"

// AuditEntry records who touched which record and how.
type AuditEntry struct {
	UserID     string    `json:"user_id,omitempty"`
	Role       string    `json:"role,omitempty"`
	Action     string    `json:"action"`
	Resource   string    `json:"resource"`
	ResourceID string    `json:"resource_id,omitempty"`
	PatientID  string    `json:"patient_id,omitempty"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	StatusCode int       `json:"status"`
	IPAddress  string    `json:"ip"`
	UserAgent  string    `json:"user_agent,omitempty"`
	RequestID  string    `json:"request_id,omitempty"`
	Timestamp  time.Time `json:"at"`
}

// AuditRecorder persists audit entries somewhere other than the log.
type AuditRecorder interface {
	RecordAccess(ctx context.Context, entry AuditEntry) error
}

type AuditRecorderFunc func(ctx context.Context, entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(ctx context.Context, entry AuditEntry) error {
	return f(ctx, entry)
}

// Audit logs every /api/v1 request after it completes and hands the entry to
// recorder when one is given. Recorder failures are logged and never change
// the response.
func Audit(logger zerolog.Logger, recorder AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if !isAuditablePath(req.URL.Path) {
				return next(c)
			}

			err := next(c)

			entry := AuditEntry{
				Action:     auditAction(req.Method, req.URL.Path),
				Resource:   extractResource(req.URL.Path),
				ResourceID: c.Param("id"),
				PatientID:  extractPatientID(c),
				Method:     req.Method,
				Path:       req.URL.Path,
				StatusCode: c.Response().Status,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				Timestamp:  time.Now().UTC(),
			}
			if p := auth.PrincipalFromContext(req.Context()); p != nil {
				entry.UserID = p.UserID.String()
				entry.Role = p.Role
			}
			if rid, ok := c.Get("request_id").(string); ok {
				entry.RequestID = rid
			}

			if recorder != nil {
				ctx := context.WithoutCancel(req.Context())
				if recErr := recorder.RecordAccess(ctx, entry); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", entry.RequestID).
						Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Str("role", entry.Role).
				Str("action", entry.Action).
				Str("resource", entry.Resource).
				Str("resource_id", entry.ResourceID).
				Str("patient_id", entry.PatientID).
				Str("method", entry.Method).
				Str("path", entry.Path).
				Str("remote_ip", entry.IPAddress).
				Int("status", entry.StatusCode).
				Msg("record_access")

			return err
		}
	}
}

// isAuditablePath excludes the websocket endpoint, whose single request
// lives for the whole session.
func isAuditablePath(path string) bool {
	return strings.HasPrefix(path, apiPrefix) && !strings.HasSuffix(path, "/ws")
}

// auditAction names the operation. Attention workflow endpoints get their
// own verbs so the trail distinguishes a finalize from a plain edit.
func auditAction(method, path string) string {
	switch {
	case strings.HasSuffix(path, "/guardar"):
		return "finalize"
	case strings.HasSuffix(path, "/status"):
		return "update_status"
	case strings.HasSuffix(path, "/start"):
		return "start"
	case strings.HasSuffix(path, "/invite"):
		return "invite"
	case strings.HasSuffix(path, ".pdf"):
		return "export"
	case strings.HasPrefix(path, apiPrefix+"auth/"):
		return "auth"
	}
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// extractResource returns the first path segment under /api/v1/.
func extractResource(path string) string {
	rest := strings.TrimPrefix(path, apiPrefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	if rest == "" {
		return "unknown"
	}
	return rest
}

// extractPatientID finds the patient a request concerns, either from a
// /patients/<id> path or a patient_id query parameter.
func extractPatientID(c echo.Context) string {
	path := c.Request().URL.Path
	if strings.HasPrefix(path, apiPrefix+"patients/") {
		seg := strings.SplitN(strings.TrimPrefix(path, apiPrefix+"patients/"), "/", 2)[0]
		if isUUIDLike(seg) {
			return seg
		}
	}
	if id := c.QueryParam("patient_id"); isUUIDLike(id) {
		return id
	}
	return ""
}

func isUUIDLike(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
