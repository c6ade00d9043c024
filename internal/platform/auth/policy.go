package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Capability names one guarded action. Every route group declares the
// capability it needs; roles carry lists of capabilities.
type Capability string

const (
	QueueRead             Capability = "queue.read"
	AttentionCreate       Capability = "attention.create"
	AttentionUpdateStatus Capability = "attention.update_status"
	AttentionFinalize     Capability = "attention.finalize"
	HistoryRead           Capability = "history.read"
	PatientRead           Capability = "patient.read"
	PatientWrite          Capability = "patient.write"
	ProfessionalRead      Capability = "professional.read"
	ProfessionalWrite     Capability = "professional.write"
	ProfessionalInvite    Capability = "professional.invite"
	CatalogWrite          Capability = "catalog.write"
	DashboardRead         Capability = "dashboard.read"
	UserManage            Capability = "user.manage"
	RoleManage            Capability = "role.manage"
)

// Wildcard grants every capability.
const Wildcard = "*"

const (
	RoleAdmin        = "admin"
	RoleReception    = "recepcion"
	RoleProfessional = "profesional"
)

// AllCapabilities lists every known capability.
var AllCapabilities = []Capability{
	QueueRead, AttentionCreate, AttentionUpdateStatus, AttentionFinalize, HistoryRead,
	PatientRead, PatientWrite, ProfessionalRead, ProfessionalWrite, ProfessionalInvite,
	CatalogWrite, DashboardRead, UserManage, RoleManage,
}

// ValidCapability reports whether s names a known capability or the wildcard.
func ValidCapability(s string) bool {
	if s == Wildcard {
		return true
	}
	for _, c := range AllCapabilities {
		if string(c) == s {
			return true
		}
	}
	return false
}

// RoleSpec is a seeded role.
type RoleSpec struct {
	Name        string
	Permissions []Capability
}

// DefaultRoles are created by the initial migration.
func DefaultRoles() []RoleSpec {
	return []RoleSpec{
		{Name: RoleAdmin, Permissions: []Capability{Wildcard}},
		{Name: RoleReception, Permissions: []Capability{
			QueueRead, AttentionCreate, AttentionUpdateStatus, PatientRead, PatientWrite,
			ProfessionalRead, DashboardRead,
		}},
		{Name: RoleProfessional, Permissions: []Capability{
			QueueRead, AttentionUpdateStatus, AttentionFinalize, HistoryRead, PatientRead,
			ProfessionalRead,
		}},
	}
}

// Decision is the result of a policy evaluation.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason"`
}

// Evaluate decides whether p holds capability c. Super-admins hold all of
// them; anonymous callers hold none.
func Evaluate(p *Principal, c Capability) Decision {
	if p == nil {
		return Decision{Allowed: false, Reason: "not authenticated"}
	}
	if p.SuperAdmin {
		return Decision{Allowed: true, Reason: "super-admin"}
	}
	for _, granted := range p.Permissions {
		if granted == Wildcard || granted == string(c) {
			return Decision{Allowed: true, Reason: "role " + p.Role}
		}
	}
	return Decision{Allowed: false, Reason: "missing permission: " + string(c)}
}

// Can is Evaluate(...).Allowed.
func Can(p *Principal, c Capability) bool {
	return Evaluate(p, c).Allowed
}

// Require rejects callers holding none of caps.
func Require(caps ...Capability) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFromContext(c.Request().Context())
			if p == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}
			for _, capability := range caps {
				if Can(p, capability) {
					return next(c)
				}
			}
			names := make([]string, len(caps))
			for i, capability := range caps {
				names[i] = string(capability)
			}
			return echo.NewHTTPError(http.StatusForbidden, "required permission: "+strings.Join(names, " or "))
		}
	}
}

// RequireSuperAdmin guards actions reserved to the super-admin account.
func RequireSuperAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := PrincipalFromContext(c.Request().Context())
			if p == nil || !p.SuperAdmin {
				return echo.NewHTTPError(http.StatusForbidden, "only the super-admin may do this")
			}
			return next(c)
		}
	}
}
