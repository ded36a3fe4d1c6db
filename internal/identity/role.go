// Package identity is the boundary where caller credentials and legacy role
// strings become typed roles scoped to a clinic.
package identity

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the closed set of caller roles.
type Role string

const (
	RolePlatformAdmin Role = "platform_admin"
	RoleClinicAdmin   Role = "clinic_admin"
	RoleTherapist     Role = "therapist"
	RoleClient        Role = "client"
)

// ErrUnknownRole indicates a role string with no mapping.
var ErrUnknownRole = errors.New("unknown role")

var roleAliases = map[string]Role{
	"platform_admin": RolePlatformAdmin,
	"super_admin":    RolePlatformAdmin,
	"superadmin":     RolePlatformAdmin,
	"platform":       RolePlatformAdmin,
	"clinic_admin":   RoleClinicAdmin,
	"admin":          RoleClinicAdmin,
	"clinic_owner":   RoleClinicAdmin,
	"clinic":         RoleClinicAdmin,
	"owner":          RoleClinicAdmin,
	"therapist":      RoleTherapist,
	"clinician":      RoleTherapist,
	"client":         RoleClient,
	"patient":        RoleClient,
}

// ParseRole normalises a role string, including legacy spellings such as
// "ADMIN", "clinic-owner" or "patient".
func ParseRole(s string) (Role, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	if r, ok := roleAliases[norm]; ok {
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RolePlatformAdmin, RoleClinicAdmin, RoleTherapist, RoleClient:
		return true
	}
	return false
}
