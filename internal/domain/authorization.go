package domain

import (
	"fmt"
	"regexp"
	"time"

	"fleetfusion/pkg/errors"
)

// Role is the fixed set of roles an organization member can hold.
// Authorization decisions are only ever made against these values; arbitrary
// role strings coming from claims are rejected.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleDispatcher Role = "dispatcher"
	RoleDriver     Role = "driver"
	RoleCompliance Role = "compliance"
	RoleMember     Role = "member"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDispatcher, RoleDriver, RoleCompliance, RoleMember:
		return true
	}
	return false
}

// Permission tokens checked by handlers and middleware.
const (
	PermAdminManage      = "admin:manage"
	PermDispatchView     = "dispatch:view"
	PermDispatchManage   = "dispatch:manage"
	PermComplianceView   = "compliance:view"
	PermComplianceManage = "compliance:manage"
	PermIFTAView         = "ifta:view"
	PermIFTAManage       = "ifta:manage"
	PermBillingManage    = "billing:manage"
	PermReportsGenerate  = "reports:generate"
	PermProfileView      = "profile:view"
)

var rolePermissions = map[Role][]string{
	RoleAdmin: {
		PermAdminManage, PermDispatchView, PermDispatchManage,
		PermComplianceView, PermComplianceManage, PermIFTAView, PermIFTAManage,
		PermBillingManage, PermReportsGenerate, PermProfileView,
	},
	RoleDispatcher: {
		PermDispatchView, PermDispatchManage, PermReportsGenerate, PermProfileView,
	},
	RoleDriver: {
		PermDispatchView, PermProfileView,
	},
	RoleCompliance: {
		PermComplianceView, PermComplianceManage, PermIFTAView, PermReportsGenerate, PermProfileView,
	},
	RoleMember: {
		PermProfileView,
	},
}

// PermissionsForRole returns the permission set derived from a role. The
// returned slice is a copy; callers may modify it freely.
func PermissionsForRole(role Role) []string {
	perms := rolePermissions[role]
	out := make([]string, len(perms))
	copy(out, perms)
	return out
}

// OrganizationMetadata is the subscription and feature state cached per
// organization.
type OrganizationMetadata struct {
	ID                 string            `json:"id"`
	Name               string            `json:"name"`
	SubscriptionTier   string            `json:"subscription_tier"`
	SubscriptionStatus string            `json:"subscription_status"`
	MaxDrivers         int               `json:"max_drivers"`
	MaxVehicles        int               `json:"max_vehicles"`
	Features           map[string]bool   `json:"features"`
	Limits             map[string]int    `json:"limits"`
	Labels             map[string]string `json:"labels,omitempty"`
}

// SessionClaims is the shape handed to us by the identity provider's token.
// It is untrusted input until BuildAuthorizationContext has validated it.
type SessionClaims struct {
	UserID         string                `json:"user_id"`
	OrganizationID string                `json:"organization_id"`
	Role           string                `json:"role"`
	Permissions    []string              `json:"permissions,omitempty"`
	IsActive       bool                  `json:"is_active"`
	Organization   *OrganizationMetadata `json:"organization,omitempty"`
}

// AuthorizationContext is the resolved access-control state for one user in
// one organization. It lives only in the caches and is rebuilt from claims on
// every miss.
type AuthorizationContext struct {
	UserID         string                `json:"user_id"`
	OrganizationID string                `json:"organization_id"`
	Role           Role                  `json:"role"`
	Permissions    []string              `json:"permissions"`
	IsActive       bool                  `json:"is_active"`
	Organization   *OrganizationMetadata `json:"organization,omitempty"`
	ResolvedAt     time.Time             `json:"resolved_at"`
}

func (a *AuthorizationContext) HasPermission(perm string) bool {
	for _, p := range a.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}

// identifierPattern is the character class allowed for user and organization
// ids embedded in cache keys. Anything outside it is rejected outright, so a
// forged claim cannot smuggle separators or path characters into key space.
var identifierPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func ValidIdentifier(id string) bool {
	return identifierPattern.MatchString(id)
}

// BuildAuthorizationContext validates session claims and derives the
// authorization context. Every failure path returns a nil context; callers
// treat any error as an unauthenticated session.
func BuildAuthorizationContext(claims *SessionClaims, now time.Time) (*AuthorizationContext, error) {
	if claims == nil {
		return nil, errors.ErrInvalidClaims
	}
	if claims.UserID == "" || !ValidIdentifier(claims.UserID) {
		return nil, fmt.Errorf("%w: user id %q", errors.ErrInvalidIdentifier, claims.UserID)
	}
	if claims.OrganizationID != "" && !ValidIdentifier(claims.OrganizationID) {
		return nil, fmt.Errorf("%w: organization id %q", errors.ErrInvalidIdentifier, claims.OrganizationID)
	}

	role := Role(claims.Role)
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", errors.ErrInvalidRole, claims.Role)
	}

	perms := claims.Permissions
	if len(perms) == 0 {
		perms = PermissionsForRole(role)
	}

	return &AuthorizationContext{
		UserID:         claims.UserID,
		OrganizationID: claims.OrganizationID,
		Role:           role,
		Permissions:    perms,
		IsActive:       claims.IsActive,
		Organization:   claims.Organization,
		ResolvedAt:     now,
	}, nil
}
