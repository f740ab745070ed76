package domain

import "strings"

// UserStatus enumerates possible account states in the external directory.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
	UserStatusPending   UserStatus = "pending"
)

// Roles recognised by the authority. Administrative and member accounts live
// in different directory namespaces.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// Directory namespaces (collection identifiers) per role.
const (
	NamespaceAdmins  = "admins"
	NamespaceMembers = "members"
)

// PermissionWildcard grants every permission.
const PermissionWildcard = "*"

// User mirrors the directory record for an authenticated principal.
// The directory owns the record; this type is a read-only snapshot.
type User struct {
	ID               string     `json:"id"`
	Identity         string     `json:"identity"`
	Name             string     `json:"name"`
	Role             string     `json:"role"`
	Status           UserStatus `json:"status"`
	AvatarURL        *string    `json:"avatar_url,omitempty"`
	ExtraPermissions []string   `json:"extra_permissions,omitempty"`
}

// IsActive reports whether the account may hold sessions.
func (u User) IsActive() bool {
	return u.Status == UserStatusActive
}

var memberPermissions = []string{
	"profile.read",
	"profile.write",
	"content.read",
	"content.write",
}

// PermissionsFor derives the effective permission set for a user: the
// administrative role receives the wildcard, members receive the base set,
// and per-user extra permissions from the directory record are appended.
func PermissionsFor(u User) []string {
	if u.Role == RoleAdmin {
		return []string{PermissionWildcard}
	}

	perms := make([]string, 0, len(memberPermissions)+len(u.ExtraPermissions))
	perms = append(perms, memberPermissions...)
	for _, extra := range u.ExtraPermissions {
		extra = strings.TrimSpace(extra)
		if extra == "" {
			continue
		}
		perms = append(perms, extra)
	}
	return perms
}

// HasPermission reports whether the supplied permission set satisfies the
// required permission. The global wildcard matches everything; a trailing
// ".*" segment matches any permission under that prefix.
func HasPermission(granted []string, required string) bool {
	required = strings.TrimSpace(required)
	if required == "" {
		return false
	}

	for _, perm := range granted {
		if perm == PermissionWildcard || perm == required {
			return true
		}
		if prefix, ok := strings.CutSuffix(perm, ".*"); ok {
			if strings.HasPrefix(required, prefix+".") {
				return true
			}
		}
	}
	return false
}

// HasAnyPermission reports whether any of the required permissions is granted.
func HasAnyPermission(granted []string, required ...string) bool {
	for _, req := range required {
		if HasPermission(granted, req) {
			return true
		}
	}
	return false
}
