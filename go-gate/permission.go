package gate

import (
	"fmt"
	"strings"
)

// Permission is a "resource:action" pair such as "quote:send". Either half
// may be the "*" wildcard.
type Permission string

// Wildcards.
const (
	WildcardAll          = "*"
	PermissionSuperAdmin Permission = "*:*"
)

// NewPermission joins a resource type and an action.
func NewPermission(resourceType string, action Action) Permission {
	return Permission(resourceType + ":" + string(action))
}

// ParsePermission validates s and returns it as a Permission.
func ParsePermission(s string) (Permission, error) {
	res, act, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || res == "" || act == "" || strings.Contains(act, ":") {
		return "", fmt.Errorf("gate: malformed permission %q", s)
	}
	return NewPermission(res, Action(act)), nil
}

// Parse splits p into its resource type and action; malformed values give
// empty strings.
func (p Permission) Parse() (resourceType string, action Action) {
	res, act, ok := strings.Cut(string(p), ":")
	if !ok {
		return "", ""
	}
	return res, Action(act)
}

// Matches reports whether holding p grants requested. "*:*" grants
// everything, "quote:*" every quote action.
func (p Permission) Matches(requested Permission) bool {
	if p == PermissionSuperAdmin || p == requested {
		return true
	}
	res, act := p.Parse()
	reqRes, _ := requested.Parse()
	return res != "" && res == reqRes && string(act) == WildcardAll
}
