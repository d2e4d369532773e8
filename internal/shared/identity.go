package shared

import "strings"

// Identity is the resolved actor for a request. It is produced by the auth
// middleware from the session and the user record; downstream packages never
// consult session state directly.
type Identity struct {
	UserID     int64
	MainRole   string
	ExtraRoles []string
	Active     bool
}

// Authenticated reports whether the identity belongs to an active user.
func (id *Identity) Authenticated() bool {
	return id != nil && id.UserID > 0 && id.Active
}

// Roles returns the main role followed by extra roles, normalised and
// deduplicated. The main role, when present, is always first.
func (id *Identity) Roles() []string {
	if id == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(id.ExtraRoles)+1)
	roles := make([]string, 0, len(id.ExtraRoles)+1)
	for _, r := range append([]string{id.MainRole}, id.ExtraRoles...) {
		r = NormalizeRoleName(r)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		roles = append(roles, r)
	}
	return roles
}

// NormalizeRoleName lowercases a role identifier and collapses separators so
// "Director/Owner", "director owner" and "director_owner" compare equal.
func NormalizeRoleName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	replacer := strings.NewReplacer(" ", "_", "/", "_", "-", "_", "&", "and")
	name = replacer.Replace(name)
	for strings.Contains(name, "__") {
		name = strings.ReplaceAll(name, "__", "_")
	}
	return strings.Trim(name, "_")
}
