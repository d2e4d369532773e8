package shared

// Core access-control permissions.
const (
	PermUsersView = "users.view"
	PermUsersEdit = "users.edit"

	PermRolesView = "roles.view"
	PermRolesEdit = "roles.edit"

	PermRoutesView = "routes.view"
	PermRoutesEdit = "routes.edit"

	PermGrantsView = "grants.view"
	PermGrantsEdit = "grants.edit"

	PermDelegationsManage = "delegations.manage"
)

// CoreScopes lists all permissions related to the access-control core.
func CoreScopes() []string {
	return []string{
		PermUsersView,
		PermUsersEdit,
		PermRolesView,
		PermRolesEdit,
		PermRoutesView,
		PermRoutesEdit,
		PermGrantsView,
		PermGrantsEdit,
		PermDelegationsManage,
	}
}
