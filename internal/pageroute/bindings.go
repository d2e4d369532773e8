package pageroute

import "github.com/acacia-sms/acacia/internal/access"

// DefaultBindings is the built-in template table for the shipped pages.
// Routes with a single variant bind only viewer and rely on the fallback
// chain for every other category.
func DefaultBindings() []Binding {
	return []Binding{
		{Route: "dashboard", Category: access.CategoryAdmin, Template: "templates/dashboard/admin.html"},
		{Route: "dashboard", Category: access.CategoryManager, Template: "templates/dashboard/manager.html"},
		{Route: "dashboard", Category: access.CategoryOperator, Template: "templates/dashboard/operator.html"},
		{Route: "dashboard", Category: access.CategoryViewer, Template: "templates/dashboard/viewer.html"},
		{Route: "dashboard", Category: access.CategoryGuest, Template: "templates/dashboard/guest.html"},

		{Route: "manage_fees", Category: access.CategoryAdmin, Template: "templates/manage_fees/admin.html"},
		{Route: "manage_fees", Category: access.CategoryManager, Template: "templates/manage_fees/manager.html"},
		{Route: "manage_fees", Category: access.CategoryViewer, Template: "templates/manage_fees/viewer.html"},

		{Route: "attendance", Category: access.CategoryAdmin, Template: "templates/attendance/admin.html"},
		{Route: "attendance", Category: access.CategoryOperator, Template: "templates/attendance/operator.html"},
		{Route: "attendance", Category: access.CategoryViewer, Template: "templates/attendance/viewer.html"},

		{Route: "boarding_roll_call", Category: access.CategoryManager, Template: "templates/boarding_roll_call/manager.html"},
		{Route: "boarding_roll_call", Category: access.CategoryOperator, Template: "templates/boarding_roll_call/operator.html"},
		{Route: "boarding_roll_call", Category: access.CategoryViewer, Template: "templates/boarding_roll_call/viewer.html"},

		{Route: "admissions", Category: access.CategoryAdmin, Template: "templates/admissions/admin.html"},
		{Route: "admissions", Category: access.CategoryViewer, Template: "templates/admissions/viewer.html"},

		{Route: "transport", Category: access.CategoryManager, Template: "templates/transport/manager.html"},
		{Route: "transport", Category: access.CategoryViewer, Template: "templates/transport/viewer.html"},
	}
}
