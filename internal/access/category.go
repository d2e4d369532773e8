package access

import "github.com/acacia-sms/acacia/internal/shared"

// Category is the abstract access tier used for template selection. It is
// derived from a user's main role and never persisted.
type Category string

const (
	CategoryAdmin    Category = "admin"
	CategoryManager  Category = "manager"
	CategoryOperator Category = "operator"
	CategoryViewer   Category = "viewer"
	CategoryGuest    Category = "guest"
)

// Categories lists every valid category value.
func Categories() []Category {
	return []Category{CategoryAdmin, CategoryManager, CategoryOperator, CategoryViewer, CategoryGuest}
}

// Valid reports whether c is one of the defined categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryAdmin, CategoryManager, CategoryOperator, CategoryViewer, CategoryGuest:
		return true
	}
	return false
}

// DefaultCategories maps the school staffing catalogue onto the four
// authenticated tiers. Keys are normalised role identifiers.
func DefaultCategories() map[string]Category {
	return map[string]Category{
		// Full system access.
		"system_administrator": CategoryAdmin,
		"director":             CategoryAdmin,
		"director_owner":       CategoryAdmin,
		"headteacher":          CategoryAdmin,
		"school_administrator": CategoryAdmin,

		// Department or area management.
		"deputy_headteacher":     CategoryManager,
		"deputy_head_academic":   CategoryManager,
		"deputy_head_discipline": CategoryManager,
		"hod_talent_development": CategoryManager,
		"hod_food_and_nutrition": CategoryManager,
		"hod_games_and_sports":   CategoryManager,
		"hod_transport":          CategoryManager,
		"accountant":             CategoryManager,
		"school_accountant":      CategoryManager,
		"inventory_manager":      CategoryManager,
		"boarding_master":        CategoryManager,

		// Daily operations and data entry.
		"teacher":         CategoryOperator,
		"class_teacher":   CategoryOperator,
		"subject_teacher": CategoryOperator,
		"chaplain":        CategoryOperator,
		"cateress":        CategoryOperator,
		"driver":          CategoryOperator,
		"kitchen_staff":   CategoryOperator,
		"security_staff":  CategoryOperator,
		"janitor":         CategoryOperator,
		"librarian":       CategoryOperator,
		"staff":           CategoryOperator,

		// Read-only access.
		"intern_student_teacher": CategoryViewer,
		"student":                CategoryViewer,
		"parent":                 CategoryViewer,
		"parent_guardian":        CategoryViewer,
		"guardian":               CategoryViewer,
	}
}

// CategoryResolver maps a main role identifier to a Category. The resolver is
// total: every input yields exactly one of the five categories, and anything
// unknown or empty resolves to guest so routing always fails closed.
type CategoryResolver struct {
	table map[string]Category
}

// NewCategoryResolver builds a resolver over the given table. A nil table
// selects DefaultCategories. Keys are normalised; entries with invalid
// categories are dropped.
func NewCategoryResolver(table map[string]Category) *CategoryResolver {
	if table == nil {
		table = DefaultCategories()
	}
	normalized := make(map[string]Category, len(table))
	for role, cat := range table {
		role = shared.NormalizeRoleName(role)
		if role == "" || !cat.Valid() {
			continue
		}
		normalized[role] = cat
	}
	return &CategoryResolver{table: normalized}
}

// Resolve returns the category for a main role identifier.
func (r *CategoryResolver) Resolve(mainRole string) Category {
	mainRole = shared.NormalizeRoleName(mainRole)
	if mainRole == "" {
		return CategoryGuest
	}
	if cat, ok := r.table[mainRole]; ok {
		return cat
	}
	return CategoryGuest
}

// ResolveIdentity resolves the category for a request identity. Missing or
// inactive identities are guests.
func (r *CategoryResolver) ResolveIdentity(id *shared.Identity) Category {
	if !id.Authenticated() {
		return CategoryGuest
	}
	return r.Resolve(id.MainRole)
}
