package access

import "testing"

func TestResolveKnownRoles(t *testing.T) {
	resolver := NewCategoryResolver(nil)
	cases := map[string]Category{
		"system_administrator": CategoryAdmin,
		"Director/Owner":       CategoryAdmin,
		"deputy_headteacher":   CategoryManager,
		"HOD - Transport":      CategoryManager,
		"teacher":              CategoryOperator,
		"class teacher":        CategoryOperator,
		"parent":               CategoryViewer,
		"Student":              CategoryViewer,
	}
	for role, want := range cases {
		if got := resolver.Resolve(role); got != want {
			t.Errorf("Resolve(%q) = %q, want %q", role, got, want)
		}
	}
}

func TestResolveUnknownAndEmpty(t *testing.T) {
	resolver := NewCategoryResolver(nil)
	for _, role := range []string{"", "   ", "no_such_role", "bursar-intern", "!!"} {
		if got := resolver.Resolve(role); got != CategoryGuest {
			t.Errorf("Resolve(%q) = %q, want guest", role, got)
		}
	}
}

func TestResolveIsTotal(t *testing.T) {
	resolver := NewCategoryResolver(nil)
	inputs := []string{"teacher", "x", "", "Director/Owner", "parent_guardian", "\x00weird"}
	for _, role := range inputs {
		got := resolver.Resolve(role)
		if !got.Valid() {
			t.Fatalf("Resolve(%q) returned invalid category %q", role, got)
		}
		if again := resolver.Resolve(role); again != got {
			t.Fatalf("Resolve(%q) not deterministic: %q then %q", role, got, again)
		}
	}
}

func TestResolveCustomTableDropsInvalid(t *testing.T) {
	resolver := NewCategoryResolver(map[string]Category{
		"Bursar":  CategoryManager,
		"cleaner": Category("superuser"),
	})
	if got := resolver.Resolve("bursar"); got != CategoryManager {
		t.Fatalf("Resolve(bursar) = %q, want manager", got)
	}
	if got := resolver.Resolve("cleaner"); got != CategoryGuest {
		t.Fatalf("invalid table entry should be dropped, got %q", got)
	}
}

func TestResolveIdentity(t *testing.T) {
	resolver := NewCategoryResolver(nil)
	if got := resolver.ResolveIdentity(nil); got != CategoryGuest {
		t.Fatalf("nil identity should be guest, got %q", got)
	}
}
