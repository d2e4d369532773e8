package roles

import "time"

// Domain separates platform-wide roles from per-school roles.
type Domain string

const (
	DomainSystem Domain = "SYSTEM"
	DomainSchool Domain = "SCHOOL"
)

// Valid reports whether d is a known domain.
func (d Domain) Valid() bool {
	return d == DomainSystem || d == DomainSchool
}

// Role is a catalog entry. Identifier and Domain are fixed at creation;
// deactivation hides the role from assignment without revoking history.
type Role struct {
	ID          int64     `json:"id"`
	Identifier  string    `json:"identifier"`
	Name        string    `json:"name"`
	Domain      Domain    `json:"domain"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	Color       string    `json:"color"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListFilters narrows catalog listings.
type ListFilters struct {
	Search string
	Domain Domain
	Active *bool
	Page   int
	Limit  int
}
