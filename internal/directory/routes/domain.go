package routes

import "time"

// Domain mirrors the role catalog split between platform and school scope.
type Domain string

const (
	DomainSystem Domain = "SYSTEM"
	DomainSchool Domain = "SCHOOL"
)

// Valid reports whether d is a known domain.
func (d Domain) Valid() bool {
	return d == DomainSystem || d == DomainSchool
}

// Route is a named, addressable page or endpoint. Identifier and Domain are
// fixed at creation. URL aliases are permitted; duplicate active URLs within
// one domain are flagged as a configuration warning, never rejected.
type Route struct {
	ID            int64     `json:"id"`
	Identifier    string    `json:"identifier"`
	URL           string    `json:"url"`
	Domain        Domain    `json:"domain"`
	Controller    string    `json:"controller,omitempty"`
	PermissionKey string    `json:"permission_key,omitempty"`
	Description   string    `json:"description"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ListFilters narrows catalog listings.
type ListFilters struct {
	Search string
	Domain Domain
	Active *bool
	Page   int
	Limit  int
}
