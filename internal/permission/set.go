package permission

import (
	"sort"

	"github.com/sitebook/sitebook-api/internal/domain"
)

// Set is an immutable effective permission set. The zero value is empty and grants nothing.
type Set struct {
	catalog *Catalog
	members map[domain.Permission]struct{}
}

func newSet(c *Catalog, perms ...[]domain.Permission) Set {
	s := Set{catalog: c, members: make(map[domain.Permission]struct{})}
	for _, list := range perms {
		for _, p := range list {
			s.members[p] = struct{}{}
		}
	}
	return s
}

// NewSet builds a set from explicit permissions, keeping only those in the catalog.
// A nil catalog uses the default catalog.
func NewSet(c *Catalog, perms ...domain.Permission) Set {
	if c == nil {
		c = defaultCatalog
	}
	known := make([]domain.Permission, 0, len(perms))
	for _, p := range perms {
		if c.Contains(p) {
			known = append(known, p)
		}
	}
	return newSet(c, known)
}

// Has is an exact membership test
func (s Set) Has(p domain.Permission) bool {
	_, ok := s.members[p]
	return ok
}

// Len returns the number of permissions in the set
func (s Set) Len() int {
	return len(s.members)
}

// Slice returns the members in catalog order
func (s Set) Slice() []domain.Permission {
	out := make([]domain.Permission, 0, len(s.members))
	for p := range s.members {
		out = append(out, p)
	}
	if s.catalog == nil {
		sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
		return out
	}
	sort.Slice(out, func(i, j int) bool { return s.catalog.index[out[i]] < s.catalog.index[out[j]] })
	return out
}

// Strings returns the members as strings in catalog order
func (s Set) Strings() []string {
	perms := s.Slice()
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

// Equal reports whether both sets contain the same permissions
func (s Set) Equal(other Set) bool {
	if len(s.members) != len(other.members) {
		return false
	}
	for p := range s.members {
		if !other.Has(p) {
			return false
		}
	}
	return true
}

// HasAccess reports whether set grants p
func HasAccess(set Set, p domain.Permission) bool {
	return set.Has(p)
}
