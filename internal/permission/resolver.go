package permission

import (
	"strings"

	"github.com/sitebook/sitebook-api/internal/domain"
)

// Mode is the resolution mode derived from a subject's stored fields
type Mode string

const (
	// ModeRoleDefault grants the role's catalog defaults
	ModeRoleDefault Mode = "role_default"
	// ModeRolePlusExtra grants the role defaults plus the stored permissions
	ModeRolePlusExtra Mode = "role_plus_extra"
	// ModeCustom grants exactly the stored permissions
	ModeCustom Mode = "custom"
)

// Subject is the part of a user the resolver looks at
type Subject struct {
	Role                     domain.Role
	CustomPermissionsEnabled bool
	Permissions              []string
}

// SubjectFromUser extracts a Subject from a stored user. A nil user resolves as an
// unknown role with no overrides.
func SubjectFromUser(u *domain.User) Subject {
	if u == nil {
		return Subject{}
	}
	return Subject{
		Role:                     u.Role,
		CustomPermissionsEnabled: u.CustomPermissionsEnabled,
		Permissions:              u.Permissions,
	}
}

// ClassifyMode picks the resolution mode from the custom flag and whether any
// permissions are stored. Empty permissions always mean role defaults.
func ClassifyMode(s Subject) Mode {
	if len(s.Permissions) == 0 {
		return ModeRoleDefault
	}
	if s.CustomPermissionsEnabled {
		return ModeCustom
	}
	return ModeRolePlusExtra
}

// Resolver computes effective permission sets against a catalog
type Resolver struct {
	catalog *Catalog
}

// NewResolver creates a resolver. A nil catalog uses the default catalog.
func NewResolver(c *Catalog) *Resolver {
	if c == nil {
		c = defaultCatalog
	}
	return &Resolver{catalog: c}
}

// Catalog returns the resolver's catalog
func (r *Resolver) Catalog() *Catalog {
	return r.catalog
}

// Normalize drops stored permissions that are not in the catalog and removes
// duplicates. The role is kept as stored; use EffectiveRole for the mapped one.
func (r *Resolver) Normalize(s Subject) Subject {
	out := Subject{Role: s.Role, CustomPermissionsEnabled: s.CustomPermissionsEnabled}
	for _, p := range stored(s.Permissions) {
		if r.catalog.Contains(domain.Permission(p)) {
			out.Permissions = append(out.Permissions, p)
		}
	}
	return out
}

// stored trims the stored permission list and drops blanks and duplicates
func stored(perms []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// EffectiveRole returns role if the catalog defines it, otherwise the fallback role
func (r *Resolver) EffectiveRole(role domain.Role) domain.Role {
	if r.catalog.HasRole(role) {
		return role
	}
	return r.catalog.fallback
}

// Mode classifies the subject on its stored list before unknown permissions are
// filtered. A custom list whose entries are all unknown stays custom and grants nothing.
func (r *Resolver) Mode(s Subject) Mode {
	return ClassifyMode(Subject{
		Role:                     s.Role,
		CustomPermissionsEnabled: s.CustomPermissionsEnabled,
		Permissions:              stored(s.Permissions),
	})
}

// Resolve returns the subject's effective permission set. It never fails: undefined
// roles get the fallback role's defaults and unknown permissions are ignored. The
// admin role always holds the catalog's superseding permissions.
func (r *Resolver) Resolve(s Subject) Set {
	n := r.Normalize(s)
	defaults := r.catalog.roles[r.EffectiveRole(n.Role)]

	extra := make([]domain.Permission, len(n.Permissions))
	for i, p := range n.Permissions {
		extra[i] = domain.Permission(p)
	}

	var set Set
	switch r.Mode(s) {
	case ModeCustom:
		set = newSet(r.catalog, extra)
	case ModeRolePlusExtra:
		set = newSet(r.catalog, defaults, extra)
	default:
		set = newSet(r.catalog, defaults)
	}

	if n.Role == domain.RoleAdmin {
		for _, p := range r.catalog.adminSuperseding {
			set.members[p] = struct{}{}
		}
	}
	return set
}

// ResolveUser is Resolve over a stored user
func (r *Resolver) ResolveUser(u *domain.User) Set {
	return r.Resolve(SubjectFromUser(u))
}
