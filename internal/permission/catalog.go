// Package permission resolves a user's effective permission set from role defaults
// and stored overrides, and evaluates access expressions against it.
package permission

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/sitebook/sitebook-api/internal/domain"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

var defaultCatalog = mustParseCatalog(embeddedCatalog)

// ErrInvalidCatalog is returned when a catalog document is inconsistent
var ErrInvalidCatalog = errors.New("invalid permission catalog")

const wildcard = "*"

// Catalog is the immutable permission universe and role defaults.
// It is safe for concurrent use.
type Catalog struct {
	universe         []domain.Permission
	index            map[domain.Permission]int
	roleOrder        []domain.Role
	roles            map[domain.Role][]domain.Permission
	fallback         domain.Role
	adminSuperseding []domain.Permission
}

type catalogDocument struct {
	FallbackRole     string         `yaml:"fallbackRole"`
	Permissions      []string       `yaml:"permissions"`
	AdminSuperseding []string       `yaml:"adminSuperseding"`
	Roles            []roleDocument `yaml:"roles"`
}

type roleDocument struct {
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

// DefaultCatalog returns the catalog compiled into the binary
func DefaultCatalog() *Catalog {
	return defaultCatalog
}

// LoadCatalog reads a catalog from path, or returns the default catalog when path is empty
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return defaultCatalog, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read permission catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses and validates a YAML catalog document
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc catalogDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	c := &Catalog{
		index: make(map[domain.Permission]int, len(doc.Permissions)),
		roles: make(map[domain.Role][]domain.Permission, len(doc.Roles)),
	}

	for _, raw := range doc.Permissions {
		p := domain.Permission(strings.TrimSpace(raw))
		if p.Category() == "" || p.Action() == "" {
			return nil, fmt.Errorf("%w: permission %q is not of the form category.action", ErrInvalidCatalog, raw)
		}
		if _, dup := c.index[p]; dup {
			return nil, fmt.Errorf("%w: duplicate permission %q", ErrInvalidCatalog, p)
		}
		c.index[p] = len(c.universe)
		c.universe = append(c.universe, p)
	}
	if len(c.universe) == 0 {
		return nil, fmt.Errorf("%w: no permissions defined", ErrInvalidCatalog)
	}

	for _, rd := range doc.Roles {
		role := domain.Role(strings.TrimSpace(rd.Name))
		if role == "" {
			return nil, fmt.Errorf("%w: role without a name", ErrInvalidCatalog)
		}
		if _, dup := c.roles[role]; dup {
			return nil, fmt.Errorf("%w: duplicate role %q", ErrInvalidCatalog, role)
		}
		perms, err := c.expand(rd.Permissions)
		if err != nil {
			return nil, fmt.Errorf("%w: role %q: %v", ErrInvalidCatalog, role, err)
		}
		c.roles[role] = perms
		c.roleOrder = append(c.roleOrder, role)
	}

	c.fallback = domain.Role(doc.FallbackRole)
	if _, ok := c.roles[c.fallback]; !ok {
		return nil, fmt.Errorf("%w: fallback role %q is not defined", ErrInvalidCatalog, doc.FallbackRole)
	}

	superseding, err := c.expand(doc.AdminSuperseding)
	if err != nil {
		return nil, fmt.Errorf("%w: adminSuperseding: %v", ErrInvalidCatalog, err)
	}
	c.adminSuperseding = superseding

	return c, nil
}

func mustParseCatalog(data []byte) *Catalog {
	c, err := ParseCatalog(data)
	if err != nil {
		panic(err)
	}
	return c
}

// expand validates a permission list and returns it in catalog order without duplicates
func (c *Catalog) expand(raw []string) ([]domain.Permission, error) {
	seen := make([]bool, len(c.universe))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == wildcard {
			for i := range seen {
				seen[i] = true
			}
			continue
		}
		i, ok := c.index[domain.Permission(r)]
		if !ok {
			return nil, fmt.Errorf("unknown permission %q", r)
		}
		seen[i] = true
	}
	out := make([]domain.Permission, 0, len(raw))
	for i, ok := range seen {
		if ok {
			out = append(out, c.universe[i])
		}
	}
	return out, nil
}

// Permissions returns the permission universe in catalog order
func (c *Catalog) Permissions() []domain.Permission {
	return append([]domain.Permission(nil), c.universe...)
}

// Contains reports whether p belongs to the permission universe
func (c *Catalog) Contains(p domain.Permission) bool {
	_, ok := c.index[p]
	return ok
}

// Roles returns the defined roles in catalog order
func (c *Catalog) Roles() []domain.Role {
	return append([]domain.Role(nil), c.roleOrder...)
}

// HasRole reports whether role is defined
func (c *Catalog) HasRole(role domain.Role) bool {
	_, ok := c.roles[role]
	return ok
}

// RoleDefaults returns the default permissions of role in catalog order
func (c *Catalog) RoleDefaults(role domain.Role) ([]domain.Permission, bool) {
	perms, ok := c.roles[role]
	if !ok {
		return nil, false
	}
	return append([]domain.Permission(nil), perms...), true
}

// FallbackRole is used for subjects whose role is not defined
func (c *Catalog) FallbackRole() domain.Role {
	return c.fallback
}

// AdminSuperseding returns the permissions always granted to the admin role
func (c *Catalog) AdminSuperseding() []domain.Permission {
	return append([]domain.Permission(nil), c.adminSuperseding...)
}

// Unknown returns the entries of perms that are not in the universe, preserving order
func (c *Catalog) Unknown(perms []string) []string {
	var unknown []string
	for _, p := range perms {
		if !c.Contains(domain.Permission(p)) {
			unknown = append(unknown, p)
		}
	}
	return unknown
}
