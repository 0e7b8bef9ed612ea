package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sitebook/sitebook-api/internal/domain"
	"github.com/sitebook/sitebook-api/internal/permission"
	"github.com/sitebook/sitebook-api/internal/service"
)

// ErrAccessDenied is returned by "permissions check" when the expression is denied
var ErrAccessDenied = errors.New("access denied")

// subjectFlags describes the user being resolved
type subjectFlags struct {
	role        string
	custom      bool
	permissions []string
}

func (s *subjectFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&s.role, "role", string(domain.RoleViewer), "Stored role of the user")
	cmd.Flags().BoolVar(&s.custom, "custom", false, "Custom permissions flag of the user")
	cmd.Flags().StringSliceVarP(&s.permissions, "permission", "p", nil, "Stored permission override; repeat or comma separate")
}

func (s *subjectFlags) subject() permission.Subject {
	return permission.Subject{
		Role:                     domain.Role(s.role),
		CustomPermissionsEnabled: s.custom,
		Permissions:              s.permissions,
	}
}

type resolution struct {
	Role          domain.Role     `json:"role"`
	EffectiveRole domain.Role     `json:"effectiveRole"`
	Mode          permission.Mode `json:"mode"`
	Ignored       []string        `json:"ignored,omitempty"`
	Permissions   []string        `json:"permissions"`
}

func resolve(r *permission.Resolver, s permission.Subject) (resolution, permission.Set) {
	set := r.Resolve(s)
	return resolution{
		Role:          s.Role,
		EffectiveRole: r.EffectiveRole(s.Role),
		Mode:          r.Mode(s),
		Ignored:       r.Catalog().Unknown(s.Permissions),
		Permissions:   set.Strings(),
	}, set
}

func newPermissionsCmd(opts *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "permissions",
		Aliases: []string{"perms"},
		Short:   "Resolve and check user permissions against the catalog",
	}
	cmd.AddCommand(
		newResolveCmd(opts),
		newCheckCmd(opts),
		newCatalogCmd(opts),
	)
	return cmd
}

func newResolveCmd(opts *Options) *cobra.Command {
	var subject subjectFlags

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the effective permission set of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := opts.resolver()
			if err != nil {
				return err
			}
			res, _ := resolve(resolver, subject.subject())
			if len(res.Ignored) > 0 {
				opts.logger().Warn("unknown permissions ignored", zap.Strings("permissions", res.Ignored))
			}

			if opts.Output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "role: %s (effective %s)\nmode: %s\n", res.Role, res.EffectiveRole, res.Mode)
			if len(res.Ignored) > 0 {
				fmt.Fprintf(out, "ignored: %s\n", strings.Join(res.Ignored, ", "))
			}
			for _, p := range res.Permissions {
				fmt.Fprintln(out, p)
			}
			return nil
		},
	}

	subject.bind(cmd)
	return cmd
}

func newCheckCmd(opts *Options) *cobra.Command {
	var subject subjectFlags
	var require, category, action, requireRole string
	var anyOf, allOf []string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Evaluate an access expression for a user",
		Long: "Evaluate an access expression for a user. Every supplied criterion must pass and an " +
			"expression without criteria is denied. Exits non-zero when access is denied.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(anyOf) > 0 && len(allOf) > 0 {
				return errors.New("--any and --all cannot be combined")
			}
			resolver, err := opts.resolver()
			if err != nil {
				return err
			}

			expr := permission.Expression{
				Permission: domain.Permission(require),
				Category:   category,
				Action:     action,
				Role:       domain.Role(requireRole),
			}
			switch {
			case len(allOf) > 0:
				expr.Permissions = toPermissions(allOf)
				expr.RequireAll = true
			case len(anyOf) > 0:
				expr.Permissions = toPermissions(anyOf)
			}

			s := subject.subject()
			res, set := resolve(resolver, s)
			allowed := permission.Check(set, s.Role, expr)

			if opts.Output == outputJSON {
				if err := writeJSON(cmd.OutOrStdout(), map[string]any{
					"allowed":    allowed,
					"resolution": res,
				}); err != nil {
					return err
				}
			} else if allowed {
				fmt.Fprintln(cmd.OutOrStdout(), "allowed")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "denied")
			}

			if !allowed {
				return ErrAccessDenied
			}
			return nil
		},
	}

	subject.bind(cmd)
	cmd.Flags().StringVar(&require, "require", "", "Single permission that must be held")
	cmd.Flags().StringSliceVar(&anyOf, "any", nil, "Permissions of which at least one must be held")
	cmd.Flags().StringSliceVar(&allOf, "all", nil, "Permissions that must all be held")
	cmd.Flags().StringVar(&category, "category", "", "Permission category, combined with --action")
	cmd.Flags().StringVar(&action, "action", "", "Permission action, combined with --category")
	cmd.Flags().StringVar(&requireRole, "require-role", "", "Exact role the user must have")
	return cmd
}

func newCatalogCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "List the permission universe and role defaults",
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := opts.resolver()
			if err != nil {
				return err
			}
			catalog := service.NewPermissionService(nil, resolver, nil, opts.logger()).Catalog()

			if opts.Output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), catalog)
			}
			rows := make([][]string, 0, len(catalog.Roles))
			for _, role := range catalog.Roles {
				rows = append(rows, []string{string(role.Role), strings.Join(role.Permissions, ", ")})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "permissions: %s\nfallback role: %s\nadmin always holds: %s\n\n",
				strings.Join(catalog.Permissions, ", "), catalog.FallbackRole,
				strings.Join(catalog.AdminSuperseding, ", "))
			return writeTable(out, []string{"ROLE", "DEFAULTS"}, rows)
		},
	}
}

func toPermissions(values []string) []domain.Permission {
	perms := make([]domain.Permission, len(values))
	for i, v := range values {
		perms[i] = domain.Permission(strings.TrimSpace(v))
	}
	return perms
}
