package auth

import (
	"fmt"

	"go-storefront/internal/logger"

	"github.com/casbin/casbin/v2"
)

// DefaultPolicies grant storefront access to everyone and the admin area
// and page API to staff.
var DefaultPolicies = [][]string{
	{string(RoleAnonymous), "/", "GET"},
	{string(RoleAnonymous), "/:slug", "GET"},
	{string(RoleAnonymous), "/static/*", "GET"},
	{string(RoleAnonymous), "/admin/login", "GET"},
	{string(RoleAnonymous), "/admin/login", "POST"},
	{string(RoleAnonymous), "/auth/oidc/login", "GET"},
	{string(RoleAnonymous), "/auth/oidc/callback", "GET"},
	{string(RoleAnonymous), "/api/blocks", "GET"},

	{string(RoleCustomer), "/admin/logout", "POST"},

	{string(RoleStaff), "/admin/*", "*"},
	{string(RoleStaff), "/api/pages", "*"},
	{string(RoleStaff), "/api/pages/*", "*"},
	{string(RoleStaff), "/api/categories", "GET"},
}

// DefaultRoles is the role inheritance: member, parent.
var DefaultRoles = [][]string{
	{string(RoleCustomer), string(RoleAnonymous)},
	{string(RoleStaff), string(RoleCustomer)},
	{string(RoleAdmin), string(RoleStaff)},
}

// SeedDefaultPolicies ensures that the application has a baseline set of authorization rules.
// It checks if each default policy exists before adding it, making the operation idempotent
// and safe to run on every application start.
func SeedDefaultPolicies(e casbin.IEnforcer, log logger.Logger) {
	log.Info("Seeding default authorization policies...")

	for _, p := range DefaultPolicies {
		if has, _ := e.HasPolicy(p); !has {
			if _, err := e.AddPolicy(p); err != nil {
				log.Error(err, fmt.Sprintf("Failed to add policy %v", p))
			}
		}
	}

	for _, g := range DefaultRoles {
		if has, _ := e.HasRoleForUser(g[0], g[1]); !has {
			if _, err := e.AddRoleForUser(g[0], g[1]); err != nil {
				log.Error(err, fmt.Sprintf("Failed to add role '%s' -> '%s'", g[0], g[1]))
			}
		}
	}
	log.Info("Policy seeding complete.")
}
