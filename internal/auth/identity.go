package auth

import (
	"context"
	"strings"
)

// Role is the access level of an identity. Roles double as casbin subjects.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleStaff     Role = "STAFF"
	RoleCustomer  Role = "CUSTOMER"
	RoleAnonymous Role = "anonymous"
)

// ParseRole maps a stored role name to a Role. Unrecognized names are
// treated as customers so they can never edit.
func ParseRole(s string) Role {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleStaff:
		return RoleStaff
	case RoleCustomer:
		return RoleCustomer
	}
	if strings.TrimSpace(s) == "" {
		return RoleAnonymous
	}
	return RoleCustomer
}

// Identity is the caller of an operation.
type Identity struct {
	ID    int64
	Email string
	Name  string
	Role  Role
}

// Anonymous is the identity of a caller who has not signed in.
var Anonymous = Identity{Role: RoleAnonymous}

// IsAnonymous reports whether the caller has not signed in.
func (i Identity) IsAnonymous() bool {
	return i.Role == RoleAnonymous || i.Role == ""
}

// CanEdit reports whether the caller may create, change, publish or
// delete pages.
func (i Identity) CanEdit() bool {
	return i.Role == RoleAdmin || i.Role == RoleStaff
}

type contextKey string

const identityContextKey contextKey = "identity"

// WithIdentity adds the identity to the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}

// IdentityFrom retrieves the identity from the context, or Anonymous.
func IdentityFrom(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityContextKey).(Identity); ok {
		return id
	}
	return Anonymous
}
