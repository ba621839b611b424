package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/casbin/casbin/v2"

	"go-storefront/internal/auth"
	"go-storefront/internal/logger"
	"go-storefront/internal/session"
)

// Authorizer creates a new middleware for authorization.
// It rebuilds the caller's identity from the session, stores it in the
// request context and checks the role against the Casbin policies.
func Authorizer(e casbin.IEnforcer, sm session.Manager, log logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := IdentityFromSession(r, sm)
			r = r.WithContext(auth.WithIdentity(r.Context(), id))

			allowed, err := e.Enforce(string(id.Role), r.URL.Path, r.Method)
			if err != nil {
				log.Error(err, "casbin enforce failed")
				http.Error(w, "Authorization error", http.StatusInternalServerError)
				return
			}
			if allowed {
				next.ServeHTTP(w, r)
				return
			}

			switch {
			case strings.HasPrefix(r.URL.Path, "/api/"):
				status := http.StatusForbidden
				if id.IsAnonymous() {
					status = http.StatusUnauthorized
				}
				WriteJSONError(w, status, http.StatusText(status))
			case id.IsAnonymous() && strings.HasPrefix(r.URL.Path, "/admin"):
				http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
			default:
				http.Error(w, "Forbidden", http.StatusForbidden)
			}
		})
	}
}

// IdentityFromSession reads the signed-in identity stored by the login handlers.
func IdentityFromSession(r *http.Request, sm session.Manager) auth.Identity {
	ctx := r.Context()
	role := auth.ParseRole(sm.GetString(ctx, session.KeyUserRole))
	if role == auth.RoleAnonymous {
		return auth.Anonymous
	}
	return auth.Identity{
		ID:    sm.GetInt64(ctx, session.KeyUserID),
		Email: sm.GetString(ctx, session.KeyUserEmail),
		Name:  sm.GetString(ctx, session.KeyUserName),
		Role:  role,
	}
}

// WriteJSONError writes {"error": msg} with the given status.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
