package session

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/alexedwards/scs/mysqlstore"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/jmoiron/sqlx"

	"go-storefront/internal/config"
)

// Session keys shared by the auth and builder handlers.
const (
	KeyUserID    = "user_id"
	KeyUserEmail = "user_email"
	KeyUserName  = "user_name"
	KeyUserRole  = "user_role"
	KeyFlash     = "flash"
	KeyOIDCState = "oidc_state"
)

// DraftKey is the session key holding the builder draft of a page.
func DraftKey(pageID int64) string {
	return "draft_" + strconv.FormatInt(pageID, 10)
}

// Manager is an interface that abstracts the session management implementation.
// This allows for easier testing and dependency injection.
type Manager interface {
	LoadAndSave(next http.Handler) http.Handler
	Put(ctx context.Context, key string, val interface{})
	Get(ctx context.Context, key string) interface{}
	GetString(ctx context.Context, key string) string
	GetInt64(ctx context.Context, key string) int64
	GetBytes(ctx context.Context, key string) []byte
	PopString(ctx context.Context, key string) string
	Exists(ctx context.Context, key string) bool
	RenewToken(ctx context.Context) error
	Destroy(ctx context.Context) error
	Remove(ctx context.Context, key string)
}

var _ Manager = (*scs.SessionManager)(nil)

// New creates an scs session manager backed by the application database.
func New(cfg config.SessionConfig, driver string, db *sqlx.DB, secure bool) *scs.SessionManager {
	sm := scs.New()
	switch driver {
	case "sqlite3":
		sm.Store = sqlite3store.New(db.DB)
	default:
		sm.Store = mysqlstore.New(db.DB)
	}
	if cfg.Lifetime > 0 {
		sm.Lifetime = time.Duration(cfg.Lifetime) * time.Hour
	}
	if cfg.CookieName != "" {
		sm.Cookie.Name = cfg.CookieName
	}
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = secure
	return sm
}
