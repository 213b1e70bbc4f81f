package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/eureka-corp/eureka/internal/platform/httpx"
	"github.com/eureka-corp/eureka/internal/shared"
)

// ActorLoader resolves a user id into an actor snapshot.
type ActorLoader interface {
	LoadActor(ctx context.Context, userID int64) (*Actor, error)
}

// Denial is the payload sent when an actor lacks a role or permission.
type Denial struct {
	Error              string `json:"error"`
	RequiredRole       string `json:"requiredRole,omitempty"`
	RequiredPermission *Query `json:"requiredPermission,omitempty"`
	Message            string `json:"message"`
}

// ForbiddenFunc writes a 403 response for d.
type ForbiddenFunc func(w http.ResponseWriter, r *http.Request, d Denial)

// Middleware wires authentication and authorization checks for HTTP handlers.
type Middleware struct {
	Loader    ActorLoader
	Logger    *slog.Logger
	LoginPath string
	// Forbidden overrides the default JSON 403 response.
	Forbidden ForbiddenFunc
}

// RequireUser resolves the session user into an actor or redirects to login.
func (m Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := m.resolve(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}

// RequireAnonymous redirects signed-in users to the home page.
func (m Middleware) RequireAnonymous(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := currentUserID(r); ok {
			http.Redirect(w, r, "/", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole ensures the current actor holds the named role.
func (m Middleware) RequireRole(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := m.AuthorizeRole(w, r, name)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
		})
	}
}

// RequirePermission ensures the current actor holds a permission matching q.
func (m Middleware) RequirePermission(q Query) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := m.Authorize(w, r, q)
			if !ok {
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
		})
	}
}

// AuthorizeRole is the inline form of RequireRole. When it returns false the
// response has already been written.
func (m Middleware) AuthorizeRole(w http.ResponseWriter, r *http.Request, name string) (*Actor, bool) {
	actor, ok := m.resolve(w, r)
	if !ok {
		return nil, false
	}
	if !HasRole(actor, name) {
		m.forbid(w, r.WithContext(ContextWithActor(r.Context(), actor)), Denial{
			Error:        "Unauthorized",
			RequiredRole: name,
			Message:      "Unauthorized: required role: " + name,
		})
		return nil, false
	}
	return actor, true
}

// Authorize is the inline form of RequirePermission, used by handlers whose
// required permission depends on the submitted form.
func (m Middleware) Authorize(w http.ResponseWriter, r *http.Request, q Query) (*Actor, bool) {
	actor, ok := m.resolve(w, r)
	if !ok {
		return nil, false
	}
	if !HasPermission(actor, q) {
		required := q
		m.forbid(w, r.WithContext(ContextWithActor(r.Context(), actor)), Denial{
			Error:              "Unauthorized",
			RequiredPermission: &required,
			Message:            "Unauthorized: required permissions: " + q.String(),
		})
		return nil, false
	}
	return actor, true
}

// resolve returns the request's actor, loading it once per request.
func (m Middleware) resolve(w http.ResponseWriter, r *http.Request) (*Actor, bool) {
	if actor := ActorFromContext(r.Context()); actor != nil {
		return actor, true
	}
	userID, ok := currentUserID(r)
	if !ok {
		m.redirectToLogin(w, r, true)
		return nil, false
	}
	actor, err := m.Loader.LoadActor(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			if sess := shared.SessionFromContext(r.Context()); sess != nil {
				sess.Destroy()
			}
			m.redirectToLogin(w, r, false)
			return nil, false
		}
		m.logger().Error("rbac load actor", slog.Int64("user_id", userID), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, false
	}
	return actor, true
}

func (m Middleware) redirectToLogin(w http.ResponseWriter, r *http.Request, keepTarget bool) {
	location := m.LoginPath
	if location == "" {
		location = "/login"
	}
	if keepTarget && r.Method == http.MethodGet {
		location += "?redirectTo=" + url.QueryEscape(r.URL.RequestURI())
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func (m Middleware) forbid(w http.ResponseWriter, r *http.Request, d Denial) {
	m.logger().Warn("rbac denied", slog.String("path", r.URL.Path), slog.String("message", d.Message))
	if m.Forbidden != nil {
		m.Forbidden(w, r, d)
		return
	}
	httpx.JSON(w, http.StatusForbidden, d)
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func currentUserID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
