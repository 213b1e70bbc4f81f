package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/eureka-corp/eureka/internal/auth"
	"github.com/eureka-corp/eureka/internal/employees"
	"github.com/eureka-corp/eureka/internal/observability"
	"github.com/eureka-corp/eureka/internal/platform/httpx"
	"github.com/eureka-corp/eureka/internal/rbac"
	"github.com/eureka-corp/eureka/internal/reviews"
	"github.com/eureka-corp/eureka/internal/roles"
	"github.com/eureka-corp/eureka/internal/shared"
	"github.com/eureka-corp/eureka/internal/view"
	"github.com/eureka-corp/eureka/jobs"
	"github.com/eureka-corp/eureka/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Templates        *view.Engine
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	RBACMiddleware   rbac.Middleware
	AuthHandler      *auth.Handler
	EmployeesHandler *employees.Handler
	ReviewsHandler   *reviews.Handler
	RolesHandler     *roles.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with Eureka defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.With(params.RBACMiddleware.RequireUser).Get("/", func(w http.ResponseWriter, r *http.Request) {
		renderPage(w, r, params, http.StatusOK, "pages/home.html", "Eureka", nil)
	})

	params.AuthHandler.MountRoutes(r)
	if params.EmployeesHandler != nil {
		params.EmployeesHandler.MountRoutes(r)
	}
	if params.ReviewsHandler != nil {
		params.ReviewsHandler.MountRoutes(r)
	}
	if params.RolesHandler != nil {
		r.Route("/roles", params.RolesHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(params.RBACMiddleware.RequireRole(rbac.RoleAdmin))
			params.JobHandler.MountRoutes(r)
		})
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		if !httpx.WantsHTML(r) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "")
			return
		}
		renderPage(w, r, params, http.StatusNotFound, "pages/error.html", "Not found", view.ErrorPage{Status: http.StatusNotFound, Message: "Not found"})
	})

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

// ForbiddenRenderer answers authorization failures with an HTML error page
// for browsers and the JSON denial payload for everything else.
func ForbiddenRenderer(logger *slog.Logger, templates *view.Engine, csrf *shared.CSRFManager, metrics *observability.Metrics) rbac.ForbiddenFunc {
	return func(w http.ResponseWriter, r *http.Request, d rbac.Denial) {
		required := d.RequiredRole
		kind := "role"
		if d.RequiredPermission != nil {
			required = d.RequiredPermission.String()
			kind = "permission"
		}
		metrics.RecordDenial(kind)
		if !httpx.WantsHTML(r) {
			httpx.JSON(w, http.StatusForbidden, d)
			return
		}
		params := RouterParams{Logger: logger, Templates: templates, CSRFManager: csrf}
		renderPage(w, r, params, http.StatusForbidden, "pages/error.html", "Unauthorized", view.ErrorPage{
			Status:   http.StatusForbidden,
			Message:  d.Message,
			Required: required,
		})
	}
}

func renderPage(w http.ResponseWriter, r *http.Request, params RouterParams, status int, tpl, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Actor:       rbac.ActorFromContext(r.Context()),
		Data:        data,
	}
	if err := params.Templates.RenderStatus(w, status, tpl, viewData); err != nil {
		params.Logger.Error("render "+tpl, slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
