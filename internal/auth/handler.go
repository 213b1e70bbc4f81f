package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/eureka-corp/eureka/internal/rbac"
	"github.com/eureka-corp/eureka/internal/shared"
	"github.com/eureka-corp/eureka/internal/view"
)

var errSessionMissing = errors.New("auth: session missing")

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	rbac           rbac.Middleware
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager, rbacMW rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		rbac:           rbacMW,
		validator:      shared.NewValidator(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAnonymous)
		r.Get("/login", h.showLogin)
		r.Post("/login", h.handleLogin)
		r.Get("/signup", h.showSignup)
		r.Post("/signup", h.handleSignup)
	})
	r.Post("/logout", h.handleLogout)
}

type loginForm struct {
	Email      string `form:"email" validate:"required,email,min=3,max=100"`
	Password   string `form:"password" validate:"required,min=6,max=100"`
	RedirectTo string `form:"redirectTo" validate:"-"`
}

type loginPageData struct {
	Form   loginForm
	Errors shared.FormErrors
}

type signupForm struct {
	Email           string `form:"email" validate:"required,email,min=3,max=100"`
	Name            string `form:"name" validate:"required,min=3,max=40"`
	Password        string `form:"password" validate:"required,min=6,max=100"`
	ConfirmPassword string `form:"confirmPassword" validate:"required,min=6,max=100,eqfield=Password"`
}

type signupPageData struct {
	Form   signupForm
	Errors shared.FormErrors
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	form := loginForm{RedirectTo: r.URL.Query().Get("redirectTo")}
	h.render(w, r, http.StatusOK, "pages/login.html", "Log in", loginPageData{Form: form})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := shared.CheckHoneypot(r); err != nil {
		h.logger.Warn("login honeypot filled", slog.String("remote", r.RemoteAddr))
		http.Error(w, "Form not submitted properly", http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	form := loginForm{
		Email:      shared.NormalizeEmail(r.PostFormValue("email")),
		Password:   r.PostFormValue("password"),
		RedirectTo: r.PostFormValue("redirectTo"),
	}
	errs := shared.FormErrors{}
	if err := h.validator.Struct(form); err != nil {
		errs = shared.ValidationErrors(err)
	}

	if len(errs) == 0 {
		user, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
		if err == nil {
			if err := h.startSession(r, sess, user); err != nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			shared.RedirectWithFlash(w, r, shared.SafeRedirect(form.RedirectTo, "/"), "success", "Welcome back, "+user.Name)
			return
		}
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			h.logger.Error("authenticate", slog.Any("error", err))
		}
		errs["general"] = shared.UserSafeMessage(err)
	}

	// The password is never echoed back.
	form.Password = ""
	h.render(w, r, http.StatusBadRequest, "pages/login.html", "Log in", loginPageData{Form: form, Errors: errs})
}

func (h *Handler) showSignup(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "pages/signup.html", "Sign up", signupPageData{})
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if err := shared.CheckHoneypot(r); err != nil {
		h.logger.Warn("signup honeypot filled", slog.String("remote", r.RemoteAddr))
		http.Error(w, "Form not submitted properly", http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	form := signupForm{
		Email:           shared.NormalizeEmail(r.PostFormValue("email")),
		Name:            shared.NormalizeName(r.PostFormValue("name")),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirmPassword"),
	}
	errs := shared.FormErrors{}
	if err := h.validator.Struct(form); err != nil {
		errs = shared.ValidationErrors(err)
	}

	if len(errs) == 0 {
		user, err := h.service.Signup(r.Context(), SignupInput{Email: form.Email, Name: form.Name, Password: form.Password})
		if err == nil {
			if err := h.startSession(r, sess, user); err != nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			shared.RedirectWithFlash(w, r, "/", "success", "Welcome to Eureka, "+user.Name)
			return
		}
		switch {
		case errors.Is(err, shared.ErrDuplicateEmail):
			errs["email"] = shared.UserSafeMessage(err)
		default:
			h.logger.Error("signup", slog.Any("error", err))
			errs["general"] = shared.UserSafeMessage(err)
		}
	}

	form.Password, form.ConfirmPassword = "", ""
	h.render(w, r, http.StatusBadRequest, "pages/signup.html", "Sign up", signupPageData{Form: form, Errors: errs})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove session", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// startSession signs user into sess under a fresh session id.
func (h *Handler) startSession(r *http.Request, sess *shared.Session, user *User) error {
	if sess == nil {
		h.logger.Error("session missing during login")
		return errSessionMissing
	}
	if err := h.sessionManager.Renew(sess); err != nil {
		h.logger.Error("renew session", slog.Any("error", err))
		return err
	}
	sess.SetUser(strconv.FormatInt(user.ID, 10))
	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("register session", slog.Any("error", err))
	}
	return nil
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, tpl, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, tpl, viewData); err != nil {
		h.logger.Error("render "+tpl, slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
