package employees

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/eureka-corp/eureka/internal/platform/httpx"
	"github.com/eureka-corp/eureka/internal/rbac"
	"github.com/eureka-corp/eureka/internal/shared"
	"github.com/eureka-corp/eureka/internal/view"
)

const (
	intentEdit   = "edit-employee"
	intentDelete = "delete-employee"
)

// Handler manages employee and profile endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, rbacMW rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, rbac: rbacMW, validator: shared.NewValidator()}
}

// MountRoutes registers employee, search and profile routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleAdmin))
		r.Get("/employees", h.listEmployees)
		r.Get("/employees/{id}", h.showEditForm)
		r.Get("/apis/employees", h.searchEmployees)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequirePermission(rbac.CreateUser))
		r.Get("/employees/new", h.showCreateForm)
		r.Post("/employees", h.createEmployee)
	})
	r.With(h.rbac.RequireUser).Post("/employees/{id}", h.employeeAction)
	r.With(h.rbac.RequirePermission(rbac.ReadOwnOrAnyUser)).Get("/profile", h.showProfile)
	r.With(h.rbac.RequirePermission(rbac.UpdateOwnOrAnyUser)).Post("/profile", h.updateProfile)
}

type createForm struct {
	Email           string `form:"email" validate:"required,email,min=3,max=100"`
	Name            string `form:"name" validate:"required,min=3,max=40"`
	Password        string `form:"password" validate:"required,min=6,max=100"`
	ConfirmPassword string `form:"confirmPassword" validate:"required,min=6,max=100,eqfield=Password"`
}

type editForm struct {
	Email string `form:"email" validate:"required,email,min=3,max=100"`
	Name  string `form:"name" validate:"required,min=3,max=40"`
}

type profileForm struct {
	Name string `form:"name" validate:"required,min=3,max=40"`
}

type listPageData struct {
	Employees []Employee
}

type createPageData struct {
	Form   createForm
	Errors shared.FormErrors
}

type editPageData struct {
	Employee Employee
	Form     editForm
	Errors   shared.FormErrors
}

type profilePageData struct {
	Employee Employee
	Form     profileForm
	Errors   shared.FormErrors
}

func (h *Handler) listEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.service.ListEmployees(r.Context())
	if err != nil {
		h.fail(w, r, "list employees", err)
		return
	}
	h.render(w, r, http.StatusOK, "pages/employees/list.html", "Employees", listPageData{Employees: employees})
}

func (h *Handler) searchEmployees(w http.ResponseWriter, r *http.Request) {
	results, err := h.service.SearchEmployees(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		h.logger.Error("search employees", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, results)
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "pages/employees/new.html", "New employee", createPageData{})
}

func (h *Handler) createEmployee(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	actor := rbac.ActorFromContext(r.Context())
	form := createForm{
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
		employee, err := h.service.CreateEmployee(r.Context(), actor.ID, CreateInput{Email: form.Email, Name: form.Name, Password: form.Password})
		if err == nil {
			shared.RedirectWithFlash(w, r, "/employees", "success", employee.Name+" was added")
			return
		}
		if errors.Is(err, shared.ErrDuplicateEmail) {
			errs["email"] = shared.UserSafeMessage(err)
		} else {
			h.logger.Error("create employee", slog.Any("error", err))
			errs["general"] = shared.UserSafeMessage(err)
		}
	}
	form.Password, form.ConfirmPassword = "", ""
	h.render(w, r, http.StatusBadRequest, "pages/employees/new.html", "New employee", createPageData{Form: form, Errors: errs})
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	employee, ok := h.loadEmployee(w, r)
	if !ok {
		return
	}
	data := editPageData{Employee: employee, Form: editForm{Email: employee.Email, Name: employee.Name}}
	h.render(w, r, http.StatusOK, "pages/employees/edit.html", "Edit "+employee.Name, data)
}

// employeeAction dispatches on the submitted intent. The required permission
// depends on the intent, so authorization happens inline.
func (h *Handler) employeeAction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	switch intent := r.PostFormValue("intent"); intent {
	case intentEdit:
		if _, ok := h.rbac.Authorize(w, r, rbac.UpdateAnyUser); !ok {
			return
		}
		h.updateEmployee(w, r)
	case intentDelete:
		if _, ok := h.rbac.Authorize(w, r, rbac.DeleteAnyUser); !ok {
			return
		}
		h.deleteEmployee(w, r)
	default:
		http.Error(w, fmt.Sprintf("Invalid intent %q", intent), http.StatusBadRequest)
	}
}

func (h *Handler) updateEmployee(w http.ResponseWriter, r *http.Request) {
	employee, ok := h.loadEmployee(w, r)
	if !ok {
		return
	}
	actor := rbac.ActorFromContext(r.Context())
	form := editForm{
		Email: shared.NormalizeEmail(r.PostFormValue("email")),
		Name:  shared.NormalizeName(r.PostFormValue("name")),
	}
	errs := shared.FormErrors{}
	if err := h.validator.Struct(form); err != nil {
		errs = shared.ValidationErrors(err)
	}
	if len(errs) == 0 {
		err := h.service.UpdateEmployee(r.Context(), actor.ID, employee.ID, UpdateInput{Email: form.Email, Name: form.Name})
		switch {
		case err == nil:
			shared.RedirectWithFlash(w, r, "/employees", "success", form.Name+" was updated")
			return
		case errors.Is(err, shared.ErrNotFound):
			h.notFound(w, r)
			return
		case errors.Is(err, shared.ErrDuplicateEmail):
			errs["email"] = shared.UserSafeMessage(err)
		default:
			h.logger.Error("update employee", slog.Int64("id", employee.ID), slog.Any("error", err))
			errs["general"] = shared.UserSafeMessage(err)
		}
	}
	h.render(w, r, http.StatusBadRequest, "pages/employees/edit.html", "Edit "+employee.Name, editPageData{Employee: employee, Form: form, Errors: errs})
}

func (h *Handler) deleteEmployee(w http.ResponseWriter, r *http.Request) {
	id, ok := h.employeeID(w, r)
	if !ok {
		return
	}
	actor := rbac.ActorFromContext(r.Context())
	if err := h.service.DeleteEmployee(r.Context(), actor.ID, id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.notFound(w, r)
			return
		}
		h.fail(w, r, "delete employee", err)
		return
	}
	shared.RedirectWithFlash(w, r, "/employees", "success", "Employee deleted")
}

func (h *Handler) showProfile(w http.ResponseWriter, r *http.Request) {
	actor := rbac.ActorFromContext(r.Context())
	employee, err := h.service.GetEmployee(r.Context(), actor.ID)
	if err != nil {
		h.fail(w, r, "load profile", err)
		return
	}
	h.render(w, r, http.StatusOK, "pages/profile.html", "Profile", profilePageData{Employee: employee, Form: profileForm{Name: employee.Name}})
}

func (h *Handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	actor := rbac.ActorFromContext(r.Context())
	form := profileForm{Name: shared.NormalizeName(r.PostFormValue("name"))}
	if err := h.validator.Struct(form); err != nil {
		employee := Employee{ID: actor.ID, Email: actor.Email, Name: actor.Name}
		h.render(w, r, http.StatusBadRequest, "pages/profile.html", "Profile", profilePageData{Employee: employee, Form: form, Errors: shared.ValidationErrors(err)})
		return
	}
	if err := h.service.UpdateProfile(r.Context(), actor.ID, form.Name); err != nil {
		h.fail(w, r, "update profile", err)
		return
	}
	shared.RedirectWithFlash(w, r, "/profile", "success", "Profile updated")
}

func (h *Handler) employeeID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.notFound(w, r)
		return 0, false
	}
	return id, true
}

func (h *Handler) loadEmployee(w http.ResponseWriter, r *http.Request) (Employee, bool) {
	id, ok := h.employeeID(w, r)
	if !ok {
		return Employee{}, false
	}
	employee, err := h.service.GetEmployee(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			h.notFound(w, r)
			return Employee{}, false
		}
		h.fail(w, r, "load employee", err)
		return Employee{}, false
	}
	return employee, true
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, "pages/error.html", "Not found", view.ErrorPage{Status: http.StatusNotFound, Message: "Not found"})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	h.logger.Error(op, slog.Any("error", err))
	status := http.StatusInternalServerError
	if errors.Is(err, shared.ErrNotFound) {
		status = http.StatusNotFound
	}
	h.render(w, r, status, "pages/error.html", "Error", view.ErrorPage{Status: status, Message: shared.UserSafeMessage(err)})
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, tpl, title string, data any) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
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
	if err := h.templates.RenderStatus(w, status, tpl, viewData); err != nil {
		h.logger.Error("render template", slog.String("template", tpl), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
