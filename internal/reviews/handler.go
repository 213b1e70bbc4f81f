package reviews

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/eureka-corp/eureka/internal/rbac"
	"github.com/eureka-corp/eureka/internal/shared"
	"github.com/eureka-corp/eureka/internal/view"
)

// Handler serves the admin review pages and the employee review requests.
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

// MountRoutes registers review routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleAdmin))
		r.Get("/reviews", h.listReviews)
		r.Get("/reviews/new", h.showCreateForm)
		r.Get("/reviews/{id}", h.showEditForm)
	})
	r.With(h.rbac.RequirePermission(rbac.CreateReview)).Post("/reviews", h.createReview)
	r.With(h.rbac.RequirePermission(rbac.UpdateReview)).Post("/reviews/{id}", h.updateReview)

	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireRole(rbac.RoleEmployee))
		r.Get("/review-requests", h.listRequests)
		r.Get("/review-requests/{id}", h.showRequest)
		r.Post("/review-requests/{id}", h.submitFeedback)
	})
}

type reviewForm struct {
	Title       string  `form:"title" validate:"required,max=200"`
	Content     string  `form:"content" validate:"required,max=10000"`
	RevieweeID  int64   `form:"for" validate:"gt=0"`
	AssigneeIDs []int64 `form:"assigned-to" validate:"-"`
}

type listPageData struct {
	Overview []Overview
}

type formPageData struct {
	Form     reviewForm
	Reviewee Person
	Review   *Review
	// Candidates are users that may still be assigned.
	Candidates []Person
	Errors     shared.FormErrors
}

func (h *Handler) listReviews(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.ListOverview(r.Context())
	if err != nil {
		h.fail(w, r, "list reviews", err)
		return
	}
	h.render(w, r, http.StatusOK, "pages/reviews/list.html", "Performance reviews", listPageData{Overview: overview})
}

func (h *Handler) showCreateForm(w http.ResponseWriter, r *http.Request) {
	revieweeID, err := strconv.ParseInt(r.URL.Query().Get("employeeId"), 10, 64)
	if err != nil || revieweeID <= 0 {
		h.notFound(w, r)
		return
	}
	form, err := h.service.NewReviewForm(r.Context(), revieweeID)
	if err != nil {
		h.fail(w, r, "new review form", err)
		return
	}
	h.render(w, r, http.StatusOK, "pages/reviews/new.html", "New review", formPageData{
		Form:       reviewForm{RevieweeID: revieweeID},
		Reviewee:   form.Reviewee,
		Candidates: form.Candidates,
	})
}

func (h *Handler) createReview(w http.ResponseWriter, r *http.Request) {
	form, ok := h.parseReviewForm(w, r)
	if !ok {
		return
	}
	actor := rbac.ActorFromContext(r.Context())
	errs := shared.FormErrors{}
	if err := h.validator.Struct(form); err != nil {
		errs = shared.ValidationErrors(err)
	}
	if len(errs) == 0 {
		_, err := h.service.CreateReview(r.Context(), actor.ID, CreateInput{
			Title:       form.Title,
			Content:     form.Content,
			RevieweeID:  form.RevieweeID,
			AssigneeIDs: form.AssigneeIDs,
		})
		switch {
		case err == nil:
			shared.RedirectWithFlash(w, r, "/reviews", "success", "Review created")
			return
		case errors.Is(err, shared.ErrNotFound):
			h.notFound(w, r)
			return
		case errors.Is(err, shared.ErrAlreadyReviewed):
			errs["general"] = shared.UserSafeMessage(err)
		default:
			h.logger.Error("create review", slog.Any("error", err))
			errs["general"] = shared.UserSafeMessage(err)
		}
	}
	data := formPageData{Form: form, Errors: errs}
	if form.RevieweeID > 0 {
		loaded, err := h.service.NewReviewForm(r.Context(), form.RevieweeID)
		if err != nil {
			h.fail(w, r, "new review form", err)
			return
		}
		data.Reviewee, data.Candidates = loaded.Reviewee, loaded.Candidates
	}
	h.render(w, r, http.StatusBadRequest, "pages/reviews/new.html", "New review", data)
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	form, err := h.service.EditReviewForm(r.Context(), id)
	if err != nil {
		h.fail(w, r, "edit review form", err)
		return
	}
	h.render(w, r, http.StatusOK, "pages/reviews/edit.html", "Edit review", formPageData{
		Form:       reviewForm{Title: form.Review.Title, Content: form.Review.Content, RevieweeID: form.Reviewee.ID},
		Reviewee:   form.Reviewee,
		Review:     form.Review,
		Candidates: form.Candidates,
	})
}

func (h *Handler) updateReview(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	form, ok := h.parseReviewForm(w, r)
	if !ok {
		return
	}
	actor := rbac.ActorFromContext(r.Context())
	errs := shared.FormErrors{}
	if err := h.validator.StructExcept(form, "RevieweeID"); err != nil {
		errs = shared.ValidationErrors(err)
	}
	if len(errs) == 0 {
		err := h.service.UpdateReview(r.Context(), actor.ID, id, UpdateInput{Title: form.Title, Content: form.Content, AssigneeIDs: form.AssigneeIDs})
		switch {
		case err == nil:
			shared.RedirectWithFlash(w, r, "/reviews", "success", "Review updated")
			return
		case errors.Is(err, shared.ErrNotFound):
			h.notFound(w, r)
			return
		default:
			h.logger.Error("update review", slog.Int64("id", id), slog.Any("error", err))
			errs["general"] = shared.UserSafeMessage(err)
		}
	}
	loaded, err := h.service.EditReviewForm(r.Context(), id)
	if err != nil {
		h.fail(w, r, "edit review form", err)
		return
	}
	h.render(w, r, http.StatusBadRequest, "pages/reviews/edit.html", "Edit review", formPageData{
		Form:       form,
		Reviewee:   loaded.Reviewee,
		Review:     loaded.Review,
		Candidates: loaded.Candidates,
		Errors:     errs,
	})
}

func (h *Handler) parseReviewForm(w http.ResponseWriter, r *http.Request) (reviewForm, bool) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return reviewForm{}, false
	}
	form := reviewForm{
		Title:   r.PostFormValue("title"),
		Content: r.PostFormValue("content"),
	}
	form.RevieweeID, _ = strconv.ParseInt(r.PostFormValue("for"), 10, 64)
	for _, raw := range r.PostForm["assigned-to"] {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			form.AssigneeIDs = append(form.AssigneeIDs, id)
		}
	}
	return form, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.notFound(w, r)
		return 0, false
	}
	return id, true
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, "pages/error.html", "Not found", view.ErrorPage{Status: http.StatusNotFound, Message: "Not found"})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, shared.ErrNotFound) {
		h.notFound(w, r)
		return
	}
	h.logger.Error(op, slog.Any("error", err))
	h.render(w, r, http.StatusInternalServerError, "pages/error.html", "Error", view.ErrorPage{Status: http.StatusInternalServerError, Message: shared.UserSafeMessage(err)})
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
