package reviews

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/eureka-corp/eureka/internal/rbac"
	"github.com/eureka-corp/eureka/internal/shared"
)

type feedbackForm struct {
	AssignmentID int64  `form:"assignmentId" validate:"gt=0"`
	Content      string `form:"content" validate:"required,max=10000"`
}

type requestsPageData struct {
	Requests []Request
}

type requestPageData struct {
	Request Request
	Form    feedbackForm
	Errors  shared.FormErrors
}

func (h *Handler) listRequests(w http.ResponseWriter, r *http.Request) {
	actor := rbac.ActorFromContext(r.Context())
	requests, err := h.service.ListRequests(r.Context(), actor.ID)
	if err != nil {
		h.fail(w, r, "list review requests", err)
		return
	}
	h.render(w, r, http.StatusOK, "pages/requests/list.html", "Review requests", requestsPageData{Requests: requests})
}

func (h *Handler) showRequest(w http.ResponseWriter, r *http.Request) {
	request, ok := h.loadRequest(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, "pages/requests/show.html", request.Title, requestPageData{
		Request: request,
		Form:    feedbackForm{AssignmentID: request.AssignmentID},
	})
}

func (h *Handler) submitFeedback(w http.ResponseWriter, r *http.Request) {
	request, ok := h.loadRequest(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	actor := rbac.ActorFromContext(r.Context())
	form := feedbackForm{Content: r.PostFormValue("content")}
	form.AssignmentID, _ = strconv.ParseInt(r.PostFormValue("assignmentId"), 10, 64)

	errs := shared.FormErrors{}
	if err := h.validator.Struct(form); err != nil {
		errs = shared.ValidationErrors(err)
	}
	if len(errs) == 0 {
		err := h.service.SubmitFeedback(r.Context(), actor.ID, FeedbackInput{
			ReviewID:     request.ReviewID,
			AssignmentID: form.AssignmentID,
			Content:      form.Content,
		})
		switch {
		case err == nil:
			shared.RedirectWithFlash(w, r, "/review-requests/"+strconv.FormatInt(request.ReviewID, 10), "success", "Feedback submitted")
			return
		case errors.Is(err, shared.ErrNotFound):
			h.notFound(w, r)
			return
		case errors.Is(err, shared.ErrFeedbackExists):
			errs["general"] = shared.UserSafeMessage(err)
		default:
			h.logger.Error("submit feedback", slog.Int64("review_id", request.ReviewID), slog.Any("error", err))
			errs["general"] = shared.UserSafeMessage(err)
		}
	}
	h.render(w, r, http.StatusBadRequest, "pages/requests/show.html", request.Title, requestPageData{Request: request, Form: form, Errors: errs})
}

// loadRequest resolves the review in the path, answering 404 unless it is
// assigned to the actor.
func (h *Handler) loadRequest(w http.ResponseWriter, r *http.Request) (Request, bool) {
	id, ok := h.pathID(w, r)
	if !ok {
		return Request{}, false
	}
	actor := rbac.ActorFromContext(r.Context())
	request, err := h.service.GetRequest(r.Context(), actor.ID, id)
	if err != nil {
		h.fail(w, r, "load review request", err)
		return Request{}, false
	}
	return request, true
}
