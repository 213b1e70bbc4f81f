package reviews

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/eureka-corp/eureka/internal/shared"
	"github.com/eureka-corp/eureka/jobs"
)

// RepositoryPort defines data access methods for reviews.
type RepositoryPort interface {
	ListOverview(ctx context.Context) ([]Overview, error)
	GetPerson(ctx context.Context, id int64) (Person, error)
	ListCandidates(ctx context.Context) ([]Person, error)
	GetReview(ctx context.Context, id int64) (Review, error)
	CreateReview(ctx context.Context, reviewerID int64, in CreateInput) (int64, []Person, error)
	UpdateReview(ctx context.Context, id int64, in UpdateInput) ([]Person, error)
	ListRequests(ctx context.Context, assigneeID int64) ([]Request, error)
	GetRequest(ctx context.Context, assigneeID, reviewID int64) (Request, error)
	CreateFeedback(ctx context.Context, assigneeID int64, in FeedbackInput) (int64, error)
}

// Notifier hands assignment notifications to the job queue. *jobs.Client
// satisfies it.
type Notifier interface {
	EnqueueReviewAssigned(ctx context.Context, payload jobs.ReviewAssignedPayload) error
}

// Service implements review workflows.
type Service struct {
	repo     RepositoryPort
	notifier Notifier
	audit    shared.AuditRecorder
	logger   *slog.Logger
}

// NewService builds Service instance. notifier and audit may be nil.
func NewService(repo RepositoryPort, notifier Notifier, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, notifier: notifier, audit: audit, logger: logger}
}

// ListOverview returns every user with the review they received.
func (s *Service) ListOverview(ctx context.Context) ([]Overview, error) {
	return s.repo.ListOverview(ctx)
}

// NewReviewForm loads the reviewee and the assignee candidates concurrently.
func (s *Service) NewReviewForm(ctx context.Context, revieweeID int64) (Form, error) {
	var (
		reviewee   Person
		candidates []Person
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		reviewee, err = s.repo.GetPerson(gctx, revieweeID)
		return err
	})
	g.Go(func() error {
		var err error
		candidates, err = s.repo.ListCandidates(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Form{}, err
	}
	return Form{Reviewee: reviewee, Candidates: excludePeople(candidates, revieweeID)}, nil
}

// EditReviewForm loads the review and the assignee candidates concurrently.
// Candidates exclude the reviewee and users already assigned.
func (s *Service) EditReviewForm(ctx context.Context, id int64) (Form, error) {
	var (
		review     Review
		candidates []Person
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		review, err = s.repo.GetReview(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		candidates, err = s.repo.ListCandidates(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return Form{}, err
	}
	exclude := append(review.AssigneeIDs(), review.Reviewee.ID)
	return Form{Reviewee: review.Reviewee, Review: &review, Candidates: excludePeople(candidates, exclude...)}, nil
}

// CreateReview stores a review written by actorID and notifies its assignees.
func (s *Service) CreateReview(ctx context.Context, actorID int64, in CreateInput) (int64, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.AssigneeIDs = normalizeIDs(in.AssigneeIDs, in.RevieweeID)
	reviewee, err := s.repo.GetPerson(ctx, in.RevieweeID)
	if err != nil {
		return 0, err
	}
	id, added, err := s.repo.CreateReview(ctx, actorID, in)
	if err != nil {
		return 0, err
	}
	s.record(ctx, actorID, "create", "review", id, map[string]any{"reviewee_id": in.RevieweeID, "assignees": len(added)})
	s.notify(ctx, id, in.Title, withReviewee(added, reviewee))
	return id, nil
}

// UpdateReview edits a review, adds assignees and notifies the new ones.
func (s *Service) UpdateReview(ctx context.Context, actorID, id int64, in UpdateInput) error {
	review, err := s.repo.GetReview(ctx, id)
	if err != nil {
		return err
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.AssigneeIDs = normalizeIDs(in.AssigneeIDs, review.Reviewee.ID)
	added, err := s.repo.UpdateReview(ctx, id, in)
	if err != nil {
		return err
	}
	review.Title = in.Title
	s.record(ctx, actorID, "update", "review", id, map[string]any{"assignees_added": len(added)})
	s.notify(ctx, id, review.Title, withReviewee(added, review.Reviewee))
	return nil
}

// ListRequests returns the reviews assigned to the actor.
func (s *Service) ListRequests(ctx context.Context, actorID int64) ([]Request, error) {
	return s.repo.ListRequests(ctx, actorID)
}

// GetRequest loads a review request if it is assigned to the actor.
func (s *Service) GetRequest(ctx context.Context, actorID, reviewID int64) (Request, error) {
	return s.repo.GetRequest(ctx, actorID, reviewID)
}

// SubmitFeedback stores the actor's feedback for an assignment they own.
func (s *Service) SubmitFeedback(ctx context.Context, actorID int64, in FeedbackInput) error {
	in.Content = strings.TrimSpace(in.Content)
	id, err := s.repo.CreateFeedback(ctx, actorID, in)
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "create", "feedback", id, map[string]any{"review_id": in.ReviewID, "assignment_id": in.AssignmentID})
	return nil
}

// notify enqueues one notification per assignee. Queue failures are logged;
// the review is already stored.
func (s *Service) notify(ctx context.Context, reviewID int64, title string, assignees []assignee) {
	if s.notifier == nil {
		return
	}
	for _, a := range assignees {
		payload := jobs.ReviewAssignedPayload{
			ReviewID:      reviewID,
			ReviewTitle:   title,
			RevieweeName:  a.revieweeName,
			AssigneeName:  a.Name,
			AssigneeEmail: a.Email,
		}
		if err := s.notifier.EnqueueReviewAssigned(ctx, payload); err != nil {
			s.logger.Warn("enqueue review notification",
				slog.Int64("review_id", reviewID),
				slog.Int64("assignee_id", a.ID),
				slog.Any("error", err))
		}
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action, entity string, id int64, meta map[string]any) {
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   entity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit "+entity, slog.Int64("id", id), slog.Any("error", err))
	}
}

type assignee struct {
	Person
	revieweeName string
}

func withReviewee(people []Person, reviewee Person) []assignee {
	out := make([]assignee, 0, len(people))
	for _, p := range people {
		out = append(out, assignee{Person: p, revieweeName: reviewee.Name})
	}
	return out
}

// normalizeIDs drops non-positive, duplicate and excluded ids, keeping order.
func normalizeIDs(ids []int64, exclude int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || id == exclude {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func excludePeople(people []Person, ids ...int64) []Person {
	out := make([]Person, 0, len(people))
	for _, p := range people {
		skip := false
		for _, id := range ids {
			if p.ID == id {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, p)
		}
	}
	return out
}
