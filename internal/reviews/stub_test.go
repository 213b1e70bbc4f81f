package reviews

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/eureka-corp/eureka/internal/shared"
	"github.com/eureka-corp/eureka/jobs"
)

var errBoom = errors.New("boom")

type stubRepo struct {
	mu          sync.Mutex
	people      map[int64]Person
	reviews     map[int64]Review
	requests    map[int64][]Request
	nextID      int64
	created     []CreateInput
	updated     map[int64]UpdateInput
	feedback    []FeedbackInput
	createErr   error
	feedbackErr error
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		people: map[int64]Person{
			2: {ID: 2, Name: "Ada Lovelace", Email: "lovelace@eureka.co"},
			3: {ID: 3, Name: "Grace Hopper", Email: "hopper@eureka.co"},
			4: {ID: 4, Name: "Alan Turing", Email: "turing@eureka.co"},
		},
		reviews:  map[int64]Review{},
		requests: map[int64][]Request{},
		updated:  map[int64]UpdateInput{},
		nextID:   1,
	}
}

func (s *stubRepo) ListOverview(context.Context) ([]Overview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Overview
	for _, id := range []int64{2, 3, 4} {
		o := Overview{User: s.people[id]}
		for _, rv := range s.reviews {
			if rv.Reviewee.ID == id {
				review := rv
				o.Review = &review
			}
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *stubRepo) GetPerson(_ context.Context, id int64) (Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.people[id]
	if !ok {
		return Person{}, shared.ErrNotFound
	}
	return p, nil
}

func (s *stubRepo) ListCandidates(context.Context) ([]Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return []Person{s.people[2], s.people[3], s.people[4]}, nil
}

func (s *stubRepo) GetReview(_ context.Context, id int64) (Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rv, ok := s.reviews[id]
	if !ok {
		return Review{}, shared.ErrNotFound
	}
	return rv, nil
}

func (s *stubRepo) CreateReview(_ context.Context, reviewerID int64, in CreateInput) (int64, []Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return 0, nil, s.createErr
	}
	s.created = append(s.created, in)
	id := s.nextID
	s.nextID++
	review := Review{ID: id, Title: in.Title, Content: in.Content, Reviewee: s.people[in.RevieweeID], ReviewerID: reviewerID, CreatedAt: time.Now()}
	var added []Person
	for _, a := range in.AssigneeIDs {
		p, ok := s.people[a]
		if !ok {
			continue
		}
		added = append(added, p)
		review.Assignments = append(review.Assignments, Assignment{ID: int64(len(review.Assignments) + 1), Assignee: p})
	}
	s.reviews[id] = review
	return id, added, nil
}

func (s *stubRepo) UpdateReview(_ context.Context, id int64, in UpdateInput) ([]Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	review, ok := s.reviews[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	s.updated[id] = in
	review.Title, review.Content = in.Title, in.Content
	var added []Person
	for _, a := range in.AssigneeIDs {
		if containsID(review.AssigneeIDs(), a) {
			continue
		}
		p, ok := s.people[a]
		if !ok {
			continue
		}
		added = append(added, p)
		review.Assignments = append(review.Assignments, Assignment{ID: int64(len(review.Assignments) + 1), Assignee: p})
	}
	s.reviews[id] = review
	return added, nil
}

func (s *stubRepo) ListRequests(_ context.Context, assigneeID int64) ([]Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[assigneeID], nil
}

func (s *stubRepo) GetRequest(_ context.Context, assigneeID, reviewID int64) (Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range s.requests[assigneeID] {
		if req.ReviewID == reviewID {
			return req, nil
		}
	}
	return Request{}, shared.ErrNotFound
}

func (s *stubRepo) CreateFeedback(_ context.Context, assigneeID int64, in FeedbackInput) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.feedbackErr != nil {
		return 0, s.feedbackErr
	}
	for _, req := range s.requests[assigneeID] {
		if req.ReviewID == in.ReviewID && req.AssignmentID == in.AssignmentID {
			s.feedback = append(s.feedback, in)
			return int64(len(s.feedback)), nil
		}
	}
	return 0, shared.ErrNotFound
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

type stubNotifier struct {
	payloads []jobs.ReviewAssignedPayload
	err      error
}

func (n *stubNotifier) EnqueueReviewAssigned(_ context.Context, payload jobs.ReviewAssignedPayload) error {
	n.payloads = append(n.payloads, payload)
	return n.err
}

type recordingAudit struct {
	logs []shared.AuditLog
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}
