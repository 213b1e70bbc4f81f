package reviews

import "time"

// Person is a user referenced by a review.
type Person struct {
	ID    int64
	Name  string
	Email string
}

// Feedback is an assignee's answer to a review request.
type Feedback struct {
	ID        int64
	Content   string
	CreatedAt time.Time
}

// Assignment asks one user for feedback on a review.
type Assignment struct {
	ID       int64
	Assignee Person
	Feedback *Feedback
}

// Review is the performance review a user received.
type Review struct {
	ID          int64
	Title       string
	Content     string
	Reviewee    Person
	ReviewerID  int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Assignments []Assignment
}

// AssigneeIDs lists the users already assigned to the review.
func (r Review) AssigneeIDs() []int64 {
	ids := make([]int64, 0, len(r.Assignments))
	for _, a := range r.Assignments {
		ids = append(ids, a.Assignee.ID)
	}
	return ids
}

// Overview pairs a user with the review they received, if any.
type Overview struct {
	User   Person
	Review *Review
}

// Request is a review the current user was asked to give feedback on.
type Request struct {
	ReviewID     int64
	Title        string
	Content      string
	Reviewee     Person
	AssignmentID int64
	Feedback     *Feedback
}

// CreateInput carries a new review.
type CreateInput struct {
	Title       string
	Content     string
	RevieweeID  int64
	AssigneeIDs []int64
}

// UpdateInput carries review edits. AssigneeIDs are added to the existing
// assignments.
type UpdateInput struct {
	Title       string
	Content     string
	AssigneeIDs []int64
}

// FeedbackInput carries an assignee's feedback.
type FeedbackInput struct {
	ReviewID     int64
	AssignmentID int64
	Content      string
}

// Form is the data needed to render a review form.
type Form struct {
	Reviewee   Person
	Review     *Review
	Candidates []Person
}
