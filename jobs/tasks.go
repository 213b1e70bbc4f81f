package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/eureka-corp/eureka/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskReviewAssigned notifies an employee that a review awaits feedback.
	TaskReviewAssigned = "review:assigned"
)

// ReviewAssignedPayload describes a single review assignment notification.
type ReviewAssignedPayload struct {
	ReviewID      int64  `json:"review_id"`
	ReviewTitle   string `json:"review_title"`
	RevieweeName  string `json:"reviewee_name"`
	AssigneeName  string `json:"assignee_name"`
	AssigneeEmail string `json:"assignee_email"`
}

// NewReviewAssignedTask constructs an Asynq task.
func NewReviewAssignedTask(payload ReviewAssignedPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReviewAssigned, data, asynq.MaxRetry(5)), nil
}

// ReviewAssignedJob emails assignees about new review requests.
type ReviewAssignedJob struct {
	Mailer  Mailer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	BaseURL string
}

// Handle processes TaskReviewAssigned tasks. Payloads that can never succeed
// are not retried.
func (j *ReviewAssignedJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Mailer == nil {
		return errors.New("review assigned: handler not configured")
	}
	tracker := j.Metrics.Track(TaskReviewAssigned)
	defer func() {
		err = tracker.End(err)
	}()

	var payload ReviewAssignedPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("review assigned: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.ReviewID <= 0 || strings.TrimSpace(payload.AssigneeEmail) == "" {
		return fmt.Errorf("review assigned: incomplete payload: %w", asynq.SkipRetry)
	}

	msg := j.message(payload)
	if err := j.Mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("review assigned: send mail: %w", err)
	}
	j.logger().Info("review assignment notified",
		slog.Int64("review_id", payload.ReviewID),
		slog.String("to", payload.AssigneeEmail),
	)
	return nil
}

func (j *ReviewAssignedJob) message(p ReviewAssignedPayload) Message {
	link := strings.TrimRight(j.BaseURL, "/") + "/review-requests/" + strconv.FormatInt(p.ReviewID, 10)
	var body strings.Builder
	fmt.Fprintf(&body, "Hi %s,\n\n", p.AssigneeName)
	fmt.Fprintf(&body, "You have been asked to give feedback on %q for %s.\n\n", p.ReviewTitle, p.RevieweeName)
	fmt.Fprintf(&body, "Submit your feedback here: %s\n", link)
	return Message{
		To:      p.AssigneeEmail,
		Subject: "Feedback requested: " + p.ReviewTitle,
		Body:    body.String(),
	}
}

func (j *ReviewAssignedJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
