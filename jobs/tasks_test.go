package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/eureka-corp/eureka/internal/jobs"
)

type fakeMailer struct {
	sent []Message
	err  error
}

func (f *fakeMailer) Send(ctx context.Context, msg Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newTask(t *testing.T, payload ReviewAssignedPayload) *asynq.Task {
	t.Helper()
	task, err := NewReviewAssignedTask(payload)
	require.NoError(t, err)
	return task
}

func TestReviewAssignedSendsMail(t *testing.T) {
	mailer := &fakeMailer{}
	job := &ReviewAssignedJob{Mailer: mailer, Metrics: jobmetrics.NewMetrics(prometheus.NewRegistry()), BaseURL: "https://hr.example/"}

	err := job.Handle(context.Background(), newTask(t, ReviewAssignedPayload{
		ReviewID:      4,
		ReviewTitle:   "Q3 review",
		RevieweeName:  "Sam Carter",
		AssigneeName:  "Jo Park",
		AssigneeEmail: "jo@eureka.co",
	}))
	require.NoError(t, err)

	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, "jo@eureka.co", msg.To)
	assert.Equal(t, "Feedback requested: Q3 review", msg.Subject)
	assert.Contains(t, msg.Body, "Hi Jo Park")
	assert.Contains(t, msg.Body, "Sam Carter")
	assert.Contains(t, msg.Body, "https://hr.example/review-requests/4")
}

func TestReviewAssignedSkipsRetryOnBadPayload(t *testing.T) {
	job := &ReviewAssignedJob{Mailer: &fakeMailer{}}

	err := job.Handle(context.Background(), asynq.NewTask(TaskReviewAssigned, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), newTask(t, ReviewAssignedPayload{ReviewID: 1}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestReviewAssignedRetriesMailFailures(t *testing.T) {
	boom := errors.New("connection refused")
	job := &ReviewAssignedJob{Mailer: &fakeMailer{err: boom}}

	err := job.Handle(context.Background(), newTask(t, ReviewAssignedPayload{ReviewID: 1, AssigneeEmail: "a@eureka.co"}))
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestReviewAssignedPayloadWireFormat(t *testing.T) {
	task := newTask(t, ReviewAssignedPayload{ReviewID: 9, ReviewTitle: "T", RevieweeName: "R", AssigneeName: "A", AssigneeEmail: "a@x.io"})
	assert.Equal(t, TaskReviewAssigned, task.Type())

	var raw map[string]any
	require.NoError(t, json.Unmarshal(task.Payload(), &raw))
	for _, key := range []string{"review_id", "review_title", "reviewee_name", "assignee_name", "assignee_email"} {
		assert.Contains(t, raw, key)
	}
}

func TestBuildMessage(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	data := string(buildMessage("hr@eureka.co", Message{To: "a@eureka.co", Subject: "Hello", Body: "line one\nline two"}, now))

	assert.True(t, strings.HasPrefix(data, "From: hr@eureka.co\r\nTo: a@eureka.co\r\nSubject: Hello\r\n"))
	assert.Contains(t, data, "Content-Type: text/plain; charset=utf-8\r\n\r\nline one\r\nline two")
}

func TestSMTPMailerRejectsHeaderInjection(t *testing.T) {
	err := SMTPMailer{Host: "127.0.0.1", Port: 1, From: "hr@eureka.co"}.Send(context.Background(), Message{To: "a@eureka.co\r\nBcc: x@evil.io", Subject: "x"})
	assert.Error(t, err)
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestHealthHandler(t *testing.T) {
	cases := []struct {
		name      string
		inspector QueueInspector
		status    int
		body      string
	}{
		{name: "no inspector", status: http.StatusOK, body: `"pending":0`},
		{name: "queue info", inspector: stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Active: 1}}, status: http.StatusOK, body: `"pending":3`},
		{name: "inspect error", inspector: stubInspector{err: errors.New("redis down")}, status: http.StatusServiceUnavailable, body: "queue inspection failed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewHandler(tc.inspector, nil)
			rr := httptest.NewRecorder()
			h.health(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))

			assert.Equal(t, tc.status, rr.Code)
			assert.Contains(t, rr.Body.String(), tc.body)
		})
	}
}
