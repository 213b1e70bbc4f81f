package reviews

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eureka-corp/eureka/internal/platform/db"
	"github.com/eureka-corp/eureka/internal/rbac"
	"github.com/eureka-corp/eureka/internal/shared"
)

// Repository provides PostgreSQL backed persistence for reviews.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository instance.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

const listOverview = `
SELECT u.id, u.name, u.email, pr.id, pr.title, pr.content, pr.reviewer_id, pr.created_at, pr.updated_at
FROM users u
LEFT JOIN performance_reviews pr ON pr.reviewee_id = u.id
ORDER BY u.created_at, u.id`

// ListOverview returns every user with the review they received.
func (r *Repository) ListOverview(ctx context.Context) ([]Overview, error) {
	rows, err := r.pool.Query(ctx, listOverview)
	if err != nil {
		return nil, fmt.Errorf("reviews: list overview: %w", err)
	}
	defer rows.Close()
	var (
		out     []Overview
		reviews = make(map[int64]*Review)
		ids     []int64
	)
	for rows.Next() {
		var (
			user       Person
			reviewID   pgtype.Int8
			title      pgtype.Text
			content    pgtype.Text
			reviewerID pgtype.Int8
			createdAt  pgtype.Timestamptz
			updatedAt  pgtype.Timestamptz
		)
		if err := rows.Scan(&user.ID, &user.Name, &user.Email, &reviewID, &title, &content, &reviewerID, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("reviews: list overview: %w", err)
		}
		item := Overview{User: user}
		if reviewID.Valid {
			item.Review = &Review{
				ID:         reviewID.Int64,
				Title:      title.String,
				Content:    content.String,
				Reviewee:   user,
				ReviewerID: reviewerID.Int64,
				CreatedAt:  createdAt.Time,
				UpdatedAt:  updatedAt.Time,
			}
			reviews[reviewID.Int64] = item.Review
			ids = append(ids, reviewID.Int64)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reviews: list overview: %w", err)
	}
	if len(ids) == 0 {
		return out, nil
	}
	if err := loadAssignments(ctx, r.pool, ids, reviews); err != nil {
		return nil, err
	}
	return out, nil
}

const assignmentsForReviews = `
SELECT a.review_id, a.id, u.id, u.name, u.email, f.id, f.content, f.created_at
FROM review_assignments a
JOIN users u ON u.id = a.assigned_to_id
LEFT JOIN feedbacks f ON f.assignment_id = a.id
WHERE a.review_id = ANY($1)
ORDER BY a.review_id, a.created_at, a.id`

func loadAssignments(ctx context.Context, q queryer, ids []int64, into map[int64]*Review) error {
	rows, err := q.Query(ctx, assignmentsForReviews, ids)
	if err != nil {
		return fmt.Errorf("reviews: load assignments: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			reviewID          int64
			a                 Assignment
			feedbackID        pgtype.Int8
			feedbackContent   pgtype.Text
			feedbackCreatedAt pgtype.Timestamptz
		)
		if err := rows.Scan(&reviewID, &a.ID, &a.Assignee.ID, &a.Assignee.Name, &a.Assignee.Email, &feedbackID, &feedbackContent, &feedbackCreatedAt); err != nil {
			return fmt.Errorf("reviews: load assignments: %w", err)
		}
		if feedbackID.Valid {
			a.Feedback = &Feedback{ID: feedbackID.Int64, Content: feedbackContent.String, CreatedAt: feedbackCreatedAt.Time}
		}
		if review, ok := into[reviewID]; ok {
			review.Assignments = append(review.Assignments, a)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reviews: load assignments: %w", err)
	}
	return nil
}

// GetPerson loads a user by id.
func (r *Repository) GetPerson(ctx context.Context, id int64) (Person, error) {
	var p Person
	err := r.pool.QueryRow(ctx, `SELECT id, name, email FROM users WHERE id = $1`, id).Scan(&p.ID, &p.Name, &p.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Person{}, shared.ErrNotFound
		}
		return Person{}, fmt.Errorf("reviews: get person: %w", err)
	}
	return p, nil
}

const listCandidates = `
SELECT u.id, u.name, u.email
FROM users u
JOIN user_roles ur ON ur.user_id = u.id
JOIN roles r ON r.id = ur.role_id
WHERE r.name = $1
ORDER BY u.name, u.id`

// ListCandidates returns users who can be asked for feedback.
func (r *Repository) ListCandidates(ctx context.Context) ([]Person, error) {
	rows, err := r.pool.Query(ctx, listCandidates, rbac.RoleEmployee)
	if err != nil {
		return nil, fmt.Errorf("reviews: list candidates: %w", err)
	}
	defer rows.Close()
	var out []Person
	for rows.Next() {
		var p Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Email); err != nil {
			return nil, fmt.Errorf("reviews: list candidates: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetReview loads a review with its reviewee, assignments and feedback.
func (r *Repository) GetReview(ctx context.Context, id int64) (Review, error) {
	var (
		review     Review
		reviewerID pgtype.Int8
	)
	err := r.pool.QueryRow(ctx, `
		SELECT pr.id, pr.title, pr.content, pr.reviewer_id, pr.created_at, pr.updated_at, u.id, u.name, u.email
		FROM performance_reviews pr
		JOIN users u ON u.id = pr.reviewee_id
		WHERE pr.id = $1`, id).
		Scan(&review.ID, &review.Title, &review.Content, &reviewerID, &review.CreatedAt, &review.UpdatedAt,
			&review.Reviewee.ID, &review.Reviewee.Name, &review.Reviewee.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Review{}, shared.ErrNotFound
		}
		return Review{}, fmt.Errorf("reviews: get: %w", err)
	}
	review.ReviewerID = reviewerID.Int64
	if err := loadAssignments(ctx, r.pool, []int64{review.ID}, map[int64]*Review{review.ID: &review}); err != nil {
		return Review{}, err
	}
	return review, nil
}

// CreateReview stores the review and its assignments in one transaction and
// returns the review id with the assigned users.
func (r *Repository) CreateReview(ctx context.Context, reviewerID int64, in CreateInput) (int64, []Person, error) {
	var (
		reviewID int64
		added    []Person
	)
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO performance_reviews (title, content, reviewee_id, reviewer_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())
			RETURNING id`, in.Title, in.Content, in.RevieweeID, pgtype.Int8{Int64: reviewerID, Valid: reviewerID > 0}).
			Scan(&reviewID)
		switch {
		case err == nil:
		case db.IsUniqueViolation(err, "performance_reviews_reviewee_key"):
			return shared.ErrAlreadyReviewed
		case db.IsForeignKeyViolation(err):
			return shared.ErrNotFound
		default:
			return fmt.Errorf("reviews: insert review: %w", err)
		}
		added, err = addAssignments(ctx, tx, reviewID, in.AssigneeIDs)
		return err
	})
	if err != nil {
		return 0, nil, err
	}
	return reviewID, added, nil
}

// UpdateReview changes title and content and adds assignments. Existing
// assignments are kept; the returned users are the newly assigned ones.
func (r *Repository) UpdateReview(ctx context.Context, id int64, in UpdateInput) ([]Person, error) {
	var added []Person
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `UPDATE performance_reviews SET title = $2, content = $3, updated_at = NOW() WHERE id = $1`, id, in.Title, in.Content)
		if err != nil {
			return fmt.Errorf("reviews: update review: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		added, err = addAssignments(ctx, tx, id, in.AssigneeIDs)
		return err
	})
	return added, err
}

const insertAssignments = `
WITH inserted AS (
	INSERT INTO review_assignments (review_id, assigned_to_id, created_at)
	SELECT $1, u.id, NOW() FROM users u WHERE u.id = ANY($2)
	ON CONFLICT (review_id, assigned_to_id) DO NOTHING
	RETURNING assigned_to_id
)
SELECT u.id, u.name, u.email
FROM inserted i
JOIN users u ON u.id = i.assigned_to_id
ORDER BY u.id`

// addAssignments assigns existing users to the review. Unknown ids and
// assignments that already exist are skipped.
func addAssignments(ctx context.Context, tx pgx.Tx, reviewID int64, assigneeIDs []int64) ([]Person, error) {
	if len(assigneeIDs) == 0 {
		return nil, nil
	}
	rows, err := tx.Query(ctx, insertAssignments, reviewID, assigneeIDs)
	if err != nil {
		return nil, fmt.Errorf("reviews: insert assignments: %w", err)
	}
	defer rows.Close()
	var added []Person
	for rows.Next() {
		var p Person
		if err := rows.Scan(&p.ID, &p.Name, &p.Email); err != nil {
			return nil, fmt.Errorf("reviews: insert assignments: %w", err)
		}
		added = append(added, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reviews: insert assignments: %w", err)
	}
	return added, nil
}

const requestColumns = `
SELECT pr.id, pr.title, pr.content, u.id, u.name, u.email, a.id, f.id, f.content, f.created_at
FROM review_assignments a
JOIN performance_reviews pr ON pr.id = a.review_id
JOIN users u ON u.id = pr.reviewee_id
LEFT JOIN feedbacks f ON f.assignment_id = a.id
WHERE a.assigned_to_id = $1`

// ListRequests returns the reviews assigned to the user.
func (r *Repository) ListRequests(ctx context.Context, assigneeID int64) ([]Request, error) {
	rows, err := r.pool.Query(ctx, requestColumns+` ORDER BY pr.created_at, pr.id`, assigneeID)
	if err != nil {
		return nil, fmt.Errorf("reviews: list requests: %w", err)
	}
	defer rows.Close()
	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("reviews: list requests: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// GetRequest loads one review request belonging to the user.
func (r *Repository) GetRequest(ctx context.Context, assigneeID, reviewID int64) (Request, error) {
	req, err := scanRequest(r.pool.QueryRow(ctx, requestColumns+` AND pr.id = $2`, assigneeID, reviewID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Request{}, shared.ErrNotFound
		}
		return Request{}, fmt.Errorf("reviews: get request: %w", err)
	}
	return req, nil
}

func scanRequest(row pgx.Row) (Request, error) {
	var (
		req               Request
		feedbackID        pgtype.Int8
		feedbackContent   pgtype.Text
		feedbackCreatedAt pgtype.Timestamptz
	)
	if err := row.Scan(&req.ReviewID, &req.Title, &req.Content, &req.Reviewee.ID, &req.Reviewee.Name, &req.Reviewee.Email,
		&req.AssignmentID, &feedbackID, &feedbackContent, &feedbackCreatedAt); err != nil {
		return Request{}, err
	}
	if feedbackID.Valid {
		req.Feedback = &Feedback{ID: feedbackID.Int64, Content: feedbackContent.String, CreatedAt: feedbackCreatedAt.Time}
	}
	return req, nil
}

const insertFeedback = `
INSERT INTO feedbacks (assignment_id, content, created_at)
SELECT a.id, $4, NOW()
FROM review_assignments a
WHERE a.id = $1 AND a.review_id = $2 AND a.assigned_to_id = $3
RETURNING id`

// CreateFeedback stores feedback on an assignment owned by assigneeID.
func (r *Repository) CreateFeedback(ctx context.Context, assigneeID int64, in FeedbackInput) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, insertFeedback, in.AssignmentID, in.ReviewID, assigneeID, in.Content).Scan(&id)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return 0, shared.ErrNotFound
		case db.IsUniqueViolation(err, "feedbacks_assignment_key"):
			return 0, shared.ErrFeedbackExists
		default:
			return 0, fmt.Errorf("reviews: insert feedback: %w", err)
		}
	}
	return id, nil
}

var _ RepositoryPort = (*Repository)(nil)
