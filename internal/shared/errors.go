package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateEmail occurs when an account already uses the email.
	ErrDuplicateEmail = errors.New("a user already exists with this email")
	// ErrAlreadyReviewed occurs when the reviewee already has a review.
	ErrAlreadyReviewed = errors.New("a user has already been reviewed")
	// ErrFeedbackExists occurs when an assignment already carries feedback.
	ErrFeedbackExists = errors.New("feedback has already been submitted")
	// ErrCSRFTokenMissing occurs when CSRF token missing.
	ErrCSRFTokenMissing = errors.New("csrf token missing")
	// ErrCSRFTokenMismatch occurs when CSRF tokens do not match.
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
	// ErrHoneypotFilled occurs when the hidden spam trap field carries a value.
	ErrHoneypotFilled = errors.New("honeypot field filled")
)

// UserSafeMessage maps known errors to messages that may be shown in the UI.
// Anything else is reported generically.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "Not found"
	case errors.Is(err, ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, ErrDuplicateEmail):
		return "A user already exists with this email"
	case errors.Is(err, ErrAlreadyReviewed):
		return "A user has already been reviewed"
	case errors.Is(err, ErrFeedbackExists):
		return "Feedback has already been submitted"
	default:
		return "Something went wrong, please try again"
	}
}
