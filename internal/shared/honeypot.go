package shared

import "net/http"

// HoneypotField is a visually hidden form input that humans leave empty.
const HoneypotField = "name__confirm"

// CheckHoneypot returns ErrHoneypotFilled when the trap field has a value.
// The form must already be parsed.
func CheckHoneypot(r *http.Request) error {
	if r.PostFormValue(HoneypotField) != "" {
		return ErrHoneypotFilled
	}
	return nil
}
