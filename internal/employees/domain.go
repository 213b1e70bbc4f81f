package employees

import "time"

// Employee is a user account as shown on the HR pages.
type Employee struct {
	ID        int64
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Summary is the JSON shape returned by the employee search endpoint.
type Summary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreateInput carries the data for a new employee account.
type CreateInput struct {
	Email    string
	Name     string
	Password string
}

// UpdateInput carries editable account fields.
type UpdateInput struct {
	Email string
	Name  string
}
