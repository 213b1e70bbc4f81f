package auth

import "time"

// User represents an account able to sign in.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SignupInput carries the data needed to create an account.
type SignupInput struct {
	Email    string
	Name     string
	Password string
}

// NewUser is a validated account ready to be stored.
type NewUser struct {
	Email        string
	Name         string
	PasswordHash string
	Role         string
}
