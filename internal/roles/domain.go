package roles

// View is a role prepared for display.
type View struct {
	ID          int64
	Name        string
	Description string
	Permissions []string
}
