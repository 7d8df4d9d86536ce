package domain

// User is a site account as the LMS sees it.
type User struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
}
