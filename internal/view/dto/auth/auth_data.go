package auth

// LoginData is the view model of the login page.
type LoginData struct {
	// Email pre-fills the form after a failed attempt.
	Email string
	// CSRF is the token echoed back in the _csrf form field.
	CSRF          string
	GoogleEnabled bool
	Errors        []string
	Notices       []string
}

// SignupData is the view model of the sign-up landing page.
type SignupData struct {
	Errors []string
}
