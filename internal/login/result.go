package login

import "github.com/ffland/portal/internal/domain"

// Routes a finished login can lead to.
const (
	PathHome       = "/"
	PathCalculator = "/calculator"
	PathSignup     = "/portal/signup"
)

// Outcome distinguishes a signed-in user from one who still has to sign up.
type Outcome int

const (
	OutcomeAuthenticated Outcome = iota
	OutcomeNeedsSignup
)

func (o Outcome) String() string {
	if o == OutcomeNeedsSignup {
		return "needs_signup"
	}
	return "authenticated"
}

// Result is a successful login pipeline run.
type Result struct {
	Outcome  Outcome
	Identity domain.Identity
	// Profile and Complete are only set when Outcome is OutcomeAuthenticated.
	Profile  domain.Profile
	Complete bool
	Scope    domain.Scope
}

// Stage is the terminal stage of the run.
func (r Result) Stage() Stage {
	if r.Outcome == OutcomeAuthenticated && r.Complete {
		return StageComplete
	}
	return StageIncomplete
}

// Destination is where the browser goes next.
func (r Result) Destination() string {
	switch {
	case r.Outcome == OutcomeNeedsSignup:
		return PathSignup
	case r.Complete:
		return PathHome
	default:
		return PathCalculator
	}
}
