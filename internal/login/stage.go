package login

import "fmt"

// Stage is a step of the login pipeline.
type Stage int

const (
	StageIdle Stage = iota
	StageAuthenticating
	StageProfileFetching
	StageSessionPersisting
	StageComplete
	StageIncomplete
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageAuthenticating:
		return "authenticating"
	case StageProfileFetching:
		return "profile_fetching"
	case StageSessionPersisting:
		return "session_persisting"
	case StageComplete:
		return "complete"
	case StageIncomplete:
		return "incomplete"
	case StageFailed:
		return "failed"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// StageError reports the stage at which a login attempt stopped.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("login failed while %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
