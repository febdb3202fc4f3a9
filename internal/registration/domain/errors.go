package registration

import "errors"

var (
	// ErrUnknownField indicates a field path that no draft field matches.
	ErrUnknownField = errors.New("registration: unknown field")
	// ErrNilSession is returned when a nil session is persisted.
	ErrNilSession = errors.New("registration: nil session")
	// ErrSessionNotFound indicates a missing or expired draft session.
	ErrSessionNotFound = errors.New("registration: session not found")
	// ErrSubmissionInFlight indicates a duplicate submit while one is pending.
	ErrSubmissionInFlight = errors.New("registration: submission already in flight")
	// ErrInvalidStep indicates a step index outside the flow.
	ErrInvalidStep = errors.New("registration: invalid step")
	// ErrInvalidMonth indicates a month index outside 0..11.
	ErrInvalidMonth = errors.New("registration: invalid month")
)
