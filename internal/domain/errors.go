package domain

import "errors"

var (
	// ErrGuardViolation is returned when a trigger is not legal in the
	// current phase. It is the only error the flow raises to the host; state
	// never changes on a rejected trigger.
	ErrGuardViolation = errors.New("trigger not allowed in current phase")
	// ErrNoParticipants blocks a round from starting with nobody connected.
	ErrNoParticipants = errors.New("no active participants")
	// ErrEmptyCatalog indicates the question bank loaded zero questions.
	ErrEmptyCatalog = errors.New("question catalog is empty")
	// ErrDuplicateSubmission is raised for a repeat submission in one round;
	// the first submission wins.
	ErrDuplicateSubmission = errors.New("participant already submitted this round")
	// ErrStaleRound is raised for a submission tagged to a round generation
	// that has since been cleared.
	ErrStaleRound = errors.New("submission belongs to a stale round")
	// ErrInvalidSequence is raised for a submitted ordering that is not a
	// permutation of A-D.
	ErrInvalidSequence = errors.New("answer sequence is not a valid permutation")
)
