package domain

import "errors"

var (
	// ErrSessionNotFound is returned when no session exists for a quiz id.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrParticipantNotFound is returned when a participant acts before joining.
	ErrParticipantNotFound = errors.New("participant not found in quiz")
	// ErrQuestionNotFound indicates an unknown question id.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidQuestion indicates a question failing bank validation.
	ErrInvalidQuestion = errors.New("invalid question")
	// ErrInvalidTransition is returned for an event not allowed in the
	// session's current phase. It is reported, never fatal.
	ErrInvalidTransition = errors.New("invalid phase transition")
	// ErrEmptyQuiz is returned when starting a session with no questions.
	ErrEmptyQuiz = errors.New("quiz has no questions")
	// ErrStaleAnswer is returned when a submission names a question that is
	// not the session's current one.
	ErrStaleAnswer = errors.New("answer for a question that is not current")
	// ErrDuplicateAnswer marks a second submission for an already answered
	// question. Callers treat it as benign, not as a hard failure.
	ErrDuplicateAnswer = errors.New("question already answered")
	// ErrInvalidHostCode is returned when session creation fails the code check.
	ErrInvalidHostCode = errors.New("invalid host code")
)
