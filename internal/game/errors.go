package game

import "errors"

// ErrorKind classifies a failed room event so the transport can decide how
// to report it. Every kind is reported to the originating connection only.
type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindNotFound     ErrorKind = "not_found"
	KindPrecondition ErrorKind = "precondition"
	KindDependency   ErrorKind = "dependency"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two game errors by kind and message, so sentinels work with errors.Is
// even after being wrapped with a cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

func newError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

var (
	ErrConnectionRequired = newError(KindValidation, "connection id is required")
	ErrAlreadyJoined      = newError(KindValidation, "connection already joined this room")
	ErrRoomIDRequired     = newError(KindValidation, "room id is required")
	ErrUsernameRequired   = newError(KindValidation, "username is required")
	ErrUsernameTooLong    = newError(KindValidation, "username is too long")
	ErrUsernameTaken      = newError(KindValidation, "username is already taken in this room")
	ErrUnknownUser        = newError(KindValidation, "user is not registered for this room")
	ErrInvalidVoter       = newError(KindValidation, "voter is not eligible in this vote")
	ErrInvalidVoteTarget  = newError(KindValidation, "vote target is not a candidate")
	ErrInvalidDuration    = newError(KindValidation, "timer duration must be positive")
	ErrRoomNotFound       = newError(KindNotFound, "room not found")
	ErrNoActiveTimer      = newError(KindPrecondition, "no active timer")
	ErrNoPausedTimer      = newError(KindPrecondition, "no paused timer to resume")
	ErrNotEnoughWords     = newError(KindPrecondition, "at least two distinct words are required")
	ErrEmptyRoster        = newError(KindPrecondition, "room has no participants")
	ErrNoActiveRound      = newError(KindPrecondition, "no active round")
	ErrNoOpenVote         = newError(KindPrecondition, "voting is not open")
	ErrRoundSuperseded    = newError(KindPrecondition, "room changed while starting the round")
	ErrDependencyFailure  = newError(KindDependency, "temporary failure, try again")
)

// dependencyError wraps a store failure so callers see a generic message while
// the cause stays available to logs through errors.Unwrap.
func dependencyError(err error) error {
	return &Error{Kind: KindDependency, Message: ErrDependencyFailure.Message, Err: err}
}

// KindOf reports the kind of a game error, or KindDependency for anything else.
func KindOf(err error) ErrorKind {
	var gameErr *Error
	if errors.As(err, &gameErr) {
		return gameErr.Kind
	}
	return KindDependency
}

// PublicMessage is the text safe to show a client for err.
func PublicMessage(err error) string {
	var gameErr *Error
	if errors.As(err, &gameErr) {
		return gameErr.Message
	}
	return ErrDependencyFailure.Message
}
