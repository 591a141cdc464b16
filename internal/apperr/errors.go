// Package apperr defines the typed errors surfaced to sessions.
package apperr

import (
	"errors"
	"fmt"

	"github.com/jason-s-yu/arena/internal/models"
	"github.com/rotisserie/eris"
)

// Kind is the broad error category reported to clients.
type Kind string

const (
	KindAuthRequired  Kind = "auth-required"
	KindStateConflict Kind = "state-conflict"
	KindValidation    Kind = "validation"
	KindAuthorization Kind = "authorization"
	KindNotFound      Kind = "not-found"
	KindTimeoutAbort  Kind = "timeout-abort"
	KindInternal      Kind = "internal"
)

// Error codes.
const (
	CodeAuthRequired          = "AuthRequired"
	CodeInvalidToken          = "InvalidToken"
	CodeAlreadyConnected      = "AlreadyConnected"
	CodeAlreadyInParty        = "AlreadyInParty"
	CodeNotInParty            = "NotInParty"
	CodePartyQueued           = "PartyQueued"
	CodeAlreadyQueued         = "AlreadyQueued"
	CodeNotQueued             = "NotQueued"
	CodeInvalidMode           = "InvalidMode"
	CodePartyTooLarge         = "PartyTooLarge"
	CodePartyFull             = "PartyFull"
	CodeNotLeader             = "NotLeader"
	CodePartyNotFound         = "PartyNotFound"
	CodeMatchNotFound         = "MatchNotFound"
	CodeMatchNotActive        = "MatchNotActive"
	CodeNotInMatch            = "NotInMatch"
	CodeNotAuthorizedReporter = "NotAuthorizedReporter"
	CodeInvalidScore          = "InvalidScore"
	CodeMatchNotConcluded     = "MatchNotConcluded"
	CodeReadyCheckTimeout     = "ReadyCheckTimeout"
	CodeInternal              = "Internal"
)

// Error is an application error with a stable code.
type Error struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Withf returns a copy of e with a more specific message.
func (e *Error) Withf(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// Payload renders e as the body of a *-error event.
func (e *Error) Payload() models.ErrorPayload {
	return models.ErrorPayload{Code: e.Code, Kind: string(e.Kind), Message: e.Message}
}

// New creates an error of the given kind and code.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Internal wraps an unexpected failure. The cause keeps its stack for logging
// but is never shown to clients.
func Internal(err error, message string) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: message, Err: eris.Wrap(err, message)}
}

// From converts any error into an *Error, treating unknown errors as internal.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal(err, "internal error")
}

// HasKind reports whether err is an *Error of the given kind.
func HasKind(err error, kind Kind) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// Trace renders the wrapped cause with its stack, for log fields.
func Trace(err error) string {
	return eris.ToString(err, true)
}

var (
	ErrAuthRequired     = New(KindAuthRequired, CodeAuthRequired, "authentication required")
	ErrInvalidToken     = New(KindAuthRequired, CodeInvalidToken, "invalid or expired token")
	ErrAlreadyConnected = New(KindStateConflict, CodeAlreadyConnected, "user already has a live session")

	ErrAlreadyInParty = New(KindStateConflict, CodeAlreadyInParty, "session already belongs to a party")
	ErrNotInParty     = New(KindStateConflict, CodeNotInParty, "session is not in a party")
	ErrPartyQueued    = New(KindStateConflict, CodePartyQueued, "party is queued or in a match")
	ErrAlreadyQueued  = New(KindStateConflict, CodeAlreadyQueued, "user is already queued or matched")
	ErrNotQueued      = New(KindStateConflict, CodeNotQueued, "user is not queued")

	ErrInvalidMode   = New(KindValidation, CodeInvalidMode, "mode must be one of 1v1, 2v2, 3v3")
	ErrPartyTooLarge = New(KindValidation, CodePartyTooLarge, "party does not fit on one team")
	ErrPartyFull     = New(KindValidation, CodePartyFull, "party is full")
	ErrInvalidScore  = New(KindValidation, CodeInvalidScore, "invalid score")

	ErrNotLeader             = New(KindAuthorization, CodeNotLeader, "only the party leader may do that")
	ErrNotAuthorizedReporter = New(KindAuthorization, CodeNotAuthorizedReporter, "only the match host may report results")
	ErrNotInMatch            = New(KindAuthorization, CodeNotInMatch, "session is not a participant of that match")

	ErrPartyNotFound     = New(KindNotFound, CodePartyNotFound, "party not found")
	ErrMatchNotFound     = New(KindNotFound, CodeMatchNotFound, "match not found")
	ErrMatchNotActive    = New(KindStateConflict, CodeMatchNotActive, "match is not active")
	ErrMatchNotConcluded = New(KindValidation, CodeMatchNotConcluded, "no side has reached the score limit")

	ErrReadyCheckTimeout = New(KindTimeoutAbort, CodeReadyCheckTimeout, "ready check timed out")
)
