package service

import "fmt"

// ErrorKind classifies business errors so adapters can map them to transport status codes.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindConflict
	KindNotFound
	KindPrecondition
	KindUnauthorized
	KindInsufficientBalance
)

// Error is a business error with a stable machine-readable code.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error carrying the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func newError(kind ErrorKind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// withDetail returns a copy of err with extra context appended to the message.
func withDetail(err *Error, format string, args ...interface{}) *Error {
	return &Error{Kind: err.Kind, Code: err.Code, Message: err.Message + ": " + fmt.Sprintf(format, args...)}
}

var (
	ErrOnlyPortfolio       = newError(KindValidation, "ONLY_PORTFOLIO", "votes are only accepted for portfolio challenges")
	ErrVotingClosed        = newError(KindValidation, "VOTING_CLOSED", "voting window is closed")
	ErrSubmissionMismatch  = newError(KindValidation, "SUBMISSION_MISMATCH", "submission does not belong to the challenge")
	ErrDuplicateVote       = newError(KindConflict, "DUPLICATE_VOTE", "vote already submitted for this challenge")
	ErrSelfVote            = newError(KindValidation, "SELF_VOTE_NOT_ALLOWED", "cannot vote for your own submission")
	ErrInvalidScore        = newError(KindValidation, "INVALID_SCORE", "scores must be between 1 and 5")
	ErrChallengeNotFound   = newError(KindNotFound, "CHALLENGE_NOT_FOUND", "challenge not found")
	ErrSubmissionNotFound  = newError(KindNotFound, "SUBMISSION_NOT_FOUND", "submission not found")
	ErrVoteNotFound        = newError(KindNotFound, "VOTE_NOT_FOUND", "vote not found")
	ErrUserNotFound        = newError(KindNotFound, "USER_NOT_FOUND", "user not found or inactive")
	ErrLoginRequired       = newError(KindUnauthorized, "LOGIN_REQUIRED", "login required")
	ErrVotingNotFinished   = newError(KindPrecondition, "VOTING_NOT_FINISHED", "voting has not finished yet")
	ErrDuplicatePayout     = newError(KindConflict, "DUPLICATE_PAYOUT_REQUEST", "payout request already in progress")
	ErrInsufficientBalance = newError(KindInsufficientBalance, "INSUFFICIENT_BALANCE", "insufficient credit balance")
	ErrInvalidAmount       = newError(KindValidation, "INVALID_AMOUNT", "amount must be positive")
	ErrCreditsDisabled     = newError(KindPrecondition, "CREDITS_NOT_ENABLED", "credits are not enabled")
	ErrTimeWindowInvalid   = newError(KindValidation, "TIME_WINDOW_INVALID", "challenge time window is invalid")
	ErrInvalidTransition   = newError(KindValidation, "INVALID_TRANSITION", "status transition is not allowed")
	ErrCannotDelete        = newError(KindConflict, "CANNOT_DELETE_PUBLISHED", "challenge rewards are already published")
	ErrHasDependencies     = newError(KindConflict, "HAS_DEPENDENCIES", "challenge has submissions or votes")
	ErrWeekRefRequired     = newError(KindValidation, "WEEK_REF_REQUIRED", "external week reference is required")
	ErrUnknownType         = newError(KindValidation, "UNKNOWN_CHALLENGE_TYPE", "unknown challenge type")
	ErrInvalidRequest      = newError(KindValidation, "INVALID_REQUEST", "invalid request payload")
)
