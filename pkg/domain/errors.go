package domain

// ErrorKind classifies workflow failures.
type ErrorKind string

const (
	KindInvalidInput       ErrorKind = "invalid_input"       // Rejected before any network call
	KindPreconditionFailed ErrorKind = "precondition_failed" // Predecessor step not committed
	KindNotFound           ErrorKind = "not_found"           // Unknown image id
	KindRemoteFailure      ErrorKind = "remote_failure"      // Non-success HTTP response
	KindTransportFailure   ErrorKind = "transport_failure"   // Network-level failure
	KindPersistenceCorrupt ErrorKind = "persistence_corrupt" // Stored record does not parse
)

// Error is the error type returned by workflow operations.
// Error() yields Message verbatim so it can be shown to the user as-is.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by kind, so errors.Is(err, ErrNotFound) holds
// for any *Error of kind KindNotFound regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Err == nil && e.Kind == t.Kind
}

var (
	// ErrInvalidInput is returned for empty upload batches and empty prompts.
	ErrInvalidInput = &Error{Kind: KindInvalidInput}

	// ErrPreconditionFailed is returned when a step runs before its predecessor committed.
	ErrPreconditionFailed = &Error{Kind: KindPreconditionFailed}

	// ErrNotFound is returned when selecting an image id that was not uploaded.
	ErrNotFound = &Error{Kind: KindNotFound}

	// ErrRemoteFailure is returned when the backend answers with a non-success status.
	ErrRemoteFailure = &Error{Kind: KindRemoteFailure}

	// ErrTransportFailure is returned when the backend cannot be reached.
	ErrTransportFailure = &Error{Kind: KindTransportFailure}

	// ErrPersistenceCorrupt marks a stored record that cannot be parsed.
	// It is logged by the persistence layer and never surfaced to the user.
	ErrPersistenceCorrupt = &Error{Kind: KindPersistenceCorrupt}

	// ErrStepInFlight is returned when a step is triggered while its previous
	// request has not settled yet. It also matches ErrPreconditionFailed.
	ErrStepInFlight = &Error{Kind: KindPreconditionFailed, Message: "step already in progress"}
)

// InvalidInput builds an ErrInvalidInput-kind error with a user-facing message.
func InvalidInput(msg string) error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

// PreconditionFailed builds an ErrPreconditionFailed-kind error.
func PreconditionFailed(msg string) error {
	return &Error{Kind: KindPreconditionFailed, Message: msg}
}

// NotFound builds an ErrNotFound-kind error.
func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// RemoteFailure builds an ErrRemoteFailure-kind error carrying the server message.
func RemoteFailure(msg string, cause error) error {
	return &Error{Kind: KindRemoteFailure, Message: msg, Err: cause}
}

// TransportFailure builds an ErrTransportFailure-kind error. msg is the generic
// per-step message; cause keeps the network error for logging.
func TransportFailure(msg string, cause error) error {
	return &Error{Kind: KindTransportFailure, Message: msg, Err: cause}
}

// InFlight builds an ErrStepInFlight error naming the busy step.
func InFlight(step Step) error {
	return &Error{
		Kind:    KindPreconditionFailed,
		Message: step.Noun() + " already in progress",
		Err:     ErrStepInFlight,
	}
}
